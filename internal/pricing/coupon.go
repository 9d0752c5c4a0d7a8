package pricing

import (
	"fmt"
	"time"
)

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

type Coupon struct {
	Code             string
	Kind             DiscountKind
	Percent          int   // DiscountPercent: 0..100
	AmountCents      int64 // DiscountFixed
	ValidFrom        time.Time
	ValidUntil       time.Time
	MinSubtotalCents int64 // 0 = tanpa syarat minimum
}

// CouponError is the typed rejection for an invalid, expired or ineligible
// coupon. The caller decides whether to retry without it; the engine never
// silently drops a coupon.
type CouponError struct {
	Code   string
	Reason string // unknown | not_started | expired | min_subtotal
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %q rejected: %s", e.Code, e.Reason)
}
