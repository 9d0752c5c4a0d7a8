package pricing

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ErrAmountInvalid covers the defensive cases: totals that would overflow or
// go negative. A cart that trips this is a data problem, not a user error.
var ErrAmountInvalid = errors.New("pricing amount negative or overflow")

type Line struct {
	ProductID      string
	Qty            int
	UnitPriceCents int64
}

type QuotedLine struct {
	ProductID      string
	Qty            int
	UnitPriceCents int64
	SubtotalCents  int64
}

type Quote struct {
	Lines         []QuotedLine
	SubtotalCents int64
	DiscountCents int64
	ShippingCents int64
	TotalCents    int64
	CouponCode    string // kosong jika tanpa coupon
}

// Engine prices a set of frozen-price lines. Pure: no I/O, no clock other
// than the injected one.
type Engine struct {
	FlatRateCents int64
	Zones         map[string]int64 // destination (lowercase) -> rate
	Now           func() time.Time
}

func NewEngine(flatRateCents int64, zones map[string]int64) *Engine {
	if flatRateCents < 0 {
		flatRateCents = 0
	}
	return &Engine{FlatRateCents: flatRateCents, Zones: zones, Now: time.Now}
}

// Quote computes subtotal, discount, shipping and grand total. Rounding to the
// smallest currency unit happens exactly once, on the grand total, half-even.
func (e *Engine) Quote(lines []Line, coupon *Coupon, destination string) (*Quote, error) {
	if len(lines) == 0 {
		return nil, ErrAmountInvalid
	}

	q := &Quote{Lines: make([]QuotedLine, 0, len(lines))}
	for _, ln := range lines {
		if ln.Qty <= 0 || ln.UnitPriceCents < 0 {
			return nil, ErrAmountInvalid
		}
		lineTotal, ok := mulInt64(ln.UnitPriceCents, int64(ln.Qty))
		if !ok {
			return nil, ErrAmountInvalid
		}
		sub, ok := addInt64(q.SubtotalCents, lineTotal)
		if !ok {
			return nil, ErrAmountInvalid
		}
		q.SubtotalCents = sub
		q.Lines = append(q.Lines, QuotedLine{
			ProductID:      ln.ProductID,
			Qty:            ln.Qty,
			UnitPriceCents: ln.UnitPriceCents,
			SubtotalCents:  lineTotal,
		})
	}

	q.ShippingCents = e.shippingFor(destination)

	// diskon dihitung eksak (pecahan sen utk percent), dibulatkan sekali di total
	discountNum := int64(0) // dalam 1/100 sen
	if coupon != nil {
		now := time.Now()
		if e.Now != nil {
			now = e.Now()
		}
		if err := validateCoupon(coupon, q.SubtotalCents, now); err != nil {
			return nil, err
		}
		switch coupon.Kind {
		case DiscountPercent:
			if coupon.Percent < 0 || coupon.Percent > 100 {
				return nil, ErrAmountInvalid
			}
			n, ok := mulInt64(q.SubtotalCents, int64(coupon.Percent))
			if !ok {
				return nil, ErrAmountInvalid
			}
			discountNum = n
		case DiscountFixed:
			amt := coupon.AmountCents
			if amt < 0 {
				return nil, ErrAmountInvalid
			}
			if amt > q.SubtotalCents {
				amt = q.SubtotalCents // cap supaya total tdk negatif
			}
			discountNum = amt * 100
		default:
			return nil, &CouponError{Code: coupon.Code, Reason: "unknown"}
		}
		q.CouponCode = coupon.Code
	}

	// total = subtotal - discount + shipping, semua diskala 1/100 sen
	totalNum := q.SubtotalCents*100 - discountNum + q.ShippingCents*100
	if totalNum < 0 {
		return nil, ErrAmountInvalid
	}
	q.TotalCents = roundHalfEven(totalNum, 100)
	q.DiscountCents = q.SubtotalCents + q.ShippingCents - q.TotalCents
	return q, nil
}

func (e *Engine) shippingFor(destination string) int64 {
	if rate, ok := e.Zones[strings.ToLower(strings.TrimSpace(destination))]; ok && rate >= 0 {
		return rate
	}
	return e.FlatRateCents
}

func validateCoupon(c *Coupon, subtotalCents int64, now time.Time) error {
	if c.Code == "" {
		return &CouponError{Code: c.Code, Reason: "unknown"}
	}
	if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
		return &CouponError{Code: c.Code, Reason: "not_started"}
	}
	if !c.ValidUntil.IsZero() && now.After(c.ValidUntil) {
		return &CouponError{Code: c.Code, Reason: "expired"}
	}
	if c.MinSubtotalCents > 0 && subtotalCents < c.MinSubtotalCents {
		return &CouponError{Code: c.Code, Reason: "min_subtotal"}
	}
	return nil
}

// roundHalfEven rounds num/den to the nearest integer, ties to even.
// num and den must be non-negative, den > 0.
func roundHalfEven(num, den int64) int64 {
	q := num / den
	r := num % den
	switch {
	case 2*r < den:
		return q
	case 2*r > den:
		return q + 1
	case q%2 == 0: // tepat setengah -> ke genap
		return q
	default:
		return q + 1
	}
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || c < 0 {
		return 0, false
	}
	return c, true
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || c > math.MaxInt64/200 {
		// headroom utk skala 1/100 sen di perhitungan total
		return 0, false
	}
	return c, true
}
