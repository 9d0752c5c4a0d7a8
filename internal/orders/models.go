package orders

import "time"

// Line is a priced order line. Unit price is frozen at reservation time and
// never recomputed from the live product price.
type Line struct {
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// Order is immutable once created, except for status transitions.
type Order struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Status        Status    `json:"status"`
	Lines         []Line    `json:"lines"`
	SubtotalCents int64     `json:"subtotal_cents"`
	DiscountCents int64     `json:"discount_cents"`
	ShippingCents int64     `json:"shipping_cents"`
	TotalCents    int64     `json:"total_cents"`
	CouponCode    string    `json:"coupon_code,omitempty"`
	Destination   string    `json:"destination"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
