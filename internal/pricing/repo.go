package pricing

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CouponRepo struct{ DB *pgxpool.Pool }

// Find looks a coupon up by code. An unknown code is a CouponError, not a
// storage error: the caller reports it the same way as an expired one.
func (r *CouponRepo) Find(ctx context.Context, code string) (*Coupon, error) {
	code = strings.TrimSpace(code)
	var c Coupon
	err := r.DB.QueryRow(ctx, `
		SELECT code, kind, percent, amount_cents, valid_from, valid_until, min_subtotal_cents
		FROM coupons WHERE code = $1`, code).
		Scan(&c.Code, &c.Kind, &c.Percent, &c.AmountCents, &c.ValidFrom, &c.ValidUntil, &c.MinSubtotalCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &CouponError{Code: code, Reason: "unknown"}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
