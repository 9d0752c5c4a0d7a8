package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrIdempotentReplay: idempotency key sudah dipakai order lain.
	ErrIdempotentReplay = errors.New("idempotency key already used")
	// ErrCancelRequiresRestock: transisi ke CANCELLED wajib lewat Cancel
	// supaya restock ikut dalam transaksi yg sama.
	ErrCancelRequiresRestock = errors.New("cancellation must go through Cancel")
)

type BadTransitionError struct {
	From Status
	To   Status
}

func (e *BadTransitionError) Error() string {
	return fmt.Sprintf("illegal order transition %s -> %s", e.From, e.To)
}

type Store struct{ DB *pgxpool.Pool }

// Create persists the order, its priced lines and the cart clear as one
// transaction. A failure here leaves no partial order and the cart intact.
func (s *Store) Create(ctx context.Context, o *Order, idemKey string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, subtotal_cents, discount_cents,
		                   shipping_cents, total_cents, coupon_code, destination, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''))`,
		o.ID, o.UserID, o.Status, o.SubtotalCents, o.DiscountCents,
		o.ShippingCents, o.TotalCents, o.CouponCode, o.Destination, idemKey)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIdempotentReplay
		}
		return err
	}

	for _, ln := range o.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, unit_price_cents, subtotal_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, ln.ProductID, ln.Qty, ln.UnitPriceCents, ln.SubtotalCents); err != nil {
			return err
		}
	}

	// cart tidak pernah selamat dari checkout sukses
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, o.UserID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `SELECT id FROM orders WHERE idempotency_key = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx, `
		SELECT id, user_id, status, subtotal_cents, discount_cents, shipping_cents,
		       total_cents, COALESCE(coupon_code, ''), destination, created_at, updated_at
		FROM orders WHERE id = $1`, orderID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.SubtotalCents, &o.DiscountCents,
			&o.ShippingCents, &o.TotalCents, &o.CouponCode, &o.Destination, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT product_id, qty, unit_price_cents, subtotal_cents
		FROM order_items WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ln Line
		if err := rows.Scan(&ln.ProductID, &ln.Qty, &ln.UnitPriceCents, &ln.SubtotalCents); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, ln)
	}
	return &o, rows.Err()
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, status, subtotal_cents, discount_cents, shipping_cents,
		       total_cents, COALESCE(coupon_code, ''), destination, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.SubtotalCents, &o.DiscountCents,
			&o.ShippingCents, &o.TotalCents, &o.CouponCode, &o.Destination, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus applies an admin-driven transition. The WHERE clause carries
// the legal predecessors so an illegal transition can never race in between
// read and write.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, to Status) error {
	if to == StatusCancelled {
		return ErrCancelRequiresRestock
	}
	preds := predecessors(to)
	if len(preds) == 0 {
		cur, err := s.currentStatus(ctx, orderID)
		if err != nil {
			return err
		}
		return &BadTransitionError{From: cur, To: to}
	}

	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)`, orderID, to, preds)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		cur, err := s.currentStatus(ctx, orderID)
		if err != nil {
			return err
		}
		return &BadTransitionError{From: cur, To: to}
	}
	return nil
}

// Cancel flips a PLACED/CONFIRMED order to CANCELLED and restores exactly the
// quantities its lines committed, in one transaction. This is the restock
// mirror of a reservation release, but against a committed order.
func (s *Store) Cancel(ctx context.Context, orderID string) ([]Line, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)`,
		orderID, StatusCancelled, []string{string(StatusPlaced), string(StatusConfirmed)})
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		cur, serr := s.currentStatus(ctx, orderID)
		if serr != nil {
			return nil, serr
		}
		return nil, &BadTransitionError{From: cur, To: StatusCancelled}
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, qty, unit_price_cents, subtotal_cents
		FROM order_items WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	var lines []Line
	for rows.Next() {
		var ln Line
		if err := rows.Scan(&ln.ProductID, &ln.Qty, &ln.UnitPriceCents, &ln.SubtotalCents); err != nil {
			rows.Close()
			return nil, err
		}
		lines = append(lines, ln)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// restock: urutan product_id stabil, sama seperti reserve
	for _, ln := range lines {
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
			ln.ProductID, ln.Qty); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) currentStatus(ctx context.Context, orderID string) (Status, error) {
	var cur string
	err := s.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return Status(cur), err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
