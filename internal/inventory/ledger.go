package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the only writer of products.stock. Every mutation is an atomic
// conditional update scoped to the rows it touches; there is no read-then-write
// pair anywhere in this file.
type Ledger struct{ DB *pgxpool.Pool }

// Reserve takes an all-or-nothing hold on stock for one checkout attempt and
// freezes unit prices in the same transaction. Lines are processed in
// ascending product id so concurrent attempts touching overlapping products
// acquire row locks in the same order.
//
// Either every line reserves or the transaction rolls back and the returned
// *ReserveError lists every failing product.
func (l *Ledger) Reserve(ctx context.Context, items []ItemQty) (*Reservation, error) {
	sorted := make([]ItemQty, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	attemptID := uuid.NewString()
	res := &Reservation{ID: attemptID}
	var failures []error

	for _, it := range sorted {
		var price int64
		err := tx.QueryRow(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND active AND stock >= $2
			RETURNING price_cents`, it.ProductID, it.Qty).Scan(&price)
		if errors.Is(err, pgx.ErrNoRows) {
			failures = append(failures, l.classifyFailure(ctx, tx, it))
			continue
		}
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations(attempt_id, product_id, qty, unit_price_cents, status)
			VALUES ($1, $2, $3, $4, 'RESERVED')`,
			attemptID, it.ProductID, it.Qty, price); err != nil {
			return nil, err
		}
		res.Lines = append(res.Lines, ReservedLine{ProductID: it.ProductID, Qty: it.Qty, UnitPriceCents: price})
	}

	if len(failures) > 0 {
		return nil, &ReserveError{Failures: failures} // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// classifyFailure: conditional update tidak kena baris -> cari tahu kenapa.
func (l *Ledger) classifyFailure(ctx context.Context, tx pgx.Tx, it ItemQty) error {
	var stock int
	var active bool
	err := tx.QueryRow(ctx, `SELECT stock, active FROM products WHERE id = $1`, it.ProductID).Scan(&stock, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
	}
	if err != nil {
		return err
	}
	if !active {
		return &InactiveProductError{ProductID: it.ProductID}
	}
	return &InsufficientStockError{ProductID: it.ProductID, Available: stock, Requested: it.Qty}
}

// Release restores the held quantities after a failed attempt. The status flip
// on each reservation row is the guard against double release.
func (l *Ledger) Release(ctx context.Context, res *Reservation) error {
	if res == nil || len(res.Lines) == 0 {
		return nil
	}
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, ln := range res.Lines {
		ct, err := tx.Exec(ctx, `
			UPDATE reservations SET status = 'RELEASED'
			WHERE attempt_id = $1 AND product_id = $2 AND status = 'RESERVED'`,
			res.ID, ln.ProductID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			continue // sudah pernah dilepas / sudah committed
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
			ln.ProductID, ln.Qty); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Commit finalizes a reservation as a permanent decrement. Stock does not
// change here; the decrement was applied at reserve time.
func (l *Ledger) Commit(ctx context.Context, res *Reservation, orderID string) error {
	if res == nil {
		return nil
	}
	_, err := l.DB.Exec(ctx, `
		UPDATE reservations SET status = 'COMMITTED', order_id = $2
		WHERE attempt_id = $1 AND status = 'RESERVED'`, res.ID, orderID)
	return err
}

// Restock adjusts stock by delta (admin). Negative deltas are allowed for
// corrections but can never take stock below zero.
func (l *Ledger) Restock(ctx context.Context, productID string, delta int) (int, error) {
	var stock int
	err := l.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock`, productID, delta).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		var cur int
		qerr := l.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&cur)
		if errors.Is(qerr, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		if qerr != nil {
			return 0, qerr
		}
		return 0, &InsufficientStockError{ProductID: productID, Available: cur, Requested: -delta}
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

func (l *Ledger) Deactivate(ctx context.Context, productID string) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE products SET active = false, updated_at = now() WHERE id = $1`, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (l *Ledger) GetProduct(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := l.DB.QueryRow(ctx, `
		SELECT id, sku, name, category, price_cents, stock, active, created_at, updated_at
		FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func (l *Ledger) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT id, sku, name, category, price_cents, stock, active, created_at, updated_at
		FROM products WHERE active ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
