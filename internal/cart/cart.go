package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidQty = errors.New("cart quantity must be positive")

// Line is one (product, quantity) entry. A cart holds at most one line per
// product; adding an existing product merges quantities.
type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type Repo struct{ DB *pgxpool.Pool }

// Get returns the cart snapshot handed to checkout. The orchestrator never
// reads cart storage itself.
func (r *Repo) Get(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, qty FROM cart_items
		WHERE user_id = $1 ORDER BY product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var ln Line
		if err := rows.Scan(&ln.ProductID, &ln.Qty); err != nil {
			return nil, err
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}

// Add merges: product yg sudah ada di cart -> qty bertambah.
func (r *Repo) Add(ctx context.Context, userID string, ln Line) error {
	if ln.Qty <= 0 {
		return ErrInvalidQty
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(user_id, product_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty`,
		userID, ln.ProductID, ln.Qty)
	return err
}

func (r *Repo) SetQty(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQty
	}
	_, err := r.DB.Exec(ctx, `
		UPDATE cart_items SET qty = $3
		WHERE user_id = $1 AND product_id = $2`, userID, productID, qty)
	return err
}

func (r *Repo) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.DB.Exec(ctx, `
		DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	return err
}
