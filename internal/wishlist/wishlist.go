package wishlist

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Item: satu produk yang disimpan user untuk nanti. Wishlist tidak menahan
// stok dan tidak membekukan harga; itu urusan checkout.
type Item struct {
	ProductID string    `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`
}

type Store interface {
	List(ctx context.Context, userID string) ([]Item, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) List(ctx context.Context, userID string) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, added_at FROM wishlist_items
		WHERE user_id = $1 ORDER BY added_at DESC, product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Add idempotent: produk yg sudah ada tidak digandakan.
func (r *Repo) Add(ctx context.Context, userID, productID string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO wishlist_items(user_id, product_id, added_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID)
	return err
}

func (r *Repo) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.DB.Exec(ctx, `
		DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	return err
}

// Memory mirrors the Store contract in process memory for tests and local
// runs without a database.
type Memory struct {
	mu    sync.Mutex
	items map[string]map[string]time.Time // user -> product -> added_at
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: map[string]map[string]time.Time{}, now: time.Now}
}

func (m *Memory) List(ctx context.Context, userID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for pid, at := range m.items[userID] {
		out = append(out, Item{ProductID: pid, AddedAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (m *Memory) Add(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[userID] == nil {
		m.items[userID] = map[string]time.Time{}
	}
	if _, dup := m.items[userID][productID]; dup {
		return nil
	}
	m.items[userID][productID] = m.now()
	return nil
}

func (m *Memory) Remove(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items[userID], productID)
	return nil
}
