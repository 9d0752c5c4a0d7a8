package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryLedger keeps the Ledger contract in process memory. Semantics match
// the Postgres ledger exactly: all-or-nothing reserve, stock never negative,
// release guarded against double application. Used by tests and local runs
// without a database.
type MemoryLedger struct {
	mu       sync.Mutex
	products map[string]*Product
	holds    map[string][]ReservedLine // attempt_id -> lines still held
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		products: map[string]*Product{},
		holds:    map[string][]ReservedLine{},
	}
}

func (m *MemoryLedger) SetProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.products[p.ID] = &cp
}

// SetPrice edits the live price; existing reservations and orders keep the
// price they froze.
func (m *MemoryLedger) SetPrice(productID string, priceCents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[productID]; ok {
		p.PriceCents = priceCents
	}
}

func (m *MemoryLedger) Stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[productID]; ok {
		return p.Stock
	}
	return 0
}

func (m *MemoryLedger) Reserve(ctx context.Context, items []ItemQty) (*Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sorted := make([]ItemQty, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	m.mu.Lock()
	defer m.mu.Unlock()

	// fase cek dulu: satu line gagal = semua gagal, stok belum disentuh
	var failures []error
	for _, it := range sorted {
		p, ok := m.products[it.ProductID]
		switch {
		case !ok:
			failures = append(failures, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID))
		case !p.Active:
			failures = append(failures, &InactiveProductError{ProductID: it.ProductID})
		case p.Stock < it.Qty:
			failures = append(failures, &InsufficientStockError{ProductID: it.ProductID, Available: p.Stock, Requested: it.Qty})
		}
	}
	if len(failures) > 0 {
		return nil, &ReserveError{Failures: failures}
	}

	res := &Reservation{ID: uuid.NewString()}
	for _, it := range sorted {
		p := m.products[it.ProductID]
		p.Stock -= it.Qty
		res.Lines = append(res.Lines, ReservedLine{ProductID: it.ProductID, Qty: it.Qty, UnitPriceCents: p.PriceCents})
	}
	m.holds[res.ID] = res.Lines
	return res, nil
}

func (m *MemoryLedger) Release(ctx context.Context, res *Reservation) error {
	if res == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.holds[res.ID]
	if !ok {
		return nil // sudah committed atau sudah released
	}
	for _, ln := range held {
		if p, ok := m.products[ln.ProductID]; ok {
			p.Stock += ln.Qty
		}
	}
	delete(m.holds, res.ID)
	return nil
}

func (m *MemoryLedger) Commit(ctx context.Context, res *Reservation, orderID string) error {
	if res == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holds, res.ID)
	return nil
}

func (m *MemoryLedger) Restock(ctx context.Context, productID string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return 0, &InsufficientStockError{ProductID: productID, Available: p.Stock, Requested: -delta}
	}
	p.Stock += delta
	return p.Stock, nil
}

func (m *MemoryLedger) GetProduct(ctx context.Context, productID string) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return *p, nil
}

func (m *MemoryLedger) Deactivate(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.Active = false
	return nil
}
