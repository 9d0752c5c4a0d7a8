package orders

import (
	"context"
	"sync"
)

// MemoryStore keeps the Store contract in process memory. Semantics match the
// Postgres store: idempotency-key uniqueness on create, conditional status
// flips, and Cancel restoring exactly the committed line quantities through
// the injected restock hook. Used by tests and local runs without a database.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*Order
	byKey  map[string]string // idempotency key -> order id

	// Restock receives each cancelled line; nil berarti tanpa inventory.
	Restock func(productID string, qty int)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: map[string]*Order{},
		byKey:  map[string]string{},
	}
}

func (s *MemoryStore) Create(ctx context.Context, o *Order, idemKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idemKey != "" {
		if _, dup := s.byKey[idemKey]; dup {
			return ErrIdempotentReplay
		}
		s.byKey[idemKey] = o.ID
	}
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	return &cp, nil
}

func (s *MemoryStore) FindByIdempotencyKey(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byKey[key]; ok {
		return id, nil
	}
	return "", ErrNotFound
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, orderID string, to Status) error {
	if to == StatusCancelled {
		return ErrCancelRequiresRestock
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(o.Status, to) {
		return &BadTransitionError{From: o.Status, To: to}
	}
	o.Status = to
	return nil
}

// Cancel: flip bersyarat + restock per line, atomik di bawah satu lock —
// cermin dari transaksi tunggal di Store.Cancel.
func (s *MemoryStore) Cancel(ctx context.Context, orderID string) ([]Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != StatusPlaced && o.Status != StatusConfirmed {
		return nil, &BadTransitionError{From: o.Status, To: StatusCancelled}
	}
	o.Status = StatusCancelled

	lines := append([]Line(nil), o.Lines...)
	if s.Restock != nil {
		for _, ln := range lines {
			s.Restock(ln.ProductID, ln.Qty)
		}
	}
	return lines, nil
}

// All returns every stored order; read helper for tests.
func (s *MemoryStore) All() []*Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Order, 0, len(s.orders))
	for _, o := range s.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out
}
