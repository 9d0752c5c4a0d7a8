package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/juttalagani/go-checkout/internal/cart"
	"github.com/juttalagani/go-checkout/internal/inventory"
	"github.com/juttalagani/go-checkout/internal/orders"
	"github.com/juttalagani/go-checkout/internal/payment"
	"github.com/juttalagani/go-checkout/internal/pricing"
)

// --- fakes ---

// failingStore lets a test inject a storage failure in front of the
// in-memory order store.
type failingStore struct {
	*orders.MemoryStore
	failErr error
}

func (s *failingStore) Create(ctx context.Context, o *orders.Order, idemKey string) error {
	if s.failErr != nil {
		return s.failErr
	}
	return s.MemoryStore.Create(ctx, o, idemKey)
}

type memCoupons struct {
	coupons map[string]*pricing.Coupon
}

func (c *memCoupons) Find(ctx context.Context, code string) (*pricing.Coupon, error) {
	if cp, ok := c.coupons[code]; ok {
		return cp, nil
	}
	return nil, &pricing.CouponError{Code: code, Reason: "unknown"}
}

// fakeGateway counts calls and can decline authorization.
type fakeGateway struct {
	mu         sync.Mutex
	decline    bool
	authorized int
	captured   map[string]int // order id -> capture calls
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{captured: map[string]int{}}
}

func (g *fakeGateway) Authorize(ctx context.Context, ref string, amountCents int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.decline {
		return payment.ErrDeclined
	}
	g.authorized++
	return nil
}

func (g *fakeGateway) Capture(ctx context.Context, orderID string, amountCents int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captured[orderID]++
	return nil
}

// --- harness ---

type fixture struct {
	svc    *Service
	ledger *inventory.MemoryLedger
	store  *failingStore
	pay    *fakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := inventory.NewMemoryLedger()
	ledger.SetProduct(inventory.Product{ID: "shoe-1", PriceCents: 500, Stock: 5, Active: true})
	ledger.SetProduct(inventory.Product{ID: "tee-1", PriceCents: 1200, Stock: 3, Active: true})

	mem := orders.NewMemoryStore()
	mem.Restock = func(productID string, qty int) {
		_, _ = ledger.Restock(context.Background(), productID, qty)
	}
	store := &failingStore{MemoryStore: mem}
	pay := newFakeGateway()
	return &fixture{
		svc: &Service{
			Ledger: ledger,
			Coupons: &memCoupons{coupons: map[string]*pricing.Coupon{
				"SAVE10": {Code: "SAVE10", Kind: pricing.DiscountPercent, Percent: 10},
			}},
			Orders:   store,
			Payments: pay,
			Pricer:   pricing.NewEngine(150, nil),
			Log:      zap.NewNop(),
		},
		ledger: ledger,
		store:  store,
		pay:    pay,
	}
}

func (f *fixture) checkout(t *testing.T, in Input) (*orders.Order, error) {
	t.Helper()
	return f.svc.Checkout(context.Background(), in)
}

// --- tests ---

func TestCheckout_Success(t *testing.T) {
	f := newFixture(t)
	o, err := f.checkout(t, Input{
		UserID: "u1",
		Lines:  []cart.Line{{ProductID: "shoe-1", Qty: 2}, {ProductID: "tee-1", Qty: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPlaced, o.Status)
	assert.Equal(t, int64(2200), o.SubtotalCents)
	assert.Equal(t, int64(150), o.ShippingCents)
	assert.Equal(t, int64(2350), o.TotalCents)
	require.Len(t, o.Lines, 2)

	assert.Equal(t, 3, f.ledger.Stock("shoe-1"))
	assert.Equal(t, 2, f.ledger.Stock("tee-1"))

	require.Len(t, f.store.All(), 1)
	assert.Equal(t, 1, f.pay.authorized)
	assert.Equal(t, 1, f.pay.captured[o.ID])
}

func TestCheckout_FrozenPriceSurvivesLivePriceChange(t *testing.T) {
	f := newFixture(t)

	done := make(chan struct{})
	origReserve := f.svc.Ledger
	f.svc.Ledger = reserveHook{Ledger: origReserve, after: func() {
		// harga naik setelah reserve; order harus tetap pakai harga beku
		f.ledger.SetPrice("shoe-1", 9999)
		close(done)
	}}

	o, err := f.checkout(t, Input{
		UserID: "u1",
		Lines:  []cart.Line{{ProductID: "shoe-1", Qty: 1}},
	})
	require.NoError(t, err)
	<-done

	assert.Equal(t, int64(500), o.Lines[0].UnitPriceCents)
	assert.Equal(t, int64(500+150), o.TotalCents)
}

// reserveHook runs a callback right after a successful Reserve.
type reserveHook struct {
	Ledger
	after func()
}

func (h reserveHook) Reserve(ctx context.Context, items []inventory.ItemQty) (*inventory.Reservation, error) {
	res, err := h.Ledger.Reserve(ctx, items)
	if err == nil && h.after != nil {
		h.after()
	}
	return res, err
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkout(t, Input{UserID: "u1"})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, f.store.All())
}

func TestCheckout_NonPositiveQty(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkout(t, Input{
		UserID: "u1",
		Lines:  []cart.Line{{ProductID: "shoe-1", Qty: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, 5, f.ledger.Stock("shoe-1"))
}

func TestCheckout_InsufficientStockReportsEveryLine(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkout(t, Input{
		UserID: "u1",
		Lines:  []cart.Line{{ProductID: "shoe-1", Qty: 6}, {ProductID: "tee-1", Qty: 4}},
	})

	var re *inventory.ReserveError
	require.ErrorAs(t, err, &re)
	assert.Len(t, re.Failures, 2)

	// tidak ada yg berkurang, tidak ada order, tidak ada authorize
	assert.Equal(t, 5, f.ledger.Stock("shoe-1"))
	assert.Equal(t, 3, f.ledger.Stock("tee-1"))
	assert.Empty(t, f.store.All())
	assert.Equal(t, 0, f.pay.authorized)
}

func TestCheckout_UnknownCouponFailsBeforeReserve(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkout(t, Input{
		UserID:     "u1",
		Lines:      []cart.Line{{ProductID: "shoe-1", Qty: 1}},
		CouponCode: "NOPE",
	})

	var ce *pricing.CouponError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "unknown", ce.Reason)
	assert.Equal(t, 5, f.ledger.Stock("shoe-1"))
}

func TestCheckout_IneligibleCouponReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.svc.Coupons = &memCoupons{coupons: map[string]*pricing.Coupon{
		"BIG": {Code: "BIG", Kind: pricing.DiscountPercent, Percent: 10, MinSubtotalCents: 100000},
	}}

	_, err := f.checkout(t, Input{
		UserID:     "u1",
		Lines:      []cart.Line{{ProductID: "shoe-1", Qty: 2}},
		CouponCode: "BIG",
	})

	var ce *pricing.CouponError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "min_subtotal", ce.Reason)

	// reservation dilepas, stok kembali utuh
	assert.Equal(t, 5, f.ledger.Stock("shoe-1"))
	assert.Empty(t, f.store.All())
}

func TestCheckout_PaymentDeclinedReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.pay.decline = true

	_, err := f.checkout(t, Input{
		UserID: "u1",
		Lines:  []cart.Line{{ProductID: "shoe-1", Qty: 2}},
	})
	assert.ErrorIs(t, err, payment.ErrDeclined)
	assert.Equal(t, 5, f.ledger.Stock("shoe-1"))
	assert.Empty(t, f.store.All())
}

func TestCheckout_PersistenceFailureReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.store.failErr = errors.New("db down")

	_, err := f.checkout(t, Input{
		UserID: "u1",
		Lines:  []cart.Line{{ProductID: "tee-1", Qty: 2}},
	})

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	// stok tidak boleh tinggal berkurang tanpa order
	assert.Equal(t, 3, f.ledger.Stock("tee-1"))
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	in := Input{
		UserID:         "u1",
		Lines:          []cart.Line{{ProductID: "shoe-1", Qty: 1}},
		IdempotencyKey: "key-1",
	}

	first, err := f.checkout(t, in)
	require.NoError(t, err)

	_, err = f.checkout(t, in)
	assert.ErrorIs(t, err, orders.ErrIdempotentReplay)

	// replay melepas reservation-nya sendiri; hanya attempt pertama yg terpotong
	assert.Equal(t, 4, f.ledger.Stock("shoe-1"))
	all := f.store.All()
	require.Len(t, all, 1)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, 1, f.pay.captured[first.ID])
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetProduct(inventory.Product{ID: "last", PriceCents: 700, Stock: 1, Active: true})

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.checkout(t, Input{
				UserID: "u1",
				Lines:  []cart.Line{{ProductID: "last", Qty: 1}},
			})
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var re *inventory.ReserveError
		require.ErrorAs(t, err, &re)
		lost++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
	assert.Equal(t, 0, f.ledger.Stock("last"))
	require.Len(t, f.store.All(), 1)
}

func TestCheckout_CancelRestoresExactStock(t *testing.T) {
	f := newFixture(t)
	o, err := f.checkout(t, Input{
		UserID: "u1",
		Lines:  []cart.Line{{ProductID: "shoe-1", Qty: 2}, {ProductID: "tee-1", Qty: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, f.ledger.Stock("shoe-1"))
	require.Equal(t, 0, f.ledger.Stock("tee-1"))

	restored, err := f.store.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, restored, 2)

	// stok kembali persis ke posisi sebelum order
	assert.Equal(t, 5, f.ledger.Stock("shoe-1"))
	assert.Equal(t, 3, f.ledger.Stock("tee-1"))

	// cancel kedua ditolak dan tidak menambah stok lagi
	_, err = f.store.Cancel(context.Background(), o.ID)
	var bad *orders.BadTransitionError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, 5, f.ledger.Stock("shoe-1"))
}

func TestCheckout_CouponAppliedToTotal(t *testing.T) {
	f := newFixture(t)
	o, err := f.checkout(t, Input{
		UserID:     "u1",
		Lines:      []cart.Line{{ProductID: "tee-1", Qty: 1}},
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)

	// 1200 - 120 + 150
	assert.Equal(t, int64(120), o.DiscountCents)
	assert.Equal(t, int64(1230), o.TotalCents)
	assert.Equal(t, "SAVE10", o.CouponCode)
}
