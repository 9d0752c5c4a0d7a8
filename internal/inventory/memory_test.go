package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *MemoryLedger {
	m := NewMemoryLedger()
	m.SetProduct(Product{ID: "shoe-1", SKU: "SH-1", Category: CategoryShoe, PriceCents: 4500, Stock: 5, Active: true})
	m.SetProduct(Product{ID: "tee-1", SKU: "CL-1", Category: CategoryClothing, PriceCents: 1200, Stock: 2, Active: true})
	return m
}

func TestReserve_DecrementsAndFreezesPrice(t *testing.T) {
	m := seeded()
	res, err := m.Reserve(context.Background(), []ItemQty{
		{ProductID: "shoe-1", Qty: 2},
		{ProductID: "tee-1", Qty: 1},
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)

	assert.Equal(t, 3, m.Stock("shoe-1"))
	assert.Equal(t, 1, m.Stock("tee-1"))

	// lines keluar terurut product id, harga beku ikut di line
	assert.Equal(t, "shoe-1", res.Lines[0].ProductID)
	assert.Equal(t, int64(4500), res.Lines[0].UnitPriceCents)
	assert.Equal(t, int64(1200), res.Lines[1].UnitPriceCents)
}

func TestReserve_AllOrNothing(t *testing.T) {
	m := seeded()
	_, err := m.Reserve(context.Background(), []ItemQty{
		{ProductID: "shoe-1", Qty: 1}, // cukup
		{ProductID: "tee-1", Qty: 3},  // kurang 1
	})

	var re *ReserveError
	require.ErrorAs(t, err, &re)
	require.Len(t, re.Failures, 1)
	var se *InsufficientStockError
	require.ErrorAs(t, re.Failures[0], &se)
	assert.Equal(t, "tee-1", se.ProductID)
	assert.Equal(t, 2, se.Available)
	assert.Equal(t, 3, se.Requested)

	// line yang cukup pun tidak boleh tersentuh
	assert.Equal(t, 5, m.Stock("shoe-1"))
	assert.Equal(t, 2, m.Stock("tee-1"))
}

func TestReserve_CollectsAllFailures(t *testing.T) {
	m := seeded()
	require.NoError(t, m.Deactivate(context.Background(), "shoe-1"))

	_, err := m.Reserve(context.Background(), []ItemQty{
		{ProductID: "shoe-1", Qty: 1},
		{ProductID: "tee-1", Qty: 99},
		{ProductID: "ghost", Qty: 1},
	})
	var re *ReserveError
	require.ErrorAs(t, err, &re)
	assert.Len(t, re.Failures, 3)

	var inact *InactiveProductError
	assert.ErrorAs(t, err, &inact)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestRelease_RestoresExactly(t *testing.T) {
	m := seeded()
	res, err := m.Reserve(context.Background(), []ItemQty{{ProductID: "shoe-1", Qty: 4}})
	require.NoError(t, err)
	require.Equal(t, 1, m.Stock("shoe-1"))

	require.NoError(t, m.Release(context.Background(), res))
	assert.Equal(t, 5, m.Stock("shoe-1"))

	// release kedua harus no-op, bukan double restore
	require.NoError(t, m.Release(context.Background(), res))
	assert.Equal(t, 5, m.Stock("shoe-1"))
}

func TestCommit_ThenReleaseIsNoop(t *testing.T) {
	m := seeded()
	res, err := m.Reserve(context.Background(), []ItemQty{{ProductID: "shoe-1", Qty: 2}})
	require.NoError(t, err)

	require.NoError(t, m.Commit(context.Background(), res, "order-1"))
	assert.Equal(t, 3, m.Stock("shoe-1"))

	// stok sudah milik order; release telat tidak boleh mengembalikannya
	require.NoError(t, m.Release(context.Background(), res))
	assert.Equal(t, 3, m.Stock("shoe-1"))
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	m := NewMemoryLedger()
	m.SetProduct(Product{ID: "hot", PriceCents: 999, Stock: 10, Active: true})

	const attempts = 50
	var wg sync.WaitGroup
	wins := make(chan *Reservation, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, err := m.Reserve(context.Background(), []ItemQty{{ProductID: "hot", Qty: 1}}); err == nil {
				wins <- res
			}
		}()
	}
	wg.Wait()
	close(wins)

	var won int
	for range wins {
		won++
	}
	assert.Equal(t, 10, won)
	assert.Equal(t, 0, m.Stock("hot"))
}

func TestRestock(t *testing.T) {
	m := seeded()

	stock, err := m.Restock(context.Background(), "tee-1", 8)
	require.NoError(t, err)
	assert.Equal(t, 10, stock)

	// koreksi negatif boleh selama tidak tembus nol
	stock, err = m.Restock(context.Background(), "tee-1", -10)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)

	_, err = m.Restock(context.Background(), "tee-1", -1)
	var se *InsufficientStockError
	assert.ErrorAs(t, err, &se)

	_, err = m.Restock(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
