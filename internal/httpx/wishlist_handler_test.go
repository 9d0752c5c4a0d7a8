package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juttalagani/go-checkout/internal/inventory"
	"github.com/juttalagani/go-checkout/internal/wishlist"
)

func wishlistRouter(t *testing.T) (*chi.Mux, *inventory.MemoryLedger) {
	t.Helper()
	ledger := inventory.NewMemoryLedger()
	ledger.SetProduct(inventory.Product{ID: "shoe-1", PriceCents: 4500, Stock: 5, Active: true})
	ledger.SetProduct(inventory.Product{ID: "old-1", PriceCents: 900, Active: false})

	r := chi.NewRouter()
	(&WishlistHandler{Wishlist: wishlist.NewMemory(), Products: ledger}).Register(r)
	return r, ledger
}

func wishlistDo(r *chi.Mux, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWishlist_AddListRemove(t *testing.T) {
	r, _ := wishlistRouter(t)

	rec := wishlistDo(r, http.MethodPost, "/wishlist/items", "u1", `{"product_id":"shoe-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// penambahan ulang idempotent: tetap satu item
	rec = wishlistDo(r, http.MethodPost, "/wishlist/items", "u1", `{"product_id":"shoe-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = wishlistDo(r, http.MethodGet, "/wishlist", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []wishlist.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "shoe-1", items[0].ProductID)

	rec = wishlistDo(r, http.MethodDelete, "/wishlist/items/shoe-1", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = wishlistDo(r, http.MethodGet, "/wishlist", "u1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Empty(t, items)
}

func TestWishlist_PerUserIsolation(t *testing.T) {
	r, _ := wishlistRouter(t)

	wishlistDo(r, http.MethodPost, "/wishlist/items", "u1", `{"product_id":"shoe-1"}`)

	rec := wishlistDo(r, http.MethodGet, "/wishlist", "u2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []wishlist.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Empty(t, items)
}

func TestWishlist_RejectsUnknownAndInactiveProduct(t *testing.T) {
	r, _ := wishlistRouter(t)

	rec := wishlistDo(r, http.MethodPost, "/wishlist/items", "u1", `{"product_id":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = wishlistDo(r, http.MethodPost, "/wishlist/items", "u1", `{"product_id":"old-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWishlist_RequiresUser(t *testing.T) {
	r, _ := wishlistRouter(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/wishlist"},
		{http.MethodPost, "/wishlist/items"},
		{http.MethodDelete, "/wishlist/items/shoe-1"},
	} {
		rec := wishlistDo(r, req.method, req.path, "", `{"product_id":"shoe-1"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", req.method, req.path)
	}
}
