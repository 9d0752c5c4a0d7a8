package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/juttalagani/go-checkout/internal/inventory"
	"github.com/juttalagani/go-checkout/internal/wishlist"
)

// productSource: cukup lookup satu produk; dipenuhi inventory.Ledger maupun
// MemoryLedger.
type productSource interface {
	GetProduct(ctx context.Context, productID string) (inventory.Product, error)
}

type WishlistHandler struct {
	Wishlist wishlist.Store
	Products productSource
}

func (h *WishlistHandler) Register(r *chi.Mux) {
	r.Get("/wishlist", h.list)
	r.Post("/wishlist/items", h.add)
	r.Delete("/wishlist/items/{productID}", h.remove)
}

func (h *WishlistHandler) list(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Wishlist.List(ctx, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []wishlist.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// add: produk harus ada dan aktif; penambahan ulang idempotent.
func (h *WishlistHandler) add(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user"})
		return
	}
	var body struct {
		ProductID string `json:"product_id"`
	}
	if err := decode(r, &body); err != nil || body.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id is required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.GetProduct(ctx, body.ProductID)
	if errors.Is(err, inventory.ErrProductNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !p.Active {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "product inactive"})
		return
	}

	if err := h.Wishlist.Add(ctx, uid, body.ProductID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (h *WishlistHandler) remove(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Wishlist.Remove(ctx, uid, chi.URLParam(r, "productID")); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
