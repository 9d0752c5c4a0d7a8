package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/juttalagani/go-checkout/internal/inventory"
	kafkax "github.com/juttalagani/go-checkout/internal/kafka"
	"github.com/juttalagani/go-checkout/internal/orders"
	"github.com/juttalagani/go-checkout/internal/redisx"
)

// AdminHandler: dipasang di belakang gateway yg sudah memverifikasi role
// admin (kolaborator eksternal). Mutasi stok lewat jalur ledger yg sama
// dengan checkout, bukan jalur spesial.
type AdminHandler struct {
	Ledger            *inventory.Ledger
	Orders            *orders.Store
	Redis             *redis.Client
	ProducerStatus    *kafkax.Producer // publish order.status
	ProducerCancelled *kafkax.Producer // publish order.cancelled
	Service           string
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Post("/admin/products/{id}/restock", h.restock)
	r.Post("/admin/products/{id}/deactivate", h.deactivate)
	r.Post("/admin/orders/{id}/status", h.updateStatus)
}

func (h *AdminHandler) restock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta int `json:"delta"`
	}
	if err := decode(r, &body); err != nil || body.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta is required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	stock, err := h.Ledger.Restock(ctx, chi.URLParam(r, "id"), body.Delta)
	if err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		var stockErr *inventory.InsufficientStockError
		if errors.As(err, &stockErr) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": "stock would go negative", "available": stockErr.Available})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": chi.URLParam(r, "id"), "stock": stock})
}

func (h *AdminHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Ledger.Deactivate(ctx, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status orders.Status `json:"status"`
	}
	if err := decode(r, &body); err != nil || body.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// CANCELLED jalan lewat Cancel: flip status + restock satu transaksi.
	if body.Status == orders.StatusCancelled {
		o, err := h.Orders.Get(ctx, orderID)
		if errors.Is(err, orders.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		restored, err := h.Orders.Cancel(ctx, orderID)
		if err != nil {
			h.writeTransitionError(w, err)
			return
		}
		_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID),
			`{"status":"`+string(orders.StatusCancelled)+`"}`, redisx.TTLStatusCache).Err()
		publishCancelled(h.ProducerCancelled, h.Service, r.Header.Get("X-Request-Id"), orderID, o.UserID, restored)
		writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": orders.StatusCancelled})
		return
	}

	if err := h.Orders.UpdateStatus(ctx, orderID, body.Status); err != nil {
		h.writeTransitionError(w, err)
		return
	}

	_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID),
		`{"status":"`+string(body.Status)+`"}`, redisx.TTLStatusCache).Err()
	h.publishStatus(r, orderID, body.Status)

	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": body.Status})
}

func (h *AdminHandler) writeTransitionError(w http.ResponseWriter, err error) {
	if errors.Is(err, orders.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	var bad *orders.BadTransitionError
	if errors.As(err, &bad) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": bad.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (h *AdminHandler) publishStatus(r *http.Request, orderID string, to orders.Status) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatus,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
	}
	ev.Payload = kafkax.MustMarshal(orders.OrderStatusPayload{OrderID: orderID, To: to})
	h.ProducerStatus.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatus)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
