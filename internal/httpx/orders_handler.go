package httpx

import (
	"context"
	"encoding/json"
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

type OrdersHandler struct {
	Orders   *orders.Store
	Ledger   *inventory.Ledger
	Redis    *redis.Client
	Producer *kafkax.Producer
	Service  string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Ledger.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListByUser(ctx, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if o.UserID != uid {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus: fast path dari cache Redis; miss jatuh ke DB dan mengisi ulang
// cache. Tidak ada cek kepemilikan di sini, status order bukan data sensitif
// dan id-nya uuid.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if cached, err := h.Redis.Get(ctx, key).Result(); err == nil && cached != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(cached))
		return
	}

	cur, err := h.Orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	_ = h.Redis.Set(ctx, key, `{"status":"`+string(cur.Status)+`"}`, redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, map[string]any{"status": cur.Status})
}

// cancelOrder: customer hanya boleh membatalkan order PLACED miliknya;
// setelah CONFIRMED pembatalan lewat admin.
func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) || (err == nil && o.UserID != uid) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if o.Status != orders.StatusPlaced {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": fmt.Sprintf("cannot cancel order in status %s", o.Status)})
		return
	}

	restored, err := h.Orders.Cancel(ctx, orderID)
	if err != nil {
		var bad *orders.BadTransitionError
		if errors.As(err, &bad) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": bad.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID),
		`{"status":"`+string(orders.StatusCancelled)+`"}`, redisx.TTLStatusCache).Err()
	publishCancelled(h.Producer, h.Service, r.Header.Get("X-Request-Id"), orderID, o.UserID, restored)

	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": orders.StatusCancelled})
}

func publishCancelled(p *kafkax.Producer, service, traceID, orderID, uid string, restored []orders.Line) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      service,
		TraceID:       traceID,
		CorrelationID: orderID,
	}
	ev.Payload = kafkax.MustMarshal(orders.OrderCancelledPayload{OrderID: orderID, UserID: uid, Restored: restored})
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// decode helper dipakai handler cart & admin.
func decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
