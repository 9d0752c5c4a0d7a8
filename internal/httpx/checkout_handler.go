package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/juttalagani/go-checkout/internal/cart"
	"github.com/juttalagani/go-checkout/internal/checkout"
	kafkax "github.com/juttalagani/go-checkout/internal/kafka"
	"github.com/juttalagani/go-checkout/internal/metrics"
	"github.com/juttalagani/go-checkout/internal/orders"
	"github.com/juttalagani/go-checkout/internal/redisx"
)

type CheckoutRequest struct {
	CouponCode  string `json:"coupon_code,omitempty"`
	Destination string `json:"destination"`
}

type CheckoutResponse struct {
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
	Status     string `json:"status"`
	Idempotent bool   `json:"idempotent,omitempty"`
}

type CheckoutHandler struct {
	Cart     *cart.Repo
	Svc      *checkout.Service
	Orders   *orders.Store
	Redis    *redis.Client
	Producer *kafkax.Producer
	Metrics  *metrics.ServerMetrics
	Service  string
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.postCheckout)
}

func (h *CheckoutHandler) postCheckout(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user"})
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Fast-path idempotency via Redis; DB tetap jadi kebenaran.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		if id, err := h.Redis.Get(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, idemKey)).Result(); err == nil && id != "" {
			h.Metrics.Checkouts.WithLabelValues("idempotent_replay").Inc()
			writeJSON(w, http.StatusOK, CheckoutResponse{OrderID: id, Status: string(orders.StatusPlaced), Idempotent: true})
			return
		}
	}

	lines, err := h.Cart.Get(ctx, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cart read failed"})
		return
	}

	order, err := h.Svc.Checkout(ctx, checkout.Input{
		UserID:         uid,
		Lines:          lines,
		CouponCode:     req.CouponCode,
		Destination:    req.Destination,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		if errors.Is(err, orders.ErrIdempotentReplay) && idemKey != "" {
			if id, qerr := h.Orders.FindByIdempotencyKey(ctx, idemKey); qerr == nil {
				h.Metrics.Checkouts.WithLabelValues("idempotent_replay").Inc()
				writeJSON(w, http.StatusOK, CheckoutResponse{OrderID: id, Status: string(orders.StatusPlaced), Idempotent: true})
				return
			}
		}
		h.Metrics.Checkouts.WithLabelValues("failed").Inc()
		code, body := checkoutError(err)
		writeJSON(w, code, body)
		return
	}
	h.Metrics.Checkouts.WithLabelValues("committed").Inc()

	if idemKey != "" {
		_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, idemKey), order.ID, redisx.TTLIdempotency).Err()
	}
	_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, order.ID),
		`{"status":"`+string(order.Status)+`"}`, redisx.TTLStatusCache).Err()

	h.publishPlaced(r, order)

	writeJSON(w, http.StatusCreated, CheckoutResponse{
		OrderID:    order.ID,
		TotalCents: order.TotalCents,
		Status:     string(order.Status),
	})
}

func (h *CheckoutHandler) publishPlaced(r *http.Request, o *orders.Order) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
	}
	ev.Payload = kafkax.MustMarshal(orders.OrderPlacedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Lines:      o.Lines,
		TotalCents: o.TotalCents,
		CouponCode: o.CouponCode,
	})
	h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
	)
}
