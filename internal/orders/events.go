package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
	EventOrderStatus    = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "shop-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	Lines      []Line `json:"lines"`
	TotalCents int64  `json:"total_cents"`
	CouponCode string `json:"coupon_code,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID  string `json:"order_id"`
	UserID   string `json:"user_id"`
	Restored []Line `json:"restored"` // qty yg dikembalikan ke stok
}

type OrderStatusPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from,omitempty"`
	To      Status `json:"to"`
}
