package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrDeclined: gateway menolak pre-authorization.
var ErrDeclined = errors.New("payment declined")

// Client is the trust boundary to the payment collaborator. Authorize runs
// before the reservation is committed; Capture runs only after the order
// exists and must be idempotent per order.
type Client interface {
	Authorize(ctx context.Context, ref string, amountCents int64) error
	Capture(ctx context.Context, orderID string, amountCents int64) error
}

type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPClient) Authorize(ctx context.Context, ref string, amountCents int64) error {
	return c.post(ctx, "/authorize", ref, map[string]any{
		"reference":    ref,
		"amount_cents": amountCents,
	})
}

// Capture sends Idempotency-Key = order id: the gateway dedups, so retrying a
// capture for an already-captured order charges exactly once.
func (c *HTTPClient) Capture(ctx context.Context, orderID string, amountCents int64) error {
	return c.post(ctx, "/capture", orderID, map[string]any{
		"order_id":     orderID,
		"amount_cents": amountCents,
	})
}

func (c *HTTPClient) post(ctx context.Context, path, idemKey string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idemKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusConflict:
		return ErrDeclined
	default:
		return fmt.Errorf("payment gateway %s: status %d", path, resp.StatusCode)
	}
}

// NopClient approves everything; used when no gateway is configured
// (cash-on-delivery keeps the storefront usable without one).
type NopClient struct{}

func (NopClient) Authorize(ctx context.Context, ref string, amountCents int64) error { return nil }
func (NopClient) Capture(ctx context.Context, orderID string, amountCents int64) error {
	return nil
}
