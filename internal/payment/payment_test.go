package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_CaptureSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	require.NoError(t, c.Capture(context.Background(), "order-42", 1500))

	assert.Equal(t, "/capture", gotPath)
	assert.Equal(t, "order-42", gotKey)
}

func TestHTTPClient_DeclineStatuses(t *testing.T) {
	for _, code := range []int{http.StatusPaymentRequired, http.StatusConflict} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		c := NewHTTPClient(srv.URL)
		err := c.Authorize(context.Background(), "att-1", 100)
		assert.ErrorIs(t, err, ErrDeclined, "status %d", code)
		srv.Close()
	}
}

func TestHTTPClient_ServerErrorIsNotDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	err := c.Authorize(context.Background(), "att-1", 100)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDeclined)
}
