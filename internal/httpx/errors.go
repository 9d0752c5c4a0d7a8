package httpx

import (
	"errors"
	"net/http"

	"github.com/juttalagani/go-checkout/internal/checkout"
	"github.com/juttalagani/go-checkout/internal/inventory"
	"github.com/juttalagani/go-checkout/internal/payment"
	"github.com/juttalagani/go-checkout/internal/pricing"
)

type lineFailure struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
	Available int    `json:"available,omitempty"`
	Requested int    `json:"requested,omitempty"`
}

// checkoutError maps the orchestrator's typed errors onto HTTP. Failures are
// reported per line, never collapsed into one generic message.
func checkoutError(err error) (int, any) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, map[string]any{"error": "empty_cart"}
	case errors.Is(err, checkout.ErrInvalidQuantity):
		return http.StatusBadRequest, map[string]any{"error": "invalid_quantity", "detail": err.Error()}
	case errors.Is(err, payment.ErrDeclined):
		return http.StatusPaymentRequired, map[string]any{"error": "payment_declined"}
	case errors.Is(err, pricing.ErrAmountInvalid):
		return http.StatusUnprocessableEntity, map[string]any{"error": "pricing_invalid"}
	}

	var resErr *inventory.ReserveError
	if errors.As(err, &resErr) {
		return http.StatusConflict, map[string]any{
			"error":   "reserve_failed",
			"details": reserveDetails(resErr),
		}
	}

	var cpnErr *pricing.CouponError
	if errors.As(err, &cpnErr) {
		return http.StatusUnprocessableEntity, map[string]any{
			"error":  "coupon_rejected",
			"code":   cpnErr.Code,
			"reason": cpnErr.Reason,
		}
	}

	var perErr *checkout.PersistenceError
	if errors.As(err, &perErr) {
		return http.StatusInternalServerError, map[string]any{"error": "persistence_failure"}
	}

	return http.StatusInternalServerError, map[string]any{"error": err.Error()}
}

func reserveDetails(e *inventory.ReserveError) []lineFailure {
	out := make([]lineFailure, 0, len(e.Failures))
	for _, f := range e.Failures {
		var stock *inventory.InsufficientStockError
		if errors.As(f, &stock) {
			out = append(out, lineFailure{
				ProductID: stock.ProductID,
				Reason:    "insufficient_stock",
				Available: stock.Available,
				Requested: stock.Requested,
			})
			continue
		}
		var inactive *inventory.InactiveProductError
		if errors.As(f, &inactive) {
			out = append(out, lineFailure{ProductID: inactive.ProductID, Reason: "inactive_product"})
			continue
		}
		out = append(out, lineFailure{Reason: f.Error()})
	}
	return out
}
