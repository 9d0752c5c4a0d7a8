package inventory

import (
	"errors"
	"fmt"
	"strings"
)

var ErrProductNotFound = errors.New("product not found")

type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available=%d requested=%d",
		e.ProductID, e.Available, e.Requested)
}

type InactiveProductError struct {
	ProductID string
}

func (e *InactiveProductError) Error() string {
	return fmt.Sprintf("product %s is inactive", e.ProductID)
}

// ReserveError aggregates every failing line of one reserve attempt. The
// ledger never reserves partially: when this is returned, no stock changed.
type ReserveError struct {
	Failures []error
}

func (e *ReserveError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return "reserve failed: " + strings.Join(msgs, "; ")
}

func (e *ReserveError) Unwrap() []error { return e.Failures }
