package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juttalagani/go-checkout/internal/cart"
	"github.com/juttalagani/go-checkout/internal/inventory"
	"github.com/juttalagani/go-checkout/internal/orders"
	"github.com/juttalagani/go-checkout/internal/payment"
	"github.com/juttalagani/go-checkout/internal/pricing"
)

// Stage of one checkout attempt, for logs and metrics.
type Stage string

const (
	StageStarted   Stage = "started"
	StageValidated Stage = "validated"
	StageReserved  Stage = "reserved"
	StagePriced    Stage = "priced"
	StageCommitted Stage = "committed"
)

type Ledger interface {
	Reserve(ctx context.Context, items []inventory.ItemQty) (*inventory.Reservation, error)
	Commit(ctx context.Context, res *inventory.Reservation, orderID string) error
	Release(ctx context.Context, res *inventory.Reservation) error
}

type CouponSource interface {
	Find(ctx context.Context, code string) (*pricing.Coupon, error)
}

type OrderStore interface {
	Create(ctx context.Context, o *orders.Order, idemKey string) error
}

// Input is a snapshot: the orchestrator never reads cart storage itself, and
// a failed attempt leaves the cart exactly as it was.
type Input struct {
	UserID         string
	Lines          []cart.Line
	CouponCode     string
	Destination    string
	IdempotencyKey string
}

type Service struct {
	Ledger   Ledger
	Coupons  CouponSource
	Orders   OrderStore
	Payments payment.Client
	Pricer   *pricing.Engine
	Log      *zap.Logger
}

// Checkout drives one attempt through
// started -> validated -> reserved -> priced -> committed.
// Any gate failure returns a typed error; whatever was reserved by this
// attempt is released before returning.
func (s *Service) Checkout(ctx context.Context, in Input) (*orders.Order, error) {
	attemptID := uuid.NewString()
	log := s.Log.With(zap.String("attempt_id", attemptID), zap.String("user_id", in.UserID))
	log.Info("checkout started", zap.Int("lines", len(in.Lines)))

	// --- validated
	if len(in.Lines) == 0 {
		return nil, s.fail(log, StageStarted, ErrEmptyCart)
	}
	for _, ln := range in.Lines {
		if ln.Qty <= 0 {
			return nil, s.fail(log, StageStarted, fmt.Errorf("%w: product %s", ErrInvalidQuantity, ln.ProductID))
		}
	}

	// coupon existence dicek sebelum reserve; window & min-subtotal divalidasi
	// engine setelah harga beku tersedia
	var coupon *pricing.Coupon
	if in.CouponCode != "" {
		var err error
		coupon, err = s.Coupons.Find(ctx, in.CouponCode)
		if err != nil {
			return nil, s.fail(log, StageValidated, err)
		}
	}

	// --- reserved
	demand := make([]inventory.ItemQty, 0, len(in.Lines))
	for _, ln := range in.Lines {
		demand = append(demand, inventory.ItemQty{ProductID: ln.ProductID, Qty: ln.Qty})
	}
	res, err := s.Ledger.Reserve(ctx, demand)
	if err != nil {
		return nil, s.fail(log, StageValidated, err)
	}
	log.Info("stock reserved", zap.String("reservation_id", res.ID))

	// --- priced (harga dari reservation, bukan harga live)
	frozen := make([]pricing.Line, 0, len(res.Lines))
	for _, ln := range res.Lines {
		frozen = append(frozen, pricing.Line{ProductID: ln.ProductID, Qty: ln.Qty, UnitPriceCents: ln.UnitPriceCents})
	}
	quote, err := s.Pricer.Quote(frozen, coupon, in.Destination)
	if err != nil {
		s.release(log, res)
		return nil, s.fail(log, StageReserved, err)
	}

	// pre-authorization di luar window lock inventory
	if err := s.Payments.Authorize(ctx, attemptID, quote.TotalCents); err != nil {
		s.release(log, res)
		if errors.Is(err, payment.ErrDeclined) {
			return nil, s.fail(log, StagePriced, err)
		}
		return nil, s.fail(log, StagePriced, fmt.Errorf("payment authorize: %w", err))
	}

	// --- committed
	order := &orders.Order{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Status:        orders.StatusPlaced,
		SubtotalCents: quote.SubtotalCents,
		DiscountCents: quote.DiscountCents,
		ShippingCents: quote.ShippingCents,
		TotalCents:    quote.TotalCents,
		CouponCode:    quote.CouponCode,
		Destination:   in.Destination,
		CreatedAt:     time.Now().UTC(),
	}
	for _, ln := range quote.Lines {
		order.Lines = append(order.Lines, orders.Line{
			ProductID:      ln.ProductID,
			Qty:            ln.Qty,
			UnitPriceCents: ln.UnitPriceCents,
			SubtotalCents:  ln.SubtotalCents,
		})
	}

	if err := s.Orders.Create(ctx, order, in.IdempotencyKey); err != nil {
		s.release(log, res)
		if errors.Is(err, orders.ErrIdempotentReplay) {
			return nil, s.fail(log, StagePriced, err)
		}
		return nil, s.fail(log, StagePriced, &PersistenceError{Err: err})
	}

	if err := s.Ledger.Commit(ctx, res, order.ID); err != nil {
		// order sudah ada dan stok sudah berkurang: konsisten. Baris
		// reservation tertinggal RESERVED; jangan di-release.
		log.Error("reservation finalize failed", zap.String("order_id", order.ID), zap.Error(err))
	}

	log.Info("checkout committed",
		zap.String("order_id", order.ID),
		zap.Int64("total_cents", order.TotalCents))

	// capture setelah commit; idempotent per order, gagal = retry out-of-band
	if err := s.Payments.Capture(ctx, order.ID, order.TotalCents); err != nil {
		log.Warn("payment capture failed, will retry", zap.String("order_id", order.ID), zap.Error(err))
	}

	return order, nil
}

// release is best-effort with its own deadline so an abort still releases
// when the request context is already cancelled.
func (s *Service) release(log *zap.Logger, res *inventory.Reservation) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Ledger.Release(ctx, res); err != nil {
		log.Error("reservation release failed", zap.String("reservation_id", res.ID), zap.Error(err))
	}
}

func (s *Service) fail(log *zap.Logger, at Stage, err error) error {
	log.Info("checkout failed", zap.String("stage", string(at)), zap.Error(err))
	return err
}
