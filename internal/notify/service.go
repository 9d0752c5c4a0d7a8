package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/juttalagani/go-checkout/internal/kafka"
	"github.com/juttalagani/go-checkout/internal/orders"
	"github.com/juttalagani/go-checkout/internal/redisx"
)

// Service mengubah event order menjadi notifikasi pelanggan (inbox).
// Konsumsi at-least-once: dedup dua lapis — Redis untuk fast path,
// tabel inbox (PK event_id) sebagai penjaga durable.
type Service struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Log   *zap.Logger
}

// HandleOrderEvent dipasang sebagai handler consumer untuk topik order.*.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// payload rusak tidak akan membaik kalau diulang; commit & lanjut
		s.Log.Warn("skip malformed event", zap.Error(err), zap.String("topic", m.Topic))
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			s.Log.Warn("skip malformed payload", zap.Error(err), zap.String("event_id", env.EventID))
			return nil
		}
		if err := s.record(ctx, env, p.UserID, "order_placed",
			fmt.Sprintf("Pesanan %s diterima, total Rs %d.%02d", p.OrderID, p.TotalCents/100, p.TotalCents%100)); err != nil {
			return err
		}
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			s.Log.Warn("skip malformed payload", zap.Error(err), zap.String("event_id", env.EventID))
			return nil
		}
		if err := s.record(ctx, env, p.UserID, "order_cancelled",
			fmt.Sprintf("Pesanan %s dibatalkan, stok dikembalikan", p.OrderID)); err != nil {
			return err
		}
	default:
		// OrderStatusChanged dan tipe lain belum punya template notifikasi
		return nil
	}

	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}

// record menulis inbox + notifikasi dalam satu transaksi. ON CONFLICT di
// inbox membuat replay event yang sama jadi no-op.
func (s *Service) record(ctx context.Context, env orders.Envelope, userID, kind, body string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		INSERT INTO inbox (event_id, event_type, received_at)
		VALUES ($1, $2, now())
		ON CONFLICT (event_id) DO NOTHING`, env.EventID, env.EventType)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// sudah pernah diproses
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO notifications (user_id, kind, body, order_id, created_at)
		VALUES ($1, $2, $3, $4, now())`, userID, kind, body, env.CorrelationID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.Log.Info("notification recorded",
		zap.String("user_id", userID),
		zap.String("kind", kind),
		zap.String("order_id", env.CorrelationID),
	)
	return nil
}

// Unread mengembalikan notifikasi yang belum dibaca, terbaru dulu.
func (s *Service) Unread(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, kind, body, order_id, read, created_at
		FROM notifications
		WHERE user_id = $1 AND NOT read
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Body, &n.OrderID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead menandai semua notifikasi user sebagai terbaca.
func (s *Service) MarkRead(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE notifications SET read = true WHERE user_id = $1 AND NOT read`, userID)
	return err
}

type Notification struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	OrderID   string    `json:"order_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
