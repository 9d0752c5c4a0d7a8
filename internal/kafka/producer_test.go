package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// Shutdown urutannya Close() lalu cancel(); dua-duanya bisa membuat loop
// producer berhenti, dan keduanya boleh menang tanpa panic.
func TestProducer_CloseThenCancelRace(t *testing.T) {
	for i := 0; i < 500; i++ {
		p := NewProducer([]string{"127.0.0.1:9092"}, "orders.test", 8)
		ctx, cancel := context.WithCancel(context.Background())
		p.Start(ctx)

		p.Close()
		cancel()
		p.WaitClosed()
	}
}

func TestProducer_CloseIsIdempotent(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:9092"}, "orders.test", 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	require.NotPanics(t, func() {
		p.Close()
		p.Close()
	})
	p.WaitClosed()
}
