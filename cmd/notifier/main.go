package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/juttalagani/go-checkout/internal/config"
	kafkax "github.com/juttalagani/go-checkout/internal/kafka"
	"github.com/juttalagani/go-checkout/internal/notify"
	"github.com/juttalagani/go-checkout/internal/orders"
	"github.com/juttalagani/go-checkout/internal/postgres"
	"github.com/juttalagani/go-checkout/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{DB: db, Redis: rdb, Log: logger}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")

	// dua topik, dua reader, handler yang sama
	consPlaced := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderPlaced, workers)
	consCancelled := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderCancelled, workers)

	for _, c := range []struct {
		cons  *kafkax.Consumer
		topic string
	}{
		{consPlaced, orders.TopicOrderPlaced},
		{consCancelled, orders.TopicOrderCancelled},
	} {
		c := c
		go func() {
			logger.Info("notifier consumer started",
				zap.String("group", group),
				zap.String("topic", c.topic),
				zap.Int("workers", workers),
			)
			if err := c.cons.Start(ctx, svc.HandleOrderEvent); err != nil {
				logger.Error("consumer exit", zap.String("topic", c.topic), zap.Error(err))
				cancel()
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer...")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
