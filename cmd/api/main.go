package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/juttalagani/go-checkout/internal/cart"
	"github.com/juttalagani/go-checkout/internal/checkout"
	"github.com/juttalagani/go-checkout/internal/config"
	"github.com/juttalagani/go-checkout/internal/httpx"
	"github.com/juttalagani/go-checkout/internal/inventory"
	kafkax "github.com/juttalagani/go-checkout/internal/kafka"
	"github.com/juttalagani/go-checkout/internal/metrics"
	"github.com/juttalagani/go-checkout/internal/notify"
	"github.com/juttalagani/go-checkout/internal/orders"
	"github.com/juttalagani/go-checkout/internal/payment"
	"github.com/juttalagani/go-checkout/internal/postgres"
	"github.com/juttalagani/go-checkout/internal/pricing"
	"github.com/juttalagani/go-checkout/internal/redisx"
	"github.com/juttalagani/go-checkout/internal/wishlist"
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
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, satu per topic
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	pPlaced.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pCancelled.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatus, 1024)
	pStatus.Start(ctx)

	// Repos
	ledger := &inventory.Ledger{DB: db}
	store := &orders.Store{DB: db}
	carts := &cart.Repo{DB: db}
	coupons := &pricing.CouponRepo{DB: db}

	// Payment gateway: tanpa PAYMENT_BASE_URL semua attempt di-approve (dev)
	var pay payment.Client = payment.NopClient{}
	if cfg.PaymentBaseURL != "" {
		pay = payment.NewHTTPClient(cfg.PaymentBaseURL)
	}

	svc := &checkout.Service{
		Ledger:   ledger,
		Coupons:  coupons,
		Orders:   store,
		Payments: pay,
		Pricer:   pricing.NewEngine(cfg.ShippingFlatCents, cfg.ShippingZones),
		Log:      logger,
	}

	m := metrics.NewServerMetrics("api")

	router := httpx.NewRouter(m)
	router.Handle("/metrics", metrics.Handler())

	(&httpx.CartHandler{Cart: carts, Ledger: ledger}).Register(router)
	(&httpx.WishlistHandler{Wishlist: &wishlist.Repo{DB: db}, Products: ledger}).Register(router)
	(&httpx.CheckoutHandler{
		Cart:     carts,
		Svc:      svc,
		Orders:   store,
		Redis:    rdb,
		Producer: pPlaced,
		Metrics:  m,
		Service:  cfg.ServiceName,
	}).Register(router)
	(&httpx.OrdersHandler{
		Orders:   store,
		Ledger:   ledger,
		Redis:    rdb,
		Producer: pCancelled,
		Service:  cfg.ServiceName,
	}).Register(router)
	(&httpx.NotifyHandler{
		Notify: &notify.Service{DB: db, Redis: rdb, Log: logger},
	}).Register(router)
	(&httpx.AdminHandler{
		Ledger:            ledger,
		Orders:            store,
		Redis:             rdb,
		ProducerStatus:    pStatus,
		ProducerCancelled: pCancelled,
		Service:           cfg.ServiceName,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// tutup inbox -> flush, lalu stop loop producer
	pPlaced.Close()
	pCancelled.Close()
	pStatus.Close()
	cancel()
	pPlaced.WaitClosed()
	pCancelled.WaitClosed()
	pStatus.WaitClosed()
}
