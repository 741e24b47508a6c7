package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clarte-be/internal/config"
	"clarte-be/internal/coupon"
	"clarte-be/internal/db"
	"clarte-be/internal/fulfillment"
	"clarte-be/internal/httpx"
	"clarte-be/internal/inventory"
	"clarte-be/internal/kafka"
	"clarte-be/internal/logger"
	"clarte-be/internal/metrics"
	"clarte-be/internal/middleware"
	"clarte-be/internal/notification"
	"clarte-be/internal/order"
	"clarte-be/internal/payment"
	"clarte-be/internal/payment/webhook"
	"clarte-be/internal/sale"

	"go.uber.org/zap"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	producerBuffer  = 1024
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = startServer
	newProducerFunc = kafka.NewProducer
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database := initDBFunc(cfg)
	defer database.Close()

	handler, cleanup := newServer(ctx, cfg, database)
	defer cleanup()

	logger.L().Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
	return startServerFunc(ctx, ":"+cfg.AppPort, handler)
}

// newServer wires every service against database. The returned cleanup
// flushes queued notifications.
func newServer(ctx context.Context, cfg *config.Config, database *sql.DB) (http.Handler, func()) {
	catalog := inventory.NewCatalog()
	ledger := inventory.NewLedger()
	coupons := coupon.NewValidator(coupon.NewRepository())

	orderSvc := order.NewService(database, order.NewRepository(), catalog, ledger, coupons, order.Options{
		Prefix:   cfg.OrderPrefix,
		Location: cfg.Location(),
	})

	notifier, cleanup := newNotifier(ctx, cfg)
	pipeline := fulfillment.NewPipeline(orderSvc, sale.NewRecorder(sale.NewRepository()), notifier)

	gateway := payment.NewMercadoPagoGateway(payment.GatewayConfig{
		AccessToken: cfg.MercadoPagoAccessToken,
		Currency:    cfg.Currency,
		FrontendURL: cfg.FrontendURL,
		BackendURL:  cfg.BackendURL,
		Timeout:     cfg.GatewayTimeout,
	})
	paymentSvc := payment.NewService(database, payment.NewRepository(), gateway, orderSvc, pipeline)
	counters := metrics.NewRegistry()
	webhookHandler := webhook.NewHandler(paymentSvc, payment.NewWebhookStore(database), cfg.MercadoPagoWebhookSecret).
		WithMetrics(counters)

	limiter := middleware.NewLimiter()
	go limiter.Run(ctx, time.Minute)

	router := httpx.NewRouter(httpx.Deps{
		Orders:    orderSvc,
		Payments:  paymentSvc,
		Webhook:   webhookHandler,
		Limiter:   limiter,
		Metrics:   counters,
		JWTSecret: []byte(cfg.JWTSecret),
		Health:    database.PingContext,
		Timeout:   requestTimeout,
	})
	return router, cleanup
}

func newNotifier(ctx context.Context, cfg *config.Config) (notification.Notifier, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.L().Info("KAFKA_BROKERS not set, payment confirmations are only logged")
		return notification.NewLogNotifier(), func() {}
	}

	producer := newProducerFunc(cfg.KafkaBrokers, cfg.NotificationTopic, producerBuffer)
	// detached from ctx; cleanup flushes the queue after the server stops
	producerCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	producer.Start(producerCtx)
	return notification.NewKafkaNotifier(producer, "clarte-be"), func() {
		producer.Close()
		producer.WaitClosed()
		stop()
	}
}

func startServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
