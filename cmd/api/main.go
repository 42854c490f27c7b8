package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/meridian-goods/api/internal/handlers"
	"github.com/meridian-goods/api/internal/payments"
	"github.com/meridian-goods/api/internal/platform/config"
	"github.com/meridian-goods/api/internal/platform/events"
	"github.com/meridian-goods/api/internal/platform/metrics"
	"github.com/meridian-goods/api/internal/platform/notify"
	"github.com/meridian-goods/api/internal/platform/observability"
	"github.com/meridian-goods/api/internal/repositories/postgres"
	"github.com/meridian-goods/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	eventLog := observability.EventLogger(logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	dbCtx, cancelDB := context.WithTimeout(ctx, 10*time.Second)
	provider, err := postgres.Connect(dbCtx, cfg.Database.URL, int32(cfg.Database.MaxConns))
	cancelDB()
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer provider.Close()

	catalogRepo := postgres.NewCatalogRepository(provider)
	couponRepo := postgres.NewCouponRepository(provider)
	orderRepo := postgres.NewOrderRepository(provider)
	paymentRepo := postgres.NewPaymentRepository(provider)
	healthRepo := postgres.NewHealthRepository(provider)

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("kafka publisher close error", zap.Error(err))
		}
	}()
	if publisher.Enabled() {
		logger.Info("kafka event publishing enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	collectors := metrics.NewCollectors(prometheus.DefaultRegisterer)

	var sender services.NotificationSender
	if cfg.Notifications.Enabled {
		sender = notify.NewLogSender(logger.Named("notify"))
	}
	notifier := services.NewNotifier(services.NotifierDeps{
		Sender:  sender,
		Timeout: cfg.Notifications.Timeout,
		Logger:  eventLog,
	})

	var gateway services.PaymentProviderGateway
	if cfg.PSP.StripeAPIKey != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.PSP.StripeAPIKey,
			Logger: eventLog,
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}
		manager, err := payments.NewManager(map[string]payments.Provider{
			"stripe": stripeProvider,
		})
		if err != nil {
			logger.Fatal("failed to initialise payment manager", zap.Error(err))
		}
		gateway = manager
	} else {
		logger.Warn("stripe api key not configured; gateway payments disabled")
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Catalog:    catalogRepo,
		Coupons:    couponRepo,
		Orders:     orderRepo,
		Payments:   paymentRepo,
		UnitOfWork: provider,
		Events:     publisher,
		Notifier:   notifier,
		Metrics:    collectors,
		Logger:     eventLog,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:     orderRepo,
		Payments:   paymentRepo,
		UnitOfWork: provider,
		Gateway:    gateway,
		Currency:   cfg.Checkout.Currency,
		Events:     publisher,
		Notifier:   notifier,
		Metrics:    collectors,
		Logger:     eventLog,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	orderHandlers := handlers.NewOrderHandlers(orderService)
	paymentHandlers := handlers.NewPaymentHandlers(paymentService)
	adminHandlers := handlers.NewAdminHandlers(orderService)
	webhookHandlers := handlers.NewWebhookHandlers(
		paymentService,
		handlers.NewStripeWebhookVerifier(cfg.PSP.StripeWebhookSecret),
		eventLog,
	)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessProbe(healthRepo.Ping),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(observability.RequestLogger(logger.Named("http"))),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithMetricsHandler(metrics.Handler()),
		handlers.WithOrderRoutes(func(r chi.Router) {
			orderHandlers.Routes(r)
			paymentHandlers.Routes(r)
		}),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("meridian goods api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
