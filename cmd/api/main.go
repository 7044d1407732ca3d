package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/harvestlink/api/internal/handlers"
	"github.com/harvestlink/api/internal/payments"
	"github.com/harvestlink/api/internal/platform/auth"
	"github.com/harvestlink/api/internal/platform/config"
	pfirestore "github.com/harvestlink/api/internal/platform/firestore"
	"github.com/harvestlink/api/internal/platform/idempotency"
	"github.com/harvestlink/api/internal/platform/jobs"
	"github.com/harvestlink/api/internal/platform/observability"
	"github.com/harvestlink/api/internal/platform/validation"
	firestoreRepo "github.com/harvestlink/api/internal/repositories/firestore"
	"github.com/harvestlink/api/internal/services"
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
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	lifecycleTopic := pubsubClient.Topic(cfg.PubSub.LifecycleTopic)
	defer lifecycleTopic.Stop()
	eventPublisher, err := jobs.NewPubSubLifecyclePublisher(lifecycleTopic)
	if err != nil {
		logger.Fatal("failed to initialise lifecycle publisher", zap.Error(err))
	}

	var refundPublisher services.RefundJobPublisher
	if cfg.Features.EnableRefundWorker {
		refundTopic := pubsubClient.Topic(cfg.PubSub.RefundTopic)
		defer refundTopic.Stop()
		publisher, err := jobs.NewPubSubRefundPublisher(refundTopic)
		if err != nil {
			logger.Fatal("failed to initialise refund publisher", zap.Error(err))
		}
		refundPublisher = publisher
	} else {
		logger.Warn("refund worker disabled; refund jobs will not be enqueued")
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreProvider)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	paymentProvider := payments.NewSimulatedProvider()

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     registry.Orders(),
		Products:   registry.Products(),
		UnitOfWork: registry,
		Payments:   paymentProvider,
		Events:     eventPublisher,
		Refunds:    refundPublisher,
		Logger:     observability.FieldLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	bookingService, err := services.NewBookingService(services.BookingServiceDeps{
		Bookings:           registry.Bookings(),
		UnitOfWork:         registry,
		Payments:           paymentProvider,
		Events:             eventPublisher,
		Refunds:            refundPublisher,
		ModificationCutoff: cfg.Bookings.ModificationCutoff,
		Logger:             observability.FieldLogger(logger.Named("bookings")),
	})
	if err != nil {
		logger.Fatal("failed to initialise booking service", zap.Error(err))
	}

	ticketService, err := services.NewTicketService(services.TicketServiceDeps{
		Tickets:    registry.Tickets(),
		UnitOfWork: registry,
		Events:     eventPublisher,
		Logger:     observability.FieldLogger(logger.Named("tickets")),
	})
	if err != nil {
		logger.Fatal("failed to initialise ticket service", zap.Error(err))
	}

	var systemService services.SystemService
	if cfg.Features.EnableHealthChecks {
		systemService, err = services.NewSystemService(services.SystemServiceDeps{
			Health:      registry.Health(),
			Version:     buildVersion(),
			Environment: buildEnvironment(),
		})
		if err != nil {
			logger.Fatal("failed to initialise system service", zap.Error(err))
		}
	}

	validate := validation.New()
	orderHandlers := handlers.NewOrderHandlers(orderService, validate)
	bookingHandlers := handlers.NewBookingHandlers(bookingService, validate)
	ticketHandlers := handlers.NewTicketHandlers(ticketService, validate)
	healthHandlers := handlers.NewHealthHandlers(systemService)

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAPIMiddlewares(auth.Middleware, idempotencyMiddleware),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithBookingRoutes(bookingHandlers.Routes),
		handlers.WithTicketRoutes(ticketHandlers.Routes),
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
		serverLogger.Info("harvestlink api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildVersion() string {
	if v := strings.TrimSpace(os.Getenv("API_BUILD_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func buildEnvironment() string {
	if v := strings.TrimSpace(os.Getenv("API_ENVIRONMENT")); v != "" {
		return v
	}
	return "local"
}
