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

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bleu-oos/payments-api/internal/handlers"
	"github.com/bleu-oos/payments-api/internal/ordering"
	"github.com/bleu-oos/payments-api/internal/payments"
	"github.com/bleu-oos/payments-api/internal/platform/auth"
	"github.com/bleu-oos/payments-api/internal/platform/config"
	"github.com/bleu-oos/payments-api/internal/platform/observability"
	"github.com/bleu-oos/payments-api/internal/pos"
	"github.com/bleu-oos/payments-api/internal/repositories"
	"github.com/bleu-oos/payments-api/internal/services"
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

	logger := baseLogger.Named("payments-api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to initialise database pool", zap.Error(err))
	}
	defer pool.Close()

	orderStatusRepo, err := repositories.NewOrderStatusRepository(pool)
	if err != nil {
		logger.Fatal("failed to initialise order status repository", zap.Error(err))
	}

	verifier, err := auth.NewVerifier(auth.VerifierDeps{
		BaseURL: cfg.Services.IdentityBaseURL,
		Timeout: cfg.Outbound.HTTPTimeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise identity verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(verifier)

	provider, err := payments.NewPaymongoProvider(payments.PaymongoProviderConfig{
		SecretKey: cfg.PSP.PaymongoSecretKey,
		BaseURL:   cfg.PSP.PaymongoBaseURL,
		Timeout:   cfg.Outbound.HTTPTimeout,
		Logger:    eventLogger(logger.Named("paymongo")),
	})
	if err != nil {
		logger.Fatal("failed to initialise paymongo provider", zap.Error(err))
	}

	orderingClient, err := ordering.NewClient(ordering.ClientConfig{
		BaseURL: cfg.Services.OrderingBaseURL,
		Timeout: cfg.Outbound.HTTPTimeout,
		Logger:  eventLogger(logger.Named("ordering")),
	})
	if err != nil {
		logger.Fatal("failed to initialise ordering client", zap.Error(err))
	}

	posClient, err := pos.NewClient(pos.ClientConfig{
		BaseURL: cfg.Services.POSBaseURL,
		Timeout: cfg.Outbound.HTTPTimeout,
		Logger:  eventLogger(logger.Named("pos")),
	})
	if err != nil {
		logger.Fatal("failed to initialise pos client", zap.Error(err))
	}

	engine := services.NewReconcileEngine(services.ReconcileEngineDeps{
		Logger: eventLogger(logger.Named("reconcile")),
	})

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Engine:   engine,
		Provider: provider,
		Logger:   eventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	confirmService, err := services.NewConfirmService(services.ConfirmServiceDeps{
		Ordering: orderingClient,
		POS:      posClient,
		Logger:   eventLogger(logger.Named("confirm")),
	})
	if err != nil {
		logger.Fatal("failed to initialise confirm service", zap.Error(err))
	}

	statusService, err := services.NewOrderStatusService(services.OrderStatusServiceDeps{
		Store:  orderStatusRepo,
		Logger: eventLogger(logger.Named("order_status")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order status service", zap.Error(err))
	}

	paymentHandlers := handlers.NewPaymentHandlers(authenticator, checkoutService, confirmService, statusService)

	healthHandlers := handlers.NewHealthHandlers(func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAllowedOrigins(cfg.CORS.AllowedOrigins),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
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
		serverLogger.Info("payments api listening")
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

func eventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(event, zFields...)
	}
}
