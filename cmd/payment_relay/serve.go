package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	gRPC "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/adapters/archive"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/adapters/events"
	httpadapter "github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/adapters/http"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/adapters/paymentgateway"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/app"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/repository/hasura"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/repository/postgres"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/platform/config"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/platform/database"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/platform/graphql"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/platform/logger"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/platform/messagebroker"
)

const shutdownTimeout = 15 * time.Second

type repositories struct {
	settings       domain.SettingsRepository
	transactions   domain.TransactionRepository
	clients        domain.ClientRepository
	paymentMethods domain.PaymentMethodRepository
	close          func()
}

func newRepositories(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*repositories, error) {
	switch cfg.DataBackend {
	case config.DataBackendPostgres:
		dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN, appLogger)
		if err != nil {
			return nil, err
		}
		return &repositories{
			settings:       postgres.NewPgSettingsRepository(dbPool, appLogger),
			transactions:   postgres.NewPgTransactionRepository(dbPool, appLogger),
			clients:        postgres.NewPgClientRepository(dbPool, appLogger),
			paymentMethods: postgres.NewPgPaymentMethodRepository(dbPool, appLogger),
			close:          dbPool.Close,
		}, nil
	default:
		client := graphql.NewClient(cfg.HasuraEndpoint, cfg.HasuraAdminSecret, nil, appLogger)
		return &repositories{
			settings:       hasura.NewSettingsRepository(client),
			transactions:   hasura.NewTransactionRepository(client),
			clients:        hasura.NewClientRepository(client),
			paymentMethods: hasura.NewPaymentMethodRepository(client),
			close:          func() {},
		}, nil
	}
}

func newEventPublisher(cfg *config.Config, appLogger *slog.Logger) (domain.EventPublisher, func()) {
	if cfg.NATSUrl == "" {
		return events.NoopEventPublisher{}, func() {}
	}
	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		// Publishing is best effort; the relay still serves without a broker.
		appLogger.Warn("NATS unavailable, credit events will not be published", "error", err)
		return events.NoopEventPublisher{}, func() {}
	}
	appLogger.Info("Connected to NATS", "url", cfg.NATSUrl)
	return events.NewNatsEventPublisher(natsClient, appLogger), natsClient.Close
}

func newWebhookArchiver(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (domain.WebhookArchiver, error) {
	if cfg.WebhookArchiveBucket == "" {
		return archive.NoopWebhookArchiver{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	appLogger.Info("Archiving webhook payloads", "bucket", cfg.WebhookArchiveBucket, "region", cfg.AWSRegion)
	return archive.NewS3WebhookArchiver(s3.NewFromConfig(awsCfg), cfg.WebhookArchiveBucket, appLogger), nil
}

func runServe(ctx context.Context) error {
	mainCtx, mainCancel := context.WithCancel(ctx)
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	if err := cfg.Validate(); err != nil {
		appLogger.Error("Invalid configuration", "error", err)
		return err
	}
	appLogger.Info("Payment relay starting...",
		"http_port", cfg.ServerPort,
		"metrics_port", cfg.MetricsPort,
		"grpc_port", cfg.GRPCPort,
		"data_backend", cfg.DataBackend,
		"log_level", cfg.LogLevel,
	)

	repos, err := newRepositories(mainCtx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize data layer", "error", err)
		return err
	}
	defer repos.close()

	publisher, closePublisher := newEventPublisher(cfg, appLogger)
	defer closePublisher()

	archiver, err := newWebhookArchiver(mainCtx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize webhook archive", "error", err)
		return err
	}

	gateway := paymentgateway.NewStripeAdapter(paymentgateway.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		APIURL:        cfg.StripeAPIURL,
	}, appLogger)

	settingsValidator := app.NewSettingsValidator(repos.settings, cfg.ConversionRateKey, appLogger)
	if rate, err := settingsValidator.CurrentConversionRate(mainCtx); err != nil {
		// Not fatal: the setting may be added after deployment.
		appLogger.Warn("Credit conversion rate is not readable, payments will fail until it is set",
			"key", cfg.ConversionRateKey, "error", err)
	} else {
		appLogger.Info("Credit conversion rate loaded", "key", cfg.ConversionRateKey, "rate", rate.String())
	}
	paymentCreator := app.NewPaymentIntentCreator(settingsValidator, gateway, repos.transactions, cfg.FrontendURL, cfg.PaymentCurrency, appLogger)
	autopayCreator := app.NewAutopaySetupCreator(settingsValidator, gateway, repos.clients, repos.paymentMethods, appLogger)
	reconciler := app.NewWebhookReconciler(gateway, repos.transactions, repos.clients, publisher, archiver, appLogger)

	router := httpadapter.NewRouter(
		httpadapter.RouterConfig{ActionSecret: cfg.ActionSecret, ActionAuthDisabled: cfg.ActionAuthDisabled},
		httpadapter.NewActionHandler(paymentCreator, autopayCreator, appLogger),
		httpadapter.NewWebhookHandler(reconciler, appLogger),
		appLogger,
	)
	if cfg.ActionAuthDisabled {
		appLogger.Warn("Action secret check is disabled")
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	// --- gRPC health server ---
	var grpcServer *gRPC.Server
	var healthServer *health.Server
	if cfg.GRPCPort > 0 {
		grpcMetrics := grpcprom.NewServerMetrics(grpcprom.WithServerHandlingTimeHistogram())
		if err := prometheus.DefaultRegisterer.Register(grpcMetrics); err != nil {
			appLogger.Warn("Failed to register gRPC Prometheus metrics", "error", err)
		}
		grpcServer = gRPC.NewServer(
			gRPC.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
			gRPC.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
		)
		healthServer = health.NewServer()
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		reflection.Register(grpcServer)
		grpcMetrics.InitializeMetrics(grpcServer)

		grpcListenAddress := fmt.Sprintf(":%d", cfg.GRPCPort)
		grpcListener, err := net.Listen("tcp", grpcListenAddress)
		if err != nil {
			appLogger.Error("Failed to listen for gRPC", "address", grpcListenAddress, "error", err)
			return err
		}
		g.Go(func() error {
			appLogger.Info("gRPC health server starting", "address", grpcListenAddress)
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, gRPC.ErrServerStopped) {
				appLogger.Error("gRPC server failed to serve", "error", err)
				return err
			}
			appLogger.Info("gRPC server shut down gracefully.")
			return nil
		})
	}

	// --- Relay HTTP server ---
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	// --- Metrics server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		appLogger.Info("Metrics HTTP server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("Metrics HTTP server shut down gracefully.")
		return nil
	})

	// --- Graceful shutdown ---
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stopSignal)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown of servers...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		var shutdownErrors error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("http shutdown: %w", err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("metrics http shutdown: %w", err))
		}
		if grpcServer != nil {
			healthServer.Shutdown()
			grpcServer.GracefulStop()
			appLogger.Info("gRPC server has finished GracefulStop.")
		}
		return shutdownErrors
	})

	appLogger.Info("Payment relay is ready and running.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service group encountered an error during run/shutdown", "error", err)
		return err
	}
	appLogger.Info("Payment relay shut down successfully.")
	return nil
}
