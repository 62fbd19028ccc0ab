package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	resendclient "github.com/fraugho/caterpillar-clay/internal/clients/http/resend"
	stripeclient "github.com/fraugho/caterpillar-clay/internal/clients/stripe"
	catalogmemory "github.com/fraugho/caterpillar-clay/internal/domains/catalog/adapters/memory"
	catalogpostgres "github.com/fraugho/caterpillar-clay/internal/domains/catalog/adapters/persistence/postgres"
	catalogapp "github.com/fraugho/caterpillar-clay/internal/domains/catalog/application"
	catalogports "github.com/fraugho/caterpillar-clay/internal/domains/catalog/ports"
	notifdomain "github.com/fraugho/caterpillar-clay/internal/domains/notifications/domain"
	notifports "github.com/fraugho/caterpillar-clay/internal/domains/notifications/ports"
	ordershttp "github.com/fraugho/caterpillar-clay/internal/domains/orders/adapters/http"
	ordersmemory "github.com/fraugho/caterpillar-clay/internal/domains/orders/adapters/memory"
	ordersobs "github.com/fraugho/caterpillar-clay/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/fraugho/caterpillar-clay/internal/domains/orders/adapters/persistence/postgres"
	ordersapp "github.com/fraugho/caterpillar-clay/internal/domains/orders/application"
	ordersports "github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
	reconhttp "github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/adapters/http"
	reconobs "github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/adapters/observability"
	reconworkflows "github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/adapters/workflows"
	reconapp "github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/application"
	recondomain "github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/domain"
	platformmigrations "github.com/fraugho/caterpillar-clay/internal/platform/migrations"
	platformobservability "github.com/fraugho/caterpillar-clay/internal/platform/observability"
	platformpostgres "github.com/fraugho/caterpillar-clay/internal/platform/postgres"
)

// Run boots the storefront HTTP API with observability, repositories, and the
// webhook reconciliation pipeline wired.
func Run(ctx context.Context) error {
	const serviceName = "caterpillar-clay-api"
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	orderRepo, productRepo, cleanupRepos := buildRepositories(ctx, cfg, logger)
	defer cleanupRepos()

	stock := catalogapp.NewReconciler(productRepo, logger)
	sender := buildSender(cfg, logger)

	var dispatcher notifports.Dispatcher = reconworkflows.NewInlineDispatcher(sender, logger)
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal unavailable, dispatching notifications inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		dispatcher = reconworkflows.NewTemporalDispatcher(temporalClient, logger)
		logger.Info("Temporal notification dispatch enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	gateway := buildGateway(cfg, logger)
	orderService := ordersobs.New(
		ordersapp.NewService(orderRepo, gateway, stock, dispatcher, logger),
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)

	verifier := recondomain.NewVerifier([]byte(cfg.StripeWebhookSecret), time.Now)
	reconService := reconobs.New(
		reconapp.NewService(verifier, orderRepo, stock, dispatcher, logger),
		reconobs.WithLogger(logger),
		reconobs.WithTracer(instruments.Tracer("internal.reconciliation.application")),
		reconobs.WithMeter(instruments.Meter("internal.reconciliation.application")),
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	reconhttp.NewHandler(reconService).Register(router)
	ordershttp.NewHandler(orderService).Register(router)

	addr := ":" + cfg.Port
	logger.Info("storefront API listening", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("storefront API server exited", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return nil
}

func buildRepositories(ctx context.Context, cfg Config, logger *slog.Logger) (ordersports.Repository, catalogports.Repository, func()) {
	db, cleanup := platformpostgres.ConnectOrFallback(ctx, cfg.PostgresDSN, logger)
	if db == nil {
		return ordersmemory.NewRepository(), catalogmemory.NewRepository(), cleanup
	}
	if err := platformmigrations.Run(db); err != nil {
		logger.Warn("schema migration failed, falling back to in-memory repositories", slog.String("error", err.Error()))
		cleanup()
		return ordersmemory.NewRepository(), catalogmemory.NewRepository(), func() {}
	}
	logger.Info("repositories configured with postgres")
	return orderspostgres.NewRepository(db), catalogpostgres.NewRepository(db), cleanup
}

func buildSender(cfg Config, logger *slog.Logger) notifports.Sender {
	if cfg.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not set, customer emails will only be logged")
		return logSender{logger: logger}
	}
	opts := []resendclient.Option{}
	if cfg.ResendBaseURL != "" {
		opts = append(opts, resendclient.WithBaseURL(cfg.ResendBaseURL))
	}
	sender, err := resendclient.NewClient(cfg.ResendAPIKey, cfg.EmailFrom, opts...)
	if err != nil {
		logger.Warn("mail client misconfigured, customer emails will only be logged", slog.String("error", err.Error()))
		return logSender{logger: logger}
	}
	return sender
}

func buildGateway(cfg Config, logger *slog.Logger) ordersports.PaymentGateway {
	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, refund requests will be rejected")
		return disabledGateway{}
	}
	gateway, err := stripeclient.NewGateway(cfg.StripeSecretKey)
	if err != nil {
		logger.Warn("payment gateway misconfigured, refund requests will be rejected", slog.String("error", err.Error()))
		return disabledGateway{}
	}
	return gateway
}

// logSender records outgoing email instead of delivering it. Used when no
// mail provider is configured, typically in local development.
type logSender struct {
	logger *slog.Logger
}

func (s logSender) Send(ctx context.Context, email notifdomain.Email) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "email suppressed",
		slog.String("email.to", email.To), slog.String("email.subject", email.Subject))
	return nil
}

type disabledGateway struct{}

func (disabledGateway) CreateRefund(context.Context, string, string) (ordersports.RefundReceipt, error) {
	return ordersports.RefundReceipt{}, errors.New("payment gateway is not configured")
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
