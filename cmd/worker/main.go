package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	resendclient "github.com/fraugho/caterpillar-clay/internal/clients/http/resend"
	notifdomain "github.com/fraugho/caterpillar-clay/internal/domains/notifications/domain"
	notifports "github.com/fraugho/caterpillar-clay/internal/domains/notifications/ports"
	notifactivities "github.com/fraugho/caterpillar-clay/internal/durable/temporal/activities/notifications"
	notifworkflows "github.com/fraugho/caterpillar-clay/internal/durable/temporal/workflows/notifications"
	platformobservability "github.com/fraugho/caterpillar-clay/internal/platform/observability"
)

func main() {
	// Missing .env is fine; production configures through the environment.
	_ = godotenv.Load()

	ctx := context.Background()
	const serviceName = "caterpillar-clay-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	sender := buildSender(logger)
	activities := notifactivities.NewActivities(sender)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  envOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, notifworkflows.OrderNotificationTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(notifworkflows.OrderNotificationWorkflow, workflow.RegisterOptions{Name: notifworkflows.OrderNotificationWorkflowName})
	w.RegisterActivityWithOptions(activities.SendOrderEmail, activity.RegisterOptions{Name: notifactivities.SendOrderEmailActivityName})

	logger.Info("worker listening", slog.String("taskQueue", notifworkflows.OrderNotificationTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

func buildSender(logger *slog.Logger) notifports.Sender {
	apiKey := strings.TrimSpace(os.Getenv("RESEND_API_KEY"))
	if apiKey == "" {
		logger.Warn("RESEND_API_KEY not set, customer emails will only be logged")
		return logSender{logger: logger}
	}
	opts := []resendclient.Option{}
	if baseURL := strings.TrimSpace(os.Getenv("RESEND_BASE_URL")); baseURL != "" {
		opts = append(opts, resendclient.WithBaseURL(baseURL))
	}
	from := envOrDefault("EMAIL_FROM", "Caterpillar Clay <orders@caterpillarclay.com>")
	sender, err := resendclient.NewClient(apiKey, from, opts...)
	if err != nil {
		logger.Warn("mail client misconfigured, customer emails will only be logged", slog.String("error", err.Error()))
		return logSender{logger: logger}
	}
	return sender
}

type logSender struct {
	logger *slog.Logger
}

func (s logSender) Send(ctx context.Context, email notifdomain.Email) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "email suppressed",
		slog.String("email.to", email.To), slog.String("email.subject", email.Subject))
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
