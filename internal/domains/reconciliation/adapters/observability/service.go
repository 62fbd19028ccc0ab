package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/ports"
)

const tracerName = "github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/adapters/observability/service"

// Service decorates the reconciliation orchestrator with tracing, logging,
// and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wraps the core reconciliation service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return s
}

func (s *Service) HandlePaymentWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	ctx, span := s.tracer.Start(ctx, "Reconciliation.HandlePaymentWebhook",
		trace.WithAttributes(attribute.Int("webhook.body_bytes", len(rawBody))))
	defer span.End()

	err := s.inner.HandlePaymentWebhook(ctx, rawBody, signatureHeader)
	s.record(ctx, span, "payment", err)
	return err
}

func (s *Service) HandleCarrierWebhook(ctx context.Context, rawBody []byte) error {
	ctx, span := s.tracer.Start(ctx, "Reconciliation.HandleCarrierWebhook",
		trace.WithAttributes(attribute.Int("webhook.body_bytes", len(rawBody))))
	defer span.End()

	err := s.inner.HandleCarrierWebhook(ctx, rawBody)
	s.record(ctx, span, "carrier", err)
	return err
}

func (s *Service) record(ctx context.Context, span trace.Span, source string, err error) {
	outcome := "acknowledged"
	if err != nil {
		outcome = "rejected"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.logger != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "webhook rejected",
				slog.String("webhook.source", source), slog.String("error", err.Error()))
		}
	}
	span.SetAttributes(attribute.String("webhook.outcome", outcome))
	s.metrics.recordHandled(ctx, source, outcome)
}

type serviceMetrics struct {
	webhooksHandled metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	handled, _ := m.Int64Counter("reconciliation.webhooks_handled",
		metric.WithDescription("Webhook deliveries handled, by source and outcome"))
	return serviceMetrics{webhooksHandled: handled}
}

func (m serviceMetrics) recordHandled(ctx context.Context, source, outcome string) {
	if m.webhooksHandled != nil {
		m.webhooksHandled.Add(ctx, 1, metric.WithAttributes(
			attribute.String("webhook.source", source),
			attribute.String("webhook.outcome", outcome)))
	}
}

var _ ports.Service = (*Service)(nil)
