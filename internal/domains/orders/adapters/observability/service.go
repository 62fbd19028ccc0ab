package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	"github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
)

const tracerName = "github.com/fraugho/caterpillar-clay/internal/domains/orders/adapters/observability/service"

// Service decorates the order service with tracing, logging, and metrics.
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

// New wraps the core order service.
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

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "Orders.GetOrder",
		trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.inner.GetOrder(ctx, id)
	s.record(ctx, span, "get", id, err)
	return order, err
}

func (s *Service) RequestRefund(ctx context.Context, id, reason string) (ports.RefundReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "Orders.RequestRefund",
		trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	receipt, err := s.inner.RequestRefund(ctx, id, reason)
	s.record(ctx, span, "refund", id, err)
	return receipt, err
}

func (s *Service) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "Orders.CancelOrder",
		trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.inner.CancelOrder(ctx, id)
	s.record(ctx, span, "cancel", id, err)
	return order, err
}

func (s *Service) ShipOrder(ctx context.Context, id, trackingNumber, shipmentReference string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "Orders.ShipOrder",
		trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.inner.ShipOrder(ctx, id, trackingNumber, shipmentReference)
	s.record(ctx, span, "ship", id, err)
	return order, err
}

func (s *Service) Dashboard(ctx context.Context) (ports.DashboardSummary, error) {
	ctx, span := s.tracer.Start(ctx, "Orders.Dashboard")
	defer span.End()

	summary, err := s.inner.Dashboard(ctx)
	s.record(ctx, span, "dashboard", "", err)
	return summary, err
}

func (s *Service) record(ctx context.Context, span trace.Span, operation, id string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.logger != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "order operation failed",
				slog.String("order.operation", operation),
				slog.String("order.id", id),
				slog.String("error", err.Error()))
		}
	}
	span.SetAttributes(attribute.String("order.outcome", outcome))
	s.metrics.recordOperation(ctx, operation, outcome)
}

type serviceMetrics struct {
	operations metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	operations, _ := m.Int64Counter("orders.operations",
		metric.WithDescription("Order operations handled, by operation and outcome"))
	return serviceMetrics{operations: operations}
}

func (m serviceMetrics) recordOperation(ctx context.Context, operation, outcome string) {
	if m.operations != nil {
		m.operations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("order.operation", operation),
			attribute.String("order.outcome", outcome)))
	}
}

var _ ports.Service = (*Service)(nil)
