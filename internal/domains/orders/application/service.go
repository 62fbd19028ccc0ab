package application

import (
	"context"
	"errors"
	"log/slog"

	notifdomain "github.com/fraugho/caterpillar-clay/internal/domains/notifications/domain"
	notifports "github.com/fraugho/caterpillar-clay/internal/domains/notifications/ports"
	"github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	"github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
)

var _ ports.Service = (*Service)(nil)

// Service implements the storefront-initiated order operations. Every status
// mutation funnels through the same conditional-update path the webhook
// orchestrator uses, so a refund request racing a carrier webhook resolves to
// exactly one winner.
type Service struct {
	repo       ports.Repository
	gateway    ports.PaymentGateway
	stock      ports.StockReconciler
	dispatcher notifports.Dispatcher
	logger     *slog.Logger
}

func NewService(repo ports.Repository, gateway ports.PaymentGateway, stock ports.StockReconciler, dispatcher notifports.Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, gateway: gateway, stock: stock, dispatcher: dispatcher, logger: logger}
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// RequestRefund submits a full refund to the payment gateway. Status and
// stock are deliberately not touched here: the gateway's settlement webhook
// drives the refunded transition, and the conditional update makes the
// request idempotent against that webhook racing in.
func (s *Service) RequestRefund(ctx context.Context, id, reason string) (ports.RefundReceipt, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ports.RefundReceipt{}, err
	}
	if order.PaymentReference == "" {
		return ports.RefundReceipt{}, ports.ErrNoPaymentIntent
	}
	if !order.Refundable() {
		return ports.RefundReceipt{}, ports.ErrNotRefundable
	}
	if s.gateway == nil {
		return ports.RefundReceipt{}, errors.New("payment gateway not configured")
	}
	receipt, err := s.gateway.CreateRefund(ctx, order.PaymentReference, reason)
	if err != nil {
		return ports.RefundReceipt{}, err
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "refund submitted to gateway",
		slog.String("order.id", order.ID),
		slog.String("refund.id", receipt.RefundID),
		slog.Int64("refund.amount_cents", receipt.AmountCents))
	return receipt, nil
}

// CancelOrder moves a pending or paid order to cancelled. A paid
// cancellation returns its stock exactly once, gated on winning the
// conditional update.
func (s *Service) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	transition, ok := order.PlanCancel()
	if !ok {
		return nil, ports.ErrNotCancellable
	}
	applied, err := s.repo.CompareAndSetStatus(ctx, order.ID, transition.From, transition.To)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ports.ErrNotCancellable
	}
	order.Status = transition.To
	if transition.From == domain.StatusPaid && s.stock != nil {
		if err := s.stock.OnOrderRefunded(ctx, order); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "stock restore after cancel failed",
				slog.String("order.id", order.ID), slog.String("error", err.Error()))
		}
	}
	return order, nil
}

// ShipOrder records the tracking correlation keys and moves the order to
// shipped, dispatching the shipped notification once.
func (s *Service) ShipOrder(ctx context.Context, id, trackingNumber, shipmentReference string) (*domain.Order, error) {
	if trackingNumber == "" {
		return nil, ports.ErrNotShippable
	}
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case domain.StatusPaid, domain.StatusProcessing:
	default:
		return nil, ports.ErrNotShippable
	}
	if err := s.repo.SetTracking(ctx, order.ID, trackingNumber, shipmentReference); err != nil {
		return nil, err
	}
	order.TrackingNumber = trackingNumber
	order.ShipmentReference = shipmentReference
	applied, err := s.repo.CompareAndSetStatus(ctx, order.ID, order.Status, domain.StatusShipped)
	if err != nil {
		return nil, err
	}
	if applied {
		order.Status = domain.StatusShipped
		if s.dispatcher != nil {
			s.dispatcher.Dispatch(ctx, notifdomain.KindShipped, order)
		}
	}
	return order, nil
}

// Dashboard surfaces the order counters for the admin overview.
func (s *Service) Dashboard(ctx context.Context) (ports.DashboardSummary, error) {
	count, err := s.repo.CountAll(ctx)
	if err != nil {
		return ports.DashboardSummary{}, err
	}
	revenue, err := s.repo.RecognizedRevenueCents(ctx)
	if err != nil {
		return ports.DashboardSummary{}, err
	}
	return ports.DashboardSummary{OrderCount: count, RevenueCents: revenue}, nil
}
