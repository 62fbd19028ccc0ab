package application

import (
	"context"
	"errors"
	"log/slog"

	notifdomain "github.com/fraugho/caterpillar-clay/internal/domains/notifications/domain"
	notifports "github.com/fraugho/caterpillar-clay/internal/domains/notifications/ports"
	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	ordersports "github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
	"github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/domain"
	"github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/ports"
)

var _ ports.Service = (*Service)(nil)

// Service sequences each webhook delivery: verify, decode, resolve the
// order, apply the guarded transition, and only when the transition actually
// changed state run the inventory and notification side effects. The sender
// retries on non-2xx, so every semantically resolved outcome acknowledges;
// repeated retries of an already-applied event are harmless because the
// no-op transition path performs no side effects.
type Service struct {
	verifier   *domain.Verifier
	orders     ports.Orders
	inventory  ports.Inventory
	dispatcher notifports.Dispatcher
	logger     *slog.Logger
}

func NewService(verifier *domain.Verifier, orders ports.Orders, inventory ports.Inventory, dispatcher notifports.Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		verifier:   verifier,
		orders:     orders,
		inventory:  inventory,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandlePaymentWebhook processes a gateway delivery. The signature gate runs
// before any JSON parsing; unauthenticated bytes never reach the decoder.
func (s *Service) HandlePaymentWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	if _, err := s.verifier.Verify(rawBody, signatureHeader); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "payment webhook rejected at signature gate",
			slog.String("error", err.Error()))
		return err
	}
	event, err := domain.DecodePaymentEvent(rawBody)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "payment webhook body unreadable",
			slog.String("error", err.Error()))
		return err
	}
	switch ev := event.(type) {
	case domain.PaymentCompleted:
		s.applyPaymentCompleted(ctx, ev)
	case domain.RefundSettled:
		s.applyRefundSettled(ctx, ev)
	case domain.Unrecognized:
		s.logger.LogAttrs(ctx, slog.LevelDebug, "ignoring unrecognized gateway event",
			slog.String("event.id", ev.EventID), slog.String("event.type", ev.RawType))
	}
	return nil
}

// HandleCarrierWebhook processes a carrier tracker update. Carrier payloads
// are lower-trust; a forged one can at most walk an order through
// otherwise-valid transitions, never bypass payment gating.
func (s *Service) HandleCarrierWebhook(ctx context.Context, rawBody []byte) error {
	event, err := domain.DecodeCarrierEvent(rawBody)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "carrier webhook body unreadable",
			slog.String("error", err.Error()))
		return err
	}
	order, ok := s.resolve(ctx, func() (*ordersdomain.Order, error) {
		return s.orders.GetByShipmentReference(ctx, event.TrackingNumber)
	}, "tracking", event.TrackingNumber)
	if !ok {
		return nil
	}
	transition, applies := order.PlanShipment(event.Target)
	if !applies {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "carrier event is a no-op",
			slog.String("order.id", order.ID),
			slog.String("order.status", string(order.Status)),
			slog.String("carrier.status", event.CarrierStatus))
		return nil
	}
	applied, err := s.orders.CompareAndSetStatus(ctx, order.ID, transition.From, transition.To)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "carrier transition write failed",
			slog.String("order.id", order.ID), slog.String("error", err.Error()))
		return nil
	}
	if !applied {
		return nil
	}
	order.Status = transition.To
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order status updated from carrier event",
		slog.String("order.id", order.ID),
		slog.String("from", string(transition.From)),
		slog.String("to", string(transition.To)))
	switch transition.To {
	case ordersdomain.StatusShipped:
		s.dispatcher.Dispatch(ctx, notifdomain.KindShipped, order)
	case ordersdomain.StatusDelivered:
		s.dispatcher.Dispatch(ctx, notifdomain.KindDelivered, order)
	case ordersdomain.StatusCancelled:
		// Carrier failure after payment cleared: hand the stock back. The
		// customer's money comes back through the refund flow, not here.
		s.restock(ctx, order)
	}
	return nil
}

func (s *Service) applyPaymentCompleted(ctx context.Context, ev domain.PaymentCompleted) {
	order, ok := s.resolve(ctx, func() (*ordersdomain.Order, error) {
		return s.orders.GetByID(ctx, ev.OrderID)
	}, "order", ev.OrderID)
	if !ok {
		return
	}
	transition, applies, err := order.PlanPayment(ev.PaymentReference)
	if err != nil {
		// First-write-wins on the payment reference: a delivery carrying a
		// different charge id is mis-correlated, not retryable.
		s.logger.LogAttrs(ctx, slog.LevelError, "payment reference inconsistency",
			slog.String("order.id", order.ID),
			slog.String("order.payment_reference", order.PaymentReference),
			slog.String("event.payment_reference", ev.PaymentReference),
			slog.String("event.id", ev.EventID))
		return
	}
	if ev.PaymentReference != "" {
		if err := s.orders.ClaimPaymentReference(ctx, order.ID, ev.PaymentReference); err != nil {
			if errors.Is(err, ordersports.ErrPaymentReferenceConflict) {
				s.logger.LogAttrs(ctx, slog.LevelError, "payment reference already claimed",
					slog.String("order.id", order.ID), slog.String("event.id", ev.EventID))
			} else {
				s.logger.LogAttrs(ctx, slog.LevelError, "payment reference claim failed",
					slog.String("order.id", order.ID), slog.String("error", err.Error()))
			}
			return
		}
		order.PaymentReference = ev.PaymentReference
	}
	if !applies {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "duplicate payment confirmation is a no-op",
			slog.String("order.id", order.ID), slog.String("order.status", string(order.Status)))
		return
	}
	applied, err := s.orders.CompareAndSetStatus(ctx, order.ID, transition.From, transition.To)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "payment transition write failed",
			slog.String("order.id", order.ID), slog.String("error", err.Error()))
		return
	}
	if !applied {
		// A concurrent duplicate delivery won the conditional update; its
		// side effects are already on the way.
		return
	}
	order.Status = transition.To
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order marked paid",
		slog.String("order.id", order.ID), slog.String("event.id", ev.EventID))
	if err := s.inventory.OnOrderPaid(ctx, order); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "stock decrement incomplete",
			slog.String("order.id", order.ID), slog.String("error", err.Error()))
	}
	s.dispatcher.Dispatch(ctx, notifdomain.KindConfirmed, order)
}

func (s *Service) applyRefundSettled(ctx context.Context, ev domain.RefundSettled) {
	order, ok := s.resolve(ctx, func() (*ordersdomain.Order, error) {
		return s.orders.GetByPaymentReference(ctx, ev.PaymentReference)
	}, "payment_reference", ev.PaymentReference)
	if !ok {
		return
	}
	transition, applies := order.PlanRefund(ev.PaymentReference)
	if !applies {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "refund settlement is a no-op",
			slog.String("order.id", order.ID), slog.String("order.status", string(order.Status)))
		return
	}
	applied, err := s.orders.CompareAndSetStatus(ctx, order.ID, transition.From, transition.To)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "refund transition write failed",
			slog.String("order.id", order.ID), slog.String("error", err.Error()))
		return
	}
	if !applied {
		return
	}
	order.Status = transition.To
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order refunded",
		slog.String("order.id", order.ID),
		slog.String("event.id", ev.EventID),
		slog.Int64("refund.amount_cents", ev.RefundAmountCents))
	s.restock(ctx, order)
	s.dispatcher.Dispatch(ctx, notifdomain.KindRefunded, order)
}

// resolve loads the order for a correlation key. A missing order is
// acknowledged, not failed: the delivery may belong to another environment.
func (s *Service) resolve(ctx context.Context, lookup func() (*ordersdomain.Order, error), keyKind, key string) (*ordersdomain.Order, bool) {
	order, err := lookup()
	if err != nil {
		if errors.Is(err, ordersports.ErrNotFound) {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "no order for webhook correlation key",
				slog.String("key.kind", keyKind), slog.String("key", key))
		} else {
			s.logger.LogAttrs(ctx, slog.LevelError, "order lookup failed",
				slog.String("key.kind", keyKind), slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return order, true
}

func (s *Service) restock(ctx context.Context, order *ordersdomain.Order) {
	if err := s.inventory.OnOrderRefunded(ctx, order); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "stock restore incomplete",
			slog.String("order.id", order.ID), slog.String("error", err.Error()))
	}
}
