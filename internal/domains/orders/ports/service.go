package ports

import (
	"context"
	"errors"

	"github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
)

var (
	ErrNotRefundable   = errors.New("order is not in a refundable state")
	ErrNotCancellable  = errors.New("order can no longer be cancelled")
	ErrNotShippable    = errors.New("order is not ready to ship")
	ErrNoPaymentIntent = errors.New("order has no payment reference to refund against")
)

// RefundReceipt echoes the gateway's view of a submitted refund. Order status
// and stock stay untouched until the gateway's settlement webhook lands.
type RefundReceipt struct {
	RefundID    string
	Status      string
	AmountCents int64
}

// DashboardSummary carries the admin counters derived from the order table.
type DashboardSummary struct {
	OrderCount   int64
	RevenueCents int64
}

// PaymentGateway submits refunds to the external payment processor.
type PaymentGateway interface {
	CreateRefund(ctx context.Context, paymentReference, reason string) (RefundReceipt, error)
}

// StockReconciler mirrors confirmed order transitions onto product stock.
type StockReconciler interface {
	OnOrderPaid(ctx context.Context, order *domain.Order) error
	OnOrderRefunded(ctx context.Context, order *domain.Order) error
}

// Service exposes the storefront-initiated order operations. They share the
// guarded transition path with the webhook orchestrator, so whichever side
// wins the conditional update proceeds and the other no-ops.
type Service interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	RequestRefund(ctx context.Context, id, reason string) (RefundReceipt, error)
	CancelOrder(ctx context.Context, id string) (*domain.Order, error)
	ShipOrder(ctx context.Context, id, trackingNumber, shipmentReference string) (*domain.Order, error)
	Dashboard(ctx context.Context) (DashboardSummary, error)
}
