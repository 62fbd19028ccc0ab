package ports

import (
	"context"

	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
)

// Orders is the slice of the order repository the orchestrator needs:
// correlation-key lookups plus the two atomic writes that serialize
// concurrent deliveries per order.
type Orders interface {
	GetByID(ctx context.Context, id string) (*ordersdomain.Order, error)
	GetByPaymentReference(ctx context.Context, reference string) (*ordersdomain.Order, error)
	GetByShipmentReference(ctx context.Context, reference string) (*ordersdomain.Order, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to ordersdomain.Status) (bool, error)
	ClaimPaymentReference(ctx context.Context, id, reference string) error
}

// Inventory mirrors confirmed transitions onto product stock.
type Inventory interface {
	OnOrderPaid(ctx context.Context, order *ordersdomain.Order) error
	OnOrderRefunded(ctx context.Context, order *ordersdomain.Order) error
}

// Service is the reconciliation orchestrator. A nil return means the webhook
// is acknowledged; the only errors it surfaces are signature and decode
// failures, which the HTTP adapter maps to 400. Everything downstream is
// isolated and logged, never propagated.
type Service interface {
	HandlePaymentWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error
	HandleCarrierWebhook(ctx context.Context, rawBody []byte) error
}
