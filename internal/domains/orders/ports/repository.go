package ports

import (
	"context"
	"errors"

	"github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrPaymentReferenceConflict is returned when an order already carries a
	// different payment reference; the first write wins.
	ErrPaymentReferenceConflict = errors.New("order already claimed by another payment reference")
)

// Repository persists orders. Status changes go through CompareAndSetStatus
// so that concurrent duplicate webhook deliveries serialize per order: the
// conditional update succeeds for at most one caller, every other caller
// observes false and takes the no-op path.
type Repository interface {
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error)
	GetByShipmentReference(ctx context.Context, reference string) (*domain.Order, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status) (bool, error)
	// ClaimPaymentReference assigns the reference first-write-wins: claiming
	// the already-held reference is a no-op, a different one is
	// ErrPaymentReferenceConflict.
	ClaimPaymentReference(ctx context.Context, id, reference string) error
	SetTracking(ctx context.Context, id, trackingNumber, shipmentReference string) error
	CountAll(ctx context.Context) (int64, error)
	// RecognizedRevenueCents sums totals of orders past pending, excluding
	// cancellations.
	RecognizedRevenueCents(ctx context.Context) (int64, error)
}
