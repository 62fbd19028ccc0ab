package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	"github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory order persistence adapter. The mutex gives it
// the same atomic conditional-update semantics as the SQL adapter, so it is
// also the fixture for the concurrency tests.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewRepository() *Repository {
	return &Repository{orders: map[string]*domain.Order{}}
}

func (r *Repository) Create(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	clone := cloneOrder(order)
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[clone.ID] = clone
	return cloneOrder(clone), nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *Repository) GetByPaymentReference(_ context.Context, reference string) (*domain.Order, error) {
	if reference == "" {
		return nil, ports.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if order.PaymentReference == reference {
			return cloneOrder(order), nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r *Repository) GetByShipmentReference(_ context.Context, reference string) (*domain.Order, error) {
	if reference == "" {
		return nil, ports.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if order.ShipmentReference == reference {
			return cloneOrder(order), nil
		}
	}
	return nil, ports.ErrNotFound
}

// CompareAndSetStatus flips the status only when the stored value still
// matches from; exactly one of any set of concurrent callers wins.
func (r *Repository) CompareAndSetStatus(_ context.Context, id string, from, to domain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	if order.Status != from {
		return false, nil
	}
	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *Repository) ClaimPaymentReference(_ context.Context, id, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	switch order.PaymentReference {
	case "":
		order.PaymentReference = reference
		order.UpdatedAt = time.Now().UTC()
		return nil
	case reference:
		return nil
	default:
		return ports.ErrPaymentReferenceConflict
	}
}

func (r *Repository) SetTracking(_ context.Context, id, trackingNumber, shipmentReference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	order.TrackingNumber = trackingNumber
	order.ShipmentReference = shipmentReference
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) CountAll(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.orders)), nil
}

func (r *Repository) RecognizedRevenueCents(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, order := range r.orders {
		switch order.Status {
		case domain.StatusPending, domain.StatusCancelled:
		default:
			total += order.TotalCents
		}
	}
	return total, nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	clone := *order
	clone.Items = append([]domain.Item(nil), order.Items...)
	return &clone
}
