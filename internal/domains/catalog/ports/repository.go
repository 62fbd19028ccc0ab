package ports

import (
	"context"
	"errors"

	"github.com/fraugho/caterpillar-clay/internal/domains/catalog/domain"
)

var ErrNotFound = errors.New("product not found")

// Repository persists products and applies stock adjustments.
type Repository interface {
	Save(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// AdjustStock adds delta to the product's stock, flooring the result at
	// zero. Negative deltas that exceed the remaining stock still succeed;
	// the shortfall is a backorder, not an error.
	AdjustStock(ctx context.Context, id string, delta int32) error
}
