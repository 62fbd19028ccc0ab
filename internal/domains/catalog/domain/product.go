package domain

import (
	"errors"
	"time"
)

var (
	ErrEmptyName    = errors.New("product name is required")
	ErrInvalidPrice = errors.New("product price must not be negative")
)

// Product models a storefront item whose stock is reconciled against
// confirmed order transitions. Stock never goes negative: paid orders that
// outrun inventory are accepted as backorders rather than rejected.
type Product struct {
	ID            string
	Name          string
	Description   string
	PriceCents    int64
	ImagePaths    []string
	StockQuantity int32
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate enforces invariants on the aggregate.
func (p *Product) Validate() error {
	if p.Name == "" {
		return ErrEmptyName
	}
	if p.PriceCents < 0 {
		return ErrInvalidPrice
	}
	return nil
}
