package ports

import (
	"context"

	notifdomain "github.com/fraugho/caterpillar-clay/internal/domains/notifications/domain"
	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
)

// Sender delivers a rendered email through the transactional mail provider.
type Sender interface {
	Send(ctx context.Context, email notifdomain.Email) error
}

// Dispatcher triggers a customer notification for an order transition.
// Dispatch is strictly best-effort: implementations log and swallow every
// failure, so callers can treat it as fire-and-forget and no notification
// problem ever surfaces as a reconciliation failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind notifdomain.Kind, order *ordersdomain.Order)
}
