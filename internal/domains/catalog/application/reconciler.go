package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fraugho/caterpillar-clay/internal/domains/catalog/ports"
	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	ordersports "github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
)

var _ ordersports.StockReconciler = (*Reconciler)(nil)

// Reconciler mirrors confirmed order transitions onto product stock. Callers
// invoke it only after a status transition actually occurred, which makes the
// transition itself the idempotency token: a duplicate webhook that loses the
// conditional update never reaches the reconciler, so stock moves exactly
// once per order per direction.
type Reconciler struct {
	products ports.Repository
	logger   *slog.Logger
}

func NewReconciler(products ports.Repository, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{products: products, logger: logger}
}

// OnOrderPaid decrements stock for every line of a freshly paid order.
// Individual product failures are logged and accumulated; the order status
// stays authoritative and is never rolled back over stock drift.
func (r *Reconciler) OnOrderPaid(ctx context.Context, order *ordersdomain.Order) error {
	return r.apply(ctx, order, -1, "decrement")
}

// OnOrderRefunded restores stock for every line of a refunded or cancelled
// paid order.
func (r *Reconciler) OnOrderRefunded(ctx context.Context, order *ordersdomain.Order) error {
	return r.apply(ctx, order, 1, "restore")
}

func (r *Reconciler) apply(ctx context.Context, order *ordersdomain.Order, sign int32, verb string) error {
	if order == nil {
		return errors.New("order is nil")
	}
	var failures error
	for _, item := range order.Items {
		if err := r.products.AdjustStock(ctx, item.ProductID, sign*item.Quantity); err != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "stock adjustment failed",
				slog.String("order.id", order.ID),
				slog.String("product.id", item.ProductID),
				slog.String("direction", verb),
				slog.Int("quantity", int(item.Quantity)),
				slog.String("error", err.Error()))
			failures = errors.Join(failures, err)
		}
	}
	return failures
}
