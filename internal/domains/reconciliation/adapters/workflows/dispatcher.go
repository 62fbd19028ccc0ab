package workflows

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	notifdomain "github.com/fraugho/caterpillar-clay/internal/domains/notifications/domain"
	notifports "github.com/fraugho/caterpillar-clay/internal/domains/notifications/ports"
	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	notifworkflows "github.com/fraugho/caterpillar-clay/internal/durable/temporal/workflows/notifications"
)

var (
	_ notifports.Dispatcher = (*TemporalDispatcher)(nil)
	_ notifports.Dispatcher = (*InlineDispatcher)(nil)
)

// TemporalDispatcher hands notifications to a Temporal workflow. The start
// is fire-and-forget: the webhook acknowledgment is already committed, so a
// failed start is logged and swallowed, never surfaced.
type TemporalDispatcher struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewTemporalDispatcher wires a Temporal client into the dispatcher.
func NewTemporalDispatcher(c client.Client, logger *slog.Logger) *TemporalDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemporalDispatcher{client: c, taskQueue: notifworkflows.OrderNotificationTaskQueue, logger: logger}
}

// Dispatch starts the notification workflow. The workflow id is derived from
// the order and kind, so a duplicate dispatch lands on the already-started
// execution and is treated as success.
func (d *TemporalDispatcher) Dispatch(ctx context.Context, kind notifdomain.Kind, order *ordersdomain.Order) {
	if d == nil || d.client == nil || order == nil {
		return
	}
	options := client.StartWorkflowOptions{
		ID:        notifworkflows.OrderNotificationWorkflowID(order.ID, kind),
		TaskQueue: d.taskQueue,
	}
	input := notifworkflows.OrderNotificationWorkflowInput{Kind: kind, Order: *order}
	if _, err := d.client.ExecuteWorkflow(ctx, options, notifworkflows.OrderNotificationWorkflow, input); err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return
		}
		d.logger.LogAttrs(ctx, slog.LevelError, "notification workflow start failed",
			slog.String("order.id", order.ID),
			slog.String("notification.kind", string(kind)),
			slog.String("error", err.Error()))
	}
}

// InlineDispatcher composes and sends the email synchronously, for
// deployments without a Temporal cluster. Still best-effort: a send failure
// is logged and swallowed.
type InlineDispatcher struct {
	sender notifports.Sender
	logger *slog.Logger
}

// NewInlineDispatcher wraps the mail sender for direct execution.
func NewInlineDispatcher(sender notifports.Sender, logger *slog.Logger) *InlineDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InlineDispatcher{sender: sender, logger: logger}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, kind notifdomain.Kind, order *ordersdomain.Order) {
	if d == nil || order == nil {
		return
	}
	email, err := notifdomain.Compose(kind, order)
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "notification skipped",
			slog.String("order.id", order.ID),
			slog.String("notification.kind", string(kind)),
			slog.String("error", err.Error()))
		return
	}
	if d.sender == nil {
		d.logger.LogAttrs(ctx, slog.LevelInfo, "mail sender not configured, dropping notification",
			slog.String("order.id", order.ID),
			slog.String("notification.kind", string(kind)))
		return
	}
	if err := d.sender.Send(ctx, email); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "notification send failed",
			slog.String("order.id", order.ID),
			slog.String("notification.kind", string(kind)),
			slog.String("error", err.Error()))
	}
}
