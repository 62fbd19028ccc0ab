package notifications

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	notifdomain "github.com/fraugho/caterpillar-clay/internal/domains/notifications/domain"
	notifports "github.com/fraugho/caterpillar-clay/internal/domains/notifications/ports"
	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
)

// SendOrderEmailActivityName delivers one composed order email.
const SendOrderEmailActivityName = "notifications.activities.SendOrderEmail"

// SendOrderEmailInput is the activity payload.
type SendOrderEmailInput struct {
	Kind  notifdomain.Kind
	Order ordersdomain.Order
}

// Activities groups the notification activities executed by the worker.
type Activities struct {
	sender notifports.Sender
}

// NewActivities wires the mail sender into the activities bundle.
func NewActivities(sender notifports.Sender) *Activities {
	return &Activities{sender: sender}
}

// SendOrderEmail composes and sends the notification. A compose failure
// (no recipient, unknown kind) is permanent and reported without retry value;
// transport failures bubble up for the workflow's retry policy.
func (a *Activities) SendOrderEmail(ctx context.Context, input SendOrderEmailInput) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.sender == nil {
		logger.Error("notification activity not initialized", "orderId", input.Order.ID)
		return errors.New("notification activity not initialized")
	}
	email, err := notifdomain.Compose(input.Kind, &input.Order)
	if err != nil {
		logger.Warn("notification not composable, dropping",
			"orderId", input.Order.ID, "kind", string(input.Kind), "error", err)
		return nil
	}
	logger.Info("SendOrderEmail activity started",
		"orderId", input.Order.ID, "kind", string(input.Kind))
	if err := a.sender.Send(ctx, email); err != nil {
		logger.Error("SendOrderEmail activity failed",
			"orderId", input.Order.ID, "kind", string(input.Kind), "error", err)
		return err
	}
	logger.Info("SendOrderEmail activity completed",
		"orderId", input.Order.ID, "kind", string(input.Kind))
	return nil
}
