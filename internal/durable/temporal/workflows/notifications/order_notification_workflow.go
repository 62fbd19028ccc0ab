package notifications

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	notifdomain "github.com/fraugho/caterpillar-clay/internal/domains/notifications/domain"
	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	notifactivities "github.com/fraugho/caterpillar-clay/internal/durable/temporal/activities/notifications"
)

const (
	// OrderNotificationWorkflowName is the public identifier for registering the workflow.
	OrderNotificationWorkflowName = "notifications.workflows.OrderNotification"
	// OrderNotificationTaskQueue is the queue consumed by the notification worker.
	OrderNotificationTaskQueue = "ORDER_NOTIFICATIONS"
)

// OrderNotificationWorkflowInput captures one customer notification request.
type OrderNotificationWorkflowInput struct {
	Kind  notifdomain.Kind
	Order ordersdomain.Order
}

// OrderNotificationWorkflowID derives a deterministic id so duplicate
// dispatches of the same notification collapse onto one execution.
func OrderNotificationWorkflowID(orderID string, kind notifdomain.Kind) string {
	return fmt.Sprintf("order-notification-%s-%s", orderID, kind)
}

// OrderNotificationWorkflow delivers a single order email with retries.
func OrderNotificationWorkflow(ctx workflow.Context, input OrderNotificationWorkflowInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("OrderNotificationWorkflow started",
		"orderId", input.Order.ID, "kind", string(input.Kind))
	options := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	err := workflow.ExecuteActivity(ctx, notifactivities.SendOrderEmailActivityName,
		notifactivities.SendOrderEmailInput{Kind: input.Kind, Order: input.Order}).Get(ctx, nil)
	if err != nil {
		logger.Error("OrderNotificationWorkflow failed",
			"orderId", input.Order.ID, "kind", string(input.Kind), "error", err)
		return err
	}
	logger.Info("OrderNotificationWorkflow completed",
		"orderId", input.Order.ID, "kind", string(input.Kind))
	return nil
}
