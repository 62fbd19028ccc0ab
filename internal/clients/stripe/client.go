package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	ordersports "github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
)

var _ ordersports.PaymentGateway = (*Gateway)(nil)

// Gateway issues refunds against the payment processor.
type Gateway struct {
	api *client.API
}

// NewGateway builds a gateway bound to the given secret key.
func NewGateway(secretKey string) (*Gateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{api: api}, nil
}

// CreateRefund opens a refund for a captured payment. The refund settles
// asynchronously; settlement is observed through the processor's webhook.
func (g *Gateway) CreateRefund(ctx context.Context, paymentReference, reason string) (ordersports.RefundReceipt, error) {
	if g == nil || g.api == nil {
		return ordersports.RefundReceipt{}, errors.New("stripe gateway not configured")
	}
	if paymentReference == "" {
		return ordersports.RefundReceipt{}, ordersports.ErrNoPaymentIntent
	}
	params := &stripeapi.RefundParams{
		PaymentIntent: stripeapi.String(paymentReference),
	}
	params.Context = ctx
	if reason != "" {
		params.Reason = stripeapi.String(reason)
	}
	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return ordersports.RefundReceipt{}, fmt.Errorf("create refund: %w", err)
	}
	return ordersports.RefundReceipt{
		RefundID:    refund.ID,
		Status:      string(refund.Status),
		AmountCents: refund.Amount,
	}, nil
}
