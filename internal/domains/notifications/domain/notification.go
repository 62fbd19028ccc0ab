package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
)

// Kind identifies which customer notification to send.
type Kind string

const (
	KindConfirmed Kind = "order_confirmed"
	KindShipped   Kind = "order_shipped"
	KindDelivered Kind = "order_delivered"
	KindRefunded  Kind = "order_refunded"
)

var ErrUnknownKind = errors.New("unknown notification kind")
var ErrNoRecipient = errors.New("order has no customer email")

// Email is a rendered message ready for the transactional mail API.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Compose renders the notification email for an order. The order id is
// shortened to its first eight characters in subjects, matching what
// customers see on their receipts.
func Compose(kind Kind, order *ordersdomain.Order) (Email, error) {
	if order == nil || order.CustomerEmail == "" {
		return Email{}, ErrNoRecipient
	}
	name := order.CustomerName
	if name == "" {
		name = "Customer"
	}
	ref := shortID(order.ID)
	switch kind {
	case KindConfirmed:
		return Email{
			To:      order.CustomerEmail,
			Subject: fmt.Sprintf("Order Confirmation - #%s", ref),
			HTML: wrap(fmt.Sprintf(
				`<h1>Thank you for your order!</h1>
<p>Hi %s,</p>
<p>We've received your order and are getting it ready for you.</p>
<p class="order-id">Order ID: %s</p>
<p class="total">Total: $%s</p>
<p>We'll send you another email when your order ships.</p>`,
				name, order.ID, dollars(order.TotalCents))),
		}, nil
	case KindShipped:
		tracking := order.TrackingNumber
		if tracking == "" {
			tracking = order.ShipmentReference
		}
		return Email{
			To:      order.CustomerEmail,
			Subject: fmt.Sprintf("Your Order Has Shipped - #%s", ref),
			HTML: wrap(fmt.Sprintf(
				`<h1>Your order is on its way!</h1>
<p>Hi %s,</p>
<p>Great news! Your order has shipped.</p>
<div class="tracking"><strong>Tracking Number:</strong> %s</div>
<p>You can track your package using the tracking number above.</p>`,
				name, tracking)),
		}, nil
	case KindDelivered:
		return Email{
			To:      order.CustomerEmail,
			Subject: fmt.Sprintf("Your Order Has Been Delivered - #%s", ref),
			HTML: wrap(fmt.Sprintf(
				`<h1>Your order has arrived!</h1>
<p>Hi %s,</p>
<p>Your Caterpillar Clay order has been delivered!</p>
<p>We hope you love your new pottery. If you have any questions or concerns, please don't hesitate to reach out.</p>`,
				name)),
		}, nil
	case KindRefunded:
		return Email{
			To:      order.CustomerEmail,
			Subject: fmt.Sprintf("Refund Processed - #%s", ref),
			HTML: wrap(fmt.Sprintf(
				`<h1>Your refund has been processed</h1>
<p>Hi %s,</p>
<p>We've processed a refund for your order.</p>
<p class="total">Refund Amount: $%s</p>
<p>The refund should appear on your statement within 5-10 business days, depending on your bank.</p>`,
				name, dollars(order.TotalCents))),
		}, nil
	default:
		return Email{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func dollars(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func wrap(body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: 'Courier New', monospace; background: #f0e6d2; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: white; padding: 32px; }
        h1 { color: #8b5e3c; font-size: 18px; }
        .order-id { color: #666; font-size: 12px; }
        .tracking { background: #f0fdf4; padding: 16px; margin: 20px 0; font-size: 14px; }
        .total { font-size: 16px; color: #22c55e; margin-top: 20px; }
        .footer { margin-top: 32px; font-size: 10px; color: #888; }
    </style>
</head>
<body>
    <div class="container">
        %s
        <div class="footer"><p>Caterpillar Clay - Handmade Pottery</p></div>
    </div>
</body>
</html>`, body)
}
