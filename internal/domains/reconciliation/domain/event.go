package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
)

// ErrUnreadablePayload covers bodies that cannot be parsed at all. It is
// distinct from a recognized-but-unknown event type, which decodes into
// Unrecognized and is never an error: the upstream event catalog evolves
// independently of this system.
var ErrUnreadablePayload = errors.New("webhook payload is not parseable")

// Event is the internal representation of a decoded webhook payload.
type Event interface {
	EventName() string
}

// PaymentCompleted signals that checkout cleared for an order.
type PaymentCompleted struct {
	EventID          string
	OrderID          string
	PaymentReference string
}

func (PaymentCompleted) EventName() string { return "reconciliation.payment_completed" }

// RefundSettled signals that the gateway finished refunding a charge.
type RefundSettled struct {
	EventID           string
	PaymentReference  string
	RefundAmountCents int64
}

func (RefundSettled) EventName() string { return "reconciliation.refund_settled" }

// ShipmentStatusChanged carries a carrier tracker update mapped onto the
// order lifecycle.
type ShipmentStatusChanged struct {
	TrackingNumber string
	CarrierStatus  string
	Target         ordersdomain.Status
}

func (ShipmentStatusChanged) EventName() string { return "reconciliation.shipment_status_changed" }

// Unrecognized is the always-valid fallback for event types this system does
// not act on.
type Unrecognized struct {
	EventID string
	RawType string
}

func (Unrecognized) EventName() string { return "reconciliation.unrecognized" }

// gatewayEnvelope is the payment gateway's webhook wire format.
type gatewayEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object gatewayObject `json:"object"`
	} `json:"data"`
}

type gatewayObject struct {
	Metadata       map[string]string `json:"metadata"`
	PaymentIntent  string            `json:"payment_intent"`
	AmountRefunded int64             `json:"amount_refunded"`
}

// DecodePaymentEvent maps a verified gateway payload into an Event.
func DecodePaymentEvent(rawBody []byte) (Event, error) {
	var envelope gatewayEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadablePayload, err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrUnreadablePayload)
	}
	switch envelope.Type {
	case "checkout.session.completed":
		return PaymentCompleted{
			EventID:          envelope.ID,
			OrderID:          envelope.Data.Object.Metadata["order_id"],
			PaymentReference: envelope.Data.Object.PaymentIntent,
		}, nil
	case "charge.refunded":
		return RefundSettled{
			EventID:           envelope.ID,
			PaymentReference:  envelope.Data.Object.PaymentIntent,
			RefundAmountCents: envelope.Data.Object.AmountRefunded,
		}, nil
	default:
		return Unrecognized{EventID: envelope.ID, RawType: envelope.Type}, nil
	}
}

// carrierEnvelope is the carrier's tracker webhook wire format.
type carrierEnvelope struct {
	Description string `json:"description"`
	Result      struct {
		ID           string `json:"id"`
		TrackingCode string `json:"tracking_code"`
		Status       string `json:"status"`
	} `json:"result"`
}

// DecodeCarrierEvent parses a carrier tracker update. Carrier webhooks carry
// no verifiable signature; the state machine's guards are their only gate.
func DecodeCarrierEvent(rawBody []byte) (ShipmentStatusChanged, error) {
	var envelope carrierEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return ShipmentStatusChanged{}, fmt.Errorf("%w: %w", ErrUnreadablePayload, err)
	}
	tracking := envelope.Result.TrackingCode
	if tracking == "" {
		tracking = envelope.Result.ID
	}
	if tracking == "" {
		return ShipmentStatusChanged{}, fmt.Errorf("%w: missing tracking reference", ErrUnreadablePayload)
	}
	return ShipmentStatusChanged{
		TrackingNumber: tracking,
		CarrierStatus:  envelope.Result.Status,
		Target:         MapCarrierStatus(envelope.Result.Status),
	}, nil
}

// MapCarrierStatus collapses carrier-specific status strings onto the order
// lifecycle. Unmapped statuses default to shipped, a conservative "in
// motion" assumption: the guard table keeps it harmless for orders already
// past that point.
func MapCarrierStatus(carrierStatus string) ordersdomain.Status {
	switch carrierStatus {
	case "delivered":
		return ordersdomain.StatusDelivered
	case "in_transit", "out_for_delivery":
		return ordersdomain.StatusShipped
	case "pre_transit":
		return ordersdomain.StatusProcessing
	case "failure", "error":
		return ordersdomain.StatusCancelled
	default:
		return ordersdomain.StatusShipped
	}
}
