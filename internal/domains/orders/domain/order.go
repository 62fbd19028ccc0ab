package domain

import (
	"errors"
	"time"
)

// Status enumerates the order lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var (
	ErrInvalidStatus            = errors.New("order status is invalid")
	ErrNoItems                  = errors.New("order must contain at least one item")
	ErrInvalidQuantity          = errors.New("item quantity must be greater than zero")
	ErrNegativeAmount           = errors.New("amount in cents must not be negative")
	ErrPaymentReferenceMismatch = errors.New("order is linked to a different payment reference")
)

// ParseStatus maps a stored string onto a known Status.
func ParseStatus(s string) (Status, bool) {
	status := Status(s)
	switch status {
	case StatusPending, StatusPaid, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return status, true
	default:
		return "", false
	}
}

// Terminal reports whether no further automatic transitions leave the status.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// progression positions the forward-moving statuses; terminal side branches
// are excluded on purpose.
var progression = map[Status]int{
	StatusPending:    0,
	StatusPaid:       1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

// Item is an order line, immutable after checkout.
type Item struct {
	ProductID      string
	Quantity       int32
	UnitPriceCents int64
}

// Order is the aggregate under reconciliation. Status is mutated only through
// the guarded transitions below, applied with a conditional update at the
// persistence layer.
type Order struct {
	ID                string
	CustomerEmail     string
	CustomerName      string
	Status            Status
	TotalCents        int64
	PaymentReference  string
	ShipmentReference string
	TrackingNumber    string
	Items             []Item
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewOrder validates and constructs an order in the pending state.
func NewOrder(id, customerEmail, customerName string, totalCents int64, items []Item) (*Order, error) {
	order := &Order{
		ID:            id,
		CustomerEmail: customerEmail,
		CustomerName:  customerName,
		Status:        StatusPending,
		TotalCents:    totalCents,
		Items:         items,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate enforces invariants on the aggregate.
func (o *Order) Validate() error {
	if _, ok := ParseStatus(string(o.Status)); !ok {
		return ErrInvalidStatus
	}
	if o.TotalCents < 0 {
		return ErrNegativeAmount
	}
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if item.UnitPriceCents < 0 {
			return ErrNegativeAmount
		}
	}
	return nil
}

// Transition is a (from, to) status pair eligible for a conditional update.
type Transition struct {
	From Status
	To   Status
}

// PlanPayment evaluates a payment confirmation against the guard table.
// The returned bool is false for the idempotent no-op path (duplicate
// delivery after the order already advanced). A reference mismatch is an
// inconsistency, never silently overwritten.
func (o *Order) PlanPayment(paymentReference string) (Transition, bool, error) {
	if o.PaymentReference != "" && o.PaymentReference != paymentReference {
		return Transition{}, false, ErrPaymentReferenceMismatch
	}
	if o.Status != StatusPending {
		return Transition{}, false, nil
	}
	return Transition{From: StatusPending, To: StatusPaid}, true, nil
}

// PlanRefund evaluates a settled refund. Refunds apply only to orders that
// actually cleared payment and still carry the matching reference.
func (o *Order) PlanRefund(paymentReference string) (Transition, bool) {
	if o.PaymentReference == "" || o.PaymentReference != paymentReference {
		return Transition{}, false
	}
	switch o.Status {
	case StatusPaid, StatusProcessing, StatusShipped, StatusDelivered:
		return Transition{From: o.Status, To: StatusRefunded}, true
	default:
		return Transition{}, false
	}
}

// PlanShipment evaluates a carrier status update. Carrier events are
// lower-trust: they can only move an order forward through payment-confirmed
// states, never out of pending or a terminal status, and never backward
// (a late pre-transit update after the order already shipped is a no-op).
func (o *Order) PlanShipment(target Status) (Transition, bool) {
	if o.ShipmentReference == "" {
		return Transition{}, false
	}
	if target == StatusCancelled {
		// Carrier failure before the shipment moved; past that point the
		// order stays on its forward track and a refund settles it instead.
		if o.Status == StatusPaid {
			return Transition{From: o.Status, To: StatusCancelled}, true
		}
		return Transition{}, false
	}
	from, ok := progression[o.Status]
	if !ok || o.Status == StatusPending {
		return Transition{}, false
	}
	to, ok := progression[target]
	if !ok || to <= from {
		return Transition{}, false
	}
	return Transition{From: o.Status, To: target}, true
}

// PlanCancel evaluates a storefront-initiated cancellation.
func (o *Order) PlanCancel() (Transition, bool) {
	switch o.Status {
	case StatusPending, StatusPaid:
		return Transition{From: o.Status, To: StatusCancelled}, true
	default:
		return Transition{}, false
	}
}

// Refundable reports whether a refund request may be submitted to the
// payment gateway for this order.
func (o *Order) Refundable() bool {
	_, ok := o.PlanRefund(o.PaymentReference)
	return ok && o.PaymentReference != ""
}
