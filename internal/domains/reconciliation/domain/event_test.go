package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
)

func TestDecodePaymentEvent_CheckoutCompleted(t *testing.T) {
	body := []byte(`{
		"id": "evt_123",
		"type": "checkout.session.completed",
		"data": {"object": {
			"metadata": {"order_id": "ord_42"},
			"payment_intent": "pi_abc"
		}}
	}`)

	event, err := DecodePaymentEvent(body)
	require.NoError(t, err)
	paid, ok := event.(PaymentCompleted)
	require.True(t, ok)
	require.Equal(t, "evt_123", paid.EventID)
	require.Equal(t, "ord_42", paid.OrderID)
	require.Equal(t, "pi_abc", paid.PaymentReference)
}

func TestDecodePaymentEvent_ChargeRefunded(t *testing.T) {
	body := []byte(`{
		"id": "evt_456",
		"type": "charge.refunded",
		"data": {"object": {
			"payment_intent": "pi_abc",
			"amount_refunded": 4500
		}}
	}`)

	event, err := DecodePaymentEvent(body)
	require.NoError(t, err)
	refund, ok := event.(RefundSettled)
	require.True(t, ok)
	require.Equal(t, "pi_abc", refund.PaymentReference)
	require.Equal(t, int64(4500), refund.RefundAmountCents)
}

func TestDecodePaymentEvent_UnknownTypeIsNotAnError(t *testing.T) {
	body := []byte(`{"id": "evt_789", "type": "invoice.created", "data": {"object": {}}}`)

	event, err := DecodePaymentEvent(body)
	require.NoError(t, err)
	other, ok := event.(Unrecognized)
	require.True(t, ok)
	require.Equal(t, "invoice.created", other.RawType)
}

func TestDecodePaymentEvent_MissingPaymentIntent(t *testing.T) {
	body := []byte(`{
		"id": "evt_123",
		"type": "checkout.session.completed",
		"data": {"object": {"metadata": {"order_id": "ord_42"}}}
	}`)

	event, err := DecodePaymentEvent(body)
	require.NoError(t, err)
	paid, ok := event.(PaymentCompleted)
	require.True(t, ok)
	require.Empty(t, paid.PaymentReference)
}

func TestDecodePaymentEvent_Garbage(t *testing.T) {
	_, err := DecodePaymentEvent([]byte("not json"))
	require.ErrorIs(t, err, ErrUnreadablePayload)
}

func TestDecodePaymentEvent_MissingType(t *testing.T) {
	_, err := DecodePaymentEvent([]byte(`{"id": "evt_1", "data": {"object": {}}}`))
	require.ErrorIs(t, err, ErrUnreadablePayload)
}

func TestDecodeCarrierEvent_TrackerUpdate(t *testing.T) {
	body := []byte(`{
		"description": "tracker.updated",
		"result": {"id": "trk_1", "tracking_code": "EZ1000000001", "status": "delivered"}
	}`)

	event, err := DecodeCarrierEvent(body)
	require.NoError(t, err)
	require.Equal(t, "EZ1000000001", event.TrackingNumber)
	require.Equal(t, "delivered", event.CarrierStatus)
	require.Equal(t, ordersdomain.StatusDelivered, event.Target)
}

func TestDecodeCarrierEvent_FallsBackToResultID(t *testing.T) {
	body := []byte(`{"result": {"id": "trk_1", "status": "in_transit"}}`)

	event, err := DecodeCarrierEvent(body)
	require.NoError(t, err)
	require.Equal(t, "trk_1", event.TrackingNumber)
}

func TestDecodeCarrierEvent_MissingTrackingReference(t *testing.T) {
	_, err := DecodeCarrierEvent([]byte(`{"result": {"status": "in_transit"}}`))
	require.ErrorIs(t, err, ErrUnreadablePayload)
}

func TestDecodeCarrierEvent_Garbage(t *testing.T) {
	_, err := DecodeCarrierEvent([]byte("<xml/>"))
	require.ErrorIs(t, err, ErrUnreadablePayload)
}

func TestMapCarrierStatus(t *testing.T) {
	cases := map[string]ordersdomain.Status{
		"delivered":        ordersdomain.StatusDelivered,
		"in_transit":       ordersdomain.StatusShipped,
		"out_for_delivery": ordersdomain.StatusShipped,
		"pre_transit":      ordersdomain.StatusProcessing,
		"failure":          ordersdomain.StatusCancelled,
		"error":            ordersdomain.StatusCancelled,
		"return_to_sender": ordersdomain.StatusShipped,
		"":                 ordersdomain.StatusShipped,
	}
	for carrierStatus, want := range cases {
		require.Equal(t, want, MapCarrierStatus(carrierStatus), "carrier status %q", carrierStatus)
	}
}
