package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	catalogmemory "github.com/fraugho/caterpillar-clay/internal/domains/catalog/adapters/memory"
	catalogapp "github.com/fraugho/caterpillar-clay/internal/domains/catalog/application"
	catalogdomain "github.com/fraugho/caterpillar-clay/internal/domains/catalog/domain"
	notifdomain "github.com/fraugho/caterpillar-clay/internal/domains/notifications/domain"
	ordersmemory "github.com/fraugho/caterpillar-clay/internal/domains/orders/adapters/memory"
	ordersdomain "github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	"github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/domain"
)

var webhookSecret = []byte("whsec_test")

type recordingDispatcher struct {
	mu      sync.Mutex
	batches []notifdomain.Kind
}

func (d *recordingDispatcher) Dispatch(_ context.Context, kind notifdomain.Kind, _ *ordersdomain.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, kind)
}

func (d *recordingDispatcher) kinds() []notifdomain.Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notifdomain.Kind(nil), d.batches...)
}

type fixture struct {
	service    *Service
	orders     *ordersmemory.Repository
	products   *catalogmemory.Repository
	dispatcher *recordingDispatcher
	signedAt   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	orders := ordersmemory.NewRepository()
	products := catalogmemory.NewRepository()
	dispatcher := &recordingDispatcher{}
	signedAt := time.Unix(1700000000, 0)
	verifier := domain.NewVerifier(webhookSecret, func() time.Time { return signedAt })
	service := NewService(verifier, orders, catalogapp.NewReconciler(products, nil), dispatcher, nil)
	return &fixture{
		service:    service,
		orders:     orders,
		products:   products,
		dispatcher: dispatcher,
		signedAt:   signedAt,
	}
}

func (f *fixture) seedProduct(t *testing.T, id string, stock int32) {
	t.Helper()
	_, err := f.products.Save(context.Background(), &catalogdomain.Product{
		ID:            id,
		Name:          "Speckled Mug",
		PriceCents:    2200,
		StockQuantity: stock,
		Active:        true,
	})
	require.NoError(t, err)
}

func (f *fixture) seedOrder(t *testing.T, items ...ordersdomain.Item) *ordersdomain.Order {
	t.Helper()
	if len(items) == 0 {
		items = []ordersdomain.Item{{ProductID: "prod_mug", Quantity: 2, UnitPriceCents: 2200}}
	}
	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.UnitPriceCents
	}
	order, err := ordersdomain.NewOrder("", "clay@example.com", "Clay Fan", total, items)
	require.NoError(t, err)
	created, err := f.orders.Create(context.Background(), order)
	require.NoError(t, err)
	return created
}

func (f *fixture) sign(body []byte) string {
	mac := hmac.New(sha256.New, webhookSecret)
	fmt.Fprintf(mac, "%d.", f.signedAt.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", f.signedAt.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedBody(t *testing.T, orderID, paymentIntent string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   "evt_checkout",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{
			"metadata":       map[string]string{"order_id": orderID},
			"payment_intent": paymentIntent,
		}},
	})
	require.NoError(t, err)
	return body
}

func chargeRefundedBody(t *testing.T, paymentIntent string, amount int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   "evt_refund",
		"type": "charge.refunded",
		"data": map[string]any{"object": map[string]any{
			"payment_intent":  paymentIntent,
			"amount_refunded": amount,
		}},
	})
	require.NoError(t, err)
	return body
}

func trackerBody(t *testing.T, trackingCode, status string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"description": "tracker.updated",
		"result": map[string]any{
			"id":            "trk_1",
			"tracking_code": trackingCode,
			"status":        status,
		},
	})
	require.NoError(t, err)
	return body
}

func (f *fixture) mustGetOrder(t *testing.T, id string) *ordersdomain.Order {
	t.Helper()
	order, err := f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f *fixture) mustGetStock(t *testing.T, id string) int32 {
	t.Helper()
	product, err := f.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return product.StockQuantity
}

func TestHandlePaymentWebhook_ChecksSignatureBeforeDecoding(t *testing.T) {
	f := newFixture(t)
	body := []byte("definitely not json")

	err := f.service.HandlePaymentWebhook(context.Background(), body, "t=1700000000,v1=bad")
	require.ErrorIs(t, err, domain.ErrSignatureMismatch)
}

func TestHandlePaymentWebhook_MissingSignatureScheme(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t)
	body := checkoutCompletedBody(t, order.ID, "pi_abc")

	err := f.service.HandlePaymentWebhook(context.Background(), body, "t=1700000000")
	require.ErrorIs(t, err, domain.ErrMalformedHeader)

	// The order must be untouched; nothing past the gate ran.
	require.Equal(t, ordersdomain.StatusPending, f.mustGetOrder(t, order.ID).Status)
	require.Empty(t, f.dispatcher.kinds())
}

func TestHandlePaymentWebhook_UnreadableBody(t *testing.T) {
	f := newFixture(t)
	body := []byte("{broken")

	err := f.service.HandlePaymentWebhook(context.Background(), body, f.sign(body))
	require.ErrorIs(t, err, domain.ErrUnreadablePayload)
}

func TestHandlePaymentWebhook_MarksPaidAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	order := f.seedOrder(t)
	body := checkoutCompletedBody(t, order.ID, "pi_abc")

	err := f.service.HandlePaymentWebhook(context.Background(), body, f.sign(body))
	require.NoError(t, err)

	got := f.mustGetOrder(t, order.ID)
	require.Equal(t, ordersdomain.StatusPaid, got.Status)
	require.Equal(t, "pi_abc", got.PaymentReference)
	require.Equal(t, int32(3), f.mustGetStock(t, "prod_mug"))
	require.Equal(t, []notifdomain.Kind{notifdomain.KindConfirmed}, f.dispatcher.kinds())
}

func TestHandlePaymentWebhook_DuplicateDeliveriesApplyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	order := f.seedOrder(t)
	body := checkoutCompletedBody(t, order.ID, "pi_abc")
	header := f.sign(body)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), body, header))
	}

	require.Equal(t, ordersdomain.StatusPaid, f.mustGetOrder(t, order.ID).Status)
	require.Equal(t, int32(3), f.mustGetStock(t, "prod_mug"), "stock must decrement exactly once")
	require.Equal(t, []notifdomain.Kind{notifdomain.KindConfirmed}, f.dispatcher.kinds(), "confirmation must dispatch exactly once")
}

func TestHandlePaymentWebhook_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 10)
	order := f.seedOrder(t)
	body := checkoutCompletedBody(t, order.ID, "pi_abc")
	header := f.sign(body)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.service.HandlePaymentWebhook(context.Background(), body, header)
		}()
	}
	wg.Wait()

	require.Equal(t, ordersdomain.StatusPaid, f.mustGetOrder(t, order.ID).Status)
	require.Equal(t, int32(8), f.mustGetStock(t, "prod_mug"))
	require.Equal(t, []notifdomain.Kind{notifdomain.KindConfirmed}, f.dispatcher.kinds())
}

func TestHandlePaymentWebhook_UnknownOrderIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	body := checkoutCompletedBody(t, "ord_ghost", "pi_abc")

	err := f.service.HandlePaymentWebhook(context.Background(), body, f.sign(body))
	require.NoError(t, err)
	require.Empty(t, f.dispatcher.kinds())
}

func TestHandlePaymentWebhook_ReferenceMismatchIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	order := f.seedOrder(t)

	first := checkoutCompletedBody(t, order.ID, "pi_first")
	require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), first, f.sign(first)))

	second := checkoutCompletedBody(t, order.ID, "pi_other")
	err := f.service.HandlePaymentWebhook(context.Background(), second, f.sign(second))
	require.NoError(t, err, "mis-correlated deliveries are acknowledged, not retried")

	got := f.mustGetOrder(t, order.ID)
	require.Equal(t, "pi_first", got.PaymentReference, "first claim wins")
	require.Equal(t, ordersdomain.StatusPaid, got.Status)
	require.Equal(t, int32(3), f.mustGetStock(t, "prod_mug"))
}

func TestHandlePaymentWebhook_UnrecognizedEventIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"id": "evt_1", "type": "customer.created", "data": {"object": {}}}`)

	err := f.service.HandlePaymentWebhook(context.Background(), body, f.sign(body))
	require.NoError(t, err)
}

func TestHandlePaymentWebhook_RefundRestoresStock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	order := f.seedOrder(t)

	paid := checkoutCompletedBody(t, order.ID, "pi_abc")
	require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), paid, f.sign(paid)))
	require.Equal(t, int32(3), f.mustGetStock(t, "prod_mug"))

	refund := chargeRefundedBody(t, "pi_abc", 4400)
	require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), refund, f.sign(refund)))

	got := f.mustGetOrder(t, order.ID)
	require.Equal(t, ordersdomain.StatusRefunded, got.Status)
	require.Equal(t, int32(5), f.mustGetStock(t, "prod_mug"))
	require.Equal(t, []notifdomain.Kind{notifdomain.KindConfirmed, notifdomain.KindRefunded}, f.dispatcher.kinds())
}

func TestHandlePaymentWebhook_DuplicateRefundRestoresOnce(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	order := f.seedOrder(t)

	paid := checkoutCompletedBody(t, order.ID, "pi_abc")
	require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), paid, f.sign(paid)))

	refund := chargeRefundedBody(t, "pi_abc", 4400)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), refund, f.sign(refund)))
	}

	require.Equal(t, int32(5), f.mustGetStock(t, "prod_mug"))
	require.Equal(t, []notifdomain.Kind{notifdomain.KindConfirmed, notifdomain.KindRefunded}, f.dispatcher.kinds())
}

func TestHandlePaymentWebhook_RefundForUnpaidOrderIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	f.seedOrder(t)

	refund := chargeRefundedBody(t, "pi_never_claimed", 4400)
	err := f.service.HandlePaymentWebhook(context.Background(), refund, f.sign(refund))
	require.NoError(t, err)
	require.Equal(t, int32(5), f.mustGetStock(t, "prod_mug"))
	require.Empty(t, f.dispatcher.kinds())
}

func shipOrder(t *testing.T, f *fixture, order *ordersdomain.Order) {
	t.Helper()
	require.NoError(t, f.orders.SetTracking(context.Background(), order.ID, "EZ1000000001", "EZ1000000001"))
}

func TestHandleCarrierWebhook_MovesOrderForward(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	order := f.seedOrder(t)

	paid := checkoutCompletedBody(t, order.ID, "pi_abc")
	require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), paid, f.sign(paid)))
	shipOrder(t, f, order)

	require.NoError(t, f.service.HandleCarrierWebhook(context.Background(), trackerBody(t, "EZ1000000001", "in_transit")))
	require.Equal(t, ordersdomain.StatusShipped, f.mustGetOrder(t, order.ID).Status)

	require.NoError(t, f.service.HandleCarrierWebhook(context.Background(), trackerBody(t, "EZ1000000001", "delivered")))
	require.Equal(t, ordersdomain.StatusDelivered, f.mustGetOrder(t, order.ID).Status)

	require.Equal(t, []notifdomain.Kind{
		notifdomain.KindConfirmed,
		notifdomain.KindShipped,
		notifdomain.KindDelivered,
	}, f.dispatcher.kinds())
}

func TestHandleCarrierWebhook_DeliveredBeforePaidIsNoOp(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t)
	shipOrder(t, f, order)

	err := f.service.HandleCarrierWebhook(context.Background(), trackerBody(t, "EZ1000000001", "delivered"))
	require.NoError(t, err)
	require.Equal(t, ordersdomain.StatusPending, f.mustGetOrder(t, order.ID).Status)
	require.Empty(t, f.dispatcher.kinds())
}

func TestHandleCarrierWebhook_LateBackwardUpdateIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	order := f.seedOrder(t)

	paid := checkoutCompletedBody(t, order.ID, "pi_abc")
	require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), paid, f.sign(paid)))
	shipOrder(t, f, order)

	require.NoError(t, f.service.HandleCarrierWebhook(context.Background(), trackerBody(t, "EZ1000000001", "delivered")))
	require.NoError(t, f.service.HandleCarrierWebhook(context.Background(), trackerBody(t, "EZ1000000001", "in_transit")))

	require.Equal(t, ordersdomain.StatusDelivered, f.mustGetOrder(t, order.ID).Status)
}

func TestHandleCarrierWebhook_FailureBeforeTransitRestocks(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	order := f.seedOrder(t)

	paid := checkoutCompletedBody(t, order.ID, "pi_abc")
	require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), paid, f.sign(paid)))
	shipOrder(t, f, order)

	require.NoError(t, f.service.HandleCarrierWebhook(context.Background(), trackerBody(t, "EZ1000000001", "failure")))

	require.Equal(t, ordersdomain.StatusCancelled, f.mustGetOrder(t, order.ID).Status)
	require.Equal(t, int32(5), f.mustGetStock(t, "prod_mug"))
}

func TestHandleCarrierWebhook_UnknownTrackerIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	err := f.service.HandleCarrierWebhook(context.Background(), trackerBody(t, "trk_ghost", "delivered"))
	require.NoError(t, err)
}

func TestHandleCarrierWebhook_UnreadableBody(t *testing.T) {
	f := newFixture(t)

	err := f.service.HandleCarrierWebhook(context.Background(), []byte("nope"))
	require.ErrorIs(t, err, domain.ErrUnreadablePayload)
}

func TestHandleCarrierWebhook_ConcurrentDuplicatesNotifyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "prod_mug", 5)
	order := f.seedOrder(t)

	paid := checkoutCompletedBody(t, order.ID, "pi_abc")
	require.NoError(t, f.service.HandlePaymentWebhook(context.Background(), paid, f.sign(paid)))
	shipOrder(t, f, order)

	body := trackerBody(t, "EZ1000000001", "delivered")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.service.HandleCarrierWebhook(context.Background(), body)
		}()
	}
	wg.Wait()

	require.Equal(t, ordersdomain.StatusDelivered, f.mustGetOrder(t, order.ID).Status)
	require.Equal(t, []notifdomain.Kind{notifdomain.KindConfirmed, notifdomain.KindDelivered}, f.dispatcher.kinds())
}
