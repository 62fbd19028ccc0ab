package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fraugho/caterpillar-clay/internal/domains/orders/domain"
	"github.com/fraugho/caterpillar-clay/internal/domains/orders/ports"
	sharederrors "github.com/fraugho/caterpillar-clay/internal/shared/errors"
)

// Handler exposes the admin order operations. Refunds only open the request
// with the payment processor; the status flip to refunded happens when the
// settlement webhook arrives.
type Handler struct {
	service   ports.Service
	responder *sharederrors.ChainedResponder
}

func NewHandler(service ports.Service) *Handler {
	return &Handler{
		service:   service,
		responder: sharederrors.NewChainedResponder("", unprocessableOrder),
	}
}

// unprocessableOrder maps guarded-transition rejections to 422 problems.
func unprocessableOrder(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, ports.ErrNotRefundable),
		errors.Is(err, ports.ErrNotCancellable),
		errors.Is(err, ports.ErrNotShippable),
		errors.Is(err, ports.ErrNoPaymentIntent):
		return sharederrors.ErrUnprocessable.WithDetail(err.Error()), true
	}
	return sharederrors.ProblemDetail{}, false
}

// Register mounts the admin routes.
func (h *Handler) Register(router gin.IRouter) {
	admin := router.Group("/admin")
	admin.GET("/dashboard", h.dashboard)
	admin.GET("/orders/:id", h.getOrder)
	admin.POST("/orders/:id/refund", h.requestRefund)
	admin.POST("/orders/:id/cancel", h.cancelOrder)
	admin.POST("/orders/:id/tracking", h.shipOrder)
}

type orderResponse struct {
	ID                string         `json:"id"`
	CustomerEmail     string         `json:"customer_email"`
	CustomerName      string         `json:"customer_name,omitempty"`
	Status            string         `json:"status"`
	TotalCents        int64          `json:"total_cents"`
	PaymentReference  string         `json:"payment_reference,omitempty"`
	ShipmentReference string         `json:"shipment_reference,omitempty"`
	TrackingNumber    string         `json:"tracking_number,omitempty"`
	Items             []itemResponse `json:"items"`
}

type itemResponse struct {
	ProductID      string `json:"product_id"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func toOrderResponse(order *domain.Order) orderResponse {
	items := make([]itemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemResponse{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return orderResponse{
		ID:                order.ID,
		CustomerEmail:     order.CustomerEmail,
		CustomerName:      order.CustomerName,
		Status:            string(order.Status),
		TotalCents:        order.TotalCents,
		PaymentReference:  order.PaymentReference,
		ShipmentReference: order.ShipmentReference,
		TrackingNumber:    order.TrackingNumber,
		Items:             items,
	}
}

func (h *Handler) dashboard(c *gin.Context) {
	summary, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_count":   summary.OrderCount,
		"revenue_cents": summary.RevenueCents,
	})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) requestRefund(c *gin.Context) {
	var body refundRequest
	// The body is optional; a bare POST refunds without a reason.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.responder.BadRequest(c, "invalid request body")
			return
		}
	}
	receipt, err := h.service.RequestRefund(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		h.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"refund_id":    receipt.RefundID,
		"status":       receipt.Status,
		"amount_cents": receipt.AmountCents,
	})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	order, err := h.service.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

type trackingRequest struct {
	TrackingNumber    string `json:"tracking_number" binding:"required"`
	ShipmentReference string `json:"shipment_reference" binding:"required"`
}

func (h *Handler) shipOrder(c *gin.Context) {
	var body trackingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.responder.ValidationFailed(c, map[string]string{
			"tracking_number":    "required",
			"shipment_reference": "required",
		})
		return
	}
	order, err := h.service.ShipOrder(c.Request.Context(), c.Param("id"), body.TrackingNumber, body.ShipmentReference)
	if err != nil {
		h.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) respondFailure(c *gin.Context, err error) {
	if errors.Is(err, ports.ErrNotFound) {
		h.responder.NotFound(c, "order", c.Param("id"))
		return
	}
	h.responder.RespondError(c, err)
}
