package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/domain"
	"github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/ports"
	sharederrors "github.com/fraugho/caterpillar-clay/internal/shared/errors"
)

// SignatureHeader is the gateway's signature header name.
const SignatureHeader = "Stripe-Signature"

// Handler exposes the webhook endpoints. Senders only ever see 200 (resolved,
// stop retrying) or 400 (unauthenticated or unreadable, stop retrying and
// alert); every downstream failure is isolated inside the orchestrator.
type Handler struct {
	service   ports.Service
	responder *sharederrors.Responder
}

func NewHandler(service ports.Service) *Handler {
	return &Handler{service: service, responder: sharederrors.DefaultResponder}
}

// Register mounts the webhook routes.
func (h *Handler) Register(router gin.IRouter) {
	router.POST("/webhooks/stripe", h.paymentWebhook)
	router.POST("/webhooks/easypost", h.carrierWebhook)
}

func (h *Handler) paymentWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		h.responder.BadRequest(c, "could not read request body")
		return
	}
	if err := h.service.HandlePaymentWebhook(c.Request.Context(), rawBody, c.GetHeader(SignatureHeader)); err != nil {
		h.respondRejected(c, err)
		return
	}
	ack(c)
}

func (h *Handler) carrierWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		h.responder.BadRequest(c, "could not read request body")
		return
	}
	if err := h.service.HandleCarrierWebhook(c.Request.Context(), rawBody); err != nil {
		h.respondRejected(c, err)
		return
	}
	ack(c)
}

func (h *Handler) respondRejected(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedHeader),
		errors.Is(err, domain.ErrSignatureMismatch),
		errors.Is(err, domain.ErrStaleTimestamp):
		h.responder.Respond(c, sharederrors.ErrBadRequest.WithDetail("invalid signature"))
	case errors.Is(err, domain.ErrUnreadablePayload):
		h.responder.Respond(c, sharederrors.ErrBadRequest.WithDetail("invalid payload"))
	default:
		// The orchestrator isolates downstream failures; anything else here
		// is a programming error, still not the sender's problem.
		ack(c)
	}
}

func ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"received": true})
}
