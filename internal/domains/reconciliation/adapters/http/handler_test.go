package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fraugho/caterpillar-clay/internal/domains/reconciliation/domain"
)

type stubService struct {
	paymentErr error
	carrierErr error
}

func (s *stubService) HandlePaymentWebhook(context.Context, []byte, string) error {
	return s.paymentErr
}

func (s *stubService) HandleCarrierWebhook(context.Context, []byte) error {
	return s.carrierErr
}

func newRouter(service *stubService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(service).Register(router)
	return router
}

func post(t *testing.T, router *gin.Engine, path, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(`{}`)))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestPaymentWebhook_Acknowledged(t *testing.T) {
	router := newRouter(&stubService{})
	recorder := post(t, router, "/webhooks/stripe", "t=1,v1=sig")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"received": true}`, recorder.Body.String())
}

func TestPaymentWebhook_SignatureFailureIs400(t *testing.T) {
	for _, cause := range []error{
		domain.ErrMalformedHeader,
		domain.ErrSignatureMismatch,
		domain.ErrStaleTimestamp,
	} {
		router := newRouter(&stubService{paymentErr: cause})
		recorder := post(t, router, "/webhooks/stripe", "t=1,v1=sig")
		require.Equal(t, http.StatusBadRequest, recorder.Code, "cause %v", cause)
		require.Contains(t, recorder.Header().Get("Content-Type"), "application/problem+json")
	}
}

func TestPaymentWebhook_UnreadablePayloadIs400(t *testing.T) {
	router := newRouter(&stubService{paymentErr: domain.ErrUnreadablePayload})
	recorder := post(t, router, "/webhooks/stripe", "t=1,v1=sig")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCarrierWebhook_Acknowledged(t *testing.T) {
	router := newRouter(&stubService{})
	recorder := post(t, router, "/webhooks/easypost", "")
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestCarrierWebhook_UnreadablePayloadIs400(t *testing.T) {
	router := newRouter(&stubService{carrierErr: domain.ErrUnreadablePayload})
	recorder := post(t, router, "/webhooks/easypost", "")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
