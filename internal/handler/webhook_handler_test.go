package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/nuxtbe/core-api/internal/middleware"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
)

type billingServiceMock struct {
	err           error
	portalURL     string
	lastProvider  string
	lastBody      []byte
	lastSignature string
	lastEmail     string
	lastReturnURL string
}

func (m *billingServiceMock) HandleWebhook(_ context.Context, provider string, body []byte, signature string) error {
	m.lastProvider = provider
	m.lastBody = body
	m.lastSignature = signature
	return m.err
}

func (m *billingServiceMock) CustomerPortalURL(_ context.Context, email, returnURL string) (string, error) {
	m.lastEmail = email
	m.lastReturnURL = returnURL
	if m.err != nil {
		return "", m.err
	}
	return m.portalURL, nil
}

func newWebhookTestContext(t *testing.T, provider string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	c, w := newDirectoryTestContext(t, http.MethodPost, "/webhooks/"+provider, body)
	c.Params = gin.Params{{Key: "provider", Value: provider}}
	return c, w
}

func TestWebhookReceiveAppliedEvent(t *testing.T) {
	mock := &billingServiceMock{}
	h := NewWebhookHandler(mock, nil)

	c, w := newWebhookTestContext(t, "stripe", []byte(`{"id":"evt_1"}`))
	c.Request.Header.Set("Stripe-Signature", "t=1,v1=abc")

	h.Receive(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received":true`)
	assert.Equal(t, "stripe", mock.lastProvider)
	assert.Equal(t, `{"id":"evt_1"}`, string(mock.lastBody))
	assert.Equal(t, "t=1,v1=abc", mock.lastSignature)
}

func TestWebhookReceiveLemonSqueezySignatureHeader(t *testing.T) {
	mock := &billingServiceMock{}
	h := NewWebhookHandler(mock, nil)

	c, _ := newWebhookTestContext(t, "lemonsqueezy", []byte(`{}`))
	c.Request.Header.Set("X-Signature", "deadbeef")

	h.Receive(c)

	assert.Equal(t, "deadbeef", mock.lastSignature)
}

func TestWebhookReceiveInvalidSignature(t *testing.T) {
	mock := &billingServiceMock{err: appErrors.Clone(appErrors.ErrInvalidSignature, "signature verification failed")}
	h := NewWebhookHandler(mock, nil)

	c, w := newWebhookTestContext(t, "stripe", []byte(`{}`))

	h.Receive(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookReceiveUnprocessableEventAcknowledged(t *testing.T) {
	mock := &billingServiceMock{err: appErrors.Clone(appErrors.ErrUnprocessableEvent, "unknown product \"prod_x\"")}
	h := NewWebhookHandler(mock, nil)

	c, w := newWebhookTestContext(t, "stripe", []byte(`{}`))

	h.Receive(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"applied":false`)
	assert.Contains(t, w.Body.String(), `"received":true`)
}

func TestWebhookReceiveInfrastructureFailure(t *testing.T) {
	mock := &billingServiceMock{err: appErrors.Wrap(assert.AnError, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "billing reconciliation failed")}
	h := NewWebhookHandler(mock, nil)

	c, w := newWebhookTestContext(t, "stripe", []byte(`{}`))

	h.Receive(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookPortalRequiresAuth(t *testing.T) {
	mock := &billingServiceMock{}
	h := NewWebhookHandler(mock, nil)

	c, w := newDirectoryTestContext(t, http.MethodGet, "/billing/portal", nil)

	h.Portal(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, mock.lastEmail)
}

func TestWebhookPortalReturnsURL(t *testing.T) {
	mock := &billingServiceMock{portalURL: "https://billing.example.com/p/session"}
	h := NewWebhookHandler(mock, nil)

	c, w := newDirectoryTestContext(t, http.MethodGet, "/billing/portal?return_url=https%3A%2F%2Fapp.example.com", nil)
	c.Set(middleware.ContextUserKey, userClaims("user-1"))

	h.Portal(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://billing.example.com/p/session")
	assert.Equal(t, "user-1@example.com", mock.lastEmail)
	assert.Equal(t, "https://app.example.com", mock.lastReturnURL)
}
