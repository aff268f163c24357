package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nuxtbe/core-api/internal/billing"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
	"github.com/nuxtbe/core-api/pkg/response"
)

// Providers deliver at-least-once; payloads stay small.
const maxWebhookBody = 1 << 20

type billingWebhookService interface {
	HandleWebhook(ctx context.Context, provider string, body []byte, signature string) error
	CustomerPortalURL(ctx context.Context, email, returnURL string) (string, error)
}

// WebhookHandler receives billing provider webhooks.
type WebhookHandler struct {
	billing billingWebhookService
	logger  *zap.Logger
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(billingService billingWebhookService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{billing: billingService, logger: logger}
}

// Receive godoc
// @Summary Receive a billing provider webhook
// @Tags Billing
// @Accept json
// @Param provider path string true "Provider (stripe or lemonsqueezy)"
// @Success 200 {object} response.Envelope
// @Router /webhooks/{provider} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrMalformedEvent, "cannot read webhook body"))
		return
	}

	err = h.billing.HandleWebhook(c.Request.Context(), provider, body, signatureHeader(c, provider))
	if err == nil {
		response.JSON(c, http.StatusOK, gin.H{"received": true}, nil)
		return
	}

	appErr := appErrors.FromError(err)
	if appErr.Code == appErrors.ErrUnprocessableEvent.Code {
		// The failure is recorded; acknowledge so the provider stops
		// retrying a delivery that can never succeed unchanged.
		h.logger.Warn("billing event acknowledged without applying",
			zap.String("provider", provider), zap.String("reason", appErr.Message))
		response.JSON(c, http.StatusOK, gin.H{"received": true, "applied": false}, nil)
		return
	}
	response.Error(c, err)
}

func signatureHeader(c *gin.Context, provider string) string {
	switch provider {
	case billing.ProviderStripe:
		return c.GetHeader("Stripe-Signature")
	case billing.ProviderLemonSqueezy:
		return c.GetHeader("X-Signature")
	default:
		return ""
	}
}

// Portal godoc
// @Summary Get the billing portal URL for the caller's team
// @Tags Billing
// @Produce json
// @Param return_url query string false "URL to return to after the portal"
// @Success 200 {object} response.Envelope
// @Router /billing/portal [get]
func (h *WebhookHandler) Portal(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	url, err := h.billing.CustomerPortalURL(c.Request.Context(), claims.Email, c.Query("return_url"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"url": url}, nil)
}
