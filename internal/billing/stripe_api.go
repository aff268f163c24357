package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	appErrors "github.com/nuxtbe/core-api/pkg/errors"
)

const stripeAPIBase = "https://api.stripe.com"

// StripeClient resolves checkout line items via the provider API. Every
// request is bounded by both the caller's context and the client timeout.
type StripeClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewStripeClient builds a resolver against the public Stripe API.
func NewStripeClient(apiKey string, timeout time.Duration) *StripeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeClient{
		apiKey:  apiKey,
		baseURL: stripeAPIBase,
		client:  &http.Client{Timeout: timeout},
	}
}

type stripeLineItemsResponse struct {
	Data []struct {
		Price struct {
			Product string `json:"product"`
		} `json:"price"`
	} `json:"data"`
}

// CheckoutProductID implements ProductResolver.
func (c *StripeClient) CheckoutProductID(ctx context.Context, sessionID string) (string, error) {
	url := fmt.Sprintf("%s/v1/checkout/sessions/%s/line_items?limit=1", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "stripe line items request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("stripe line items returned %d", resp.StatusCode))
	}

	var parsed stripeLineItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode stripe line items")
	}
	if len(parsed.Data) == 0 {
		return "", appErrors.Clone(appErrors.ErrUpstream, "checkout session has no line items")
	}
	return parsed.Data[0].Price.Product, nil
}

// CreatePortalSession opens a provider-hosted billing portal session for the
// customer and returns its URL.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	if returnURL != "" {
		form.Set("return_url", returnURL)
	}

	endpoint := c.baseURL + "/v1/billing_portal/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "stripe portal session request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("stripe portal session returned %d", resp.StatusCode))
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode stripe portal session")
	}
	return parsed.URL, nil
}
