package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/nuxtbe/core-api/pkg/errors"
)

// ProductResolver fetches the purchased product id for a checkout session
// when the webhook payload does not carry it inline. Implementations must
// bound the call with the supplied context.
type ProductResolver interface {
	CheckoutProductID(ctx context.Context, sessionID string) (string, error)
}

// StripeAdapter verifies Stripe-Signature headers and normalizes the three
// subscription lifecycle events the reconciler consumes.
type StripeAdapter struct {
	secret    []byte
	tolerance time.Duration
	resolver  ProductResolver
	timeout   time.Duration
	now       func() time.Time
}

// NewStripeAdapter constructs the adapter. resolver may be nil when checkout
// payloads are trusted to carry product metadata.
func NewStripeAdapter(secret string, tolerance time.Duration, resolver ProductResolver, timeout time.Duration) *StripeAdapter {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeAdapter{
		secret:    []byte(secret),
		tolerance: tolerance,
		resolver:  resolver,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Provider implements Adapter.
func (a *StripeAdapter) Provider() string { return ProviderStripe }

type stripeEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	Customer          string `json:"customer"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID                  string `json:"id"`
	Customer            string `json:"customer"`
	CancelAt            *int64 `json:"cancel_at"`
	CancellationDetails struct {
		Reason string `json:"reason"`
	} `json:"cancellation_details"`
	Items struct {
		Data []struct {
			Price struct {
				Product string `json:"product"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// Parse implements Adapter.
func (a *StripeAdapter) Parse(body []byte, signatureHeader string) (*Event, error) {
	if err := a.verifySignature(body, signatureHeader); err != nil {
		return nil, err
	}

	var envelope stripeEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedEvent.Code, appErrors.ErrMalformedEvent.Status, "invalid stripe event body")
	}
	if envelope.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrMalformedEvent, "stripe event id missing")
	}

	occurred := time.Unix(envelope.Created, 0).UTC()

	switch envelope.Type {
	case "checkout.session.completed":
		return a.normalizeCheckout(envelope, occurred)
	case "customer.subscription.updated":
		return a.normalizeSubscription(envelope, KindSubscriptionUpdated, occurred)
	case "customer.subscription.deleted":
		return a.normalizeSubscription(envelope, KindSubscriptionDeleted, occurred)
	default:
		return nil, nil
	}
}

func (a *StripeAdapter) normalizeCheckout(envelope stripeEnvelope, occurred time.Time) (*Event, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(envelope.Data.Object, &session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedEvent.Code, appErrors.ErrMalformedEvent.Status, "invalid checkout session payload")
	}

	productID := session.Metadata["product_id"]
	if productID == "" && a.resolver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		resolved, err := a.resolver.CheckoutProductID(ctx, session.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "resolve checkout product")
		}
		productID = resolved
	}

	return &Event{
		Provider:   ProviderStripe,
		ID:         envelope.ID,
		Kind:       KindCheckoutCompleted,
		RawType:    envelope.Type,
		TeamRef:    session.ClientReferenceID,
		CustomerID: session.Customer,
		Email:      session.CustomerDetails.Email,
		ProductID:  productID,
		OccurredAt: occurred,
	}, nil
}

func (a *StripeAdapter) normalizeSubscription(envelope stripeEnvelope, kind EventKind, occurred time.Time) (*Event, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(envelope.Data.Object, &sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedEvent.Code, appErrors.ErrMalformedEvent.Status, "invalid subscription payload")
	}

	event := &Event{
		Provider:     ProviderStripe,
		ID:           envelope.ID,
		Kind:         kind,
		RawType:      envelope.Type,
		CustomerID:   sub.Customer,
		CancelReason: sub.CancellationDetails.Reason,
		OccurredAt:   occurred,
	}
	if len(sub.Items.Data) > 0 {
		event.ProductID = sub.Items.Data[0].Price.Product
	}
	if sub.CancelAt != nil {
		cancelAt := time.Unix(*sub.CancelAt, 0).UTC()
		event.CancelAt = &cancelAt
	}
	return event, nil
}

// verifySignature checks the Stripe-Signature header: HMAC-SHA256 over
// "<timestamp>.<body>", constant-time compared against every v1 candidate,
// with the timestamp bounded by the configured tolerance.
func (a *StripeAdapter) verifySignature(body []byte, header string) error {
	if header == "" {
		return appErrors.Clone(appErrors.ErrInvalidSignature, "missing stripe signature header")
	}

	var timestamp int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			ts, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return appErrors.Clone(appErrors.ErrInvalidSignature, "invalid stripe signature timestamp")
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, pair[1])
		}
	}

	if timestamp == 0 || len(candidates) == 0 {
		return appErrors.Clone(appErrors.ErrInvalidSignature, "malformed stripe signature header")
	}

	age := a.now().Sub(time.Unix(timestamp, 0))
	if age > a.tolerance || age < -a.tolerance {
		return appErrors.Clone(appErrors.ErrInvalidSignature, "stripe signature timestamp outside tolerance")
	}

	signedPayload := fmt.Sprintf("%d.%s", timestamp, body)
	for _, candidate := range candidates {
		if verifyHex(a.secret, []byte(signedPayload), candidate) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrInvalidSignature, "stripe signature mismatch")
}
