package billing

import (
	"encoding/json"
	"strconv"
	"time"

	appErrors "github.com/nuxtbe/core-api/pkg/errors"
)

// LemonSqueezyAdapter verifies X-Signature headers (hex HMAC-SHA256 over the
// raw body) and normalizes order and subscription lifecycle events.
type LemonSqueezyAdapter struct {
	secret []byte
}

func NewLemonSqueezyAdapter(secret string) *LemonSqueezyAdapter {
	return &LemonSqueezyAdapter{secret: []byte(secret)}
}

// Provider implements Adapter.
func (a *LemonSqueezyAdapter) Provider() string { return ProviderLemonSqueezy }

type lemonEnvelope struct {
	Meta struct {
		EventName string            `json:"event_name"`
		EventID   string            `json:"webhook_id"`
		Custom    map[string]string `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string          `json:"id"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
}

type lemonOrderAttributes struct {
	Status         string `json:"status"`
	UserEmail      string `json:"user_email"`
	CustomerID     int64  `json:"customer_id"`
	FirstOrderItem struct {
		ProductID int64 `json:"product_id"`
	} `json:"first_order_item"`
	CreatedAt time.Time `json:"created_at"`
}

type lemonSubscriptionAttributes struct {
	Status     string     `json:"status"`
	UserEmail  string     `json:"user_email"`
	CustomerID int64      `json:"customer_id"`
	ProductID  int64      `json:"product_id"`
	EndsAt     *time.Time `json:"ends_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Parse implements Adapter.
func (a *LemonSqueezyAdapter) Parse(body []byte, signatureHeader string) (*Event, error) {
	if signatureHeader == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidSignature, "missing x-signature header")
	}
	if !verifyHex(a.secret, body, signatureHeader) {
		return nil, appErrors.Clone(appErrors.ErrInvalidSignature, "lemonsqueezy signature mismatch")
	}

	var envelope lemonEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedEvent.Code, appErrors.ErrMalformedEvent.Status, "invalid lemonsqueezy event body")
	}

	eventID := envelope.Meta.EventID
	if eventID == "" {
		// Older webhook payloads carry no webhook_id; the entity id plus
		// event name still dedupes redeliveries of the same notification.
		eventID = envelope.Meta.EventName + ":" + envelope.Data.ID
	}

	switch envelope.Meta.EventName {
	case "order_created":
		return a.normalizeOrder(envelope, eventID)
	case "subscription_plan_changed":
		return a.normalizeSubscription(envelope, eventID, KindSubscriptionUpdated)
	case "subscription_expired":
		return a.normalizeSubscription(envelope, eventID, KindSubscriptionDeleted)
	default:
		return nil, nil
	}
}

func (a *LemonSqueezyAdapter) normalizeOrder(envelope lemonEnvelope, eventID string) (*Event, error) {
	var attrs lemonOrderAttributes
	if err := json.Unmarshal(envelope.Data.Attributes, &attrs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedEvent.Code, appErrors.ErrMalformedEvent.Status, "invalid order payload")
	}

	// Only settled orders grant a plan.
	if attrs.Status != "paid" {
		return nil, nil
	}

	return &Event{
		Provider:   ProviderLemonSqueezy,
		ID:         eventID,
		Kind:       KindCheckoutCompleted,
		RawType:    envelope.Meta.EventName,
		TeamRef:    envelope.Meta.Custom["team_id"],
		CustomerID: strconv.FormatInt(attrs.CustomerID, 10),
		Email:      attrs.UserEmail,
		ProductID:  strconv.FormatInt(attrs.FirstOrderItem.ProductID, 10),
		OccurredAt: attrs.CreatedAt,
	}, nil
}

func (a *LemonSqueezyAdapter) normalizeSubscription(envelope lemonEnvelope, eventID string, kind EventKind) (*Event, error) {
	var attrs lemonSubscriptionAttributes
	if err := json.Unmarshal(envelope.Data.Attributes, &attrs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedEvent.Code, appErrors.ErrMalformedEvent.Status, "invalid subscription payload")
	}

	event := &Event{
		Provider:   ProviderLemonSqueezy,
		ID:         eventID,
		Kind:       kind,
		RawType:    envelope.Meta.EventName,
		TeamRef:    envelope.Meta.Custom["team_id"],
		CustomerID: strconv.FormatInt(attrs.CustomerID, 10),
		Email:      attrs.UserEmail,
		ProductID:  strconv.FormatInt(attrs.ProductID, 10),
		OccurredAt: attrs.CreatedAt,
	}
	if kind == KindSubscriptionUpdated && attrs.EndsAt != nil {
		endsAt := attrs.EndsAt.UTC()
		event.CancelAt = &endsAt
		event.CancelReason = attrs.Status
	}
	if kind == KindSubscriptionDeleted {
		event.CancelReason = "expired"
	}
	return event, nil
}
