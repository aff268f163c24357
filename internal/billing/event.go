package billing

import "time"

// EventKind is the provider-agnostic classification of a webhook event.
type EventKind string

const (
	KindCheckoutCompleted   EventKind = "checkout_completed"
	KindSubscriptionUpdated EventKind = "subscription_updated"
	KindSubscriptionDeleted EventKind = "subscription_deleted"
)

// Provider identifiers recorded in the idempotency ledger.
const (
	ProviderStripe       = "stripe"
	ProviderLemonSqueezy = "lemonsqueezy"
)

// Event is a normalized billing event. Adapters translate raw provider
// payloads into this shape; reconciliation logic runs once against it.
type Event struct {
	Provider string
	ID       string // provider event id, idempotency key
	Kind     EventKind
	RawType  string // provider's own event type, kept for the ledger

	// Target resolution, in priority order: TeamRef (client reference id
	// embedded at checkout), then CustomerID, then Email.
	TeamRef    string
	CustomerID string
	Email      string

	ProductID string

	// CancelAt carries a scheduled future close; CancelReason the
	// provider-supplied reason string, if any.
	CancelAt     *time.Time
	CancelReason string

	OccurredAt time.Time
}

// Adapter verifies and normalizes raw webhook deliveries for one provider.
type Adapter interface {
	Provider() string
	// Parse verifies the signature against the raw body and returns the
	// normalized event. A nil event with nil error means the event type is
	// not one the reconciler handles and should be acknowledged untouched.
	Parse(body []byte, signatureHeader string) (*Event, error)
}
