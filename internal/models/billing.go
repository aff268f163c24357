package models

import "time"

// Profile mirrors the auth provider's user record plus billing linkage.
type Profile struct {
	ProfileID         string    `db:"profile_id" json:"profile_id"`
	Email             string    `db:"email" json:"email"`
	FullName          *string   `db:"full_name" json:"full_name,omitempty"`
	AvatarURL         *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	PaymentCustomerID *string   `db:"payment_customer_id" json:"payment_customer_id,omitempty"`
	IsSubscribed      bool      `db:"is_subscribed" json:"is_subscribed"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Team is the billing subject: exactly one open plan row at a time.
type Team struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	OwnerProfileID    string    `db:"owner_profile_id" json:"owner_profile_id"`
	PaymentCustomerID *string   `db:"payment_customer_id" json:"payment_customer_id,omitempty"`
	IsSubscribed      bool      `db:"is_subscribed" json:"is_subscribed"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Plan is a purchasable product recognized by the reconciler.
type Plan struct {
	ID        string    `db:"id" json:"id"`
	ProductID string    `db:"product_id" json:"product_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Plan end reasons recorded when a team_plans row is closed.
const (
	EndReasonUpgrade  = "upgrade"
	EndReasonCanceled = "canceled"
	EndReasonExpired  = "expired"
)

// TeamPlan is one historized plan assignment. A nil EndedAt marks the
// currently active plan.
type TeamPlan struct {
	ID        string     `db:"id" json:"id"`
	TeamID    string     `db:"team_id" json:"team_id"`
	PlanID    string     `db:"plan_id" json:"plan_id"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	EndReason *string    `db:"end_reason" json:"end_reason,omitempty"`
}

// Ledger statuses for processed webhook events.
const (
	BillingEventApplied = "applied"
	BillingEventFailed  = "failed"
)

// BillingEventRecord is one row of the idempotency ledger.
type BillingEventRecord struct {
	Provider   string    `db:"provider" json:"provider"`
	EventID    string    `db:"event_id" json:"event_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	Status     string    `db:"status" json:"status"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
}
