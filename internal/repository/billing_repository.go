package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nuxtbe/core-api/internal/models"
)

// BillingTx exposes the row-level billing operations available inside one
// reconciliation transaction. Either every write in the transaction lands or
// none does, the ledger row included.
type BillingTx interface {
	// RecordEvent inserts the ledger row for (provider, eventID). Returns
	// false when the event was already recorded, in which case the caller
	// must skip the transition.
	RecordEvent(ctx context.Context, provider, eventID, eventType string) (bool, error)

	FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	CreateProfile(ctx context.Context, email string) (*models.Profile, error)

	FindTeamByID(ctx context.Context, id string) (*models.Team, error)
	FindTeamByCustomerID(ctx context.Context, customerID string) (*models.Team, error)
	FindTeamForProfile(ctx context.Context, profileID string) (*models.Team, error)
	CreateTeam(ctx context.Context, name, ownerProfileID string) (*models.Team, error)
	SetTeamSubscription(ctx context.Context, teamID string, subscribed bool, customerID *string) error

	FindPlanByProductID(ctx context.Context, productID string) (*models.Plan, error)
	OpenPlan(ctx context.Context, teamID string) (*models.TeamPlan, error)
	CloseOpenPlans(ctx context.Context, teamID string, endedAt time.Time, reason string) (int, error)
	InsertTeamPlan(ctx context.Context, teamID, planID string) error
	ScheduleOpenPlanEnd(ctx context.Context, teamID string, endedAt time.Time, reason string) error
}

// BillingStore is the persistence surface the reconciliation service depends
// on.
type BillingStore interface {
	Transact(ctx context.Context, fn func(BillingTx) error) error
	MarkEventFailed(ctx context.Context, provider, eventID, eventType, reason string) error
	LedgerEntry(ctx context.Context, provider, eventID string) (*models.BillingEventRecord, error)
}

// BillingRepository implements BillingStore on Postgres.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository constructs a BillingRepository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// Transact runs fn inside a transaction, rolling back on error.
func (r *BillingRepository) Transact(ctx context.Context, fn func(BillingTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin billing tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&billingTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit billing tx: %w", err)
	}
	return nil
}

// MarkEventFailed records a failed event outside any transition transaction,
// so the record survives the rollback of the transition itself. A later
// successful redelivery overwrites the failure.
func (r *BillingRepository) MarkEventFailed(ctx context.Context, provider, eventID, eventType, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO billing_events (provider, event_id, event_type, status, reason)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (provider, event_id) DO UPDATE
             SET status = EXCLUDED.status, reason = EXCLUDED.reason
             WHERE billing_events.status = $4`,
		provider, eventID, eventType, models.BillingEventFailed, reason)
	if err != nil {
		return fmt.Errorf("record failed event: %w", err)
	}
	return nil
}

// LedgerEntry returns the ledger row for (provider, eventID), or nil.
func (r *BillingRepository) LedgerEntry(ctx context.Context, provider, eventID string) (*models.BillingEventRecord, error) {
	var record models.BillingEventRecord
	err := r.db.GetContext(ctx, &record,
		`SELECT provider, event_id, event_type, status, reason, received_at
         FROM billing_events WHERE provider = $1 AND event_id = $2`,
		provider, eventID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup ledger entry: %w", err)
	}
	return &record, nil
}

// TeamByOwnerEmail resolves the team owned by the profile with this email
// outside a transaction. Used by the customer portal endpoint.
func (r *BillingRepository) TeamByOwnerEmail(ctx context.Context, email string) (*models.Team, error) {
	var team models.Team
	err := r.db.GetContext(ctx, &team,
		`SELECT t.id, t.name, t.owner_profile_id, t.payment_customer_id, t.is_subscribed, t.created_at, t.updated_at
         FROM teams t
         JOIN profiles p ON p.profile_id = t.owner_profile_id
         WHERE p.email = $1`,
		email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup team by owner email: %w", err)
	}
	return &team, nil
}

type billingTx struct {
	tx *sqlx.Tx
}

const teamColumns = "id, name, owner_profile_id, payment_customer_id, is_subscribed, created_at, updated_at"

func (t *billingTx) RecordEvent(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	// A row in failed status does not block redelivery: the retry gets to
	// run the transition again and flips the row back to applied.
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO billing_events (provider, event_id, event_type, status)
         VALUES ($1, $2, $3, $4)
         ON CONFLICT (provider, event_id) DO UPDATE
         SET status = EXCLUDED.status, reason = NULL
         WHERE billing_events.status = $5`,
		provider, eventID, eventType, models.BillingEventApplied, models.BillingEventFailed)
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	return affected > 0, nil
}

func (t *billingTx) FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := t.tx.GetContext(ctx, &profile,
		`SELECT profile_id, email, full_name, avatar_url, payment_customer_id, is_subscribed, created_at, updated_at
         FROM profiles WHERE email = $1`,
		email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile by email: %w", err)
	}
	return &profile, nil
}

func (t *billingTx) CreateProfile(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := t.tx.GetContext(ctx, &profile,
		`INSERT INTO profiles (email) VALUES ($1)
         RETURNING profile_id, email, full_name, avatar_url, payment_customer_id, is_subscribed, created_at, updated_at`,
		email)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &profile, nil
}

func (t *billingTx) FindTeamByID(ctx context.Context, id string) (*models.Team, error) {
	return t.findTeam(ctx, "id = $1", id)
}

func (t *billingTx) FindTeamByCustomerID(ctx context.Context, customerID string) (*models.Team, error) {
	return t.findTeam(ctx, "payment_customer_id = $1", customerID)
}

func (t *billingTx) FindTeamForProfile(ctx context.Context, profileID string) (*models.Team, error) {
	return t.findTeam(ctx, "owner_profile_id = $1", profileID)
}

func (t *billingTx) findTeam(ctx context.Context, condition string, arg interface{}) (*models.Team, error) {
	var team models.Team
	query := fmt.Sprintf("SELECT %s FROM teams WHERE %s", teamColumns, condition)
	err := t.tx.GetContext(ctx, &team, query, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	return &team, nil
}

func (t *billingTx) CreateTeam(ctx context.Context, name, ownerProfileID string) (*models.Team, error) {
	var team models.Team
	query := fmt.Sprintf(
		"INSERT INTO teams (name, owner_profile_id) VALUES ($1, $2) RETURNING %s", teamColumns)
	if err := t.tx.GetContext(ctx, &team, query, name, ownerProfileID); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}
	return &team, nil
}

func (t *billingTx) SetTeamSubscription(ctx context.Context, teamID string, subscribed bool, customerID *string) error {
	var err error
	if customerID != nil {
		_, err = t.tx.ExecContext(ctx,
			`UPDATE teams SET is_subscribed = $2, payment_customer_id = $3, updated_at = now() WHERE id = $1`,
			teamID, subscribed, *customerID)
	} else {
		_, err = t.tx.ExecContext(ctx,
			`UPDATE teams SET is_subscribed = $2, updated_at = now() WHERE id = $1`,
			teamID, subscribed)
	}
	if err != nil {
		return fmt.Errorf("update team subscription: %w", err)
	}
	return nil
}

func (t *billingTx) FindPlanByProductID(ctx context.Context, productID string) (*models.Plan, error) {
	var plan models.Plan
	err := t.tx.GetContext(ctx, &plan,
		"SELECT id, product_id, name, created_at FROM plans WHERE product_id = $1",
		productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}
	return &plan, nil
}

func (t *billingTx) OpenPlan(ctx context.Context, teamID string) (*models.TeamPlan, error) {
	var plan models.TeamPlan
	err := t.tx.GetContext(ctx, &plan,
		`SELECT id, team_id, plan_id, started_at, ended_at, end_reason
         FROM team_plans WHERE team_id = $1 AND ended_at IS NULL`,
		teamID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open plan: %w", err)
	}
	return &plan, nil
}

func (t *billingTx) CloseOpenPlans(ctx context.Context, teamID string, endedAt time.Time, reason string) (int, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE team_plans SET ended_at = $2, end_reason = $3
         WHERE team_id = $1 AND ended_at IS NULL`,
		teamID, endedAt, reason)
	if err != nil {
		return 0, fmt.Errorf("close open plans: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close open plans: %w", err)
	}
	return int(affected), nil
}

func (t *billingTx) InsertTeamPlan(ctx context.Context, teamID, planID string) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO team_plans (team_id, plan_id) VALUES ($1, $2)",
		teamID, planID)
	if err != nil {
		return fmt.Errorf("insert team plan: %w", err)
	}
	return nil
}

func (t *billingTx) ScheduleOpenPlanEnd(ctx context.Context, teamID string, endedAt time.Time, reason string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE team_plans SET ended_at = $2, end_reason = $3
         WHERE team_id = $1 AND ended_at IS NULL`,
		teamID, endedAt, reason)
	if err != nil {
		return fmt.Errorf("schedule plan end: %w", err)
	}
	return nil
}
