package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nuxtbe/core-api/internal/models"
)

// InteractionRepository manages likes, saves and view records.
type InteractionRepository struct {
	db *sqlx.DB
}

// NewInteractionRepository constructs an InteractionRepository.
func NewInteractionRepository(db *sqlx.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// ToggleLike flips the like state for (userID, itemID). The interaction row
// and the counter update run in one transaction so the count never drifts
// from the rows. Returns the resulting liked state.
func (r *InteractionRepository) ToggleLike(ctx context.Context, userID, itemID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin like toggle: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.GetContext(ctx, &existingID,
		`SELECT id FROM directory_user_interactions
         WHERE user_id = $1 AND item_id = $2 AND interaction_type = $3
         FOR UPDATE`,
		userID, itemID, models.InteractionLike)

	liked := false
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO directory_user_interactions (user_id, item_id, interaction_type)
             VALUES ($1, $2, $3)`,
			userID, itemID, models.InteractionLike); err != nil {
			return false, fmt.Errorf("insert like: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "SELECT increment_likes_count($1)", itemID); err != nil {
			return false, fmt.Errorf("increment likes count: %w", err)
		}
		liked = true
	case err != nil:
		return false, fmt.Errorf("lookup like: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM directory_user_interactions WHERE id = $1", existingID); err != nil {
			return false, fmt.Errorf("delete like: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "SELECT decrement_likes_count($1)", itemID); err != nil {
			return false, fmt.Errorf("decrement likes count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit like toggle: %w", err)
	}
	return liked, nil
}

// ToggleSave flips the save state for (userID, itemID). Saves have no
// counter, so no RPC is involved.
func (r *InteractionRepository) ToggleSave(ctx context.Context, userID, itemID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin save toggle: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.GetContext(ctx, &existingID,
		`SELECT id FROM directory_user_interactions
         WHERE user_id = $1 AND item_id = $2 AND interaction_type = $3
         FOR UPDATE`,
		userID, itemID, models.InteractionSave)

	saved := false
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO directory_user_interactions (user_id, item_id, interaction_type)
             VALUES ($1, $2, $3)`,
			userID, itemID, models.InteractionSave); err != nil {
			return false, fmt.Errorf("insert save: %w", err)
		}
		saved = true
	case err != nil:
		return false, fmt.Errorf("lookup save: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM directory_user_interactions WHERE id = $1", existingID); err != nil {
			return false, fmt.Errorf("delete save: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit save toggle: %w", err)
	}
	return saved, nil
}

// RecordView bumps the view counter, writing an interaction row only for
// authenticated users whose last view of the item is older than the dedup
// window. Anonymous views always count.
func (r *InteractionRepository) RecordView(ctx context.Context, userID, itemID string, window time.Duration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin view: %w", err)
	}
	defer tx.Rollback()

	if userID != "" {
		var recent int
		err = tx.GetContext(ctx, &recent,
			`SELECT COUNT(*) FROM directory_user_interactions
             WHERE user_id = $1 AND item_id = $2 AND interaction_type = $3
               AND created_at > $4`,
			userID, itemID, models.InteractionView, time.Now().Add(-window))
		if err != nil {
			return fmt.Errorf("lookup recent view: %w", err)
		}
		if recent > 0 {
			return tx.Commit()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO directory_user_interactions (user_id, item_id, interaction_type)
             VALUES ($1, $2, $3)`,
			userID, itemID, models.InteractionView); err != nil {
			return fmt.Errorf("insert view: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "SELECT increment_views_count($1)", itemID); err != nil {
		return fmt.Errorf("increment views count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit view: %w", err)
	}
	return nil
}

// UserItemStates returns the interaction types the user has on the given
// items, keyed by item id. Used to decorate listings with liked/saved flags.
func (r *InteractionRepository) UserItemStates(ctx context.Context, userID string, itemIDs []string) (map[string][]models.InteractionType, error) {
	if userID == "" || len(itemIDs) == 0 {
		return map[string][]models.InteractionType{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT item_id, interaction_type FROM directory_user_interactions
         WHERE user_id = ? AND item_id IN (?) AND interaction_type != 'view'`,
		userID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("build interaction lookup: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []struct {
		ItemID string                 `db:"item_id"`
		Type   models.InteractionType `db:"interaction_type"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}

	states := make(map[string][]models.InteractionType, len(rows))
	for _, row := range rows {
		states[row.ItemID] = append(states[row.ItemID], row.Type)
	}
	return states, nil
}
