package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nuxtbe/core-api/internal/models"
)

const commentColumns = `c.id, c.item_id, c.content, c.created_at,
        p.profile_id AS author_id, p.email AS author_email, p.full_name AS author_full_name, p.avatar_url AS author_avatar_url`

// CommentRepository manages directory item comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs a CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByItem returns an item's comments newest first, with author profiles
// joined in.
func (r *CommentRepository) ListByItem(ctx context.Context, itemID string) ([]models.DirectoryComment, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM directory_comments c
        JOIN profiles p ON p.profile_id = c.user_id
        WHERE c.item_id = $1
        ORDER BY c.created_at DESC`, commentColumns)

	var comments []models.DirectoryComment
	if err := r.db.SelectContext(ctx, &comments, query, itemID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Add inserts a comment and returns it with the author joined.
func (r *CommentRepository) Add(ctx context.Context, itemID, userID, content string) (*models.DirectoryComment, error) {
	var id string
	err := r.db.GetContext(ctx, &id,
		`INSERT INTO directory_comments (item_id, user_id, content)
         VALUES ($1, $2, $3) RETURNING id`,
		itemID, userID, content)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s
        FROM directory_comments c
        JOIN profiles p ON p.profile_id = c.user_id
        WHERE c.id = $1`, commentColumns)

	var comment models.DirectoryComment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		return nil, fmt.Errorf("load comment: %w", err)
	}
	return &comment, nil
}

// Delete removes a comment owned by the given user. Admins pass an empty
// userID to skip the ownership check.
func (r *CommentRepository) Delete(ctx context.Context, commentID, userID string) (bool, error) {
	query := "DELETE FROM directory_comments WHERE id = $1"
	args := []interface{}{commentID}
	if userID != "" {
		query += " AND user_id = $2"
		args = append(args, userID)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	return affected > 0, nil
}
