package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nuxtbe/core-api/internal/models"
)

const directoryItemColumns = `i.id, i.title, i.description, i.content, i.url, i.image_url, i.thumbnail_url,
        i.featured, i.status, i.user_id, i.views_count, i.likes_count, i.metadata, i.created_at, i.updated_at, i.published_at`

// ItemQuery is the server-side portion of a directory listing: equality
// filters, ordering and an optional page window. Group/tag filtering happens
// in the pipeline after relation flattening.
type ItemQuery struct {
	Status   string
	Featured *bool
	UserID   string

	OrderColumn    string
	OrderAscending bool

	Limit  int
	Offset int
}

// GroupJoinRow is one raw row of the item-group join. RefID/RefName are nil
// when the joined group record is missing.
type GroupJoinRow struct {
	ItemID  string  `db:"item_id"`
	GroupID string  `db:"group_id"`
	RefID   *string `db:"ref_id"`
	RefName *string `db:"ref_name"`
}

// TagJoinRow is one raw row of the item-tag join.
type TagJoinRow struct {
	ItemID  string  `db:"item_id"`
	TagID   string  `db:"tag_id"`
	RefID   *string `db:"ref_id"`
	RefName *string `db:"ref_name"`
}

// DirectoryRepository manages persistence for directory items and their
// relations.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs a DirectoryRepository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

var allowedItemSorts = map[string]string{
	"created_at":   "i.created_at",
	"updated_at":   "i.updated_at",
	"published_at": "i.published_at",
	"title":        "i.title",
	"views_count":  "i.views_count",
	"likes_count":  "i.likes_count",
}

// ListItems returns items matching the query plus the unpaged total count.
func (r *DirectoryRepository) ListItems(ctx context.Context, q ItemQuery) ([]models.DirectoryItem, int, error) {
	base := "FROM directory_items i"
	conditions := []string{"1=1"}
	args := []interface{}{}

	if q.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)+1))
		args = append(args, q.Status)
	}
	if q.Featured != nil {
		conditions = append(conditions, fmt.Sprintf("i.featured = $%d", len(args)+1))
		args = append(args, *q.Featured)
	}
	if q.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("i.user_id = $%d", len(args)+1))
		args = append(args, q.UserID)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	column, ok := allowedItemSorts[q.OrderColumn]
	if !ok {
		column = "i.created_at"
	}
	order := "DESC"
	if q.OrderAscending {
		order = "ASC"
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s", directoryItemColumns, base, column, order)
	if q.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d OFFSET %d", query, q.Limit, q.Offset)
	}

	var items []models.DirectoryItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list directory items: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count directory items: %w", err)
	}

	return items, total, nil
}

// SearchItems delegates to the partial-text-search function. Rows come back
// unfiltered and unsorted; the pipeline applies the same post-processing as
// the browse path.
func (r *DirectoryRepository) SearchItems(ctx context.Context, term string) ([]models.DirectoryItem, error) {
	var items []models.DirectoryItem
	query := fmt.Sprintf("SELECT %s FROM directory_partial_search($1) i", directoryItemColumns)
	if err := r.db.SelectContext(ctx, &items, query, term); err != nil {
		return nil, fmt.Errorf("directory partial search: %w", err)
	}
	return items, nil
}

// GroupJoins loads the raw group join rows for the given item ids.
func (r *DirectoryRepository) GroupJoins(ctx context.Context, itemIDs []string) ([]GroupJoinRow, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ig.item_id, ig.group_id, g.id AS ref_id, g.name AS ref_name
        FROM directory_items_groups ig
        LEFT JOIN directory_groups g ON g.id = ig.group_id
        WHERE ig.item_id = ANY($1)`
	var rows []GroupJoinRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(itemIDs)); err != nil {
		return nil, fmt.Errorf("load group joins: %w", err)
	}
	return rows, nil
}

// TagJoins loads the raw tag join rows for the given item ids.
func (r *DirectoryRepository) TagJoins(ctx context.Context, itemIDs []string) ([]TagJoinRow, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT it.item_id, it.tag_id, t.id AS ref_id, t.name AS ref_name
        FROM directory_items_tags it
        LEFT JOIN directory_tags t ON t.id = it.tag_id
        WHERE it.item_id = ANY($1)`
	var rows []TagJoinRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(itemIDs)); err != nil {
		return nil, fmt.Errorf("load tag joins: %w", err)
	}
	return rows, nil
}

// FindByID fetches a single item without relations.
func (r *DirectoryRepository) FindByID(ctx context.Context, id string) (*models.DirectoryItem, error) {
	query := fmt.Sprintf("SELECT %s FROM directory_items i WHERE i.id = $1", directoryItemColumns)
	var item models.DirectoryItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find directory item: %w", err)
	}
	return &item, nil
}

// CreateItem calls the atomic stored procedure handling the item row and its
// group/tag associations together.
func (r *DirectoryRepository) CreateItem(ctx context.Context, itemData json.RawMessage, groupIDs, tagIDs []string) (string, error) {
	if groupIDs == nil {
		groupIDs = []string{}
	}
	if tagIDs == nil {
		tagIDs = []string{}
	}
	var id string
	const query = "SELECT create_directory_item($1, $2, $3)"
	if err := r.db.GetContext(ctx, &id, query, itemData, pq.Array(groupIDs), pq.Array(tagIDs)); err != nil {
		return "", fmt.Errorf("create directory item: %w", err)
	}
	return id, nil
}

// UpdateItem calls the atomic stored procedure. Nil group/tag slices leave
// the associations untouched.
func (r *DirectoryRepository) UpdateItem(ctx context.Context, id string, updates json.RawMessage, groupIDs, tagIDs []string) (string, error) {
	var updated string
	const query = "SELECT update_directory_item($1, $2, $3, $4)"
	if err := r.db.GetContext(ctx, &updated, query, id, updates, pq.Array(groupIDs), pq.Array(tagIDs)); err != nil {
		return "", fmt.Errorf("update directory item: %w", err)
	}
	return updated, nil
}

// DeleteItem removes an item; join rows cascade.
func (r *DirectoryRepository) DeleteItem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM directory_items WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete directory item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete directory item: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListGroups returns all groups ordered by name.
func (r *DirectoryRepository) ListGroups(ctx context.Context) ([]models.DirectoryGroup, error) {
	var groups []models.DirectoryGroup
	if err := r.db.SelectContext(ctx, &groups, "SELECT id, name FROM directory_groups ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list directory groups: %w", err)
	}
	return groups, nil
}

// ListTags returns all tags ordered by name.
func (r *DirectoryRepository) ListTags(ctx context.Context) ([]models.DirectoryTag, error) {
	var tags []models.DirectoryTag
	if err := r.db.SelectContext(ctx, &tags, "SELECT id, name FROM directory_tags ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list directory tags: %w", err)
	}
	return tags, nil
}

// ExportRows returns every published item flattened for export files.
func (r *DirectoryRepository) ExportRows(ctx context.Context) ([]models.DirectoryItem, error) {
	query := fmt.Sprintf("SELECT %s FROM directory_items i WHERE i.status = $1 ORDER BY i.created_at DESC", directoryItemColumns)
	var items []models.DirectoryItem
	if err := r.db.SelectContext(ctx, &items, query, models.StatusPublished); err != nil {
		return nil, fmt.Errorf("export directory items: %w", err)
	}
	return items, nil
}
