package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nuxtbe/core-api/internal/dto"
	"github.com/nuxtbe/core-api/internal/models"
	"github.com/nuxtbe/core-api/internal/repository"
	"github.com/nuxtbe/core-api/pkg/config"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
)

type directoryStore interface {
	ListItems(ctx context.Context, q repository.ItemQuery) ([]models.DirectoryItem, int, error)
	SearchItems(ctx context.Context, term string) ([]models.DirectoryItem, error)
	GroupJoins(ctx context.Context, itemIDs []string) ([]repository.GroupJoinRow, error)
	TagJoins(ctx context.Context, itemIDs []string) ([]repository.TagJoinRow, error)
	FindByID(ctx context.Context, id string) (*models.DirectoryItem, error)
	CreateItem(ctx context.Context, itemData json.RawMessage, groupIDs, tagIDs []string) (string, error)
	UpdateItem(ctx context.Context, id string, updates json.RawMessage, groupIDs, tagIDs []string) (string, error)
	DeleteItem(ctx context.Context, id string) error
	ListGroups(ctx context.Context) ([]models.DirectoryGroup, error)
	ListTags(ctx context.Context) ([]models.DirectoryTag, error)
}

type interactionStore interface {
	ToggleLike(ctx context.Context, userID, itemID string) (bool, error)
	ToggleSave(ctx context.Context, userID, itemID string) (bool, error)
	RecordView(ctx context.Context, userID, itemID string, window time.Duration) error
	UserItemStates(ctx context.Context, userID string, itemIDs []string) (map[string][]models.InteractionType, error)
}

type commentStore interface {
	ListByItem(ctx context.Context, itemID string) ([]models.DirectoryComment, error)
	Add(ctx context.Context, itemID, userID, content string) (*models.DirectoryComment, error)
	Delete(ctx context.Context, commentID, userID string) (bool, error)
}

type cacheMetrics interface {
	CacheHit()
	CacheMiss()
}

// DirectoryService implements the directory listing pipeline: cache lookup,
// relational query or search RPC, relation flattening, group/tag AND
// filtering, sort, pagination and cache store.
type DirectoryService struct {
	repo         directoryStore
	interactions interactionStore
	comments     commentStore
	cache        CacheStore
	metrics      cacheMetrics
	cfg          config.DirectoryConfig
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewDirectoryService constructs the directory service. metrics may be nil.
func NewDirectoryService(
	repo directoryStore,
	interactions interactionStore,
	comments commentStore,
	cache CacheStore,
	metrics cacheMetrics,
	cfg config.DirectoryConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *DirectoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{
		repo:         repo,
		interactions: interactions,
		comments:     comments,
		cache:        cache,
		metrics:      metrics,
		cfg:          cfg,
		validator:    validate,
		logger:       logger,
	}
}

// GetItems returns one processed page of directory items plus the total count
// after filtering. Remote errors propagate; an empty page is never used to
// mask a failed query. Anonymous callers only ever see published items.
func (s *DirectoryService) GetItems(ctx context.Context, filter dto.ItemFilter, authenticated bool) ([]models.DirectoryItem, int, error) {
	if !authenticated {
		filter.Status = string(models.StatusPublished)
	}
	if filter.Limit <= 0 {
		filter.Limit = s.cfg.DefaultPageSize
	}
	if filter.Limit > s.cfg.MaxPageSize {
		filter.Limit = s.cfg.MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Normalize()

	key := CacheKey(filter)
	var cached CachedResult
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		if s.metrics != nil {
			s.metrics.CacheHit()
		}
		return cached.Items, cached.TotalCount, nil
	}
	if err != appErrors.ErrCacheMiss {
		s.logger.Warn("directory cache read failed", zap.String("key", key), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.CacheMiss()
	}

	items, total, err := s.fetchItems(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if err := s.cache.Set(ctx, key, CachedResult{Items: items, TotalCount: total}, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("directory cache write failed", zap.String("key", key), zap.Error(err))
	}
	return items, total, nil
}

func (s *DirectoryService) fetchItems(ctx context.Context, filter dto.ItemFilter) ([]models.DirectoryItem, int, error) {
	relFiltered := len(filter.Groups) > 0 || len(filter.Tags) > 0

	if filter.Search != "" {
		return s.fetchSearch(ctx, filter)
	}

	query := repository.ItemQuery{
		Status:   filter.Status,
		Featured: filter.Featured,
		UserID:   filter.UserID,
	}
	if filter.OrderBy != nil {
		query.OrderColumn = filter.OrderBy.Column
		query.OrderAscending = filter.OrderBy.Ascending
	}
	// Group/tag filters shrink the result set after the relational query, so
	// the page window and total count have to be computed here, not in SQL.
	if !relFiltered {
		query.Limit = filter.Limit
		query.Offset = filter.Offset
	}

	items, total, err := s.repo.ListItems(ctx, query)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list directory items")
	}

	items, err = s.flattenRelations(ctx, items)
	if err != nil {
		return nil, 0, err
	}

	if relFiltered {
		items = filterByRelations(items, filter.Groups, filter.Tags)
		total = len(items)
		items = paginate(items, filter.Limit, filter.Offset)
	}
	return items, total, nil
}

// fetchSearch runs the partial-text-search function and applies the full
// post-processing pipeline so search results and browse results share one
// shape.
func (s *DirectoryService) fetchSearch(ctx context.Context, filter dto.ItemFilter) ([]models.DirectoryItem, int, error) {
	rows, err := s.repo.SearchItems(ctx, filter.Search)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "directory search failed")
	}

	matched := rows[:0:0]
	for _, item := range rows {
		if filter.Status != "" && string(item.Status) != filter.Status {
			continue
		}
		if filter.Featured != nil && item.Featured != *filter.Featured {
			continue
		}
		if filter.UserID != "" && (item.UserID == nil || *item.UserID != filter.UserID) {
			continue
		}
		matched = append(matched, item)
	}

	matched, err = s.flattenRelations(ctx, matched)
	if err != nil {
		return nil, 0, err
	}
	matched = filterByRelations(matched, filter.Groups, filter.Tags)

	sortItems(matched, filter.OrderBy)
	total := len(matched)
	return paginate(matched, filter.Limit, filter.Offset), total, nil
}

// flattenRelations attaches group and tag refs to each item. Join rows whose
// referenced record is missing are dropped. Every item ends up with non-nil
// Groups and Tags slices.
func (s *DirectoryService) flattenRelations(ctx context.Context, items []models.DirectoryItem) ([]models.DirectoryItem, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	groupRows, err := s.repo.GroupJoins(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item groups")
	}
	tagRows, err := s.repo.TagJoins(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item tags")
	}

	groups := make(map[string][]models.GroupRef)
	for _, row := range groupRows {
		if row.RefID == nil || row.RefName == nil {
			continue
		}
		groups[row.ItemID] = append(groups[row.ItemID], models.GroupRef{ID: *row.RefID, Name: *row.RefName})
	}
	tags := make(map[string][]models.TagRef)
	for _, row := range tagRows {
		if row.RefID == nil || row.RefName == nil {
			continue
		}
		tags[row.ItemID] = append(tags[row.ItemID], models.TagRef{ID: *row.RefID, Name: *row.RefName})
	}

	for i := range items {
		items[i].Groups = groups[items[i].ID]
		items[i].Tags = tags[items[i].ID]
		if items[i].Groups == nil {
			items[i].Groups = []models.GroupRef{}
		}
		if items[i].Tags == nil {
			items[i].Tags = []models.TagRef{}
		}
	}
	return items, nil
}

// filterByRelations keeps items belonging to every requested group and every
// requested tag. Intersection, not union.
func filterByRelations(items []models.DirectoryItem, groupIDs, tagIDs []string) []models.DirectoryItem {
	if len(groupIDs) == 0 && len(tagIDs) == 0 {
		return items
	}

	matched := items[:0:0]
	for _, item := range items {
		if !hasAllGroups(item.Groups, groupIDs) || !hasAllTags(item.Tags, tagIDs) {
			continue
		}
		matched = append(matched, item)
	}
	return matched
}

func hasAllGroups(refs []models.GroupRef, wanted []string) bool {
	for _, id := range wanted {
		found := false
		for _, ref := range refs {
			if ref.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasAllTags(refs []models.TagRef, wanted []string) bool {
	for _, id := range wanted {
		found := false
		for _, ref := range refs {
			if ref.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortItems(items []models.DirectoryItem, order *dto.OrderBy) {
	column := "created_at"
	ascending := false
	if order != nil {
		column = order.Column
		ascending = order.Ascending
	}

	sort.SliceStable(items, func(i, j int) bool {
		less := lessByColumn(items[i], items[j], column)
		if ascending {
			return less
		}
		return lessByColumn(items[j], items[i], column)
	})
}

func lessByColumn(a, b models.DirectoryItem, column string) bool {
	switch column {
	case "title":
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	case "views_count":
		return a.ViewsCount < b.ViewsCount
	case "likes_count":
		return a.LikesCount < b.LikesCount
	case "updated_at":
		return a.UpdatedAt.Before(b.UpdatedAt)
	case "published_at":
		if a.PublishedAt == nil {
			return b.PublishedAt != nil
		}
		if b.PublishedAt == nil {
			return false
		}
		return a.PublishedAt.Before(*b.PublishedAt)
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func paginate(items []models.DirectoryItem, limit, offset int) []models.DirectoryItem {
	if offset >= len(items) {
		return []models.DirectoryItem{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// GetItem returns one item with relations attached.
func (s *DirectoryService) GetItem(ctx context.Context, id string) (*models.DirectoryItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load directory item")
	}
	if item == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "directory item not found")
	}

	flattened, err := s.flattenRelations(ctx, []models.DirectoryItem{*item})
	if err != nil {
		return nil, err
	}
	return &flattened[0], nil
}

// GetItemForUser returns one item, decorated with the caller's liked and
// saved state when a user id is provided.
func (s *DirectoryService) GetItemForUser(ctx context.Context, id, userID string) (*models.DirectoryItem, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return item, nil
	}

	states, err := s.interactions.UserItemStates(ctx, userID, []string{item.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interaction state")
	}
	for _, kind := range states[item.ID] {
		switch kind {
		case models.InteractionLike:
			item.Liked = true
		case models.InteractionSave:
			item.Saved = true
		}
	}
	return item, nil
}

// CreateItem validates and persists a new item, then invalidates cached
// listings.
func (s *DirectoryService) CreateItem(ctx context.Context, userID string, req dto.CreateItemRequest) (*models.DirectoryItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	status := req.Status
	if status == "" {
		status = string(models.StatusDraft)
	}

	payload := map[string]interface{}{
		"title":       req.Title,
		"description": req.Description,
		"featured":    req.Featured,
		"status":      status,
		"user_id":     userID,
	}
	if req.Content != nil {
		payload["content"] = *req.Content
	}
	if req.URL != nil {
		payload["url"] = *req.URL
	}
	if req.ImageURL != nil {
		payload["image_url"] = *req.ImageURL
	}
	if req.ThumbnailURL != nil {
		payload["thumbnail_url"] = *req.ThumbnailURL
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal item payload: %w", err)
	}

	id, err := s.repo.CreateItem(ctx, data, req.GroupIDs, req.TagIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create directory item")
	}

	s.invalidateListings(ctx)
	return s.GetItem(ctx, id)
}

// UpdateItem validates and applies a partial update, then invalidates cached
// listings. Nil group/tag id lists leave associations untouched.
func (s *DirectoryService) UpdateItem(ctx context.Context, id string, req dto.UpdateItemRequest) (*models.DirectoryItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.URL != nil {
		updates["url"] = *req.URL
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.ThumbnailURL != nil {
		updates["thumbnail_url"] = *req.ThumbnailURL
	}
	if req.Featured != nil {
		updates["featured"] = *req.Featured
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if len(req.Metadata) > 0 {
		updates["metadata"] = req.Metadata
	}

	data, err := json.Marshal(updates)
	if err != nil {
		return nil, fmt.Errorf("marshal item updates: %w", err)
	}

	if _, err := s.repo.UpdateItem(ctx, id, data, req.GroupIDs, req.TagIDs); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "directory item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update directory item")
	}

	s.invalidateListings(ctx)
	return s.GetItem(ctx, id)
}

// DeleteItem removes an item and invalidates cached listings.
func (s *DirectoryService) DeleteItem(ctx context.Context, id string) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "directory item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete directory item")
	}
	s.invalidateListings(ctx)
	return nil
}

// ToggleLike flips the caller's like and returns the new state. Cached
// listings carry like counts, so they are invalidated.
func (s *DirectoryService) ToggleLike(ctx context.Context, userID, itemID string) (bool, error) {
	liked, err := s.interactions.ToggleLike(ctx, userID, itemID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle like")
	}
	s.invalidateListings(ctx)
	return liked, nil
}

// ToggleSave flips the caller's save and returns the new state.
func (s *DirectoryService) ToggleSave(ctx context.Context, userID, itemID string) (bool, error) {
	saved, err := s.interactions.ToggleSave(ctx, userID, itemID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle save")
	}
	return saved, nil
}

// RecordView bumps the item's view counter, deduplicated per user within the
// configured window. userID may be empty for anonymous views.
func (s *DirectoryService) RecordView(ctx context.Context, userID, itemID string) error {
	if err := s.interactions.RecordView(ctx, userID, itemID, s.cfg.ViewDedupWindow); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record view")
	}
	return nil
}

// ListGroups returns all directory groups.
func (s *DirectoryService) ListGroups(ctx context.Context) ([]models.DirectoryGroup, error) {
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// ListTags returns all directory tags.
func (s *DirectoryService) ListTags(ctx context.Context) ([]models.DirectoryTag, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tags")
	}
	return tags, nil
}

// ListComments returns an item's comments.
func (s *DirectoryService) ListComments(ctx context.Context, itemID string) ([]models.DirectoryComment, error) {
	comments, err := s.comments.ListByItem(ctx, itemID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}

// AddComment validates and posts a comment on an item.
func (s *DirectoryService) AddComment(ctx context.Context, itemID, userID string, req dto.AddCommentRequest) (*models.DirectoryComment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	comment, err := s.comments.Add(ctx, itemID, userID, req.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add comment")
	}
	return comment, nil
}

// DeleteComment removes the caller's comment. Admins may delete any comment.
func (s *DirectoryService) DeleteComment(ctx context.Context, commentID, userID string, isAdmin bool) error {
	owner := userID
	if isAdmin {
		owner = ""
	}
	deleted, err := s.comments.Delete(ctx, commentID, owner)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
	}
	return nil
}

// InvalidateCache drops every cached listing. Exposed for the admin endpoint.
func (s *DirectoryService) InvalidateCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear directory cache")
	}
	return nil
}

func (s *DirectoryService) invalidateListings(ctx context.Context) {
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("directory cache invalidation failed", zap.Error(err))
	}
}
