package dto

import (
	"encoding/json"
	"sort"
	"strings"
)

// OrderBy selects the sort column and direction for item listings.
type OrderBy struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// ItemFilter is the full descriptor of a directory listing query. It doubles
// as the cache key material, so normalization must be deterministic.
type ItemFilter struct {
	Status   string   `json:"status,omitempty"`
	Featured *bool    `json:"featured,omitempty"`
	Groups   []string `json:"groups,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Search   string   `json:"search,omitempty"`
	UserID   string   `json:"user_id,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
	OrderBy  *OrderBy `json:"order_by,omitempty"`
}

// Normalize sorts the group and tag id lists. Two filters with the same
// semantic content normalize to the same value regardless of the order the
// caller assembled them in.
func (f *ItemFilter) Normalize() {
	sort.Strings(f.Groups)
	sort.Strings(f.Tags)
}

// CreateItemRequest is the payload for new directory items.
type CreateItemRequest struct {
	Title        string          `json:"title" validate:"required,min=2,max=200"`
	Description  string          `json:"description" validate:"max=2000"`
	Content      *string         `json:"content,omitempty"`
	URL          *string         `json:"url,omitempty" validate:"omitempty,url"`
	ImageURL     *string         `json:"image_url,omitempty" validate:"omitempty,url"`
	ThumbnailURL *string         `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
	Featured     bool            `json:"featured"`
	Status       string          `json:"status,omitempty" validate:"omitempty,oneof=draft pending published archived"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	GroupIDs     []string        `json:"group_ids"`
	TagIDs       []string        `json:"tag_ids"`
}

// UpdateItemRequest carries partial item updates. Nil group/tag id slices
// leave the associations untouched.
type UpdateItemRequest struct {
	Title        *string         `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	Description  *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Content      *string         `json:"content,omitempty"`
	URL          *string         `json:"url,omitempty" validate:"omitempty,url"`
	ImageURL     *string         `json:"image_url,omitempty" validate:"omitempty,url"`
	ThumbnailURL *string         `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
	Featured     *bool           `json:"featured,omitempty"`
	Status       *string         `json:"status,omitempty" validate:"omitempty,oneof=draft pending published archived"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	GroupIDs     []string        `json:"group_ids,omitempty"`
	TagIDs       []string        `json:"tag_ids,omitempty"`
}

// AddCommentRequest posts a comment on an item.
type AddCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// ParseIDList splits a comma separated query value into trimmed ids.
func ParseIDList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
