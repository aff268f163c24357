package models

import (
	"encoding/json"
	"time"
)

// ItemStatus is the publication workflow state of a directory item.
type ItemStatus string

const (
	StatusDraft     ItemStatus = "draft"
	StatusPending   ItemStatus = "pending"
	StatusPublished ItemStatus = "published"
	StatusArchived  ItemStatus = "archived"
)

// Valid reports whether the status is one of the workflow states.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// GroupRef is a flattened group relation attached to an item.
type GroupRef struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TagRef is a flattened tag relation attached to an item.
type TagRef struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// DirectoryGroup is a browsable category.
type DirectoryGroup struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// DirectoryTag labels items orthogonally to groups.
type DirectoryTag struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// DirectoryItem is a single listing. Groups and Tags are always non-nil
// after pipeline processing, even when the item has no relations.
type DirectoryItem struct {
	ID           string          `db:"id" json:"id"`
	Title        string          `db:"title" json:"title"`
	Description  string          `db:"description" json:"description"`
	Content      *string         `db:"content" json:"content,omitempty"`
	URL          *string         `db:"url" json:"url,omitempty"`
	ImageURL     *string         `db:"image_url" json:"image_url,omitempty"`
	ThumbnailURL *string         `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	Featured     bool            `db:"featured" json:"featured"`
	Status       ItemStatus      `db:"status" json:"status"`
	UserID       *string         `db:"user_id" json:"user_id,omitempty"`
	ViewsCount   int             `db:"views_count" json:"views_count"`
	LikesCount   int             `db:"likes_count" json:"likes_count"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	PublishedAt  *time.Time      `db:"published_at" json:"published_at,omitempty"`

	Groups []GroupRef `json:"groups"`
	Tags   []TagRef   `json:"tags"`

	// Caller-specific interaction state, populated on single-item reads
	// for authenticated users.
	Liked bool `db:"-" json:"liked"`
	Saved bool `db:"-" json:"saved"`
}

// InteractionType classifies a user interaction with an item.
type InteractionType string

const (
	InteractionLike InteractionType = "like"
	InteractionSave InteractionType = "save"
	InteractionView InteractionType = "view"
)

// UserInteraction records a (user, item, type) event. Likes and saves are
// unique per user and item; views may recur after the dedup window.
type UserInteraction struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	ItemID    string          `db:"item_id" json:"item_id"`
	Type      InteractionType `db:"interaction_type" json:"interaction_type"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// CommentAuthor is the public author info joined onto a comment.
type CommentAuthor struct {
	ID        string  `db:"author_id" json:"id"`
	Email     string  `db:"author_email" json:"email"`
	FullName  *string `db:"author_full_name" json:"full_name,omitempty"`
	AvatarURL *string `db:"author_avatar_url" json:"avatar_url,omitempty"`
}

// DirectoryComment is a user comment on an item.
type DirectoryComment struct {
	ID        string    `db:"id" json:"id"`
	ItemID    string    `db:"item_id" json:"item_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	CommentAuthor
}
