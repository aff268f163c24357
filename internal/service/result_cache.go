package service

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nuxtbe/core-api/internal/dto"
	"github.com/nuxtbe/core-api/internal/models"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
)

// CacheStore abstracts the result cache backend. The Redis-backed repository
// and the in-process MemoryStore both satisfy it; tests inject their own.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// CachedResult is the unit stored per listing query: the fully processed
// page plus its unpaged total.
type CachedResult struct {
	Items      []models.DirectoryItem `json:"items"`
	TotalCount int                    `json:"total_count"`
}

// CacheKey derives the canonical cache key for a listing query. The filter is
// normalized first, so callers assembling the same filter in different orders
// share one entry. Field order in the key is fixed.
func CacheKey(f dto.ItemFilter) string {
	f.Normalize()

	featured := "any"
	if f.Featured != nil {
		featured = strconv.FormatBool(*f.Featured)
	}
	order := ""
	if f.OrderBy != nil {
		direction := "desc"
		if f.OrderBy.Ascending {
			direction = "asc"
		}
		order = f.OrderBy.Column + ":" + direction
	}

	parts := []string{
		"status=" + f.Status,
		"featured=" + featured,
		"groups=" + strings.Join(f.Groups, ","),
		"tags=" + strings.Join(f.Tags, ","),
		"search=" + f.Search,
		"user=" + f.UserID,
		"limit=" + strconv.Itoa(f.Limit),
		"offset=" + strconv.Itoa(f.Offset),
		"order=" + order,
	}
	return "items:" + strings.Join(parts, "|")
}

type memoryEntry struct {
	key       string
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is a bounded in-process CacheStore. When the entry limit is
// reached the least recently used entry is evicted. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	now        func() time.Time
}

// NewMemoryStore constructs a MemoryStore holding at most maxEntries values.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &MemoryStore{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get unmarshals the cached value into dest, returning ErrCacheMiss for
// absent or expired keys.
func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	elem, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return appErrors.ErrCacheMiss
	}
	entry := elem.Value.(*memoryEntry)
	if s.now().After(entry.expiresAt) {
		s.order.Remove(elem)
		delete(s.entries, key)
		s.mu.Unlock()
		return appErrors.ErrCacheMiss
	}
	s.order.MoveToBack(elem)
	payload := entry.payload
	s.mu.Unlock()

	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("unmarshal cached value for %s: %w", key, err)
	}
	return nil
}

// Set stores the value under key for the given TTL, evicting the least
// recently used entry when full.
func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.payload = payload
		entry.expiresAt = s.now().Add(ttl)
		s.order.MoveToBack(elem)
		return nil
	}

	if len(s.entries) >= s.maxEntries {
		oldest := s.order.Front()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.entries, oldest.Value.(*memoryEntry).key)
		}
	}

	s.entries[key] = s.order.PushBack(&memoryEntry{
		key:       key,
		payload:   payload,
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// Delete removes one entry.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.entries[key]; ok {
		s.order.Remove(elem)
		delete(s.entries, key)
	}
	return nil
}

// Clear drops every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	return nil
}

// Len reports the current entry count.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
