package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuxtbe/core-api/internal/dto"
	"github.com/nuxtbe/core-api/internal/middleware"
	"github.com/nuxtbe/core-api/internal/models"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
)

type directoryServiceMock struct {
	items          []models.DirectoryItem
	item           *models.DirectoryItem
	err            error
	lastFilter     dto.ItemFilter
	lastAuth       bool
	createdBy      string
	updatedID      string
	deletedID      string
	itemViewer     string
	likedBy        string
	invalidated    bool
	deleteCommentUser  string
	deleteCommentAdmin bool
}

func (m *directoryServiceMock) GetItems(_ context.Context, filter dto.ItemFilter, authenticated bool) ([]models.DirectoryItem, int, error) {
	m.lastFilter = filter
	m.lastAuth = authenticated
	return m.items, len(m.items), m.err
}

func (m *directoryServiceMock) GetItem(_ context.Context, id string) (*models.DirectoryItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.item, nil
}

func (m *directoryServiceMock) GetItemForUser(_ context.Context, id, userID string) (*models.DirectoryItem, error) {
	m.itemViewer = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.item, nil
}

func (m *directoryServiceMock) CreateItem(_ context.Context, userID string, _ dto.CreateItemRequest) (*models.DirectoryItem, error) {
	m.createdBy = userID
	return m.item, m.err
}

func (m *directoryServiceMock) UpdateItem(_ context.Context, id string, _ dto.UpdateItemRequest) (*models.DirectoryItem, error) {
	m.updatedID = id
	return m.item, m.err
}

func (m *directoryServiceMock) DeleteItem(_ context.Context, id string) error {
	m.deletedID = id
	return m.err
}

func (m *directoryServiceMock) ToggleLike(_ context.Context, userID, _ string) (bool, error) {
	m.likedBy = userID
	return true, m.err
}

func (m *directoryServiceMock) ToggleSave(_ context.Context, _, _ string) (bool, error) {
	return false, m.err
}

func (m *directoryServiceMock) RecordView(_ context.Context, _, _ string) error { return m.err }

func (m *directoryServiceMock) ListGroups(_ context.Context) ([]models.DirectoryGroup, error) {
	return nil, m.err
}

func (m *directoryServiceMock) ListTags(_ context.Context) ([]models.DirectoryTag, error) {
	return nil, m.err
}

func (m *directoryServiceMock) ListComments(_ context.Context, _ string) ([]models.DirectoryComment, error) {
	return nil, m.err
}

func (m *directoryServiceMock) AddComment(_ context.Context, _, _ string, _ dto.AddCommentRequest) (*models.DirectoryComment, error) {
	return &models.DirectoryComment{ID: "comment-1"}, m.err
}

func (m *directoryServiceMock) DeleteComment(_ context.Context, _, userID string, isAdmin bool) error {
	m.deleteCommentUser = userID
	m.deleteCommentAdmin = isAdmin
	return m.err
}

func (m *directoryServiceMock) InvalidateCache(_ context.Context) error {
	m.invalidated = true
	return m.err
}

func newDirectoryTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	return c, w
}

func userClaims(id string) *models.AuthClaims {
	return &models.AuthClaims{UserID: id, Email: id + "@example.com", Role: models.RoleUser}
}

func adminClaims() *models.AuthClaims {
	return &models.AuthClaims{UserID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin}
}

func TestDirectoryListParsesQuery(t *testing.T) {
	mock := &directoryServiceMock{items: []models.DirectoryItem{{ID: "item-1"}}}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodGet,
		"/directory/items?featured=true&groups=g2,g1&tags=t1&search=+design+&limit=5&offset=10&sort=likes_count&order=asc", nil)
	c.Set(middleware.ContextUserKey, userClaims("user-1"))

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.lastAuth)
	require.NotNil(t, mock.lastFilter.Featured)
	assert.True(t, *mock.lastFilter.Featured)
	assert.Equal(t, []string{"g2", "g1"}, mock.lastFilter.Groups)
	assert.Equal(t, []string{"t1"}, mock.lastFilter.Tags)
	assert.Equal(t, "design", mock.lastFilter.Search)
	assert.Equal(t, 5, mock.lastFilter.Limit)
	assert.Equal(t, 10, mock.lastFilter.Offset)
	require.NotNil(t, mock.lastFilter.OrderBy)
	assert.Equal(t, "likes_count", mock.lastFilter.OrderBy.Column)
	assert.True(t, mock.lastFilter.OrderBy.Ascending)
}

func TestDirectoryListAnonymous(t *testing.T) {
	mock := &directoryServiceMock{}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodGet, "/directory/items?mine=true", nil)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mock.lastAuth)
	assert.Empty(t, mock.lastFilter.UserID, "mine must not bind without claims")
}

func TestDirectoryListMineBindsUser(t *testing.T) {
	mock := &directoryServiceMock{}
	h := NewDirectoryHandler(mock)

	c, _ := newDirectoryTestContext(t, http.MethodGet, "/directory/items?mine=true", nil)
	c.Set(middleware.ContextUserKey, userClaims("user-7"))

	h.List(c)

	assert.Equal(t, "user-7", mock.lastFilter.UserID)
}

func TestDirectoryListPropagatesError(t *testing.T) {
	mock := &directoryServiceMock{err: appErrors.ErrInternal}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodGet, "/directory/items", nil)

	h.List(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDirectoryCreateRejectsBadPayload(t *testing.T) {
	mock := &directoryServiceMock{}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodPost, "/directory/items", []byte(`{"title":`))
	c.Set(middleware.ContextUserKey, userClaims("user-1"))

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.createdBy)
}

func TestDirectoryCreateUsesCallerID(t *testing.T) {
	mock := &directoryServiceMock{item: &models.DirectoryItem{ID: "item-1", Title: "New tool"}}
	h := NewDirectoryHandler(mock)

	body, err := json.Marshal(dto.CreateItemRequest{Title: "New tool"})
	require.NoError(t, err)
	c, w := newDirectoryTestContext(t, http.MethodPost, "/directory/items", body)
	c.Set(middleware.ContextUserKey, userClaims("user-3"))

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "user-3", mock.createdBy)
}

func TestDirectoryUpdateRequiresAuth(t *testing.T) {
	mock := &directoryServiceMock{}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodPut, "/directory/items/item-1", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}

	h.Update(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, mock.updatedID)
}

func TestDirectoryUpdateRejectsNonOwner(t *testing.T) {
	owner := "user-1"
	mock := &directoryServiceMock{item: &models.DirectoryItem{ID: "item-1", UserID: &owner}}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodPut, "/directory/items/item-1", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}
	c.Set(middleware.ContextUserKey, userClaims("user-2"))

	h.Update(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, mock.updatedID)
}

func TestDirectoryUpdateAllowsAdmin(t *testing.T) {
	owner := "user-1"
	mock := &directoryServiceMock{item: &models.DirectoryItem{ID: "item-1", UserID: &owner}}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodPut, "/directory/items/item-1", []byte(`{"featured":true}`))
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	h.Update(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "item-1", mock.updatedID)
}

func TestDirectoryDeleteAllowsOwner(t *testing.T) {
	owner := "user-1"
	mock := &directoryServiceMock{item: &models.DirectoryItem{ID: "item-1", UserID: &owner}}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodDelete, "/directory/items/item-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}
	c.Set(middleware.ContextUserKey, userClaims("user-1"))

	h.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "item-1", mock.deletedID)
}

func TestDirectoryToggleLike(t *testing.T) {
	mock := &directoryServiceMock{}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodPost, "/directory/items/item-1/like", nil)
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}
	c.Set(middleware.ContextUserKey, userClaims("user-5"))

	h.ToggleLike(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-5", mock.likedBy)
	assert.Contains(t, w.Body.String(), `"liked":true`)
}

func TestDirectoryDeleteCommentPassesAdminFlag(t *testing.T) {
	mock := &directoryServiceMock{}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodDelete, "/directory/comments/comment-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "comment-1"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	h.DeleteComment(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mock.deleteCommentAdmin)
	assert.Equal(t, "admin-1", mock.deleteCommentUser)
}

func TestDirectoryClearCache(t *testing.T) {
	mock := &directoryServiceMock{}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodPost, "/admin/directory/cache/clear", nil)
	c.Set(middleware.ContextUserKey, adminClaims())

	h.ClearCache(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mock.invalidated)
}

func TestDirectoryGetPassesViewer(t *testing.T) {
	mock := &directoryServiceMock{item: &models.DirectoryItem{ID: "item-1", Liked: true}}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodGet, "/directory/items/item-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}
	c.Set(middleware.ContextUserKey, userClaims("user-9"))

	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-9", mock.itemViewer)
	assert.Contains(t, w.Body.String(), `"liked":true`)
}

func TestDirectoryGetAnonymousViewer(t *testing.T) {
	mock := &directoryServiceMock{item: &models.DirectoryItem{ID: "item-1"}}
	h := NewDirectoryHandler(mock)

	c, w := newDirectoryTestContext(t, http.MethodGet, "/directory/items/item-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}

	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", mock.itemViewer)
}
