package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nuxtbe/core-api/internal/dto"
	"github.com/nuxtbe/core-api/internal/models"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
	"github.com/nuxtbe/core-api/pkg/response"
)

type directoryService interface {
	GetItems(ctx context.Context, filter dto.ItemFilter, authenticated bool) ([]models.DirectoryItem, int, error)
	GetItem(ctx context.Context, id string) (*models.DirectoryItem, error)
	GetItemForUser(ctx context.Context, id, userID string) (*models.DirectoryItem, error)
	CreateItem(ctx context.Context, userID string, req dto.CreateItemRequest) (*models.DirectoryItem, error)
	UpdateItem(ctx context.Context, id string, req dto.UpdateItemRequest) (*models.DirectoryItem, error)
	DeleteItem(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, userID, itemID string) (bool, error)
	ToggleSave(ctx context.Context, userID, itemID string) (bool, error)
	RecordView(ctx context.Context, userID, itemID string) error
	ListGroups(ctx context.Context) ([]models.DirectoryGroup, error)
	ListTags(ctx context.Context) ([]models.DirectoryTag, error)
	ListComments(ctx context.Context, itemID string) ([]models.DirectoryComment, error)
	AddComment(ctx context.Context, itemID, userID string, req dto.AddCommentRequest) (*models.DirectoryComment, error)
	DeleteComment(ctx context.Context, commentID, userID string, isAdmin bool) error
	InvalidateCache(ctx context.Context) error
}

// DirectoryHandler exposes the directory endpoints.
type DirectoryHandler struct {
	directory directoryService
}

// NewDirectoryHandler constructs DirectoryHandler.
func NewDirectoryHandler(directory directoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// List godoc
// @Summary List directory items
// @Tags Directory
// @Produce json
// @Param status query string false "Publication status (authenticated only)"
// @Param featured query bool false "Filter featured items"
// @Param groups query string false "Comma separated group ids, AND semantics"
// @Param tags query string false "Comma separated tag ids, AND semantics"
// @Param search query string false "Full-text search"
// @Param mine query bool false "Only the caller's items"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /directory/items [get]
func (h *DirectoryHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)

	filter := dto.ItemFilter{
		Status: c.Query("status"),
		Groups: dto.ParseIDList(c.Query("groups")),
		Tags:   dto.ParseIDList(c.Query("tags")),
		Search: strings.TrimSpace(c.Query("search")),
	}
	if featured := c.Query("featured"); featured != "" {
		v := featured == "true"
		filter.Featured = &v
	}
	if c.Query("mine") == "true" && claims != nil {
		filter.UserID = claims.UserID
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = offset
	}
	if sortBy := c.Query("sort"); sortBy != "" {
		filter.OrderBy = &dto.OrderBy{Column: sortBy, Ascending: c.Query("order") == "asc"}
	}

	items, total, err := h.directory.GetItems(c.Request.Context(), filter, claims != nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Limit: filter.Limit, Offset: filter.Offset, TotalCount: total}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get one directory item
// @Tags Directory
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /directory/items/{id} [get]
func (h *DirectoryHandler) Get(c *gin.Context) {
	userID := ""
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}
	item, err := h.directory.GetItemForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create a directory item
// @Tags Directory
// @Accept json
// @Produce json
// @Param payload body dto.CreateItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Router /directory/items [post]
func (h *DirectoryHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	item, err := h.directory.CreateItem(c.Request.Context(), userIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update a directory item
// @Tags Directory
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.UpdateItemRequest true "Partial item payload"
// @Success 200 {object} response.Envelope
// @Router /directory/items/{id} [put]
func (h *DirectoryHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if err := h.authorizeItemChange(c, id); err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	item, err := h.directory.UpdateItem(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a directory item
// @Tags Directory
// @Param id path string true "Item ID"
// @Success 204
// @Router /directory/items/{id} [delete]
func (h *DirectoryHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.authorizeItemChange(c, id); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.directory.DeleteItem(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// authorizeItemChange allows admins and the item's owner.
func (h *DirectoryHandler) authorizeItemChange(c *gin.Context, id string) error {
	claims := claimsFromContext(c)
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.IsAdmin() {
		return nil
	}
	item, err := h.directory.GetItem(c.Request.Context(), id)
	if err != nil {
		return err
	}
	if item.UserID == nil || *item.UserID != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "not the item owner")
	}
	return nil
}

// ToggleLike godoc
// @Summary Toggle a like on an item
// @Tags Directory
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /directory/items/{id}/like [post]
func (h *DirectoryHandler) ToggleLike(c *gin.Context) {
	liked, err := h.directory.ToggleLike(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"liked": liked}, nil)
}

// ToggleSave godoc
// @Summary Toggle a save on an item
// @Tags Directory
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /directory/items/{id}/save [post]
func (h *DirectoryHandler) ToggleSave(c *gin.Context) {
	saved, err := h.directory.ToggleSave(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"saved": saved}, nil)
}

// RecordView godoc
// @Summary Record a view on an item
// @Tags Directory
// @Param id path string true "Item ID"
// @Success 204
// @Router /directory/items/{id}/view [post]
func (h *DirectoryHandler) RecordView(c *gin.Context) {
	if err := h.directory.RecordView(c.Request.Context(), userIDFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListGroups godoc
// @Summary List directory groups
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /directory/groups [get]
func (h *DirectoryHandler) ListGroups(c *gin.Context) {
	groups, err := h.directory.ListGroups(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// ListTags godoc
// @Summary List directory tags
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /directory/tags [get]
func (h *DirectoryHandler) ListTags(c *gin.Context) {
	tags, err := h.directory.ListTags(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tags, nil)
}

// ListComments godoc
// @Summary List comments on an item
// @Tags Directory
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /directory/items/{id}/comments [get]
func (h *DirectoryHandler) ListComments(c *gin.Context) {
	comments, err := h.directory.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}

// AddComment godoc
// @Summary Comment on an item
// @Tags Directory
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.AddCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Router /directory/items/{id}/comments [post]
func (h *DirectoryHandler) AddComment(c *gin.Context) {
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	comment, err := h.directory.AddComment(c.Request.Context(), c.Param("id"), userIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// DeleteComment godoc
// @Summary Delete a comment
// @Tags Directory
// @Param id path string true "Comment ID"
// @Success 204
// @Router /directory/comments/{id} [delete]
func (h *DirectoryHandler) DeleteComment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	err := h.directory.DeleteComment(c.Request.Context(), c.Param("id"), claims.UserID, claims.IsAdmin())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearCache godoc
// @Summary Drop every cached directory listing
// @Tags Admin
// @Success 204
// @Router /admin/directory/cache/clear [post]
func (h *DirectoryHandler) ClearCache(c *gin.Context) {
	if err := h.directory.InvalidateCache(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
