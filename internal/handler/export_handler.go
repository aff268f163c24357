package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nuxtbe/core-api/internal/dto"
	"github.com/nuxtbe/core-api/internal/models"
	"github.com/nuxtbe/core-api/internal/service"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
	"github.com/nuxtbe/core-api/pkg/response"
)

type exportService interface {
	Request(ctx context.Context, userID, format string) (*models.ExportJob, error)
	Job(ctx context.Context, id, userID string, isAdmin bool) (*models.ExportJob, error)
	ListJobs(ctx context.Context, userID string) ([]models.ExportJob, error)
	DownloadToken(ctx context.Context, id, userID string, isAdmin bool) (string, time.Time, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler exposes directory export endpoints.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Create godoc
// @Summary Queue a directory export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.CreateExportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req dto.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	job, err := h.exports.Request(c.Request.Context(), userIDFromContext(c), req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// List godoc
// @Summary List the caller's export jobs
// @Tags Exports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exports [get]
func (h *ExportHandler) List(c *gin.Context) {
	jobs, err := h.exports.ListJobs(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}

// Get godoc
// @Summary Get one export job
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	job, err := h.exports.Job(c.Request.Context(), c.Param("id"), userIDFromContext(c), claims.IsAdmin())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// DownloadURL godoc
// @Summary Issue a signed download link for a completed export
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id}/download-url [get]
func (h *ExportHandler) DownloadURL(c *gin.Context) {
	claims := claimsFromContext(c)
	token, expiresAt, err := h.exports.DownloadToken(c.Request.Context(), c.Param("id"), userIDFromContext(c), claims.IsAdmin())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}

// Download godoc
// @Summary Download an export file with a signed token
// @Tags Exports
// @Param token query string true "Signed download token"
// @Success 200
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	download, err := h.exports.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	contentType := "text/csv"
	if download.Format == "pdf" {
		contentType = "application/pdf"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, download.File, nil)
}
