package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nuxtbe/core-api/internal/models"
	"github.com/nuxtbe/core-api/pkg/config"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
	"github.com/nuxtbe/core-api/pkg/export"
	"github.com/nuxtbe/core-api/pkg/jobs"
	"github.com/nuxtbe/core-api/pkg/storage"
)

type exportItemSource interface {
	ExportRows(ctx context.Context) ([]models.DirectoryItem, error)
}

type exportJobStore interface {
	Create(ctx context.Context, requestedBy, format string) (*models.ExportJob, error)
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, reason string) error
	ListByUser(ctx context.Context, requestedBy string, limit int) ([]models.ExportJob, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportMetrics interface {
	ExportFinished(format, status string)
}

// ExportDownload is a resolved signed download.
type ExportDownload struct {
	File     *os.File
	Filename string
	Format   string
}

// ExportService renders published directory items to downloadable files.
// Jobs run asynchronously on an in-process worker queue; completed files are
// fetched through signed URLs.
type ExportService struct {
	items   exportItemSource
	store   exportJobStore
	files   fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	queue   *jobs.Queue
	metrics exportMetrics
	logger  *zap.Logger
	cfg     config.ExportsConfig
}

// NewExportService constructs the export service. metrics may be nil.
func NewExportService(
	items exportItemSource,
	store exportJobStore,
	files fileStorage,
	signer *storage.SignedURLSigner,
	metrics exportMetrics,
	cfg config.ExportsConfig,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		items:   items,
		store:   store,
		files:   files,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
	s.queue = jobs.NewQueue("directory-exports", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request queues a new export job for the caller.
func (s *ExportService) Request(ctx context.Context, userID, format string) (*models.ExportJob, error) {
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	job, err := s.store.Create(ctx, userID, format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "directory_export", Payload: job.ID}); err != nil {
		if markErr := s.store.MarkFailed(ctx, job.ID, "queue unavailable"); markErr != nil {
			s.logger.Error("failed to mark export job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export job")
	}
	return job, nil
}

// Job returns one export job, restricted to its requester unless the caller
// is an admin.
func (s *ExportService) Job(ctx context.Context, id, userID string, isAdmin bool) (*models.ExportJob, error) {
	job, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if !isAdmin && job.RequestedBy != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}
	return job, nil
}

// ListJobs returns the caller's recent export jobs.
func (s *ExportService) ListJobs(ctx context.Context, userID string) ([]models.ExportJob, error) {
	list, err := s.store.ListByUser(ctx, userID, 20)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return list, nil
}

// DownloadToken issues a signed token for a completed job's file.
func (s *ExportService) DownloadToken(ctx context.Context, id, userID string, isAdmin bool) (string, time.Time, error) {
	job, err := s.Job(ctx, id, userID, isAdmin)
	if err != nil {
		return "", time.Time{}, err
	}
	if job.Status != models.ExportStatusCompleted || job.FilePath == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrConflict, "export job is not completed")
	}
	token, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return token, expiresAt, nil
}

// ResolveDownload validates a signed token and opens the referenced file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}

	job, err := s.store.FindByID(ctx, jobID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job == nil || job.FilePath == nil || *job.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}

	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return &ExportDownload{File: file, Filename: relPath, Format: job.Format}, nil
}

// Cleanup deletes export files older than ttl.
func (s *ExportService) Cleanup(ttl time.Duration) {
	deleted, err := s.files.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("export files cleaned up", zap.Int("count", len(deleted)))
	}
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok || id == "" {
		return fmt.Errorf("export job %s has no id payload", job.ID)
	}

	if err := s.store.MarkRunning(ctx, id); err != nil {
		return err
	}

	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("export job %s disappeared", id)
	}

	payload, filename, err := s.render(ctx, record)
	if err != nil {
		if markErr := s.store.MarkFailed(ctx, id, err.Error()); markErr != nil {
			s.logger.Error("failed to mark export job", zap.String("job_id", id), zap.Error(markErr))
		}
		s.finish(record.Format, models.ExportStatusFailed)
		return err
	}

	saved, err := s.files.Save(filename, payload)
	if err != nil {
		if markErr := s.store.MarkFailed(ctx, id, "storage write failed"); markErr != nil {
			s.logger.Error("failed to mark export job", zap.String("job_id", id), zap.Error(markErr))
		}
		s.finish(record.Format, models.ExportStatusFailed)
		return err
	}

	if err := s.store.MarkCompleted(ctx, id, saved); err != nil {
		return err
	}
	s.finish(record.Format, models.ExportStatusCompleted)
	s.logger.Info("export job completed", zap.String("job_id", id), zap.String("file", saved))
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, string, error) {
	items, err := s.items.ExportRows(ctx)
	if err != nil {
		return nil, "", err
	}
	dataset := itemsDataset(items)

	switch job.Format {
	case models.ExportFormatCSV:
		payload, err := s.csv.Render(dataset)
		return payload, fmt.Sprintf("directory-%s.csv", job.ID), err
	case models.ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, "Directory items")
		return payload, fmt.Sprintf("directory-%s.pdf", job.ID), err
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", job.Format)
	}
}

func itemsDataset(items []models.DirectoryItem) export.Dataset {
	headers := []string{"ID", "Title", "Description", "URL", "Status", "Featured", "Views", "Likes", "Published At"}
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		row := map[string]string{
			"ID":          item.ID,
			"Title":       item.Title,
			"Description": item.Description,
			"Status":      string(item.Status),
			"Featured":    strconv.FormatBool(item.Featured),
			"Views":       strconv.Itoa(item.ViewsCount),
			"Likes":       strconv.Itoa(item.LikesCount),
		}
		if item.URL != nil {
			row["URL"] = *item.URL
		}
		if item.PublishedAt != nil {
			row["Published At"] = item.PublishedAt.Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ExportService) finish(format, status string) {
	if s.metrics != nil {
		s.metrics.ExportFinished(format, status)
	}
}
