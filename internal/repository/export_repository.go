package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nuxtbe/core-api/internal/models"
)

const exportJobColumns = "id, requested_by, format, status, file_path, error, created_at, completed_at"

// ExportRepository tracks asynchronous export jobs.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository constructs an ExportRepository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts a queued job and returns it.
func (r *ExportRepository) Create(ctx context.Context, requestedBy, format string) (*models.ExportJob, error) {
	var job models.ExportJob
	query := fmt.Sprintf(
		`INSERT INTO export_jobs (requested_by, format, status) VALUES ($1, $2, $3) RETURNING %s`,
		exportJobColumns)
	if err := r.db.GetContext(ctx, &job, query, requestedBy, format, models.ExportStatusQueued); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}
	return &job, nil
}

// FindByID fetches one job, or nil when absent.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE id = $1", exportJobColumns)
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find export job: %w", err)
	}
	return &job, nil
}

// MarkRunning transitions a job to the running state.
func (r *ExportRepository) MarkRunning(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE export_jobs SET status = $2 WHERE id = $1",
		id, models.ExportStatusRunning)
	if err != nil {
		return fmt.Errorf("mark export running: %w", err)
	}
	return nil
}

// MarkCompleted records the produced file and completion time.
func (r *ExportRepository) MarkCompleted(ctx context.Context, id, filePath string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE export_jobs SET status = $2, file_path = $3, completed_at = $4 WHERE id = $1",
		id, models.ExportStatusCompleted, filePath, time.Now())
	if err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason and completion time.
func (r *ExportRepository) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE export_jobs SET status = $2, error = $3, completed_at = $4 WHERE id = $1",
		id, models.ExportStatusFailed, reason, time.Now())
	if err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

// ListByUser returns a user's jobs newest first.
func (r *ExportRepository) ListByUser(ctx context.Context, requestedBy string, limit int) ([]models.ExportJob, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM export_jobs WHERE requested_by = $1 ORDER BY created_at DESC LIMIT $2",
		exportJobColumns)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, requestedBy, limit); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}
