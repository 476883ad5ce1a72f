package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"neongen/internal/domain"
)

// StyleRepositoryPG implements domain.StyleRepository on PostgreSQL. Used
// when the service runs behind multiple processes; per-row updates give each
// client read-your-writes on its own jobs.
type StyleRepositoryPG struct {
	pool *pgxpool.Pool
}

const styleSchema = `
CREATE TABLE IF NOT EXISTS training_jobs (
    id                TEXT PRIMARY KEY,
    style_name        TEXT NOT NULL,
    style_type        TEXT NOT NULL,
    trigger_word      TEXT NOT NULL,
    status            TEXT NOT NULL,
    progress          INT NOT NULL DEFAULT 0,
    remote_request_id TEXT NOT NULL DEFAULT '',
    lora_url          TEXT NOT NULL DEFAULT '',
    config_url        TEXT NOT NULL DEFAULT '',
    thumbnail         TEXT NOT NULL DEFAULT '',
    image_count       INT NOT NULL DEFAULT 0,
    logs              TEXT[] NOT NULL DEFAULT '{}',
    remote_log_cursor INT NOT NULL DEFAULT 0,
    error_message     TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// NewStyleRepository creates a job repository backed by PostgreSQL, ensuring
// its table exists.
func NewStyleRepository(ctx context.Context, pool *pgxpool.Pool) (*StyleRepositoryPG, error) {
	if _, err := pool.Exec(ctx, styleSchema); err != nil {
		return nil, fmt.Errorf("style repo: ensure schema: %w", err)
	}
	return &StyleRepositoryPG{pool: pool}, nil
}

// Create inserts a new job record.
func (r *StyleRepositoryPG) Create(ctx context.Context, job *domain.TrainingJob) error {
	query := `
INSERT INTO training_jobs (
    id, style_name, style_type, trigger_word, status, progress,
    remote_request_id, lora_url, config_url, thumbnail, image_count,
    logs, remote_log_cursor, error_message, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.StyleName,
		job.StyleType,
		job.TriggerWord,
		job.Status,
		job.Progress,
		job.RemoteRequestID,
		job.LoraURL,
		job.ConfigURL,
		job.Thumbnail,
		job.ImageCount,
		job.Logs,
		job.RemoteLogCursor,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// Update rewrites the mutable columns of a record.
func (r *StyleRepositoryPG) Update(ctx context.Context, job *domain.TrainingJob) error {
	query := `
UPDATE training_jobs
SET status = $2,
    progress = $3,
    remote_request_id = $4,
    lora_url = $5,
    config_url = $6,
    logs = $7,
    remote_log_cursor = $8,
    error_message = $9,
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress,
		job.RemoteRequestID,
		job.LoraURL,
		job.ConfigURL,
		job.Logs,
		job.RemoteLogCursor,
		job.ErrorMessage,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const styleColumns = `
id, style_name, style_type, trigger_word, status, progress,
remote_request_id, lora_url, config_url, thumbnail, image_count,
logs, remote_log_cursor, error_message, created_at, updated_at
`

// Get fetches a job by its identifier.
func (r *StyleRepositoryPG) Get(ctx context.Context, id string) (*domain.TrainingJob, error) {
	query := `SELECT ` + styleColumns + ` FROM training_jobs WHERE id = $1;`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns every record, newest first.
func (r *StyleRepositoryPG) List(ctx context.Context) ([]*domain.TrainingJob, error) {
	query := `SELECT ` + styleColumns + ` FROM training_jobs ORDER BY created_at DESC, id DESC;`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*domain.TrainingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a record. The remote trained artifact is not touched.
func (r *StyleRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM training_jobs WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.TrainingJob, error) {
	var job domain.TrainingJob
	if err := row.Scan(
		&job.ID,
		&job.StyleName,
		&job.StyleType,
		&job.TriggerWord,
		&job.Status,
		&job.Progress,
		&job.RemoteRequestID,
		&job.LoraURL,
		&job.ConfigURL,
		&job.Thumbnail,
		&job.ImageCount,
		&job.Logs,
		&job.RemoteLogCursor,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

var _ domain.StyleRepository = (*StyleRepositoryPG)(nil)
