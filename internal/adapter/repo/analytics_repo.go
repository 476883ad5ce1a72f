package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"neongen/internal/domain"
)

// AnalyticsRepositoryPG implements AnalyticsRepository using PostgreSQL.
type AnalyticsRepositoryPG struct {
	pool *pgxpool.Pool
}

const analyticsSchema = `
CREATE TABLE IF NOT EXISTS analytics_daily (
    day                 TEXT PRIMARY KEY,
    ai_requests         INT NOT NULL DEFAULT 0,
    training_jobs       INT NOT NULL DEFAULT 0,
    training_failures   INT NOT NULL DEFAULT 0,
    images_generated    INT NOT NULL DEFAULT 0,
    generation_failures INT NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// NewAnalyticsRepository constructs the repository, ensuring its table exists.
func NewAnalyticsRepository(ctx context.Context, pool *pgxpool.Pool) (*AnalyticsRepositoryPG, error) {
	if _, err := pool.Exec(ctx, analyticsSchema); err != nil {
		return nil, fmt.Errorf("analytics repo: ensure schema: %w", err)
	}
	return &AnalyticsRepositoryPG{pool: pool}, nil
}

// IncrementCounters upserts metrics for the provided day.
func (r *AnalyticsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	query := `
INSERT INTO analytics_daily (
    day, ai_requests, training_jobs, training_failures, images_generated, generation_failures
) VALUES (
    $1, $2, $3, $4, $5, $6
) ON CONFLICT (day) DO UPDATE SET
    ai_requests = analytics_daily.ai_requests + EXCLUDED.ai_requests,
    training_jobs = analytics_daily.training_jobs + EXCLUDED.training_jobs,
    training_failures = analytics_daily.training_failures + EXCLUDED.training_failures,
    images_generated = analytics_daily.images_generated + EXCLUDED.images_generated,
    generation_failures = analytics_daily.generation_failures + EXCLUDED.generation_failures,
    updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query,
		day,
		counters[domain.CounterAIRequests],
		counters[domain.CounterTrainingJobs],
		counters[domain.CounterTrainingFailures],
		counters[domain.CounterImagesGenerated],
		counters[domain.CounterGenerationFailures],
	)
	return err
}

// GetSummary returns the most recent day's aggregated stats.
func (r *AnalyticsRepositoryPG) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	row := r.pool.QueryRow(ctx, `
SELECT day, ai_requests, training_jobs, training_failures, images_generated, generation_failures, created_at, updated_at
FROM analytics_daily
ORDER BY day DESC
LIMIT 1;
`)
	var summary domain.AnalyticsDaily
	if err := row.Scan(
		&summary.Day,
		&summary.AIRequests,
		&summary.TrainingJobs,
		&summary.TrainingFailures,
		&summary.ImagesGenerated,
		&summary.GenerationFailures,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}

var _ domain.AnalyticsRepository = (*AnalyticsRepositoryPG)(nil)

// AnalyticsRepositoryMemory keeps usage counters in-process. Backend when no
// database is configured.
type AnalyticsRepositoryMemory struct {
	mu   sync.Mutex
	days map[string]*domain.AnalyticsDaily
}

// NewAnalyticsRepositoryMemory constructs an empty in-memory recorder.
func NewAnalyticsRepositoryMemory() *AnalyticsRepositoryMemory {
	return &AnalyticsRepositoryMemory{days: make(map[string]*domain.AnalyticsDaily)}
}

// IncrementCounters accumulates metrics for the provided day.
func (r *AnalyticsRepositoryMemory) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.days[day]
	if !ok {
		entry = &domain.AnalyticsDaily{Day: day, CreatedAt: time.Now()}
		r.days[day] = entry
	}
	entry.AIRequests += counters[domain.CounterAIRequests]
	entry.TrainingJobs += counters[domain.CounterTrainingJobs]
	entry.TrainingFailures += counters[domain.CounterTrainingFailures]
	entry.ImagesGenerated += counters[domain.CounterImagesGenerated]
	entry.GenerationFailures += counters[domain.CounterGenerationFailures]
	entry.UpdatedAt = time.Now()
	return nil
}

// GetSummary returns the most recent day's stats.
func (r *AnalyticsRepositoryMemory) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.days) == 0 {
		return nil, domain.ErrNotFound
	}
	days := make([]string, 0, len(r.days))
	for day := range r.days {
		days = append(days, day)
	}
	sort.Strings(days)
	latest := *r.days[days[len(days)-1]]
	return &latest, nil
}

var _ domain.AnalyticsRepository = (*AnalyticsRepositoryMemory)(nil)
