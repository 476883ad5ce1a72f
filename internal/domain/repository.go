package domain

import "context"

// StyleRepository defines persistence for training job records. All mutation
// funnels through the submitter and poller; implementations only need the
// consistency their backing container already provides.
type StyleRepository interface {
	Create(ctx context.Context, job *TrainingJob) error
	Get(ctx context.Context, id string) (*TrainingJob, error)
	Update(ctx context.Context, job *TrainingJob) error
	List(ctx context.Context) ([]*TrainingJob, error)
	Delete(ctx context.Context, id string) error
}

// AnalyticsRepository updates usage counters.
type AnalyticsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int) error
	GetSummary(ctx context.Context) (*AnalyticsDaily, error)
}
