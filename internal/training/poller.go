package training

import (
	"context"
	"errors"
	"fmt"

	"neongen/internal/domain"
	"neongen/internal/infra"
	"neongen/internal/providers/fal"
)

// Progress bounds for the remote-driven phase. Remote training reports no
// percentage, so progress is estimated from accumulated log lines.
const (
	queuedProgressFloor = 5
	trainingProgressCap = 90
)

// Poller reconciles the remote queue state of one job into its local record
// and returns the resulting snapshot. It is driven entirely by client polls;
// there is no background loop.
type Poller struct {
	repo   domain.StyleRepository
	queue  TrainingQueue
	model  string
	logger infra.Logger
}

// NewPoller constructs a Poller.
func NewPoller(repo domain.StyleRepository, queue TrainingQueue, model string, logger infra.Logger) *Poller {
	return &Poller{repo: repo, queue: queue, model: model, logger: logger}
}

// Poll returns the current status snapshot for a job.
//
// Terminal records are served from the store without a remote call, so
// repeated polls of a finished job are free and identical. A failure to
// reach the remote queue never mutates the record; the last known snapshot
// is returned annotated with a translated error message and the client is
// expected to retry.
func (p *Poller) Poll(ctx context.Context, jobID string) (domain.TrainingSnapshot, error) {
	job, err := p.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TrainingSnapshot{
				Status:       domain.TrainingStatusFailed,
				Progress:     0,
				Logs:         []string{},
				ErrorMessage: "Style record not found",
			}, nil
		}
		return domain.TrainingSnapshot{}, fmt.Errorf("load job record: %w", err)
	}

	if job.Status.Terminal() {
		return job.Snapshot(), nil
	}

	// Submission still mid-flight; nothing to ask the queue about yet.
	if job.RemoteRequestID == "" {
		return job.Snapshot(), nil
	}

	remote, err := p.queue.QueueStatus(ctx, p.model, job.RemoteRequestID, true)
	if err != nil {
		p.logger.Warn().Err(err).Str("job_id", job.ID).Msg("poll: remote status unavailable")
		snap := job.Snapshot()
		snap.ErrorMessage = fal.UserMessage(err)
		return snap, nil
	}

	p.mergeRemoteLogs(job, remote.Logs)

	switch remote.Status {
	case fal.StatusCompleted:
		return p.complete(ctx, job)
	case fal.StatusFailed:
		job.Status = domain.TrainingStatusFailed
		job.Progress = 0
		job.ErrorMessage = "Training failed on the remote trainer"
	case fal.StatusInQueue:
		job.Status = domain.TrainingStatusPending
		job.BumpProgress(queuedProgressFloor)
	default:
		// IN_PROGRESS or any other non-terminal value.
		job.Status = domain.TrainingStatusTraining
		estimate := 10 + 2*len(job.Logs)
		if estimate > trainingProgressCap {
			estimate = trainingProgressCap
		}
		job.BumpProgress(estimate)
	}

	if err := p.repo.Update(ctx, job); err != nil {
		return domain.TrainingSnapshot{}, fmt.Errorf("persist job record: %w", err)
	}
	return job.Snapshot(), nil
}

// complete fetches the final result payload and seals the record. A failed
// result fetch is treated like any other transient poll failure.
func (p *Poller) complete(ctx context.Context, job *domain.TrainingJob) (domain.TrainingSnapshot, error) {
	result, err := p.queue.TrainingResult(ctx, p.model, job.RemoteRequestID)
	if err != nil {
		p.logger.Warn().Err(err).Str("job_id", job.ID).Msg("poll: result fetch failed")
		snap := job.Snapshot()
		snap.ErrorMessage = fal.UserMessage(err)
		return snap, nil
	}
	job.Status = domain.TrainingStatusCompleted
	job.Progress = 100
	job.LoraURL = result.DiffusersLoraFile.URL
	job.ConfigURL = result.ConfigFile.URL
	job.Logs = append(job.Logs, "Training complete! LoRA weights ready.")
	if err := p.repo.Update(ctx, job); err != nil {
		return domain.TrainingSnapshot{}, fmt.Errorf("persist job record: %w", err)
	}
	p.logger.Info().Str("job_id", job.ID).Str("lora_url", job.LoraURL).Msg("poll: training completed")
	return job.Snapshot(), nil
}

// mergeRemoteLogs appends only remote lines past the record's cursor. The
// provider frames logs cumulatively; the explicit cursor keeps re-sent
// history from being appended twice.
func (p *Poller) mergeRemoteLogs(job *domain.TrainingJob, lines []fal.LogLine) {
	if len(lines) <= job.RemoteLogCursor {
		return
	}
	for _, line := range lines[job.RemoteLogCursor:] {
		if line.Message == "" {
			continue
		}
		job.Logs = append(job.Logs, line.Message)
	}
	job.RemoteLogCursor = len(lines)
}
