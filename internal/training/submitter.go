package training

import (
	"context"
	"fmt"
	"time"

	"neongen/internal/domain"
	"neongen/internal/infra"
	"neongen/internal/providers/fal"
	"neongen/pkg/zip"
)

// Progress milestones during submission. A concurrent poll observes these as
// interim state before the remote queue takes over.
const (
	progressArchived  = 10
	progressUploaded  = 25
	progressSubmitted = 30
)

// SubmitterOptions wires a Submitter.
type SubmitterOptions struct {
	Repo         domain.StyleRepository
	Uploader     ArchiveUploader
	Queue        TrainingQueue
	Model        string
	Steps        int
	LearningRate float64
	Logger       infra.Logger
}

// Submitter runs the submission pipeline: archive, upload, enqueue. It
// returns as soon as the remote queue accepts the job; training continues
// remotely and is observed via the Poller.
type Submitter struct {
	repo         domain.StyleRepository
	uploader     ArchiveUploader
	queue        TrainingQueue
	model        string
	steps        int
	learningRate float64
	logger       infra.Logger
}

// NewSubmitter constructs a Submitter.
func NewSubmitter(opts SubmitterOptions) *Submitter {
	steps := opts.Steps
	if steps <= 0 {
		steps = 1000
	}
	lr := opts.LearningRate
	if lr <= 0 {
		lr = 0.00005
	}
	return &Submitter{
		repo:         opts.Repo,
		uploader:     opts.Uploader,
		queue:        opts.Queue,
		model:        opts.Model,
		steps:        steps,
		learningRate: lr,
		logger:       opts.Logger,
	}
}

// ImageFile is one raw training input.
type ImageFile struct {
	Name string
	Data []byte
}

// SubmitParams are the validated inputs for one training submission. Image
// count and size limits are enforced by the ingestion layer before this is
// called; JobID is caller-generated and globally unique.
type SubmitParams struct {
	JobID     string
	StyleName string
	StyleType domain.StyleType
	Images    []ImageFile
	Thumbnail string
}

// Submit creates the job record and drives it to the training state. On any
// failure the record is left in a terminal failed state with a translated
// message, and the error is returned to the caller as well.
func (s *Submitter) Submit(ctx context.Context, p SubmitParams) (*domain.TrainingJob, error) {
	now := time.Now()
	job := &domain.TrainingJob{
		ID:          p.JobID,
		StyleName:   p.StyleName,
		StyleType:   p.StyleType,
		TriggerWord: domain.TriggerWord,
		Status:      domain.TrainingStatusUploading,
		Progress:    0,
		Thumbnail:   p.Thumbnail,
		ImageCount:  len(p.Images),
		Logs:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	s.logger.Info().Str("job_id", job.ID).Int("images", len(p.Images)).Msg("training: packaging images")
	job.Progress = progressArchived
	job.Logs = append(job.Logs, "Packaging images into archive...")
	s.persist(ctx, job)

	files := make([]zip.File, len(p.Images))
	for i, img := range p.Images {
		files[i] = zip.File{Name: img.Name, Data: img.Data}
	}
	archive, err := zip.BuildArchive(files)
	if err != nil {
		return nil, s.fail(ctx, job, fmt.Errorf("%w: %w", domain.ErrArchive, err))
	}

	s.logger.Info().Str("job_id", job.ID).Int("archive_bytes", len(archive)).Msg("training: uploading archive")
	job.Progress = progressUploaded
	job.Logs = append(job.Logs, "Uploading archive to training servers...")
	s.persist(ctx, job)

	archiveURL, err := s.uploader.Upload(ctx, ArchiveFilename, ArchiveContentType, archive)
	if err != nil {
		return nil, s.fail(ctx, job, fmt.Errorf("%w: %w", domain.ErrUpload, err))
	}

	caption := DefaultCaption(p.StyleType)
	s.logger.Info().Str("job_id", job.ID).Str("caption", caption).Msg("training: submitting to remote queue")
	job.Status = domain.TrainingStatusTraining
	job.Progress = progressSubmitted
	job.Logs = append(job.Logs, "Submitting training job...")
	s.persist(ctx, job)

	requestID, err := s.queue.SubmitTraining(ctx, s.model, fal.TrainingInput{
		ImageDataURL:     archiveURL,
		Steps:            s.steps,
		LearningRate:     s.learningRate,
		DefaultCaption:   caption,
		OutputLoraFormat: "fal",
	})
	if err != nil {
		return nil, s.fail(ctx, job, fmt.Errorf("%w: %w", domain.ErrSubmission, err))
	}

	job.RemoteRequestID = requestID
	job.Logs = append(job.Logs, "Training job accepted, waiting for resources...")
	if err := s.repo.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job record: %w", err)
	}
	s.logger.Info().Str("job_id", job.ID).Str("request_id", requestID).Msg("training: submitted")
	return job.Clone(), nil
}

// persist writes interim progress. Failure to record a milestone is logged
// but does not abort the submission itself.
func (s *Submitter) persist(ctx context.Context, job *domain.TrainingJob) {
	if err := s.repo.Update(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("training: failed to persist progress")
	}
}

// fail moves the record to its terminal failed state and returns the cause
// so the initiating request also observes it.
func (s *Submitter) fail(ctx context.Context, job *domain.TrainingJob, cause error) error {
	s.logger.Error().Err(cause).Str("job_id", job.ID).Msg("training: submission failed")
	job.Status = domain.TrainingStatusFailed
	job.Progress = 0
	job.ErrorMessage = fal.UserMessage(cause)
	if err := s.repo.Update(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("training: failed to persist failure state")
	}
	return cause
}
