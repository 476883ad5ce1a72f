// Package training implements the LoRA training job lifecycle: asynchronous
// submission against the remote queue and the caller-driven status poll that
// reconciles remote state into the local record.
package training

import (
	"context"

	"neongen/internal/providers/fal"
)

// ArchiveUploader pushes a training archive to a content store and returns a
// stable retrieval URL.
type ArchiveUploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// TrainingQueue is the remote asynchronous job queue, keyed by a
// provider-issued request id.
type TrainingQueue interface {
	SubmitTraining(ctx context.Context, model string, input fal.TrainingInput) (string, error)
	QueueStatus(ctx context.Context, model, requestID string, withLogs bool) (*fal.QueueStatus, error)
	TrainingResult(ctx context.Context, model, requestID string) (*fal.TrainingResult, error)
}

// ArchiveFilename is the logical name the training archive is stored under.
const ArchiveFilename = "training_images.zip"

// ArchiveContentType is the MIME type of the uploaded archive.
const ArchiveContentType = "application/zip"
