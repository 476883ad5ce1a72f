package domain

import "time"

// Counter keys understood by the analytics repositories.
const (
	CounterAIRequests         = "ai_requests"
	CounterTrainingJobs       = "training_jobs"
	CounterTrainingFailures   = "training_failures"
	CounterImagesGenerated    = "images_generated"
	CounterGenerationFailures = "generation_failures"
)

// AnalyticsDaily stores aggregated usage metrics for a specific day.
type AnalyticsDaily struct {
	Day                string    `json:"day"`
	AIRequests         int       `json:"aiRequests"`
	TrainingJobs       int       `json:"trainingJobs"`
	TrainingFailures   int       `json:"trainingFailures"`
	ImagesGenerated    int       `json:"imagesGenerated"`
	GenerationFailures int       `json:"generationFailures"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
