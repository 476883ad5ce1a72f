package domain

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid input")
	ErrNotReady   = errors.New("style training not completed")

	ErrArchive    = errors.New("archive build failed")
	ErrUpload     = errors.New("archive upload failed")
	ErrSubmission = errors.New("training submission failed")
	ErrPoll       = errors.New("training status poll failed")

	ErrInsufficientCredits = errors.New("insufficient provider credits")
	ErrRateLimited         = errors.New("provider rate limit exceeded")
	ErrInvalidTrainingData = errors.New("invalid training data")
	ErrProviderUnavailable = errors.New("provider unavailable")
)
