package fal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"neongen/internal/domain"
)

// statusError maps provider HTTP status codes onto the domain error taxonomy,
// carrying the provider's own message where one is present.
func statusError(code int, raw []byte) error {
	detail := errorDetail(raw)
	switch code {
	case 402:
		return fmt.Errorf("status 402: %w", domain.ErrInsufficientCredits)
	case 422:
		return fmt.Errorf("status 422: %s: %w", detail, domain.ErrInvalidTrainingData)
	case 429:
		return fmt.Errorf("status 429: %w", domain.ErrRateLimited)
	case 502, 503, 504:
		return fmt.Errorf("status %d: %w", code, domain.ErrProviderUnavailable)
	}
	if detail != "" {
		return fmt.Errorf("status %d: %s", code, detail)
	}
	return fmt.Errorf("status %d", code)
}

// transportError classifies connection-level failures. Timeouts become
// ErrProviderUnavailable so callers surface a retry hint instead of a raw
// network error.
func transportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timeout: %w", domain.ErrProviderUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("timeout: %w", domain.ErrProviderUnavailable)
	}
	return err
}

func errorDetail(raw []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	if len(parsed.Detail) > 0 {
		var asString string
		if err := json.Unmarshal(parsed.Detail, &asString); err == nil {
			return asString
		}
		return strings.TrimSpace(string(parsed.Detail))
	}
	return strings.TrimSpace(string(raw))
}

// UserMessage renders a provider error as a message fit for clients.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInsufficientCredits):
		return "Insufficient fal.ai credits. Please add credits to your account."
	case errors.Is(err, domain.ErrRateLimited):
		return "Rate limit exceeded. Please retry in 60 seconds."
	case errors.Is(err, domain.ErrInvalidTrainingData):
		return "Invalid training data: check image formats (JPEG/PNG/WEBP only)."
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "Training service unavailable. Please try again later."
	case errors.Is(err, ErrMissingAPIKey):
		return "Training service is not configured with an API key."
	default:
		return err.Error()
	}
}
