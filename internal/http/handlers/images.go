package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"neongen/internal/domain"
	"neongen/internal/providers/fal"
)

type generateRequest struct {
	Prompt           string `json:"prompt"`
	StyleID          string `json:"styleId"`
	ReferenceStyleID string `json:"referenceStyleId"`
	ImageSize        string `json:"imageSize"`
	NegativePrompt   string `json:"negativePrompt"`
	NumImages        int    `json:"numImages"`
}

// ImagesGenerate renders images with the optional trained styles applied.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.ImageSize != "" && !domain.ImageSize(req.ImageSize).Valid() {
		a.error(w, http.StatusBadRequest, "imageSize is not a supported preset")
		return
	}

	result, err := a.Resolver.Generate(r.Context(), domain.GenerationRequest{
		Prompt:           req.Prompt,
		PrimaryStyleID:   req.StyleID,
		ReferenceStyleID: req.ReferenceStyleID,
		ImageSize:        domain.ImageSize(req.ImageSize),
		NegativePrompt:   req.NegativePrompt,
		NumImages:        req.NumImages,
	})
	if err != nil {
		a.record(r.Context(), map[string]int{
			domain.CounterAIRequests:         1,
			domain.CounterGenerationFailures: 1,
		})
		a.generateError(w, err)
		return
	}

	a.record(r.Context(), map[string]int{
		domain.CounterAIRequests:      1,
		domain.CounterImagesGenerated: len(result.Images),
	})
	a.json(w, http.StatusOK, result)
}

func (a *App) generateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "prompt is required")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "Style not found")
	case errors.Is(err, domain.ErrNotReady):
		a.error(w, http.StatusConflict, "Style training is not complete yet")
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusPaymentRequired, fal.UserMessage(err))
	case errors.Is(err, domain.ErrRateLimited):
		a.error(w, http.StatusTooManyRequests, fal.UserMessage(err))
	case errors.Is(err, domain.ErrProviderUnavailable):
		a.error(w, http.StatusServiceUnavailable, fal.UserMessage(err))
	default:
		a.Logger.Error().Err(err).Msg("images: generation failed")
		a.error(w, http.StatusInternalServerError, "Image generation failed")
	}
}
