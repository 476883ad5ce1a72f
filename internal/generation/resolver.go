// Package generation resolves trained style references into weighted
// artifact lists and runs synchronous image generation against the provider.
package generation

import (
	"context"
	"fmt"
	"strings"

	"neongen/internal/domain"
	"neongen/internal/infra"
	"neongen/internal/providers/fal"
)

// Blend scales for trained artifacts. A lone style dominates; a pair shares
// influence with the primary ahead.
const (
	soloPrimaryScale = 0.9
	dualPrimaryScale = 0.75
	referenceScale   = 0.6
)

// Inference settings fixed for the flux-lora endpoint.
const (
	baseModelName     = "fal-ai/flux/dev"
	numInferenceSteps = 28
	guidanceScale     = 3.5
)

// ImageGenerator is the synchronous inference surface of the provider client.
type ImageGenerator interface {
	Generate(ctx context.Context, model string, input fal.GenerateInput) (*fal.GenerateOutput, error)
}

// Resolver turns a generation request into a provider call: style lookups,
// weighted artifact list, trigger-prefixed prompt.
type Resolver struct {
	repo   domain.StyleRepository
	client ImageGenerator
	model  string
	logger infra.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(repo domain.StyleRepository, client ImageGenerator, model string, logger infra.Logger) *Resolver {
	return &Resolver{repo: repo, client: client, model: model, logger: logger}
}

// Generate validates, resolves styles, and performs one synchronous
// generation call. No remote call is made unless every referenced style is
// completed with an artifact URL.
func (r *Resolver) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}

	var loras []domain.LoraWeight
	if req.PrimaryStyleID != "" {
		primary, err := r.resolveStyle(ctx, req.PrimaryStyleID, "primary")
		if err != nil {
			return nil, err
		}
		scale := soloPrimaryScale
		if req.ReferenceStyleID != "" {
			scale = dualPrimaryScale
		}
		loras = append(loras, domain.LoraWeight{Path: primary.LoraURL, Scale: scale})
	}
	if req.ReferenceStyleID != "" {
		reference, err := r.resolveStyle(ctx, req.ReferenceStyleID, "reference")
		if err != nil {
			return nil, err
		}
		loras = append(loras, domain.LoraWeight{Path: reference.LoraURL, Scale: referenceScale})
	}

	resolvedPrompt := prompt
	if len(loras) > 0 {
		resolvedPrompt = domain.TriggerWord + ", " + prompt
	}
	if negative := strings.TrimSpace(req.NegativePrompt); negative != "" {
		// The provider has no native negative-prompt field.
		resolvedPrompt = resolvedPrompt + ". Avoid: " + negative
	}

	size := req.ImageSize
	if size == "" {
		size = domain.DefaultImageSize
	}
	numImages := req.NumImages
	if numImages < domain.MinImagesPerRequest {
		numImages = domain.MinImagesPerRequest
	}
	if numImages > domain.MaxImagesPerRequest {
		numImages = domain.MaxImagesPerRequest
	}

	output, err := r.client.Generate(ctx, r.model, fal.GenerateInput{
		ModelName:           baseModelName,
		Prompt:              resolvedPrompt,
		ImageSize:           string(size),
		NumImages:           numImages,
		NumInferenceSteps:   numInferenceSteps,
		GuidanceScale:       guidanceScale,
		EnableSafetyChecker: true,
		Loras:               loras,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}

	images := make([]domain.GeneratedImage, 0, len(output.Images))
	for _, img := range output.Images {
		generated := domain.GeneratedImage{
			URL:         img.URL,
			Width:       img.Width,
			Height:      img.Height,
			ContentType: img.ContentType,
		}
		if generated.Width == 0 {
			generated.Width = 1024
		}
		if generated.Height == 0 {
			generated.Height = 1024
		}
		if generated.ContentType == "" {
			generated.ContentType = "image/png"
		}
		images = append(images, generated)
	}

	r.logger.Info().Int("images", len(images)).Int("loras", len(loras)).Msg("generation: completed")
	return &domain.GenerationResult{
		Images:         images,
		ResolvedPrompt: resolvedPrompt,
		Seed:           output.Seed,
	}, nil
}

// resolveStyle loads a referenced style and requires it to be trained.
func (r *Resolver) resolveStyle(ctx context.Context, id, role string) (*domain.TrainingJob, error) {
	job, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s style %q: %w", role, id, err)
	}
	if job.Status != domain.TrainingStatusCompleted || job.LoraURL == "" {
		return nil, fmt.Errorf("%s style %q: %w", role, id, domain.ErrNotReady)
	}
	return job, nil
}
