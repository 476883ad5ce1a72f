package domain

// ImageSize enumerates the provider's image size presets.
type ImageSize string

const (
	ImageSizeSquareHD     ImageSize = "square_hd"
	ImageSizeSquare       ImageSize = "square"
	ImageSizePortrait43   ImageSize = "portrait_4_3"
	ImageSizePortrait169  ImageSize = "portrait_16_9"
	ImageSizeLandscape43  ImageSize = "landscape_4_3"
	ImageSizeLandscape169 ImageSize = "landscape_16_9"

	DefaultImageSize = ImageSizeSquareHD
)

// ImageSizes lists every accepted preset.
var ImageSizes = []ImageSize{
	ImageSizeSquareHD,
	ImageSizeSquare,
	ImageSizePortrait43,
	ImageSizePortrait169,
	ImageSizeLandscape43,
	ImageSizeLandscape169,
}

// Valid reports whether the value is a known preset.
func (s ImageSize) Valid() bool {
	for _, known := range ImageSizes {
		if s == known {
			return true
		}
	}
	return false
}

// Image count bounds for a single generation request.
const (
	MinImagesPerRequest = 1
	MaxImagesPerRequest = 4
)

// GenerationRequest describes one synchronous image generation call. It is
// transient; nothing here is persisted.
type GenerationRequest struct {
	Prompt           string
	PrimaryStyleID   string
	ReferenceStyleID string
	ImageSize        ImageSize
	NegativePrompt   string
	NumImages        int
}

// LoraWeight references a trained artifact with its blend scale.
type LoraWeight struct {
	Path  string  `json:"path"`
	Scale float64 `json:"scale"`
}

// GeneratedImage describes a single produced image.
type GeneratedImage struct {
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"contentType"`
}

// GenerationResult is the provider outcome returned to the caller.
type GenerationResult struct {
	Images         []GeneratedImage `json:"images"`
	ResolvedPrompt string           `json:"resolvedPrompt"`
	Seed           int64            `json:"seed"`
}
