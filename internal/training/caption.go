package training

import "neongen/internal/domain"

// DefaultCaption builds the trainer's default_caption for a style type. The
// caption embeds the fixed trigger word so the model learns to associate it
// with the trained content.
func DefaultCaption(styleType domain.StyleType) string {
	switch styleType {
	case domain.StyleTypePerson:
		return "a photo of " + domain.TriggerWord + " person"
	case domain.StyleTypeCharacter:
		return "a photo of " + domain.TriggerWord + " character"
	case domain.StyleTypeArtStyle:
		return "in the style of " + domain.TriggerWord
	default:
		return "a photo of " + domain.TriggerWord
	}
}
