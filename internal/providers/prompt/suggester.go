package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"neongen/internal/domain"
)

// Suggestion is one starter prompt for a trained style.
type Suggestion struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// StaticSuggester produces deterministic starter prompts for a style record.
// Prompts for completed styles carry the trigger prefix so they can be
// pasted straight into a generation request.
type StaticSuggester struct {
	titler cases.Caser
}

// NewStaticSuggester constructs the suggester.
func NewStaticSuggester() *StaticSuggester {
	return &StaticSuggester{titler: cases.Title(language.English)}
}

// Suggest returns starter prompts matching the style's training category.
func (s *StaticSuggester) Suggest(job *domain.TrainingJob) []Suggestion {
	name := s.titler.String(strings.TrimSpace(job.StyleName))
	prefix := ""
	if job.Status == domain.TrainingStatusCompleted {
		prefix = domain.TriggerWord + ", "
	}

	var ideas []Suggestion
	switch job.StyleType {
	case domain.StyleTypePerson:
		ideas = []Suggestion{
			{Title: fmt.Sprintf("%s Portrait", name), Prompt: prefix + "professional studio portrait, soft key light, 85mm lens"},
			{Title: fmt.Sprintf("%s Outdoors", name), Prompt: prefix + "candid photo outdoors at golden hour, shallow depth of field"},
			{Title: fmt.Sprintf("%s Editorial", name), Prompt: prefix + "editorial fashion photo, dramatic lighting, magazine cover"},
		}
	case domain.StyleTypeCharacter:
		ideas = []Suggestion{
			{Title: fmt.Sprintf("%s Hero Shot", name), Prompt: prefix + "full body hero pose, dynamic angle, detailed background"},
			{Title: fmt.Sprintf("%s Close-up", name), Prompt: prefix + "expressive close-up, cinematic lighting"},
			{Title: fmt.Sprintf("%s Adventure", name), Prompt: prefix + "exploring a vast fantasy landscape, epic scale"},
		}
	default:
		ideas = []Suggestion{
			{Title: fmt.Sprintf("%s Landscape", name), Prompt: prefix + "sweeping mountain landscape at dawn"},
			{Title: fmt.Sprintf("%s Still Life", name), Prompt: prefix + "still life with flowers on a wooden table"},
			{Title: fmt.Sprintf("%s Cityscape", name), Prompt: prefix + "rainy city street at night, neon reflections"},
		}
	}
	return ideas
}
