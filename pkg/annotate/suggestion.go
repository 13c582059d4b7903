package annotate

import (
	"github.com/go-playground/validator/v10"
)

// Category classifies a suggestion for presentation purposes.
type Category string

const (
	CategoryGrammar  Category = "grammar"
	CategoryStyle    Category = "style"
	CategoryClarity  Category = "clarity"
	CategoryAcademic Category = "academic"
)

// Position is the advisory plain-text offset range reported by the analyzer.
// It is never authoritative for placement: plain-text offsets do not map
// onto the run structure of the document body.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Suggestion is one improvement proposed by the upstream analyzer.
// OriginalText must be a literal snippet plausibly present in the document
// body, not a paraphrase; the locator matches lexically only.
type Suggestion struct {
	OriginalText  string    `json:"original_text" validate:"required"`
	SuggestedText string    `json:"suggested_text" validate:"required"`
	Reason        string    `json:"reason"`
	Category      Category  `json:"category" validate:"omitempty,oneof=grammar style clarity academic"`
	Confidence    float64   `json:"confidence" validate:"gte=0,lte=1"`
	Position      *Position `json:"position,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the suggestion is well-formed enough to process.
func (s Suggestion) Validate() error {
	return validate.Struct(s)
}

// snippetPreview truncates a snippet for failure reporting.
func snippetPreview(s string) string {
	const max = 50
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
