// Package analyzer produces improvement suggestions for document text.
// It is the upstream collaborator of the integration engine: implementations
// must return original_text values that are literal snippets of the document
// body, because the engine places comments by lexical matching only.
package analyzer

import (
	"context"

	"github.com/m2ix4i/korrektor/pkg/annotate"
)

// Analyzer produces suggestions for a document's plain text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]annotate.Suggestion, error)
}

// Static returns a fixed suggestion list; used for tests and offline runs.
type Static struct {
	Suggestions []annotate.Suggestion
}

// Analyze returns the configured suggestions unchanged.
func (s *Static) Analyze(ctx context.Context, text string) ([]annotate.Suggestion, error) {
	return s.Suggestions, nil
}
