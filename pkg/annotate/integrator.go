package annotate

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/m2ix4i/korrektor/internal/logging"
)

// State is the lifecycle stage of one integration run.
type State int

const (
	StateIdle State = iota
	StateExtracted
	StateProcessing
	StateSynthesizing
	StateSerialized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracted:
		return "extracted"
	case StateProcessing:
		return "processing"
	case StateSynthesizing:
		return "synthesizing"
	case StateSerialized:
		return "serialized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report summarizes one integration run. Failures is informational: entries
// describe suggestions that could not be placed, which is expected for a
// best-effort engine and must not be treated as an error by callers.
type Report struct {
	Processed int      `json:"processed"`
	Matched   int      `json:"matched"`
	Failures  []string `json:"failures"`
}

// Integrator owns the per-document lifecycle: validate, extract, locate and
// anchor each suggestion, synthesize the comments part, update the package
// wiring, and re-serialize.
//
// An Integrator is stateless between runs and may be reused, but a single
// run is strictly sequential: comment IDs and body mutations depend on
// suggestion input order. Never run two integrations against the same
// source path concurrently.
type Integrator struct {
	author   string
	initials string
	now      func() time.Time
	log      *zerolog.Logger
}

// NewIntegrator creates an Integrator that attributes comments to the given
// author name and initials.
func NewIntegrator(author, initials string) *Integrator {
	return &Integrator{
		author:   author,
		initials: initials,
		now:      time.Now,
		log:      logging.Named("integrator"),
	}
}

// Integrate runs the full pipeline from inputPath to outputPath. The
// returned error is non-nil only for fatal failures (PackageError or
// RelationshipError); unmatched suggestions are reported in
// Report.Failures. On a fatal failure no file exists at outputPath.
func (it *Integrator) Integrate(inputPath, outputPath string, suggestions []Suggestion) (*Report, error) {
	state := StateIdle

	pkg, err := OpenPackage(inputPath)
	if err != nil {
		return nil, it.fail(&state, err)
	}
	defer pkg.Close()
	state = StateExtracted

	documentXML, err := pkg.ReadPart(PartDocument)
	if err != nil {
		return nil, it.fail(&state, err)
	}
	index, err := BuildBodyIndex(documentXML)
	if err != nil {
		return nil, it.fail(&state, err)
	}
	it.log.Debug().Int("paragraphs", index.Len()).Str("input", inputPath).Msg("body index built")

	state = StateProcessing
	report := &Report{Processed: len(suggestions)}
	comments := &CommentList{}
	nextID := 1

	for _, s := range suggestions {
		if err := s.Validate(); err != nil {
			report.Failures = append(report.Failures,
				fmt.Sprintf("invalid suggestion %q: %v", snippetPreview(s.OriginalText), err))
			continue
		}

		match, ok := Locate(index, s.OriginalText)
		if !ok {
			report.Failures = append(report.Failures,
				fmt.Sprintf("no matching paragraph for %q", snippetPreview(s.OriginalText)))
			continue
		}

		// The ID is consumed even if the anchor fails; IDs are strictly
		// increasing and never reused within a run.
		id := nextID
		nextID++

		if err := index.Anchor(match.Handle, id); err != nil {
			report.Failures = append(report.Failures,
				fmt.Sprintf("anchor failed for %q: %v", snippetPreview(s.OriginalText), err))
			continue
		}

		comments.Add(Comment{
			ID:        id,
			Author:    it.author,
			Initials:  it.initials,
			Timestamp: it.now(),
			Text:      formatCommentText(s),
			Category:  s.Category,
		})
		report.Matched++
		it.log.Debug().
			Int("id", id).
			Int("paragraph", match.Handle).
			Str("strategy", string(match.Strategy)).
			Float64("score", match.Score).
			Msg("suggestion anchored")
	}

	if comments.Len() > 0 {
		state = StateSynthesizing
		if err := pkg.WritePart(PartDocument, index.Serialize()); err != nil {
			return nil, it.fail(&state, err)
		}
		if err := pkg.WritePart(PartComments, comments.Serialize()); err != nil {
			return nil, it.fail(&state, err)
		}
		if err := EnsureCommentsDeclared(pkg); err != nil {
			return nil, it.fail(&state, err)
		}
	}

	if err := pkg.Save(outputPath); err != nil {
		return nil, it.fail(&state, err)
	}
	state = StateSerialized

	it.log.Info().
		Str("input", inputPath).
		Str("output", outputPath).
		Stringer("state", state).
		Int("processed", report.Processed).
		Int("matched", report.Matched).
		Int("failures", len(report.Failures)).
		Msg("integration complete")
	return report, nil
}

func (it *Integrator) fail(state *State, err error) error {
	from := *state
	*state = StateFailed
	it.log.Error().Err(err).Stringer("from", from).Msg("integration failed")
	return err
}
