// Package annotate integrates machine-generated review suggestions into
// Microsoft Word documents (DOCX) as native review comments.
//
// Given a source document and a list of suggestions, the engine locates the
// best matching paragraph for each suggestion's original text, anchors a
// comment range to it, synthesizes the word/comments.xml part, and wires up
// the content-type and relationship entries the host application needs to
// show the comments on open.
//
// Basic Usage:
//
//	it := annotate.NewIntegrator("Review Bot", "RB")
//
//	suggestions := []annotate.Suggestion{
//	    {
//	        OriginalText:  "Large Language Models is a powerful tool",
//	        SuggestedText: "Large Language Models are powerful tools",
//	        Reason:        "Subject-verb agreement",
//	        Category:      annotate.CategoryGrammar,
//	        Confidence:    0.95,
//	    },
//	}
//
//	report, err := it.Integrate("thesis.docx", "thesis_annotated.docx", suggestions)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("matched %d of %d\n", report.Matched, report.Processed)
//
// Placement is best-effort: plain-text offsets supplied by the
// upstream analyzer cannot be mapped onto the fragmented run structure of
// the document body, so the locator works lexically, with a cascade of exact
// substring and fuzzy similarity strategies. Suggestions that cannot be
// placed are reported in Report.Failures and never abort the batch.
//
// A run either produces a fully valid output document or no output at all;
// there is no partially written state.
package annotate
