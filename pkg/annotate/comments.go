package annotate

import (
	"fmt"
	"strings"
	"time"
)

// categoryColors maps a suggestion category to the hex color of the comment
// text run. Unknown categories fall back to gray.
var categoryColors = map[Category]string{
	CategoryGrammar:  "C00000",
	CategoryStyle:    "0070C0",
	CategoryClarity:  "00B050",
	CategoryAcademic: "7030A0",
}

const defaultCommentColor = "808080"

// Comment is one review-comment record destined for word/comments.xml.
// Its ID must match the w:id carried by the range and reference markers
// anchored in the body part; that cross-reference is what binds the visible
// bubble to its paragraph.
type Comment struct {
	ID        int
	Author    string
	Initials  string
	Timestamp time.Time
	Text      string
	Category  Category
}

// CommentList accumulates comment records and serializes them into the
// comments part. Records are kept in insertion order.
type CommentList struct {
	comments []Comment
}

// Add appends a record.
func (cl *CommentList) Add(c Comment) {
	cl.comments = append(cl.comments, c)
}

// Len returns the number of accumulated records.
func (cl *CommentList) Len() int {
	return len(cl.comments)
}

// Comments returns the accumulated records.
func (cl *CommentList) Comments() []Comment {
	return cl.comments
}

// Serialize renders the comments part. Comment text is single-line by
// convention in the target format, so embedded newlines and tabs are
// collapsed to single spaces before escaping.
func (cl *CommentList) Serialize() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:comments xmlns:w="` + wmlNamespace + `">`)

	for _, c := range cl.comments {
		color, ok := categoryColors[c.Category]
		if !ok {
			color = defaultCommentColor
		}

		b.WriteString(fmt.Sprintf(
			`<w:comment w:id="%d" w:author="%s" w:date="%s" w:initials="%s">`,
			c.ID,
			escapeXML(c.Author),
			c.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			escapeXML(c.Initials)))
		b.WriteString(`<w:p><w:r>`)
		b.WriteString(`<w:rPr><w:color w:val="` + color + `"/></w:rPr>`)
		b.WriteString(`<w:t xml:space="preserve">`)
		b.WriteString(escapeXML(flattenText(c.Text)))
		b.WriteString(`</w:t></w:r></w:p></w:comment>`)
	}

	b.WriteString(`</w:comments>`)
	return []byte(b.String())
}

// escapeXML escapes the five XML special characters.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}

// flattenText collapses newlines and tabs to single spaces.
func flattenText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}

// formatCommentText renders the body text of a comment from a suggestion.
func formatCommentText(s Suggestion) string {
	category := strings.ToUpper(string(s.Category))
	if category == "" {
		category = "REVIEW"
	}
	text := fmt.Sprintf("[%s] Suggestion: %s", category, s.SuggestedText)
	if s.Reason != "" {
		text += fmt.Sprintf(" | Reason: %s", s.Reason)
	}
	if s.Confidence > 0 {
		text += fmt.Sprintf(" (confidence %.0f%%)", s.Confidence*100)
	}
	return text
}
