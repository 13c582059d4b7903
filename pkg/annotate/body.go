package annotate

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
)

const wmlNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// minParagraphLength is the shortest paragraph text the locator will
// consider. Shorter paragraphs are usually structural (spacers, captions)
// and too ambiguous to match against.
const minParagraphLength = 10

// paragraphNode is one <w:p> element of the body part, addressed by its
// ordinal in the arena. Offsets are byte positions into the original part.
type paragraphNode struct {
	openEnd     int64  // just past the '>' of the opening tag
	closeStart  int64  // at the '<' of the closing tag
	selfClosing bool   // <w:p/> cannot take children
	text        string // concatenated run text in document order
	normText    string // normalized form, cached for the locator
}

// edit is a pending insertion into the body part. Edits are registered by
// the anchor inserter and applied once at serialization, so a failed anchor
// never leaves a half-modified paragraph behind.
type edit struct {
	at   int64
	frag []byte
}

// BodyIndex is an arena over the paragraphs of word/document.xml. Handles
// are stable integer ordinals; the underlying bytes are never mutated until
// Serialize applies the pending edits.
type BodyIndex struct {
	doc   []byte
	paras []paragraphNode
	edits []edit
}

// BuildBodyIndex walks the body part once and records, for every paragraph
// element (including paragraphs nested inside tables), its byte offsets and
// the concatenation of all its run text. Rich text is fragmented across
// arbitrary run boundaries, so the text of a paragraph is the join of every
// <w:t> it contains, in document order.
func BuildBodyIndex(documentXML []byte) (*BodyIndex, error) {
	idx := &BodyIndex{doc: documentXML}

	d := xml.NewDecoder(bytes.NewReader(documentXML))
	var (
		inPara    bool
		paraDepth int
		depth     int
		inText    bool
		text      bytes.Buffer
		node      paragraphNode
	)

	for {
		prev := d.InputOffset()
		token, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewPackageError(PackageMalformedPart, "", PartDocument, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Space == wmlNamespace && t.Name.Local == "p" && !inPara {
				inPara = true
				paraDepth = depth
				text.Reset()
				node = paragraphNode{openEnd: d.InputOffset()}
				// A self-closing <w:p/> start tag ends in "/>".
				if node.openEnd >= 2 && documentXML[node.openEnd-2] == '/' {
					node.selfClosing = true
				}
			}
			if inPara && t.Name.Space == wmlNamespace && t.Name.Local == "t" {
				inText = true
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			if inPara && t.Name.Space == wmlNamespace && t.Name.Local == "t" {
				inText = false
			}
			if inPara && depth == paraDepth && t.Name.Space == wmlNamespace && t.Name.Local == "p" {
				node.closeStart = prev
				if node.selfClosing {
					node.closeStart = node.openEnd
				}
				node.text = text.String()
				node.normText = normalizeText(node.text)
				idx.paras = append(idx.paras, node)
				inPara = false
				inText = false
			}
			depth--
		}
	}

	return idx, nil
}

// Len returns the number of paragraphs in the arena.
func (b *BodyIndex) Len() int {
	return len(b.paras)
}

// Text returns the concatenated run text of the paragraph at handle.
func (b *BodyIndex) Text(handle int) string {
	return b.paras[handle].text
}

// candidate reports whether the paragraph at handle is eligible for
// matching. Paragraphs below the minimum length stay in the arena so that
// handles remain stable, but the locator never considers them.
func (b *BodyIndex) candidate(handle int) bool {
	return len([]rune(b.paras[handle].text)) >= minParagraphLength
}

// insert registers a pending edit at the given byte offset.
func (b *BodyIndex) insert(at int64, frag []byte) {
	b.edits = append(b.edits, edit{at: at, frag: frag})
}

// Serialize applies all pending edits and returns the resulting body part.
// With no pending edits the output is byte-identical to the input.
func (b *BodyIndex) Serialize() []byte {
	if len(b.edits) == 0 {
		return b.doc
	}

	edits := make([]edit, len(b.edits))
	copy(edits, b.edits)
	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].at < edits[j].at
	})

	var out bytes.Buffer
	out.Grow(len(b.doc))
	var pos int64
	for _, e := range edits {
		out.Write(b.doc[pos:e.at])
		out.Write(e.frag)
		pos = e.at
	}
	out.Write(b.doc[pos:])
	return out.Bytes()
}
