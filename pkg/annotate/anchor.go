package annotate

import (
	"fmt"
)

// Anchor binds comment id to the paragraph at handle by registering three
// marker insertions: a range start as the paragraph's first child, a range
// end as its last child, and a comment reference in its own run after the
// range end (reference markers are only valid inside a run).
//
// The anchor is paragraph-granular: the whole paragraph is wrapped rather
// than a sub-span, because character offsets within fragmented runs cannot
// be recovered reliably. No text content is altered or removed.
//
// Insertion is atomic: either all three markers are registered or none is.
func (b *BodyIndex) Anchor(handle int, id int) error {
	if handle < 0 || handle >= len(b.paras) {
		return NewAnchorError(handle, "handle out of range")
	}

	node := b.paras[handle]
	if node.selfClosing {
		return NewAnchorError(handle, "paragraph element is self-closing")
	}
	if node.closeStart < node.openEnd {
		return NewAnchorError(handle, "paragraph has no element body")
	}

	rangeStart := fmt.Sprintf(`<w:commentRangeStart w:id="%d"/>`, id)
	rangeEnd := fmt.Sprintf(
		`<w:commentRangeEnd w:id="%d"/>`+
			`<w:r><w:rPr><w:rStyle w:val="CommentReference"/></w:rPr>`+
			`<w:commentReference w:id="%d"/></w:r>`,
		id, id)

	b.insert(node.openEnd, []byte(rangeStart))
	b.insert(node.closeStart, []byte(rangeEnd))
	return nil
}
