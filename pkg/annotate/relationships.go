package annotate

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

const (
	relationshipsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"
	contentTypesNamespace  = "http://schemas.openxmlformats.org/package/2006/content-types"

	commentsRelationType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
	commentsContentType  = "application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"
	commentsPartName     = "/word/comments.xml"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// Relationship represents a relationship in the DOCX package.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// Relationships represents the collection of relationships of one part.
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// ContentTypeDefault declares the content type for a file extension.
type ContentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypeOverride declares the content type for a specific part.
type ContentTypeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypes represents the root content-type manifest.
type ContentTypes struct {
	XMLName   xml.Name              `xml:"Types"`
	Namespace string                `xml:"xmlns,attr"`
	Defaults  []ContentTypeDefault  `xml:"Default"`
	Overrides []ContentTypeOverride `xml:"Override"`
}

// nextRelationshipID computes the next free relationship ID by scanning the
// existing rIdN identifiers and taking max+1.
func nextRelationshipID(rels []Relationship) string {
	maxID := 0
	for _, rel := range rels {
		if strings.HasPrefix(rel.ID, "rId") {
			numStr := strings.TrimPrefix(rel.ID, "rId")
			if num, err := strconv.Atoi(numStr); err == nil && num > maxID {
				maxID = num
			}
		}
	}
	return fmt.Sprintf("rId%d", maxID+1)
}

// EnsureCommentsDeclared registers the comments part in the package wiring.
// Both sub-steps are idempotent:
//
//  1. [Content_Types].xml gains an Override for /word/comments.xml if no
//     declaration for that part exists yet. Every part in the package shares
//     the xml extension, so an extension-level Default cannot distinguish
//     the comments part; the declaration has to be part-specific.
//  2. word/_rels/document.xml.rels gains a relationship of the comments type
//     targeting comments.xml if none is present, with a collision-free ID.
//
// Any failure here is fatal to the run: a comments part that is declared in
// only one of the two places corrupts the package.
func EnsureCommentsDeclared(pkg *Package) error {
	if err := ensureContentType(pkg); err != nil {
		return err
	}
	return ensureRelationship(pkg)
}

func ensureContentType(pkg *Package) error {
	content, err := pkg.ReadPart(PartContentTypes)
	if err != nil {
		return NewRelationshipError("read", PartContentTypes, err)
	}

	var types ContentTypes
	if err := xml.Unmarshal(content, &types); err != nil {
		return NewRelationshipError("parse", PartContentTypes, err)
	}

	for _, o := range types.Overrides {
		if o.PartName == commentsPartName {
			return nil
		}
	}

	types.Overrides = append(types.Overrides, ContentTypeOverride{
		PartName:    commentsPartName,
		ContentType: commentsContentType,
	})
	if types.Namespace == "" {
		types.Namespace = contentTypesNamespace
	}

	output, err := xml.Marshal(&types)
	if err != nil {
		return NewRelationshipError("marshal", PartContentTypes, err)
	}
	if err := pkg.WritePart(PartContentTypes, append([]byte(xmlHeader), output...)); err != nil {
		return NewRelationshipError("write", PartContentTypes, err)
	}
	return nil
}

func ensureRelationship(pkg *Package) error {
	// A minimal package may not carry a relationship manifest for the body
	// part yet; start one in that case.
	var rels Relationships
	if pkg.HasPart(PartDocumentRels) {
		content, err := pkg.ReadPart(PartDocumentRels)
		if err != nil {
			return NewRelationshipError("read", PartDocumentRels, err)
		}
		if err := xml.Unmarshal(content, &rels); err != nil {
			return NewRelationshipError("parse", PartDocumentRels, err)
		}
	}

	for _, rel := range rels.Relationship {
		if rel.Type == commentsRelationType {
			return nil
		}
	}

	rels.Relationship = append(rels.Relationship, Relationship{
		ID:     nextRelationshipID(rels.Relationship),
		Type:   commentsRelationType,
		Target: commentsRelTarget,
	})
	if rels.Namespace == "" {
		rels.Namespace = relationshipsNamespace
	}

	output, err := xml.Marshal(&rels)
	if err != nil {
		return NewRelationshipError("marshal", PartDocumentRels, err)
	}
	if err := pkg.WritePart(PartDocumentRels, append([]byte(xmlHeader), output...)); err != nil {
		return NewRelationshipError("write", PartDocumentRels, err)
	}
	return nil
}
