package annotate

import (
	"encoding/xml"
	"strings"
	"testing"
)

func openTestPackage(t *testing.T, parts map[string]string) *Package {
	t.Helper()
	path := writeDocxFile(t, buildDocxBytesWithParts(t, parts))
	pkg, err := OpenPackage(path)
	if err != nil {
		t.Fatalf("OpenPackage() error = %v", err)
	}
	t.Cleanup(func() { pkg.Close() })
	return pkg
}

func TestNextRelationshipID(t *testing.T) {
	tests := []struct {
		name string
		rels []Relationship
		want string
	}{
		{"empty", nil, "rId1"},
		{"sequential", []Relationship{{ID: "rId1"}, {ID: "rId2"}}, "rId3"},
		{"gap", []Relationship{{ID: "rId1"}, {ID: "rId7"}}, "rId8"},
		{"non-standard ids ignored", []Relationship{{ID: "custom"}, {ID: "rId3"}}, "rId4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextRelationshipID(tt.rels); got != tt.want {
				t.Errorf("nextRelationshipID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnsureCommentsDeclared(t *testing.T) {
	pkg := openTestPackage(t, nil)

	if err := EnsureCommentsDeclared(pkg); err != nil {
		t.Fatalf("EnsureCommentsDeclared() error = %v", err)
	}

	var types ContentTypes
	content, err := pkg.ReadPart(PartContentTypes)
	if err != nil {
		t.Fatalf("read content types: %v", err)
	}
	if err := xml.Unmarshal(content, &types); err != nil {
		t.Fatalf("parse content types: %v", err)
	}
	found := 0
	for _, o := range types.Overrides {
		if o.PartName == commentsPartName {
			found++
			if o.ContentType != commentsContentType {
				t.Errorf("override content type = %q, want %q", o.ContentType, commentsContentType)
			}
		}
	}
	if found != 1 {
		t.Errorf("comments override count = %d, want 1", found)
	}

	var rels Relationships
	content, err = pkg.ReadPart(PartDocumentRels)
	if err != nil {
		t.Fatalf("read document rels: %v", err)
	}
	if err := xml.Unmarshal(content, &rels); err != nil {
		t.Fatalf("parse document rels: %v", err)
	}
	var commentRel *Relationship
	for i, rel := range rels.Relationship {
		if rel.Type == commentsRelationType {
			if commentRel != nil {
				t.Fatal("duplicate comments relationship")
			}
			commentRel = &rels.Relationship[i]
		}
	}
	if commentRel == nil {
		t.Fatal("comments relationship not added")
	}
	if commentRel.Target != "comments.xml" {
		t.Errorf("relationship target = %q, want comments.xml", commentRel.Target)
	}
	// The fixture already holds rId1, so the new relationship must not
	// collide with it.
	if commentRel.ID != "rId2" {
		t.Errorf("relationship ID = %q, want rId2", commentRel.ID)
	}
}

func TestEnsureCommentsDeclaredIdempotent(t *testing.T) {
	pkg := openTestPackage(t, nil)

	if err := EnsureCommentsDeclared(pkg); err != nil {
		t.Fatalf("first call: %v", err)
	}
	typesBefore, _ := pkg.ReadPart(PartContentTypes)
	relsBefore, _ := pkg.ReadPart(PartDocumentRels)

	if err := EnsureCommentsDeclared(pkg); err != nil {
		t.Fatalf("second call: %v", err)
	}
	typesAfter, _ := pkg.ReadPart(PartContentTypes)
	relsAfter, _ := pkg.ReadPart(PartDocumentRels)

	if string(typesBefore) != string(typesAfter) {
		t.Error("second call changed the content-type manifest")
	}
	if string(relsBefore) != string(relsAfter) {
		t.Error("second call changed the relationship manifest")
	}
}

func TestEnsureCommentsDeclaredExistingRelationship(t *testing.T) {
	pkg := openTestPackage(t, map[string]string{
		PartDocumentRels: xmlHeader +
			`<Relationships xmlns="` + relationshipsNamespace + `">` +
			`<Relationship Id="rId5" Type="` + commentsRelationType + `" Target="comments.xml"/>` +
			`</Relationships>`,
	})

	if err := EnsureCommentsDeclared(pkg); err != nil {
		t.Fatalf("EnsureCommentsDeclared() error = %v", err)
	}

	content, err := pkg.ReadPart(PartDocumentRels)
	if err != nil {
		t.Fatalf("read document rels: %v", err)
	}
	var rels Relationships
	if err := xml.Unmarshal(content, &rels); err != nil {
		t.Fatalf("parse document rels: %v", err)
	}
	count := 0
	for _, rel := range rels.Relationship {
		if rel.Type == commentsRelationType {
			count++
			if rel.ID != "rId5" {
				t.Errorf("existing relationship ID changed to %q", rel.ID)
			}
		}
	}
	if count != 1 {
		t.Errorf("comments relationship count = %d, want 1", count)
	}
}

func TestEnsureCommentsDeclaredMalformedContentTypes(t *testing.T) {
	pkg := openTestPackage(t, map[string]string{
		PartContentTypes: "this is not xml <",
	})

	err := EnsureCommentsDeclared(pkg)
	if !IsRelationshipError(err) {
		t.Fatalf("error = %v, want relationship error", err)
	}
	if !strings.Contains(err.Error(), PartContentTypes) {
		t.Errorf("error %q should name the failing part", err)
	}
}
