package annotate

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildDocumentXML wraps body content into a minimal document part.
func buildDocumentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`
}

// paragraphXML renders one single-run paragraph.
func paragraphXML(text string) string {
	return `<w:p><w:r><w:t>` + escapeXML(text) + `</w:t></w:r></w:p>`
}

// paragraphsXML renders one paragraph per text.
func paragraphsXML(texts ...string) string {
	var b strings.Builder
	for _, text := range texts {
		b.WriteString(paragraphXML(text))
	}
	return b.String()
}

// buildDocxBytes assembles a minimal but valid DOCX archive around the given
// document part content.
func buildDocxBytes(t *testing.T, documentXML string) []byte {
	t.Helper()
	return buildDocxBytesWithParts(t, map[string]string{
		PartDocument: documentXML,
	})
}

// buildDocxBytesWithParts assembles a DOCX archive. The required parts get
// sensible defaults unless overridden; extra parts are written as given.
func buildDocxBytesWithParts(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	defaults := map[string]string{
		PartContentTypes: `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`,
		PartRootRels: `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`,
		PartDocumentRels: `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
			`</Relationships>`,
		PartDocument: buildDocumentXML(paragraphXML("Placeholder body text for tests.")),
	}
	for name, content := range parts {
		defaults[name] = content
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, content := range defaults {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// writeDocxFile writes archive bytes into a temp file and returns its path.
func writeDocxFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.docx")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write docx: %v", err)
	}
	return path
}

// readZipPart returns the content of one part from archive bytes, or nil if
// the part does not exist.
func readZipPart(t *testing.T, archive []byte, name string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	for _, file := range zr.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return content
	}
	return nil
}
