package annotate

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Well-known part names inside a DOCX package.
const (
	PartContentTypes  = "[Content_Types].xml"
	PartRootRels      = "_rels/.rels"
	PartDocument      = "word/document.xml"
	PartDocumentRels  = "word/_rels/document.xml.rels"
	PartComments      = "word/comments.xml"
	commentsRelTarget = "comments.xml"
)

// requiredParts must be present for a package to be considered valid.
var requiredParts = []string{
	PartContentTypes,
	PartRootRels,
	PartDocument,
}

// Package is a DOCX archive extracted into a scratch directory. The scratch
// area is owned exclusively by one integration run; it is created by
// OpenPackage and removed by Close.
type Package struct {
	srcPath string
	root    string
	closed  bool
}

// OpenPackage opens the archive at path, validates it, and extracts every
// entry into a fresh uniquely named scratch directory. Extraction reads each
// entry in full, so zip CRC failures surface here, before any mutation.
func OpenPackage(path string) (*Package, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewPackageError(PackageNotFound, path, "", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, NewPackageError(PackageNotArchive, path, "", err)
	}
	defer zr.Close()

	names := make(map[string]bool, len(zr.File))
	for _, file := range zr.File {
		names[file.Name] = true
	}
	for _, part := range requiredParts {
		if !names[part] {
			return nil, NewPackageError(PackageMissingPart, path, part, nil)
		}
	}

	root, err := os.MkdirTemp("", "korrektor-*")
	if err != nil {
		return nil, NewPackageError(PackageIntegrity, path, "", err)
	}

	pkg := &Package{srcPath: path, root: root}
	for _, file := range zr.File {
		if err := pkg.extractEntry(file); err != nil {
			pkg.Close()
			return nil, NewPackageError(PackageIntegrity, path, file.Name, err)
		}
	}

	return pkg, nil
}

// extractEntry writes one archive entry into the scratch area.
func (p *Package) extractEntry(file *zip.File) error {
	// Reject entries that would escape the scratch directory.
	if strings.Contains(file.Name, "..") || filepath.IsAbs(file.Name) {
		return fmt.Errorf("unsafe entry name %q", file.Name)
	}

	dest := filepath.Join(p.root, filepath.FromSlash(file.Name))
	if file.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	fw, err := os.Create(dest)
	if err != nil {
		return err
	}

	// io.Copy reads the entry to EOF, which is where the zip reader
	// verifies the declared CRC.
	if _, err := io.Copy(fw, rc); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}

// ReadPart returns the content of a part from the scratch area.
func (p *Package) ReadPart(name string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, NewPackageError(PackageMissingPart, p.srcPath, name, err)
	}
	return content, nil
}

// WritePart replaces the content of a part in the scratch area, creating it
// if it does not exist yet.
func (p *Package) WritePart(name string, content []byte) error {
	dest := filepath.Join(p.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return NewPackageError(PackageWriteFailed, p.srcPath, name, err)
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return NewPackageError(PackageWriteFailed, p.srcPath, name, err)
	}
	return nil
}

// HasPart reports whether a part exists in the scratch area.
func (p *Package) HasPart(name string) bool {
	_, err := os.Stat(filepath.Join(p.root, filepath.FromSlash(name)))
	return err == nil
}

// Save walks the scratch area recursively and writes every file into a
// fresh archive at outPath. The archive is assembled in a temporary file
// and renamed into place, so a failed save never leaves a truncated file
// at the destination.
func (p *Package) Save(outPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".korrektor-out-*")
	if err != nil {
		return NewPackageError(PackageWriteFailed, outPath, "", err)
	}
	tmpName := tmp.Name()

	fail := func(cause error) error {
		tmp.Close()
		os.Remove(tmpName)
		return NewPackageError(PackageWriteFailed, outPath, "", cause)
	}

	w := zip.NewWriter(tmp)
	err = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}

		fw, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		fr, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(fw, fr)
		fr.Close()
		return err
	})
	if err != nil {
		return fail(err)
	}

	if err := w.Close(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return NewPackageError(PackageWriteFailed, outPath, "", err)
	}
	return nil
}

// Close removes the scratch directory. Safe to call more than once.
func (p *Package) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return os.RemoveAll(p.root)
}
