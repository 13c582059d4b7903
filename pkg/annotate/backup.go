package annotate

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BackupPath returns the sibling path a backup of path is written to:
// "thesis.docx" becomes "thesis_backup.docx".
func BackupPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_backup" + ext
}

// Backup writes a byte-identical copy of the source document next to it and
// returns the backup path. It is a pure copy with no dependency on the
// engine; callers invoke it before mutation when they want a restore point.
func Backup(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", NewPackageError(PackageNotFound, path, "", err)
	}
	defer src.Close()

	backupPath := BackupPath(path)
	dst, err := os.Create(backupPath)
	if err != nil {
		return "", NewPackageError(PackageWriteFailed, backupPath, "", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(backupPath)
		return "", NewPackageError(PackageWriteFailed, backupPath, "", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(backupPath)
		return "", NewPackageError(PackageWriteFailed, backupPath, "", err)
	}
	return backupPath, nil
}

// DocumentText extracts the visible paragraph text of a document, one
// paragraph per line. It is what callers feed to the upstream analyzer.
func DocumentText(path string) (string, error) {
	pkg, err := OpenPackage(path)
	if err != nil {
		return "", err
	}
	defer pkg.Close()

	documentXML, err := pkg.ReadPart(PartDocument)
	if err != nil {
		return "", err
	}
	index, err := BuildBodyIndex(documentXML)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for h := 0; h < index.Len(); h++ {
		if text := index.Text(h); text != "" {
			b.WriteString(text)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}
