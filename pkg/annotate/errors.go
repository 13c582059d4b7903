// Package annotate provides custom error types for package-level failures.
package annotate

import (
	"fmt"
)

// PackageErrorKind classifies fatal package failures.
type PackageErrorKind int

const (
	// PackageNotFound means the source path does not exist.
	PackageNotFound PackageErrorKind = iota
	// PackageNotArchive means the source is not a readable zip archive.
	PackageNotArchive
	// PackageMissingPart means a required part is absent from the archive.
	PackageMissingPart
	// PackageIntegrity means the archive failed its internal consistency
	// checks (e.g. a CRC mismatch while extracting an entry).
	PackageIntegrity
	// PackageMalformedPart means a required part exists but cannot be parsed.
	PackageMalformedPart
	// PackageWriteFailed means the output archive could not be written.
	PackageWriteFailed
)

func (k PackageErrorKind) String() string {
	switch k {
	case PackageNotFound:
		return "not found"
	case PackageNotArchive:
		return "not an archive"
	case PackageMissingPart:
		return "missing required part"
	case PackageIntegrity:
		return "archive integrity check failed"
	case PackageMalformedPart:
		return "malformed part"
	case PackageWriteFailed:
		return "write failed"
	default:
		return "unknown"
	}
}

// PackageError represents a fatal error during package operations.
// Any PackageError aborts the whole integration run.
type PackageError struct {
	Kind  PackageErrorKind
	Path  string
	Part  string
	Cause error
}

func (e *PackageError) Error() string {
	msg := fmt.Sprintf("package error (%s)", e.Kind)
	if e.Path != "" {
		msg += fmt.Sprintf(" for '%s'", e.Path)
	}
	if e.Part != "" {
		msg += fmt.Sprintf(": part %s", e.Part)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *PackageError) Unwrap() error {
	return e.Cause
}

// NewPackageError creates a new package error.
func NewPackageError(kind PackageErrorKind, path, part string, cause error) error {
	return &PackageError{
		Kind:  kind,
		Path:  path,
		Part:  part,
		Cause: cause,
	}
}

// AnchorError represents a non-fatal failure to insert comment markers into
// a matched paragraph. The paragraph is left unmodified.
type AnchorError struct {
	Paragraph int
	Message   string
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("anchor error at paragraph %d: %s", e.Paragraph, e.Message)
}

// NewAnchorError creates a new anchor error.
func NewAnchorError(paragraph int, message string) error {
	return &AnchorError{
		Paragraph: paragraph,
		Message:   message,
	}
}

// RelationshipError represents a failure to register the comments part or
// its relationship. It is fatal: a comments part with no reachable
// relationship corrupts the package rather than merely degrading it.
type RelationshipError struct {
	Op    string
	Part  string
	Cause error
}

func (e *RelationshipError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("relationship error during %s of %s: %v", e.Op, e.Part, e.Cause)
	}
	return fmt.Sprintf("relationship error during %s of %s", e.Op, e.Part)
}

func (e *RelationshipError) Unwrap() error {
	return e.Cause
}

// NewRelationshipError creates a new relationship error.
func NewRelationshipError(op, part string, cause error) error {
	return &RelationshipError{
		Op:    op,
		Part:  part,
		Cause: cause,
	}
}

// IsPackageError checks if an error is a package error.
func IsPackageError(err error) bool {
	_, ok := err.(*PackageError)
	return ok
}

// IsAnchorError checks if an error is an anchor error.
func IsAnchorError(err error) bool {
	_, ok := err.(*AnchorError)
	return ok
}

// IsRelationshipError checks if an error is a relationship error.
func IsRelationshipError(err error) bool {
	_, ok := err.(*RelationshipError)
	return ok
}
