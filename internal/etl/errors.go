package etl

import (
	"fmt"
)

// ── Errors ─────────────────────────────────────────────────
// Every failure of an import is terminal for that attempt.
// Callers tell them apart with errors.As.

// ConfigurationError is returned for an unknown import target.
type ConfigurationError struct {
	Target string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown import target: %q", e.Target)
}

// UnsupportedFormatError is returned before any parsing when the file
// extension has no registered source.
type UnsupportedFormatError struct {
	FileName  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("unsupported file type for %q: please upload a .csv, .xlsx or .xls file", e.FileName)
	}
	return fmt.Sprintf("unsupported file type %q: please upload a .csv, .xlsx or .xls file", "."+e.Extension)
}

// ParseError means the file could not be read as its claimed format,
// or (in strict mode) a numeric cell was malformed.
type ParseError struct {
	Format string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("parse %s: line %d, column %q: %v", e.Format, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("parse %s: line %d: %v", e.Format, e.Line, e.Err)
	default:
		return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyInputError is returned when a file has no rows, or only blank ones.
type EmptyInputError struct {
	FileName string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s is empty or has no valid rows", e.FileName)
}

// CommitError wraps a failed batch write. Nothing was written.
type CommitError struct {
	Collection string
	Err        error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit to %q failed: %v", e.Collection, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
