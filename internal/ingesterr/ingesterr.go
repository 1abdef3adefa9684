// Package ingesterr defines the error kinds raised while turning an uploaded
// file into table frames.
//
// Every fatal error is scoped to one file (or one archive entry). The batch
// orchestrator reports it and moves on to the next file.
package ingesterr

import (
	"errors"
	"fmt"
)

// Kind classifies an ingestion failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindFormatMismatch: content sniffing found HTML/JSON/ZIP/PDF where XML
	// was expected.
	KindFormatMismatch
	// KindDecodeExhausted: every encoding/parse attempt failed.
	KindDecodeExhausted
	// KindCorruptArchive: the ZIP structure is invalid.
	KindCorruptArchive
	// KindEmptyArchive: the ZIP holds no CSV entries. Reported as a warning.
	KindEmptyArchive
)

func (k Kind) String() string {
	switch k {
	case KindFormatMismatch:
		return "format_mismatch"
	case KindDecodeExhausted:
		return "decode_exhausted"
	case KindCorruptArchive:
		return "corrupt_archive"
	case KindEmptyArchive:
		return "empty_archive"
	default:
		return "unknown"
	}
}

var (
	// ErrCorruptArchive is wrapped by every archive structure failure.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrEmptyArchive signals an archive without CSV entries.
	ErrEmptyArchive = errors.New("archive contains no CSV entries")
)

// FormatMismatchError is returned when the content of a file is recognizably
// some other format than the one its name claims.
type FormatMismatchError struct {
	// Detected is the sniffed format name, e.g. "HTML".
	Detected string
	// Expected is the declared format, e.g. "XML".
	Expected string
	// Detail is optional extra context (an HTML page title, for instance).
	Detail string
}

func (e *FormatMismatchError) Error() string {
	expected := e.Expected
	if expected == "" {
		expected = "XML"
	}
	msg := fmt.Sprintf("file appears to be %s, not valid %s", e.Detected, expected)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// DecodeExhaustedError carries the last underlying failure after every
// decode strategy was tried.
type DecodeExhaustedError struct {
	// What names the document kind ("XML", "CSV").
	What string
	// Attempts is how many strategies were tried.
	Attempts int
	Last     error
}

func (e *DecodeExhaustedError) Error() string {
	what := e.What
	if what == "" {
		what = "document"
	}
	return fmt.Sprintf("malformed %s after %d attempts: %v", what, e.Attempts, e.Last)
}

func (e *DecodeExhaustedError) Unwrap() error { return e.Last }

// CorruptArchive wraps cause so that errors.Is(err, ErrCorruptArchive) holds.
func CorruptArchive(cause error) error {
	if cause == nil {
		return ErrCorruptArchive
	}
	return fmt.Errorf("%w: %v", ErrCorruptArchive, cause)
}

// KindOf reports the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fm *FormatMismatchError
	if errors.As(err, &fm) {
		return KindFormatMismatch
	}
	var de *DecodeExhaustedError
	if errors.As(err, &de) {
		return KindDecodeExhausted
	}
	if errors.Is(err, ErrCorruptArchive) {
		return KindCorruptArchive
	}
	if errors.Is(err, ErrEmptyArchive) {
		return KindEmptyArchive
	}
	return KindUnknown
}
