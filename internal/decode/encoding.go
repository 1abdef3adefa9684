// Package decode turns cleaned upload bytes into structured values while
// tolerating the encoding mistakes common in legacy ERP exports.
//
// Both the XML and the CSV path walk the same ordered encoding list and stop
// at the first attempt that parses.
package decode

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is one decode strategy.
type Encoding int

const (
	// Native hands the bytes to the parser untouched. XML documents are
	// decoded according to their own encoding declaration; CSV is read as
	// strict UTF-8.
	Native Encoding = iota
	UTF8
	Latin1
	CP1252
)

// DefaultEncodings is the priority order used when Options.Encodings is empty.
var DefaultEncodings = []Encoding{Native, UTF8, Latin1, CP1252}

func (e Encoding) String() string {
	switch e {
	case Native:
		return "native"
	case UTF8:
		return "utf-8"
	case Latin1:
		return "latin1"
	case CP1252:
		return "cp1252"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding accepts the names produced by String plus common aliases.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "native", "auto", "":
		return Native, nil
	case "utf-8", "utf8":
		return UTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return Latin1, nil
	case "cp1252", "windows-1252", "win1252":
		return CP1252, nil
	}
	return Native, fmt.Errorf("decode: unknown encoding %q", s)
}

// ErrInvalidUTF8 is returned by strict decoding of malformed UTF-8.
var ErrInvalidUTF8 = errors.New("decode: invalid UTF-8")

func (e Encoding) codec() encoding.Encoding {
	switch e {
	case Latin1:
		return charmap.ISO8859_1
	case CP1252:
		return charmap.Windows1252
	default:
		return unicode.UTF8
	}
}

// Lossy converts b to a UTF-8 string. Invalid sequences are replaced with
// U+FFFD; it never fails. Native is treated as UTF-8.
func (e Encoding) Lossy(b []byte) string {
	out, err := e.codec().NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}

// Strict converts b to a UTF-8 string and fails on malformed UTF-8 input for
// Native and UTF8. Single-byte charsets accept any input.
func (e Encoding) Strict(b []byte) (string, error) {
	switch e {
	case Native, UTF8:
		if !utf8.Valid(b) {
			return "", ErrInvalidUTF8
		}
		return string(b), nil
	default:
		return e.Lossy(b), nil
	}
}

// ErrNoAttempts is returned by TryEach for an empty encoding list.
var ErrNoAttempts = errors.New("decode: no encodings to try")

// TryEach calls fn for each encoding in order and returns the first success.
// When every attempt fails the error of the last attempt is returned.
func TryEach[T any](encs []Encoding, fn func(Encoding) (T, error)) (T, error) {
	var (
		zero T
		last error = ErrNoAttempts
	)
	for _, enc := range encs {
		v, err := fn(enc)
		if err == nil {
			return v, nil
		}
		last = fmt.Errorf("%s: %w", enc, err)
	}
	return zero, last
}
