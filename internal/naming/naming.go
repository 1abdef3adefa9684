// Package naming maps arbitrary file names, archive entry names, and header
// labels to identifiers that are safe to use as relational table and column
// names.
package naming

import (
	"strings"
	"unicode"
)

// DefaultTable is used when a name sanitizes to nothing.
const DefaultTable = "tabela"

// knownExtensions are stripped from the end of table names. Matching is
// case-insensitive.
var knownExtensions = []string{".csv", ".xml", ".zip", ".txt"}

// TableName converts a raw file or entry name into a table identifier.
//
// Rules:
//   - a trailing data extension (.csv, .xml, .zip, .txt) is removed
//   - the result is lowercased
//   - every run of characters outside [a-z0-9] becomes a single '_'
//   - leading/trailing '_' are trimmed
//   - an empty result becomes DefaultTable
//
// The output always matches [a-z0-9_]+ and TableName(TableName(x)) == TableName(x).
func TableName(raw string) string {
	base := stripExtension(strings.TrimSpace(raw))
	base = strings.ToLower(base)

	var b strings.Builder
	b.Grow(len(base))

	pendingSep := false
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	out := b.String()
	if out == "" {
		return DefaultTable
	}
	return out
}

// BaseFile returns the last path element of name, accepting both '/' and
// '\' separators (archives built on Windows use backslashes).
func BaseFile(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ColumnName replaces every run of whitespace with a single '_' after
// trimming the edges.
func ColumnName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))

	inSpace := false
	for _, r := range raw {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Suffixed joins a sanitized base and a fixed suffix, e.g. ("nota", "itens")
// → "nota_itens".
func Suffixed(base, suffix string) string {
	return TableName(base) + "_" + suffix
}

func stripExtension(s string) string {
	for _, ext := range knownExtensions {
		if hasSuffixFoldASCII(s, ext) {
			return s[:len(s)-len(ext)]
		}
	}
	return s
}

// HasExtension reports whether name ends with ext, ignoring ASCII case.
func HasExtension(name, ext string) bool {
	return hasSuffixFoldASCII(name, ext)
}

func hasSuffixFoldASCII(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := 0; i < len(suffix); i++ {
		c := tail[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != suffix[i] {
			return false
		}
	}
	return true
}
