// Package synth builds table frames from recognized fiscal document trees.
//
// Every logical field is declared once as a Field: the column it fills, the
// path of nested elements to descend and the ordered aliases accepted for it
// across sender systems. Synthesis of one document is all-or-nothing: either
// every frame is returned or an error is.
package synth

import (
	"math"
	"strconv"
	"strings"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/shape"
	"fiscaletl/internal/xmltree"
)

// Field maps one logical value of a document to a column.
type Field struct {
	Column string
	// Path is descended (map by map) before the aliases are tried.
	Path []string
	// Aliases are tried in order; the first non-empty value wins.
	Aliases []string
	// Numeric values go through ParseNumber and are stored as float64.
	Numeric bool
}

// Resolve extracts the field value from m. A missing path, missing aliases
// or an unparsable number all yield nil.
func (f Field) Resolve(m map[string]any) any {
	for _, p := range f.Path {
		next, ok := shape.LookupMap(m, p)
		if !ok {
			return nil
		}
		m = next
	}

	var raw any
	for _, a := range f.Aliases {
		if v := scalar(m[a]); v != nil {
			raw = v
			break
		}
	}
	if !f.Numeric {
		return raw
	}
	if n := ParseNumber(raw); n != nil {
		return *n
	}
	return nil
}

// scalar reduces a node to its text. Elements carrying attributes keep their
// text under "#text"; repeated elements use the first occurrence. Empty
// values are nil.
func scalar(n xmltree.Node) any {
	switch x := n.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		return x
	case map[string]any:
		return scalar(x["#text"])
	case []any:
		if len(x) == 0 {
			return nil
		}
		return scalar(x[0])
	default:
		return x
	}
}

// Columns lists the column names of fields in order.
func Columns(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Column
	}
	return out
}

// newFrame creates a frame for fields with declared types: Real for numeric
// fields, Text otherwise.
func newFrame(name string, fields []Field) (*frame.Frame, error) {
	f, err := frame.New(name, Columns(fields)...)
	if err != nil {
		return nil, err
	}
	for i, fd := range fields {
		if fd.Numeric {
			f.Columns[i].Type = frame.Real
		}
	}
	return f, nil
}

// row resolves every field against m. A nil m gives an all-nil row.
func row(fields []Field, m map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	if m == nil {
		return out
	}
	for _, f := range fields {
		out[f.Column] = f.Resolve(m)
	}
	return out
}

// ParseNumber converts a value to float64 following Brazilian and standard
// conventions. It never panics.
//
//   - nil, "" and whitespace → nil
//   - numeric kinds → their float64 value
//   - "1.234,56" (both separators) → '.' is thousands, ',' is decimal
//   - "1234,56" (comma only) → ',' is decimal
//   - anything else → strconv.ParseFloat
//
// Unparsable input, NaN and ±Inf yield nil.
func ParseNumber(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case string:
		n, ok := parseLocaleNumber(x)
		if !ok {
			return nil
		}
		f = n
	case map[string]any:
		return ParseNumber(scalar(x))
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseLocaleNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
