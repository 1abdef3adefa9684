package frame

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	intRe  = regexp.MustCompile(`^[+-]?(0|[1-9][0-9]*)$`)
	realRe = regexp.MustCompile(`^[+-]?(0|[1-9][0-9]*)?(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
)

// InferTypes computes the declared type of every column from its values and
// converts numeric-looking strings to int64/float64 when the whole column
// agrees.
//
// The lattice is Null < Integer < Real < Text: a column is Integer when every
// non-nil value is an integer, Real when every value is numeric, Text
// otherwise, and Null when it has no values at all.
//
// Edge cases:
//   - strings with a leading zero ("007", CNPJ, CEP) are text, not numbers
//   - integers that overflow int64 (44-digit access keys) are text
//   - NaN/Inf spellings and hex floats are text
//   - empty or whitespace-only strings count as nil and are stored as nil
func InferTypes(f *Frame) {
	for i, c := range f.Columns {
		t := Null
		for _, row := range f.Rows {
			t = widen(t, cellType(row[c.Name]))
			if t == Text {
				break
			}
		}
		f.Columns[i].Type = t
		for _, row := range f.Rows {
			row[c.Name] = coerce(row[c.Name], t)
		}
	}
}

func widen(a, b ColumnType) ColumnType {
	if b > a {
		return b
	}
	return a
}

func cellType(v any) ColumnType {
	switch x := v.(type) {
	case nil:
		return Null
	case bool, int, int8, int16, int32, int64, uint8, uint16, uint32:
		return Integer
	case uint, uint64:
		return Integer
	case float32:
		return floatType(float64(x))
	case float64:
		return floatType(x)
	case string:
		return stringType(x)
	default:
		return Text
	}
}

func floatType(f float64) ColumnType {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Text
	}
	return Real
}

func stringType(s string) ColumnType {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null
	}
	if intRe.MatchString(s) {
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Integer
		}
		return Text
	}
	if s == "." || s == "+" || s == "-" || !realRe.MatchString(s) || !strings.ContainsAny(s, "0123456789") {
		return Text
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return Text
	}
	return Real
}

func coerce(v any, t ColumnType) any {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	switch t {
	case Integer:
		switch x := v.(type) {
		case string:
			n, _ := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			return n
		case bool:
			if x {
				return int64(1)
			}
			return int64(0)
		case int:
			return int64(x)
		case int8:
			return int64(x)
		case int16:
			return int64(x)
		case int32:
			return int64(x)
		case uint8:
			return int64(x)
		case uint16:
			return int64(x)
		case uint32:
			return int64(x)
		}
	case Real:
		switch x := v.(type) {
		case string:
			f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
			return f
		case bool:
			if x {
				return 1.0
			}
			return 0.0
		case int:
			return float64(x)
		case int64:
			return float64(x)
		case int32:
			return float64(x)
		case float32:
			return float64(x)
		}
	case Text:
		switch x := v.(type) {
		case int64:
			return strconv.FormatInt(x, 10)
		case int:
			return strconv.Itoa(x)
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(x)
		}
	}
	return v
}
