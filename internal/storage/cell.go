package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CellString converts a scanned cell to a canonical string form for rendering
// (e.g. "Germany", "8429529", "12.5").
//
// Backends return different Go types for the same SQL value ([]byte from
// some drivers, int64 or float64 from others); this helper keeps output
// consistent across them. NULL renders as "".
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// normalizeCell converts driver-specific scan results into JSON-friendly
// values: []byte becomes string, everything else is kept.
func normalizeCell(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
