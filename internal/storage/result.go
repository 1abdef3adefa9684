// Types shared by the sink interface and every backend live here so backend
// packages and callers import them without cycles.
package storage

import "strings"

// DefaultQueryLimit caps Query results when the caller passes no limit.
const DefaultQueryLimit = 1000

// ColumnInfo describes one column of a stored table.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Result is the outcome of a read-only query.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	// Truncated reports that more rows were available than the limit.
	Truncated bool `json:"truncated"`
}

// Strings renders every cell with CellString.
func (r *Result) Strings() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		s := make([]string, len(row))
		for j, v := range row {
			s[j] = CellString(v)
		}
		out[i] = s
	}
	return out
}

// Describe renders a schema line per table, used in logs and prompts:
//
//	table(col type, col type)
func Describe(table string, cols []ColumnInfo) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = strings.TrimSpace(c.Name + " " + c.Type)
	}
	return table + "(" + strings.Join(parts, ", ") + ")"
}
