// Package frame holds the in-memory tabular unit produced by ingestion and
// consumed by storage sinks.
//
// A Frame is a named table with an ordered column set and a slice of rows.
// Rows are keyed by column name and always carry every column of the frame;
// a missing value is stored as nil.
package frame

import (
	"fmt"
	"strings"

	"fiscaletl/internal/naming"
)

// ColumnType is the declared storage type of a column.
type ColumnType int

const (
	// Null marks a column whose every value is nil.
	Null ColumnType = iota
	Integer
	Real
	Text
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Text:
		return "text"
	default:
		return "null"
	}
}

// Column is one named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Row maps column name to cell value. Values are nil, string, int64, float64
// or bool.
type Row map[string]any

// Frame is a named table.
type Frame struct {
	Name    string
	Columns []Column
	Rows    []Row
}

// New builds an empty frame with the given column names. Names are
// whitespace-normalized (runs of whitespace become '_'); an empty name or a
// duplicate after normalization is rejected. Declared types start as Text;
// use InferTypes or SetType to refine them.
func New(name string, columns ...string) (*Frame, error) {
	f := &Frame{Name: name, Columns: make([]Column, 0, len(columns))}
	seen := make(map[string]struct{}, len(columns))
	for _, raw := range columns {
		c := naming.ColumnName(raw)
		if c == "" {
			return nil, fmt.Errorf("frame %s: empty column name", name)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("frame %s: duplicate column %q", name, c)
		}
		seen[c] = struct{}{}
		f.Columns = append(f.Columns, Column{Name: c, Type: Text})
	}
	return f, nil
}

// MustNew is New for fixed column sets known at compile time.
func MustNew(name string, columns ...string) *Frame {
	f, err := New(name, columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// ColumnNames returns the column names in order.
func (f *Frame) ColumnNames() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of column name, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SetType overrides the declared type of a column.
func (f *Frame) SetType(name string, t ColumnType) error {
	i := f.Index(name)
	if i < 0 {
		return fmt.Errorf("frame %s: unknown column %q", f.Name, name)
	}
	f.Columns[i].Type = t
	return nil
}

// Append adds one row. Keys are whitespace-normalized like column names;
// a key outside the column set is an error. Columns missing from values are
// stored as nil so every row has the full column set.
func (f *Frame) Append(values map[string]any) error {
	row := make(Row, len(f.Columns))
	for _, c := range f.Columns {
		row[c.Name] = nil
	}
	for k, v := range values {
		name := naming.ColumnName(k)
		if _, ok := row[name]; !ok {
			return fmt.Errorf("frame %s: unknown column %q", f.Name, k)
		}
		row[name] = v
	}
	f.Rows = append(f.Rows, row)
	return nil
}

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Values returns row i as a slice ordered like Columns.
func (f *Frame) Values(i int) []any {
	row := f.Rows[i]
	out := make([]any, len(f.Columns))
	for j, c := range f.Columns {
		out[j] = row[c.Name]
	}
	return out
}

// String is a short description used in logs.
func (f *Frame) String() string {
	return fmt.Sprintf("%s(%s) rows=%d", f.Name, strings.Join(f.ColumnNames(), ","), len(f.Rows))
}
