package storage

import (
	"fmt"
	"strings"

	"fiscaletl/internal/frame"
)

// Dialect holds the per-backend SQL differences used to build DDL and
// multi-row INSERT statements. Builders are pure so they can be unit tested
// without a database.
type Dialect struct {
	Name string

	// Ident quotes one identifier.
	Ident func(name string) string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// ColumnType maps an inferred column type to a SQL type name.
	ColumnType func(t frame.ColumnType) string

	// MaxParams bounds bind parameters per statement. Zero means unbounded.
	MaxParams int
	// MaxRows bounds rows per VALUES list. Zero means unbounded.
	MaxRows int

	// Drop and CreateIfMissing override the portable forms when set.
	Drop            func(table string) string
	CreateIfMissing func(table, defs string) string

	// ListTables returns one text column of user table names.
	ListTables string
	// ListColumns takes the table name as its only parameter and returns
	// (name, type) in declaration order.
	ListColumns string
}

// Statement is one SQL statement with its arguments. Rows counts the data
// rows an INSERT carries.
type Statement struct {
	SQL  string
	Args []any
	Rows int
}

// DropSQL returns a statement dropping table when it exists.
func (d Dialect) DropSQL(table string) string {
	if d.Drop != nil {
		return d.Drop(table)
	}
	return "DROP TABLE IF EXISTS " + d.Ident(table) + ";"
}

// CreateSQL returns a CREATE TABLE statement for f. With ifMissing the
// statement is a no-op when the table already exists.
func (d Dialect) CreateSQL(f *frame.Frame, ifMissing bool) string {
	defs := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		defs[i] = d.Ident(c.Name) + " " + d.ColumnType(c.Type)
	}
	body := strings.Join(defs, ", ")

	if ifMissing {
		if d.CreateIfMissing != nil {
			return d.CreateIfMissing(f.Name, body)
		}
		return "CREATE TABLE IF NOT EXISTS " + d.Ident(f.Name) + " (" + body + ");"
	}
	return "CREATE TABLE " + d.Ident(f.Name) + " (" + body + ");"
}

// InsertSQL builds one multi-row INSERT for rows. Every row must have
// len(columns) values.
func (d Dialect) InsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.Ident(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Ident(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

// WritePlan returns the statements that store f under mode. They are meant
// to run inside one transaction.
//
// Replace drops and recreates the table; Append creates it only when
// missing. A frame with no rows still produces its table.
func (d Dialect) WritePlan(f *frame.Frame, mode Mode, batchRows int) ([]Statement, error) {
	if f == nil {
		return nil, fmt.Errorf("storage: nil frame")
	}
	if strings.TrimSpace(f.Name) == "" {
		return nil, fmt.Errorf("storage: frame has no table name")
	}
	if len(f.Columns) == 0 {
		return nil, fmt.Errorf("storage: frame %s has no columns", f.Name)
	}

	var plan []Statement
	if mode == Replace {
		plan = append(plan,
			Statement{SQL: d.DropSQL(f.Name)},
			Statement{SQL: d.CreateSQL(f, false)},
		)
	} else {
		plan = append(plan, Statement{SQL: d.CreateSQL(f, true)})
	}

	cols := f.ColumnNames()
	size := BatchSize(batchRows, len(cols), d.MaxParams)
	if d.MaxRows > 0 && size > d.MaxRows {
		size = d.MaxRows
	}

	for start := 0; start < f.Len(); start += size {
		end := min(start+size, f.Len())
		rows := make([][]any, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, f.Values(i))
		}
		sql, args := d.InsertSQL(f.Name, cols, rows)
		plan = append(plan, Statement{SQL: sql, Args: args, Rows: len(rows)})
	}
	return plan, nil
}

// QuoteDouble quotes an identifier with double quotes, doubling any embedded
// quote. Used by the SQLite, Postgres and DuckDB dialects.
func QuoteDouble(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuestionMark is the positional placeholder used by SQLite and DuckDB.
func QuestionMark(int) string { return "?" }

// DollarN is the Postgres placeholder form ($1, $2, ...).
func DollarN(n int) string { return fmt.Sprintf("$%d", n) }
