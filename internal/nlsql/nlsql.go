// Package nlsql turns a natural-language question into one read-only SQL
// statement over the ingested tables and runs it.
//
// The model call itself sits behind Generator; see nlsql/gemini for the
// Gemini implementation.
package nlsql

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"fiscaletl/internal/storage"
)

// TableSchema is one table as shown to the generator.
type TableSchema struct {
	Name    string
	Columns []storage.ColumnInfo
}

// Generator produces SQL text for a question over the given schema. The
// returned text may contain prose or a fenced block; Ask extracts the
// statement.
type Generator interface {
	GenerateSQL(ctx context.Context, question string, schema []TableSchema) (string, error)
}

// Catalog is the read side of a sink.
type Catalog interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]storage.ColumnInfo, error)
	Query(ctx context.Context, query string, limit int) (*storage.Result, error)
}

var (
	// ErrNoSelect is returned when generated text holds no SELECT statement.
	ErrNoSelect = errors.New("nlsql: model did not return a SELECT")
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("nlsql: empty question")
	// ErrNoTables is returned when there is nothing to ask about.
	ErrNoTables = errors.New("nlsql: no tables loaded")
	// ErrGenerate wraps generator failures.
	ErrGenerate = errors.New("nlsql: generate")
)

var (
	fenceRE  = regexp.MustCompile("(?i)```sql\\s*([\\s\\S]*?)```")
	cteRE    = regexp.MustCompile(`(?ims)^\s*with\s+(recursive\s+)?\w+\s+as\s*\(.*`)
	selectRE = regexp.MustCompile(`(?is)\bselect\b.*`)
)

// ExtractSelect pulls the statement out of model output.
//
// A ```sql fenced block wins over surrounding text. Text before a common
// table expression starting a line (WITH name AS), or else before the first
// SELECT, is dropped. A trailing ';' is added when missing.
//
// Errors:
//   - ErrNoSelect when no SELECT/WITH statement is present.
func ExtractSelect(text string) (string, error) {
	s := strings.TrimSpace(text)
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if m := cteRE.FindString(s); m != "" {
		s = strings.TrimSpace(m)
	} else if m := selectRE.FindString(s); m != "" {
		s = strings.TrimSpace(m)
	}
	low := strings.ToLower(s)
	if !strings.HasPrefix(low, "select") && !strings.HasPrefix(low, "with") {
		return "", fmt.Errorf("%w: %q", ErrNoSelect, preview(text, 160))
	}
	if !strings.HasSuffix(s, ";") {
		s += ";"
	}
	return s, nil
}

// SchemaPrompt renders tables one per line as "name(col TYPE, ...)".
func SchemaPrompt(tables []TableSchema) string {
	var b strings.Builder
	for _, t := range tables {
		b.WriteString(storage.Describe(t.Name, t.Columns))
		b.WriteByte('\n')
	}
	return b.String()
}

// Rules is the instruction given to generators for a SQL dialect.
func Rules(dialect string) string {
	if dialect == "" {
		dialect = "SQLite"
	}
	return "You generate SQL for " + dialect + ".\n" +
		"Rules:\n" +
		"- Answer ONLY with raw SQL: a single SELECT (or WITH ... SELECT), no explanations, no markdown.\n" +
		"- Use table and column names exactly as they exist in the schema.\n" +
		"- Aggregate with SUM/COUNT and group correctly when needed.\n" +
		"- If the question is ambiguous, make the most reasonable assumption and still produce the SELECT.\n"
}

// LoadSchema reads every table and its columns from c.
func LoadSchema(ctx context.Context, c Catalog) ([]TableSchema, error) {
	names, err := c.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("nlsql: list tables: %w", err)
	}
	out := make([]TableSchema, 0, len(names))
	for _, n := range names {
		cols, err := c.Columns(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("nlsql: columns of %s: %w", n, err)
		}
		out = append(out, TableSchema{Name: n, Columns: cols})
	}
	return out, nil
}

// Answer is the outcome of Ask.
type Answer struct {
	Question string          `json:"question"`
	SQL      string          `json:"sql"`
	Result   *storage.Result `json:"result,omitempty"`
}

// Ask generates SQL for question, extracts the statement and runs it on c
// with at most limit rows. The generated SQL is returned even when the query
// fails, so callers can show it.
func Ask(ctx context.Context, gen Generator, c Catalog, question string, limit int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	schema, err := LoadSchema(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(schema) == 0 {
		return nil, ErrNoTables
	}

	raw, err := gen.GenerateSQL(ctx, question, schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}
	ans := &Answer{Question: question}
	ans.SQL, err = ExtractSelect(raw)
	if err != nil {
		return ans, err
	}
	ans.Result, err = c.Query(ctx, ans.SQL, limit)
	if err != nil {
		return ans, fmt.Errorf("nlsql: run: %w", err)
	}
	return ans, nil
}

func preview(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
