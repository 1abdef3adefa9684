package nlsql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fiscaletl/internal/storage"
)

func TestExtractSelect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"raw", "SELECT * FROM nota_itens", "SELECT * FROM nota_itens;"},
		{"keeps semicolon", "select 1;", "select 1;"},
		{"fenced", "Here you go:\n```sql\nSELECT cProd FROM nota_itens\n```\nBye", "SELECT cProd FROM nota_itens;"},
		{"prose prefix", "The query is: SELECT SUM(vNF) FROM nota_cabecalho", "SELECT SUM(vNF) FROM nota_cabecalho;"},
		{"cte", "Query:\nWITH t AS (SELECT 1 AS x)\nSELECT x FROM t", "WITH t AS (SELECT 1 AS x)\nSELECT x FROM t;"},
		{"prose with", "Total with tax: SELECT vNF FROM n", "SELECT vNF FROM n;"},
	}
	for _, tt := range tests {
		got, err := ExtractSelect(tt.in)
		if err != nil {
			t.Fatalf("%s: ExtractSelect: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractSelect_Rejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "I cannot answer that.", "DELETE FROM nota_itens"} {
		if _, err := ExtractSelect(in); !errors.Is(err, ErrNoSelect) {
			t.Fatalf("ExtractSelect(%q) err = %v, want ErrNoSelect", in, err)
		}
	}
}

type fakeCatalog struct {
	tables  []string
	cols    map[string][]storage.ColumnInfo
	queried string
	limit   int
}

func (c *fakeCatalog) Tables(context.Context) ([]string, error) { return c.tables, nil }

func (c *fakeCatalog) Columns(_ context.Context, table string) ([]storage.ColumnInfo, error) {
	return c.cols[table], nil
}

func (c *fakeCatalog) Query(_ context.Context, q string, limit int) (*storage.Result, error) {
	c.queried, c.limit = q, limit
	if _, err := storage.EnsureReadOnly(q); err != nil {
		return nil, err
	}
	return &storage.Result{Columns: []string{"n"}, Rows: [][]any{{int64(2)}}}, nil
}

type fakeGenerator struct {
	reply  string
	schema []TableSchema
}

func (g *fakeGenerator) GenerateSQL(_ context.Context, _ string, schema []TableSchema) (string, error) {
	g.schema = schema
	return g.reply, nil
}

func TestAsk(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		tables: []string{"nota_itens"},
		cols:   map[string][]storage.ColumnInfo{"nota_itens": {{Name: "cProd", Type: "TEXT"}, {Name: "vProd", Type: "REAL"}}},
	}
	gen := &fakeGenerator{reply: "```sql\nSELECT COUNT(*) AS n FROM nota_itens\n```"}

	ans, err := Ask(context.Background(), gen, cat, "  quantos itens?  ", 10)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.SQL != "SELECT COUNT(*) AS n FROM nota_itens;" || cat.queried != ans.SQL || cat.limit != 10 {
		t.Fatalf("sql = %q queried = %q limit = %d", ans.SQL, cat.queried, cat.limit)
	}
	if ans.Question != "quantos itens?" || len(ans.Result.Rows) != 1 {
		t.Fatalf("answer = %+v", ans)
	}
	if got := SchemaPrompt(gen.schema); got != "nota_itens(cProd TEXT, vProd REAL)\n" {
		t.Fatalf("schema prompt = %q", got)
	}
}

func TestAsk_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cat := &fakeCatalog{tables: []string{"t"}}

	if _, err := Ask(ctx, &fakeGenerator{}, cat, " ", 0); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("blank question err = %v", err)
	}
	if _, err := Ask(ctx, &fakeGenerator{}, &fakeCatalog{}, "q", 0); !errors.Is(err, ErrNoTables) {
		t.Fatalf("no tables err = %v", err)
	}
	ans, err := Ask(ctx, &fakeGenerator{reply: "no idea"}, cat, "q", 0)
	if !errors.Is(err, ErrNoSelect) || ans == nil {
		t.Fatalf("no select err = %v ans = %v", err, ans)
	}
	ans, err = Ask(ctx, &fakeGenerator{reply: "SELECT 1; DROP TABLE t"}, cat, "q", 0)
	if !errors.Is(err, storage.ErrNotReadOnly) || !strings.HasPrefix(ans.SQL, "SELECT 1") {
		t.Fatalf("write attempt err = %v ans = %+v", err, ans)
	}
}

func TestRules(t *testing.T) {
	t.Parallel()

	if !strings.HasPrefix(Rules(""), "You generate SQL for SQLite.") {
		t.Fatalf("default dialect missing: %q", Rules(""))
	}
	if !strings.Contains(Rules("PostgreSQL"), "PostgreSQL") {
		t.Fatalf("dialect not named")
	}
}
