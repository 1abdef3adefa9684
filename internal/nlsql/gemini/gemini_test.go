package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"fiscaletl/internal/config"
	"fiscaletl/internal/nlsql"
	"fiscaletl/internal/storage"
)

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(s)}}},
	}}
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(config.LLM{}, "SQLite"); err == nil {
		t.Fatalf("expected error without api key")
	}
	g, err := New(config.LLM{APIKey: " k "}, "SQLite")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.APIKey != "k" || g.Model != DefaultModel || g.MaxAttempts != 3 {
		t.Fatalf("generator = %+v", g)
	}
}

func TestGenerateSQL_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	g, _ := New(config.LLM{APIKey: "k"}, "PostgreSQL")
	g.Backoff = 0
	calls := 0
	var gotSystem, gotUser string
	g.generate = func(_ context.Context, system, user string) (*genai.GenerateContentResponse, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("503 unavailable")
		}
		gotSystem, gotUser = system, user
		return textResponse("  SELECT 1  "), nil
	}

	schema := []nlsql.TableSchema{{Name: "nota_itens", Columns: []storage.ColumnInfo{{Name: "vProd", Type: "DOUBLE PRECISION"}}}}
	got, err := g.GenerateSQL(context.Background(), "total?", schema)
	if err != nil {
		t.Fatalf("GenerateSQL: %v", err)
	}
	if got != "SELECT 1" || calls != 3 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
	if !strings.Contains(gotSystem, "PostgreSQL") || !strings.Contains(gotSystem, "nota_itens(vProd DOUBLE PRECISION)") {
		t.Fatalf("system = %q", gotSystem)
	}
	if !strings.HasPrefix(gotUser, "Question: total?") {
		t.Fatalf("user = %q", gotUser)
	}
}

func TestGenerateSQL_Failures(t *testing.T) {
	t.Parallel()

	g, _ := New(config.LLM{APIKey: "k", MaxAttempts: 2}, "")
	g.Backoff = 0
	calls := 0
	g.generate = func(context.Context, string, string) (*genai.GenerateContentResponse, error) {
		calls++
		return nil, errors.New("boom")
	}
	if _, err := g.GenerateSQL(context.Background(), "q", nil); err == nil || calls != 2 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}

	g.generate = func(context.Context, string, string) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{}, nil
	}
	if _, err := g.GenerateSQL(context.Background(), "q", nil); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestDialectFor(t *testing.T) {
	t.Parallel()

	tests := map[string]string{"sqlite": "SQLite", "POSTGRES": "PostgreSQL", "duckdb": "DuckDB", "": "SQLite"}
	for in, want := range tests {
		if got := DialectFor(in); got != want {
			t.Fatalf("DialectFor(%q) = %q, want %q", in, got, want)
		}
	}
	if !strings.HasPrefix(DialectFor("mssql"), "Microsoft SQL Server") {
		t.Fatalf("mssql dialect = %q", DialectFor("mssql"))
	}
}
