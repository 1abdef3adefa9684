package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fiscaletl/internal/frame"
)

type fakeSink struct{ closed int }

func (f *fakeSink) Close() { f.closed++ }
func (f *fakeSink) WriteFrame(context.Context, *frame.Frame, Mode) (int64, error) {
	return 0, nil
}
func (f *fakeSink) WriteFrames(context.Context, []*frame.Frame, Mode) ([]int64, error) {
	return nil, nil
}
func (f *fakeSink) Tables(context.Context) ([]string, error) { return nil, nil }
func (f *fakeSink) Columns(context.Context, string) ([]ColumnInfo, error) {
	return nil, nil
}
func (f *fakeSink) Query(context.Context, string, int) (*Result, error) { return &Result{}, nil }

func TestRegisterAndOpen(t *testing.T) {
	fs := &fakeSink{}
	Register("fake-open", func(ctx context.Context, cfg Config) (Sink, error) {
		if cfg.DSN != "mem" {
			return nil, errors.New("bad dsn")
		}
		return fs, nil
	})

	s, err := Open(context.Background(), Config{Kind: "fake-open", DSN: "mem"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()
	if fs.closed != 1 {
		t.Fatalf("expected sink from factory")
	}

	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	_, err = Open(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "fake-open") {
		t.Fatalf("unsupported kind error should list registered kinds: %v", err)
	}
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	f := func(context.Context, Config) (Sink, error) { return &fakeSink{}, nil }
	Register("fake-dup", f)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("fake-dup", f)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Replace, false},
		{"replace", Replace, false},
		{" APPEND ", Append, false},
		{"upsert", Replace, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestBatchSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rows, cols, max, want int
	}{
		{0, 5, 0, DefaultBatchRows},
		{100, 5, 0, 100},
		{500, 10, 2100, 210},
		{500, 5000, 2100, 1},
	}
	for _, tt := range tests {
		if got := BatchSize(tt.rows, tt.cols, tt.max); got != tt.want {
			t.Fatalf("BatchSize(%d,%d,%d) = %d, want %d", tt.rows, tt.cols, tt.max, got, tt.want)
		}
	}
}

func TestEnsureReadOnly(t *testing.T) {
	t.Parallel()

	ok := []struct{ in, want string }{
		{"SELECT * FROM itens;", "SELECT * FROM itens"},
		{"  select 1 ;; ", "select 1"},
		{"WITH t AS (SELECT 1) SELECT * FROM t", "WITH t AS (SELECT 1) SELECT * FROM t"},
		{"SELECT 'drop table x; --' FROM t", "SELECT 'drop table x; --' FROM t"},
		{`SELECT "update" FROM t`, `SELECT "update" FROM t`},
		{"SELECT a -- delete everything\nFROM t", "SELECT a -- delete everything\nFROM t"},
	}
	for _, tt := range ok {
		got, err := EnsureReadOnly(tt.in)
		if err != nil {
			t.Fatalf("EnsureReadOnly(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("EnsureReadOnly(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	bad := []string{
		"",
		";",
		"DELETE FROM t",
		"SELECT 1; DROP TABLE t",
		"WITH x AS (DELETE FROM t RETURNING *) SELECT * FROM x",
		"SELECT * INTO copia FROM t",
		"PRAGMA table_info(t)",
		"/* hi */ UPDATE t SET a = 1",
	}
	for _, in := range bad {
		if _, err := EnsureReadOnly(in); !errors.Is(err, ErrNotReadOnly) {
			t.Fatalf("EnsureReadOnly(%q) err = %v, want ErrNotReadOnly", in, err)
		}
	}
}

func TestCellString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{" Germany ", "Germany"},
		{[]byte("8429529"), "8429529"},
		{int64(42), "42"},
		{12.5, "12.5"},
		{1e21, "1000000000000000000000"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := CellString(tt.in); got != tt.want {
			t.Fatalf("CellString(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}

	r := &Result{Columns: []string{"a"}, Rows: [][]any{{int64(1)}, {nil}}}
	if s := r.Strings(); s[0][0] != "1" || s[1][0] != "" {
		t.Fatalf("Strings = %v", s)
	}
	if d := Describe("itens", []ColumnInfo{{"cProd", "TEXT"}, {"qCom", "REAL"}}); d != "itens(cProd TEXT, qCom REAL)" {
		t.Fatalf("Describe = %q", d)
	}
}
