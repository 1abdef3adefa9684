package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/storage"
)

func openTemp(t *testing.T) storage.Sink {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "fiscal.db")
	s, err := storage.Open(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn, BatchRows: 2})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func itens(t *testing.T, rows ...map[string]any) *frame.Frame {
	t.Helper()
	f := frame.MustNew("nota_itens", "cProd", "qCom", "vUnCom")
	for _, r := range rows {
		if err := f.Append(r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	frame.InferTypes(f)
	return f
}

func TestWriteFrame_ReplaceThenQuery(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	f := itens(t,
		map[string]any{"cProd": "001", "qCom": "2", "vUnCom": "10.5"},
		map[string]any{"cProd": "002", "qCom": "1", "vUnCom": "3"},
		map[string]any{"cProd": "003", "qCom": nil, "vUnCom": "7.25"},
	)
	n, err := s.WriteFrame(ctx, f, storage.Replace)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows written = %d, want 3", n)
	}

	// Replace again: the table must hold only the new rows.
	if _, err := s.WriteFrame(ctx, itens(t, map[string]any{"cProd": "009", "qCom": "5", "vUnCom": "1"}), storage.Replace); err != nil {
		t.Fatalf("WriteFrame replace: %v", err)
	}

	res, err := s.Query(ctx, `SELECT "cProd", "qCom" FROM nota_itens ORDER BY "cProd";`, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := res.Strings(); !reflect.DeepEqual(got, [][]string{{"009", "5"}}) {
		t.Fatalf("rows = %v", got)
	}
}

func TestWriteFrame_AppendAndSchema(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	for i := 0; i < 2; i++ {
		f := itens(t,
			map[string]any{"cProd": "001", "qCom": "2", "vUnCom": "10.5"},
			map[string]any{"cProd": "002", "qCom": "1", "vUnCom": "3"},
		)
		if _, err := s.WriteFrame(ctx, f, storage.Append); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	tables, err := s.Tables(ctx)
	if err != nil || !reflect.DeepEqual(tables, []string{"nota_itens"}) {
		t.Fatalf("Tables = %v, %v", tables, err)
	}

	cols, err := s.Columns(ctx, "nota_itens")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	want := []storage.ColumnInfo{{Name: "cProd", Type: "TEXT"}, {Name: "qCom", Type: "INTEGER"}, {Name: "vUnCom", Type: "REAL"}}
	if !reflect.DeepEqual(cols, want) {
		t.Fatalf("Columns = %v, want %v", cols, want)
	}

	res, err := s.Query(ctx, "SELECT count(*) AS n FROM nota_itens", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Strings()[0][0] != "4" {
		t.Fatalf("count = %v", res.Rows)
	}
}

func TestWriteFrames_RollsBackEveryTable(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	seed := frame.MustNew("nota_itens", "outra")
	if err := seed.Append(map[string]any{"outra": "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.WriteFrame(ctx, seed, storage.Replace); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cab := frame.MustNew("nota_cabecalho", "arquivo")
	if err := cab.Append(map[string]any{"arquivo": "nota.xml"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_, err := s.WriteFrames(ctx, []*frame.Frame{cab, itens(t, map[string]any{"cProd": "001"})}, storage.Append)
	if err == nil {
		t.Fatalf("expected error appending to nota_itens with other columns")
	}

	tables, err := s.Tables(ctx)
	if err != nil || !reflect.DeepEqual(tables, []string{"nota_itens"}) {
		t.Fatalf("Tables = %v, %v; want only the seeded table", tables, err)
	}
	res, err := s.Query(ctx, "SELECT count(*) FROM nota_itens", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Strings()[0][0] != "1" {
		t.Fatalf("count = %v, want 1", res.Rows)
	}
}

func TestWriteFrames_CountsPerFrame(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	cab := frame.MustNew("nota_cabecalho", "arquivo")
	if err := cab.Append(map[string]any{"arquivo": "nota.xml"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	it := itens(t,
		map[string]any{"cProd": "001"},
		map[string]any{"cProd": "002"},
		map[string]any{"cProd": "003"},
	)
	counts, err := s.WriteFrames(ctx, []*frame.Frame{cab, it}, storage.Replace)
	if err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}
	if !reflect.DeepEqual(counts, []int64{1, 3}) {
		t.Fatalf("counts = %v, want [1 3]", counts)
	}
}

func TestQuery_LimitAndReadOnly(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	f := itens(t,
		map[string]any{"cProd": "a"},
		map[string]any{"cProd": "b"},
		map[string]any{"cProd": "c"},
	)
	if _, err := s.WriteFrame(ctx, f, storage.Replace); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	res, err := s.Query(ctx, "SELECT * FROM nota_itens", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Rows) != 2 || !res.Truncated {
		t.Fatalf("rows=%d truncated=%v", len(res.Rows), res.Truncated)
	}
	if !reflect.DeepEqual(res.Columns, []string{"cProd", "qCom", "vUnCom"}) {
		t.Fatalf("columns = %v", res.Columns)
	}

	if _, err := s.Query(ctx, "DELETE FROM nota_itens", 0); !errors.Is(err, storage.ErrNotReadOnly) {
		t.Fatalf("expected ErrNotReadOnly, got %v", err)
	}
}

func TestNew_EmptyDSN(t *testing.T) {
	if _, err := New(context.Background(), storage.Config{Kind: "sqlite"}); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
