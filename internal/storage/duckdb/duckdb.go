// Package duckdb registers the "duckdb" sink, an embedded analytical store
// suited to ad-hoc queries over ingested fiscal tables.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/storage"
)

func init() {
	storage.Register("duckdb", New)
}

// Dialect is the DuckDB flavour of the shared SQL builders.
var Dialect = storage.Dialect{
	Name:        "duckdb",
	Ident:       storage.QuoteDouble,
	Placeholder: storage.QuestionMark,
	ColumnType:  columnType,
	ListTables: `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`,
	ListColumns: `SELECT column_name, data_type FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = ?
ORDER BY ordinal_position`,
}

func columnType(t frame.ColumnType) string {
	switch t {
	case frame.Integer:
		return "BIGINT"
	case frame.Real:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

// New opens the DuckDB database at cfg.DSN. An empty DSN opens an in-memory
// database, so the pool is kept to one connection.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}
	return storage.NewDBSink(db, Dialect, cfg), nil
}
