// Package sqlite registers the "sqlite" sink backed by modernc.org/sqlite,
// a pure Go driver, so a single file database needs no external server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/storage"
)

// maxParams matches SQLite's historical SQLITE_MAX_VARIABLE_NUMBER.
const maxParams = 999

func init() {
	storage.Register("sqlite", New)
}

// Dialect is the SQLite flavour of the shared SQL builders. Integer columns
// map to INTEGER, reals to REAL and everything else to TEXT.
var Dialect = storage.Dialect{
	Name:        "sqlite",
	Ident:       storage.QuoteDouble,
	Placeholder: storage.QuestionMark,
	ColumnType:  columnType,
	MaxParams:   maxParams,
	ListTables: `SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`,
	ListColumns: `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`,
}

func columnType(t frame.ColumnType) string {
	switch t {
	case frame.Integer:
		return "INTEGER"
	case frame.Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

// New opens the database at cfg.DSN (a path or a "file:" URI).
//
// The pool is limited to one connection so ":memory:" databases and
// concurrent writers behave like a single SQLite handle.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite: empty dsn")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return storage.NewDBSink(db, Dialect, cfg), nil
}
