package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fiscaletl/internal/frame"
)

// DBSink implements Sink on top of database/sql for any Dialect. The SQLite,
// SQL Server and DuckDB backends are thin constructors around it.
type DBSink struct {
	db        dbConn
	dialect   Dialect
	batchRows int
}

// NewDBSink wraps an open *sql.DB. The sink owns db and closes it on Close.
func NewDBSink(db *sql.DB, d Dialect, cfg Config) *DBSink {
	return &DBSink{db: &sqlDB{db: db}, dialect: d, batchRows: cfg.BatchRows}
}

// Dialect returns the dialect the sink writes with.
func (s *DBSink) Dialect() Dialect { return s.dialect }

// Close releases the underlying database handle.
func (s *DBSink) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// WriteFrame runs the dialect's write plan for f in a single transaction.
func (s *DBSink) WriteFrame(ctx context.Context, f *frame.Frame, mode Mode) (int64, error) {
	ns, err := s.WriteFrames(ctx, []*frame.Frame{f}, mode)
	if err != nil {
		return 0, err
	}
	return ns[0], nil
}

// WriteFrames writes every frame in one transaction: either all tables are
// stored or none of them is.
func (s *DBSink) WriteFrames(ctx context.Context, frames []*frame.Frame, mode Mode) ([]int64, error) {
	plans := make([][]Statement, len(frames))
	for i, f := range frames {
		plan, err := s.dialect.WritePlan(f, mode, s.batchRows)
		if err != nil {
			return nil, err
		}
		plans[i] = plan
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", s.dialect.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	counts := make([]int64, len(frames))
	for i, plan := range plans {
		for _, st := range plan {
			if _, err := tx.ExecContext(ctx, st.SQL, st.Args...); err != nil {
				return nil, fmt.Errorf("%s: write %s: %w", s.dialect.Name, frames[i].Name, err)
			}
			counts[i] += int64(st.Rows)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", s.dialect.Name, err)
	}
	return counts, nil
}

// Tables lists user tables.
func (s *DBSink) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.ListTables)
	if err != nil {
		return nil, fmt.Errorf("%s: list tables: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Columns describes table. An unknown table yields an empty slice.
func (s *DBSink) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.ListColumns, table)
	if err != nil {
		return nil, fmt.Errorf("%s: columns of %s: %w", s.dialect.Name, table, err)
	}
	defer rows.Close()

	var out []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		var typ sql.NullString
		if err := rows.Scan(&c.Name, &typ); err != nil {
			return nil, err
		}
		c.Type = typ.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// Query validates query with EnsureReadOnly and returns up to limit rows.
func (s *DBSink) Query(ctx context.Context, query string, limit int) (*Result, error) {
	q, err := EnsureReadOnly(query)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", s.dialect.Name, err)
	}
	defer rows.Close()
	return scanResult(rows, limit)
}

// scanResult reads at most limit rows and reports whether more were present.
func scanResult(rows *sql.Rows, limit int) (*Result, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range vals {
			vals[i] = normalizeCell(vals[i])
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB. It includes only the methods
// DBSink needs.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

var (
	_ dbConn = (*sqlDB)(nil)
	_ txConn = (*sql.Tx)(nil)
	_ Sink   = (*DBSink)(nil)
)
