// Package postgres registers the "postgres" sink backed by a pgx connection
// pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/storage"
)

// maxParams is the Postgres wire protocol limit on bind parameters.
const maxParams = 65535

func init() {
	storage.Register("postgres", New)
}

// Dialect is the Postgres flavour of the shared SQL builders. Tables live in
// the connection's current schema.
var Dialect = storage.Dialect{
	Name:        "postgres",
	Ident:       pgIdent,
	Placeholder: storage.DollarN,
	ColumnType:  columnType,
	MaxParams:   maxParams,
	ListTables: `SELECT table_name::text FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`,
	ListColumns: `SELECT column_name::text, data_type::text FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`,
}

func pgIdent(s string) string { return storage.QuoteDouble(s) }

func columnType(t frame.ColumnType) string {
	switch t {
	case frame.Integer:
		return "BIGINT"
	case frame.Real:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// Sink implements storage.Sink for Postgres.
type Sink struct {
	pool      *pgxpool.Pool
	batchRows int
}

// New creates a pool for cfg.DSN and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Sink{pool: pool, batchRows: cfg.BatchRows}, nil
}

// Close closes the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}

// WriteFrame runs the write plan for f in one transaction.
func (s *Sink) WriteFrame(ctx context.Context, f *frame.Frame, mode storage.Mode) (int64, error) {
	ns, err := s.WriteFrames(ctx, []*frame.Frame{f}, mode)
	if err != nil {
		return 0, err
	}
	return ns[0], nil
}

// WriteFrames runs the write plans of all frames in one transaction.
func (s *Sink) WriteFrames(ctx context.Context, frames []*frame.Frame, mode storage.Mode) ([]int64, error) {
	plans := make([][]storage.Statement, len(frames))
	for i, f := range frames {
		plan, err := Dialect.WritePlan(f, mode, s.batchRows)
		if err != nil {
			return nil, err
		}
		plans[i] = plan
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	counts := make([]int64, len(frames))
	for i, plan := range plans {
		for _, st := range plan {
			if _, err := tx.Exec(ctx, st.SQL, st.Args...); err != nil {
				return nil, fmt.Errorf("postgres: write %s: %w", frames[i].Name, err)
			}
			counts[i] += int64(st.Rows)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return counts, nil
}

// Tables lists base tables in the current schema.
func (s *Sink) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, Dialect.ListTables)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables: %w", err)
	}
	return names, nil
}

// Columns describes table in ordinal order.
func (s *Sink) Columns(ctx context.Context, table string) ([]storage.ColumnInfo, error) {
	rows, err := s.pool.Query(ctx, Dialect.ListColumns, table)
	if err != nil {
		return nil, fmt.Errorf("postgres: columns of %s: %w", table, err)
	}
	cols, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (storage.ColumnInfo, error) {
		var c storage.ColumnInfo
		err := r.Scan(&c.Name, &c.Type)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: columns of %s: %w", table, err)
	}
	return cols, nil
}

// Query runs a validated SELECT inside a read-only transaction.
func (s *Sink) Query(ctx context.Context, query string, limit int) (*storage.Result, error) {
	q, err := storage.EnsureReadOnly(query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = storage.DefaultQueryLimit
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin read-only: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	res := &storage.Result{Columns: make([]string, len(fields)), Rows: [][]any{}}
	for i, fd := range fields {
		res.Columns[i] = fd.Name
	}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, vals)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	return res, nil
}

var _ storage.Sink = (*Sink)(nil)
