package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"fiscaletl/internal/frame"
)

// Config is the minimal configuration needed to open a sink.
//
// When to use:
//   - Pass Config to Open with the backend kind and its connection string.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - Open returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string
	// BatchRows caps the rows per INSERT statement. Zero means DefaultBatchRows.
	BatchRows int
}

// DefaultBatchRows is the number of rows per multi-row INSERT.
const DefaultBatchRows = 500

// Mode selects how WriteFrame treats an existing table.
type Mode int

const (
	// Replace drops any existing table with the same name and recreates it.
	Replace Mode = iota
	// Append creates the table when missing and inserts into it. Columns of an
	// existing table are not altered.
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "replace"
}

// ParseMode accepts "replace" and "append" (any case).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return Replace, nil
	case "append":
		return Append, nil
	}
	return Replace, fmt.Errorf("storage: unknown mode %q (want replace|append)", s)
}

// Sink is the relational store frames are written to and queried from.
//
// Each backend implements these semantics in its own dialect. A sink is
// opened once per batch (or per server process) and used sequentially.
type Sink interface {
	// Close releases backend resources. Call once.
	Close()

	// WriteFrame stores f as table f.Name inside one transaction, so a frame
	// is either fully written or not at all. It returns the rows inserted.
	WriteFrame(ctx context.Context, f *frame.Frame, mode Mode) (int64, error)

	// WriteFrames stores several frames inside one transaction. Either every
	// table is written or none is. It returns the rows inserted per frame.
	WriteFrames(ctx context.Context, frames []*frame.Frame, mode Mode) ([]int64, error)

	// Tables lists user tables in name order.
	Tables(ctx context.Context) ([]string, error)

	// Columns describes the columns of table in declaration order.
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)

	// Query runs one read-only statement (see EnsureReadOnly) and returns at
	// most limit rows. limit <= 0 means DefaultQueryLimit.
	Query(ctx context.Context, query string, limit int) (*Result, error)
}

// ---- factories ----

// Factory opens a sink for cfg.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The kind string becomes the lookup key used by Open.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Open constructs a Sink using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BatchSize returns the rows per INSERT for a frame with ncols columns,
// bounded by the backend's parameter limit.
func BatchSize(cfgRows, ncols, maxParams int) int {
	n := cfgRows
	if n <= 0 {
		n = DefaultBatchRows
	}
	if ncols > 0 && maxParams > 0 && n*ncols > maxParams {
		n = maxParams / ncols
	}
	if n < 1 {
		n = 1
	}
	return n
}
