// Package mssql registers the "mssql" sink for Microsoft SQL Server using
// database/sql and the go-mssqldb driver.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"fiscaletl/internal/frame"
	"fiscaletl/internal/storage"
)

const (
	// maxParams stays below SQL Server's 2100 parameter ceiling.
	maxParams = 2000
	// maxRows is the row limit of a single table value constructor.
	maxRows = 1000
)

func init() {
	storage.Register("mssql", New)
}

// Dialect is the SQL Server flavour of the shared SQL builders.
var Dialect = storage.Dialect{
	Name:            "mssql",
	Ident:           mssqlIdent,
	Placeholder:     func(n int) string { return "@p" + strconv.Itoa(n) },
	ColumnType:      columnType,
	MaxParams:       maxParams,
	MaxRows:         maxRows,
	Drop:            dropIfExists,
	CreateIfMissing: wrapCreateIfMissing,
	ListTables: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = SCHEMA_NAME()
ORDER BY TABLE_NAME`,
	ListColumns: `SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1
ORDER BY ORDINAL_POSITION`,
}

func columnType(t frame.ColumnType) string {
	switch t {
	case frame.Integer:
		return "BIGINT"
	case frame.Real:
		return "FLOAT"
	default:
		return "NVARCHAR(MAX)"
	}
}

// New opens cfg.DSN with the "sqlserver" driver and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(16)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return storage.NewDBSink(db, Dialect, cfg), nil
}

// wrapCreateIfMissing wraps a CREATE TABLE in an OBJECT_ID guard.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		sqlString(tableName),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

func dropIfExists(tableName string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;",
		sqlString(tableName),
		mssqlTableIdent(tableName),
	)
}

// sqlString escapes s for use inside an N'...' literal.
func sqlString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// mssqlIdent bracket-quotes one identifier.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.nota_itens" -> [dbo].[nota_itens]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
