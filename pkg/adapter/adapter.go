// Package adapter provides database adapter interfaces and implementations
// for leapstar's star schema materialization.
//
// This package contains the public contract that all database adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Column describes a column in a database table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata holds metadata about a database table.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Adapter defines the interface that all database adapters must implement.
// It provides methods for connecting to databases, executing SQL, and
// moving datasets in and out of tables.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows (e.g., INSERT, UPDATE, CREATE).
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a SQL statement that returns rows.
	// The caller must close the returned rows.
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)

	// ExecInTx executes statements in order inside one transaction.
	// Any failure rolls back every statement and returns a *StatementError.
	ExecInTx(ctx context.Context, stmts []string) error

	// Write bulk-writes a dataset to the table described by def.
	// WriteOverwrite replaces the table atomically; WriteAppend inserts into
	// an existing table. Returns the number of rows written.
	Write(ctx context.Context, def core.TableDef, ds *dataset.Dataset, mode core.WriteMode) (int64, error)

	// Read reads the given columns of a table, cast to their declared types.
	Read(ctx context.Context, table string, fields []core.Field) (*dataset.Dataset, error)

	// GetTableMetadata retrieves metadata for a specified table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV loads data from a CSV file into a table, replacing it.
	LoadCSV(ctx context.Context, tableName string, filePath string) error

	// Dialect returns the SQL dialect used to render statements for this adapter.
	Dialect() *dialect.Dialect
}
