package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, Query, ExecInTx, Write and Read implementations.
type BaseSQLAdapter struct {
	DB         *sql.DB
	Cfg        core.AdapterConfig
	Logger     *slog.Logger
	SQLDialect *dialect.Dialect
}

func (b *BaseSQLAdapter) log() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.log().Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", Classify(err))
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string, args ...any) (*sql.Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", Classify(err))
	}
	return rows, nil
}

// ExecInTx executes statements in order inside one transaction.
func (b *BaseSQLAdapter) ExecInTx(ctx context.Context, stmts []string) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", Classify(err))
	}
	for i, stmt := range stmts {
		b.log().Debug("executing statement", "index", i, "sql", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return &StatementError{Index: i, SQL: stmt, Err: Classify(err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", Classify(err))
	}
	return nil
}

// Write bulk-writes ds into def.Name using batched multi-row INSERTs in a
// single transaction. With WriteOverwrite the table is dropped and recreated
// inside the same transaction, so readers never see a partial table.
func (b *BaseSQLAdapter) Write(ctx context.Context, def core.TableDef, ds *dataset.Dataset, mode core.WriteMode) (int64, error) {
	if b.DB == nil {
		return 0, ErrNotConnected
	}
	if b.SQLDialect == nil {
		return 0, dialect.ErrDialectRequired
	}
	names := core.FieldNames(def.Columns)
	data, err := ds.Select(names...)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", def.Name, err)
	}

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", Classify(err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if mode == core.WriteOverwrite {
		if _, err := tx.ExecContext(ctx, DropTableSQL(b.SQLDialect, def.Name, false)); err != nil {
			return 0, fmt.Errorf("failed to drop %s: %w", def.Name, Classify(err))
		}
		if _, err := tx.ExecContext(ctx, CreateTableSQL(b.SQLDialect, def, false)); err != nil {
			return 0, fmt.Errorf("failed to create %s: %w", def.Name, Classify(err))
		}
	}

	total := data.Len()
	batch := BatchSize(len(names))
	for start := 0; start < total; start += batch {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		end := min(start+batch, total)
		args := make([]any, 0, (end-start)*len(names))
		for r := start; r < end; r++ {
			args = append(args, data.Row(r)...)
		}
		stmt := InsertSQL(b.SQLDialect, def.Name, names, end-start)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("failed to insert into %s: %w", def.Name, Classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit write to %s: %w", def.Name, Classify(err))
	}
	committed = true
	b.log().Debug("wrote table", "table", def.Name, "mode", mode, "rows", total)
	return int64(total), nil
}

// Read reads the given columns of table and casts each value to its field type.
func (b *BaseSQLAdapter) Read(ctx context.Context, table string, fields []core.Field) (*dataset.Dataset, error) {
	if b.SQLDialect == nil {
		return nil, dialect.ErrDialectRequired
	}
	rows, err := b.Query(ctx, SelectSQL(b.SQLDialect, table, core.FieldNames(fields)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	return ScanDataset(rows, fields)
}

// ScanDataset drains rows into a dataset, casting each value to its field type.
// A value the store returns that cannot be cast is an error, not a null.
func ScanDataset(rows *sql.Rows, fields []core.Field) (*dataset.Dataset, error) {
	ds := dataset.New(fields...)
	raw := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]any, len(fields))
		for i, f := range fields {
			v, err := dataset.Cast(raw[i], f.Type)
			if err != nil {
				var castErr *core.CastError
				if errors.As(err, &castErr) {
					castErr.Field = f.Name
				}
				return nil, err
			}
			row[i] = v
		}
		if err := ds.Append(row...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", Classify(err))
	}
	return ds, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// GetTableMetadataCommon provides a shared implementation of GetTableMetadata.
// Uses information_schema.columns with dialect-appropriate placeholders.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table string) (*Metadata, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	if b.SQLDialect == nil {
		return nil, dialect.ErrDialectRequired
	}
	d := b.SQLDialect
	schema, tableName := ParseQualifiedName(table, d)

	//nolint:gosec // Placeholders are safe - they come from dialect.FormatPlaceholder
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", Classify(err))
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	var rowCount int64
	countQuery := "SELECT COUNT(*) FROM " + d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(tableName) //nolint:gosec // names come from metadata
	if err := b.DB.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		// Non-fatal error, just set to 0
		rowCount = 0
	}

	return &Metadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}
