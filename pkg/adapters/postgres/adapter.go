package postgres

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/leapstar/pkg/adapter"
	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
	pgdialect "github.com/leapstack-labs/leapstar/pkg/dialects/postgres"
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, SQLDialect: pgdialect.Postgres},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "postgres"
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return pgdialect.Postgres
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", adapter.Classify(err))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", adapter.Classify(err))
	}

	a.DB = db
	a.Cfg = cfg

	if cfg.Schema != "" && cfg.Schema != pgdialect.Postgres.DefaultSchema {
		if err := a.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+a.Dialect().QuoteIdentifier(cfg.Schema)); err != nil {
			return err
		}
	}
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	// Build key=value format: host=localhost port=5432 user=postgres ...
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if cfg.Schema != "" {
		dsn += fmt.Sprintf(" search_path=%s", cfg.Schema)
	}

	return dsn
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table)
}

// Write bulk-writes ds with COPY inside one pgx transaction.
// Overwrite drops the table with CASCADE, which also drops foreign keys
// pointing at it; the engine re-applies the fact schema after the rebuild.
func (a *Adapter) Write(ctx context.Context, def core.TableDef, ds *dataset.Dataset, mode core.WriteMode) (int64, error) {
	if a.DB == nil {
		return 0, adapter.ErrNotConnected
	}
	names := core.FieldNames(def.Columns)
	data, err := ds.Select(names...)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", def.Name, err)
	}

	var written int64
	err = a.withPgxConn(ctx, func(conn *pgx.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", adapter.Classify(err))
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if mode == core.WriteOverwrite {
			if _, err := tx.Exec(ctx, adapter.DropTableSQL(a.Dialect(), def.Name, true)); err != nil {
				return fmt.Errorf("failed to drop %s: %w", def.Name, err)
			}
			if _, err := tx.Exec(ctx, adapter.CreateTableSQL(a.Dialect(), def, false)); err != nil {
				return fmt.Errorf("failed to create %s: %w", def.Name, err)
			}
		}

		n, err := tx.CopyFrom(ctx, identifier(def.Name), names, pgx.CopyFromRows(data.Rows()))
		if err != nil {
			return fmt.Errorf("failed to copy into %s: %w", def.Name, adapter.Classify(err))
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit write to %s: %w", def.Name, adapter.Classify(err))
		}
		written = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	a.Logger.Debug("copied table", "table", def.Name, "mode", mode, "rows", written)
	return written, nil
}

// withPgxConn runs fn on a dedicated pgx connection taken from the pool.
func (a *Adapter) withPgxConn(ctx context.Context, fn func(conn *pgx.Conn) error) error {
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", adapter.Classify(err))
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		return fn(driverConn.(*stdlib.Conn).Conn())
	})
}

func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// LoadCSV loads data from a CSV file into a table using COPY FROM STDIN.
// All columns are created as TEXT type; the delimiter (',' or ';') is
// taken from the header line.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return adapter.ErrNotConnected
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	file, err := os.Open(absPath) //nolint:gosec // absPath is derived from user-provided filePath, which is expected
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	br := bufio.NewReader(file)
	headerLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	delim := detectDelimiter(headerLine)

	reader := csv.NewReader(strings.NewReader(headerLine))
	reader.Comma = delim
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file: %w", err)
	}

	return a.withPgxConn(ctx, func(conn *pgx.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", adapter.Classify(err))
		}
		defer func() { _ = tx.Rollback(ctx) }()

		d := a.Dialect()
		if _, err := tx.Exec(ctx, adapter.DropTableSQL(d, tableName, true)); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
		if _, err := tx.Exec(ctx, createTextTableSQL(d, tableName, headers)); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}

		copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true, DELIMITER '%c')", d.QuoteQualified(tableName), delim)
		if _, err := tx.Conn().PgConn().CopyFrom(ctx, file, copySQL); err != nil {
			return fmt.Errorf("failed to copy data: %w", err)
		}
		return tx.Commit(ctx)
	})
}

// createTextTableSQL renders a CREATE TABLE with one TEXT column per header.
func createTextTableSQL(d *dialect.Dialect, tableName string, columns []string) string {
	colDefs := make([]string, len(columns))
	for i, col := range columns {
		colDefs[i] = d.QuoteIdentifier(sanitizeIdentifier(col)) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.QuoteQualified(tableName), strings.Join(colDefs, ", "))
}

// sanitizeIdentifier makes a CSV header usable as a column name.
func sanitizeIdentifier(name string) string {
	safe := strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = strings.ReplaceAll(safe, "-", "_")
	return safe
}

// detectDelimiter picks ';' when the header has more semicolons than commas.
func detectDelimiter(header string) rune {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
