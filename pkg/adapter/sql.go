package adapter

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
)

// maxParams is the largest number of bind parameters put in one INSERT.
// PostgreSQL rejects statements with more than 65535.
const maxParams = 65535

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 500

// CreateTableSQL renders a CREATE TABLE statement for def.
func CreateTableSQL(d *dialect.Dialect, def core.TableDef, ifNotExists bool) string {
	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		col := d.QuoteIdentifier(c.Name) + " " + d.TypeName(c.Type)
		if def.IsNotNull(c.Name) {
			col += " NOT NULL"
		}
		cols[i] = col
	}
	clause := "CREATE TABLE "
	if ifNotExists {
		clause += "IF NOT EXISTS "
	}
	return clause + d.QuoteQualified(def.Name) + " (" + strings.Join(cols, ", ") + ")"
}

// DropTableSQL renders a DROP TABLE IF EXISTS statement.
func DropTableSQL(d *dialect.Dialect, table string, cascade bool) string {
	stmt := "DROP TABLE IF EXISTS " + d.QuoteQualified(table)
	if cascade {
		stmt += " CASCADE"
	}
	return stmt
}

// InsertSQL renders a multi-row INSERT with one placeholder per value.
func InsertSQL(d *dialect.Dialect, table string, columns []string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.QuoteQualified(table), d.QuoteList(columns))
	n := len(columns)
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		b.WriteString(d.Placeholders(r*n+1, n))
		b.WriteString(")")
	}
	return b.String()
}

// SelectSQL renders a SELECT of the given columns from table.
func SelectSQL(d *dialect.Dialect, table string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", d.QuoteList(columns), d.QuoteQualified(table))
}

// BatchSize returns how many rows of width columns fit in one INSERT.
func BatchSize(columns int) int {
	if columns == 0 {
		return DefaultBatchSize
	}
	return max(1, min(DefaultBatchSize, maxParams/columns))
}

// ParseQualifiedName splits a table reference into schema and name.
// Uses the dialect's default schema if not specified.
func ParseQualifiedName(table string, d *dialect.Dialect) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return d.DefaultSchema, table
}
