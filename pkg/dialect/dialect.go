// Package dialect provides SQL dialect definitions used to render DDL, DML
// and parameterized queries for a target store.
//
// Concrete dialects live in pkg/dialects/*/ packages and are registered
// with their adapter in pkg/adapter.
package dialect

import (
	"errors"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapstar/pkg/core"
)

// ErrDialectRequired is returned when a dialect is required but not provided.
var ErrDialectRequired = errors.New("dialect is required")

// Dialect is a built, immutable SQL dialect.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema string                // Default schema name ("main" for DuckDB, "public" for Postgres)
	Placeholder   core.PlaceholderStyle // How to format query parameters

	types                 map[core.DataType]string
	supportsAddForeignKey bool
	supportsAddPrimaryKey bool
	identitySequence      bool
}

// New builds a dialect from its pure data configuration.
// Types missing from cfg.Types fall back to ANSI names.
func New(cfg *core.DialectConfig) *Dialect {
	d := &Dialect{
		Name:                  cfg.Name,
		Identifiers:           cfg.Identifiers,
		DefaultSchema:         cfg.DefaultSchema,
		Placeholder:           cfg.Placeholder,
		types:                 make(map[core.DataType]string, 4),
		supportsAddForeignKey: cfg.SupportsAddForeignKey,
		supportsAddPrimaryKey: cfg.SupportsAddPrimaryKey,
		identitySequence:      cfg.IdentitySequence,
	}
	if d.Identifiers.Quote == "" {
		d.Identifiers = core.IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`}
	}
	for t, name := range ansiTypes {
		d.types[t] = name
	}
	for t, name := range cfg.Types {
		d.types[t] = name
	}
	return d
}

var ansiTypes = map[core.DataType]string{
	core.TypeInteger: "BIGINT",
	core.TypeString:  "VARCHAR",
	core.TypeDouble:  "DOUBLE PRECISION",
	core.TypeBoolean: "BOOLEAN",
}

// Config returns the pure data configuration for this dialect.
func (d *Dialect) Config() *core.DialectConfig {
	types := make(map[core.DataType]string, len(d.types))
	for t, name := range d.types {
		types[t] = name
	}
	return &core.DialectConfig{
		Name:                  d.Name,
		Identifiers:           d.Identifiers,
		DefaultSchema:         d.DefaultSchema,
		Placeholder:           d.Placeholder,
		Types:                 types,
		SupportsAddForeignKey: d.supportsAddForeignKey,
		SupportsAddPrimaryKey: d.supportsAddPrimaryKey,
		IdentitySequence:      d.identitySequence,
	}
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case core.NormUppercase:
		return strings.ToUpper(name)
	case core.NormLowercase, core.NormCaseInsensitive:
		return strings.ToLower(name)
	default: // NormCaseSensitive
		return name
	}
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar style.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// Placeholders returns n comma-separated placeholders starting at index start.
func (d *Dialect) Placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.FormatPlaceholder(start + i)
	}
	return strings.Join(parts, ", ")
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
// Generated names keep their case (ID_DIM_LOCAL stays upper case) only when quoted.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteQualified quotes each dot-separated part of a possibly schema-qualified name.
func (d *Dialect) QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// QuoteList quotes and joins column names.
func (d *Dialect) QuoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

// TypeName returns the store column type for t.
func (d *Dialect) TypeName(t core.DataType) string {
	if name, ok := d.types[t]; ok {
		return name
	}
	return "VARCHAR"
}

// SupportsAddForeignKey reports whether foreign keys can be added to an existing table.
func (d *Dialect) SupportsAddForeignKey() bool {
	return d.supportsAddForeignKey
}

// SupportsAddPrimaryKey reports whether a primary key can be added to an existing table.
func (d *Dialect) SupportsAddPrimaryKey() bool {
	return d.supportsAddPrimaryKey
}

// IdentitySequence reports whether identity columns are emulated with a sequence.
func (d *Dialect) IdentitySequence() bool {
	return d.identitySequence
}
