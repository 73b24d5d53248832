// Package duckdb provides the DuckDB SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import (
	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
)

// DuckDB is the built DuckDB dialect.
// DuckDB cannot add primary or foreign keys to an existing table, so key
// uniqueness is enforced with a unique index and foreign keys are skipped.
// The fact key is drawn from a sequence.
var DuckDB = dialect.New(&core.DialectConfig{
	Name:          "duckdb",
	DefaultSchema: "main",
	Placeholder:   core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormCaseInsensitive,
	},
	Types: map[core.DataType]string{
		core.TypeInteger: "BIGINT",
		core.TypeString:  "VARCHAR",
		core.TypeDouble:  "DOUBLE",
		core.TypeBoolean: "BOOLEAN",
	},
	IdentitySequence: true,
})
