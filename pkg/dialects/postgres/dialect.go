// Package postgres provides the PostgreSQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import (
	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
)

// Postgres is the built PostgreSQL dialect. Keys and foreign keys are
// added as named constraints after the tables exist.
var Postgres = dialect.New(&core.DialectConfig{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormLowercase,
	},
	Types: map[core.DataType]string{
		core.TypeInteger: "BIGINT",
		core.TypeString:  "TEXT",
		core.TypeDouble:  "DOUBLE PRECISION",
		core.TypeBoolean: "BOOLEAN",
	},
	SupportsAddForeignKey: true,
	SupportsAddPrimaryKey: true,
})
