// Package postgres provides the PostgreSQL store adapter. Bulk writes use
// the COPY protocol through pgx.
//
// Importing the package registers the "postgres" target type:
//
//	import _ "github.com/leapstack-labs/leapstar/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/leapstar/pkg/adapter"
	pgdialect "github.com/leapstack-labs/leapstar/pkg/dialects/postgres"
)

func init() {
	adapter.Register("postgres", pgdialect.Postgres, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
