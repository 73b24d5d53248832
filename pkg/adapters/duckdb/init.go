// Package duckdb provides the DuckDB store adapter, the default target.
//
// Importing the package registers the "duckdb" target type:
//
//	import _ "github.com/leapstack-labs/leapstar/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapstar/pkg/adapter"
	duckdbdialect "github.com/leapstack-labs/leapstar/pkg/dialects/duckdb"
)

func init() {
	adapter.Register("duckdb", duckdbdialect.DuckDB, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
