package star

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
)

// Loader appends resolved rows to the fact table.
type Loader struct {
	store  Store
	schema *Schema
	logger *slog.Logger
}

// NewLoader creates a fact loader.
func NewLoader(store Store, schema *Schema, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{store: store, schema: schema, logger: logger}
}

// Load appends rows to the fact table. rows must have exactly the fact
// columns in FactColumns order. Rows are never deduplicated: loading the
// same data twice doubles it.
func (l *Loader) Load(ctx context.Context, rows *dataset.Dataset) (int64, error) {
	def := l.schema.FactTableDef()
	if want := core.FieldNames(def.Columns); !slices.Equal(rows.Names(), want) {
		return 0, &core.StageError{
			Entity: def.Name,
			Stage:  core.StageLoad,
			Err:    fmt.Errorf("rows have columns %v, fact table expects %v", rows.Names(), want),
		}
	}
	n, err := l.store.Write(ctx, def, rows, core.WriteAppend)
	if err != nil {
		return 0, &core.StageError{Entity: def.Name, Stage: core.StageLoad, Err: err}
	}
	l.logger.Info("fact rows loaded", "table", def.Name, "rows", n)
	return n, nil
}

// Truncate deletes every fact row, leaving the schema in place.
func (l *Loader) Truncate(ctx context.Context) error {
	d := l.store.Dialect()
	table := l.schema.FactTable()
	if err := l.store.ExecInTx(ctx, []string{"DELETE FROM " + d.QuoteQualified(table)}); err != nil {
		return &core.StageError{Entity: table, Stage: core.StageLoad, Err: err}
	}
	l.logger.Info("fact table truncated", "table", table)
	return nil
}
