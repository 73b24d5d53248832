package engine

import (
	"context"

	"github.com/leapstack-labs/leapstar/pkg/star"
)

// FactSchema renders the fact table DDL for the target dialect without
// connecting to the database.
func (e *Engine) FactSchema() (*star.FactSchema, error) {
	return star.BuildSchema(e.schema, e.dialect)
}

// ApplySchema creates the fact table and its constraints. The referenced
// dimension tables must already exist.
func (e *Engine) ApplySchema(ctx context.Context) (*star.FactSchema, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	fs, err := star.BuildSchema(e.schema, e.dialect)
	if err != nil {
		return nil, err
	}
	if err := star.NewSchemaBuilder(e.db, e.logger).Apply(ctx, fs); err != nil {
		return nil, err
	}
	return fs, nil
}
