package engine

import (
	"context"

	"github.com/leapstack-labs/leapstar/internal/olap"
	"github.com/leapstack-labs/leapstar/pkg/core"
)

// Query runs an aggregate query over the star schema.
func (e *Engine) Query(ctx context.Context, q *olap.Query) (*olap.Result, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return q.Run(ctx, e.db, e.schema, e.dialect)
}

// Runs returns the most recent runs, newest first.
func (e *Engine) Runs(limit int) ([]*core.Run, error) {
	return e.store.ListRuns(limit)
}

// EntityRuns returns the entity runs recorded for a run.
func (e *Engine) EntityRuns(runID string) ([]*core.EntityRun, error) {
	return e.store.GetEntityRunsForRun(runID)
}
