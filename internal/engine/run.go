package engine

// run.go - Execution orchestration for a star schema run

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapstar/internal/ingest"
	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
	"github.com/leapstack-labs/leapstar/pkg/star"
)

// RunOptions controls which entities a run builds.
type RunOptions struct {
	// Select names dimensions and/or the fact table to build.
	// Empty builds every dimension and then the fact table.
	Select []string
	// Truncate empties the fact table before loading.
	Truncate bool
}

// FactResult summarizes the fact stages of a run.
type FactResult struct {
	Table        string
	Rows         int64
	Unresolved   map[string]int
	CastFailures int
	// SkippedConstraints lists foreign keys the dialect could not add.
	SkippedConstraints []string
}

// RunResult is the outcome of a run.
type RunResult struct {
	Run        *core.Run
	Dimensions []*star.DimensionResult
	// Fact is nil when the fact stages did not run.
	Fact *FactResult
}

// Run executes one pipeline run:
//  1. load the source table
//  2. materialize the selected dimensions concurrently
//  3. create the fact table and its constraints
//  4. resolve foreign keys and append the fact rows
//
// A failed dimension does not stop the others but skips the fact stages.
// When dimensions are rebuilt without the fact stages, the foreign keys of an
// existing fact table are applied again.
// Runs on one engine are serialized.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	dims, runFact, err := e.selection(opts.Select)
	if err != nil {
		return nil, err
	}

	e.logger.Info("starting run", "target", e.target, "dimensions", len(dims), "fact", runFact, "truncate", opts.Truncate)

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun(e.target, opts.Select)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)

	res := &RunResult{}
	runErr := e.execute(ctx, run.ID, dims, runFact, opts.Truncate, res)

	status := core.RunStatusCompleted
	var errMsg string
	switch {
	case runErr == nil:
		e.logger.Info("run completed", "run_id", run.ID)
	case errors.Is(runErr, context.Canceled):
		status = core.RunStatusCancelled
		errMsg = runErr.Error()
		e.logger.Warn("run cancelled", "run_id", run.ID)
	default:
		status = core.RunStatusFailed
		errMsg = runErr.Error()
		e.logger.Error("run failed", "run_id", run.ID, "error", errMsg)
	}

	if err := e.store.CompleteRun(run.ID, status, errMsg); err != nil {
		e.logger.Warn("failed to complete run", "run_id", run.ID, "error", err)
	}
	e.metrics.RunFinished(string(status), e.clock.Now())
	if e.metricsFile != "" {
		if err := e.metrics.WriteTextfile(e.metricsFile); err != nil {
			e.logger.Warn("failed to write metrics", "path", e.metricsFile, "error", err)
		}
	}

	if final, err := e.store.GetRun(run.ID); err == nil {
		res.Run = final
	} else {
		res.Run = run
	}
	return res, runErr
}

// selection maps run selection names to dimension specs and reports
// whether the fact table is selected.
func (e *Engine) selection(names []string) ([]core.DimensionSpec, bool, error) {
	reg := e.schema.Registry()
	if len(names) == 0 {
		return reg.Specs(), true, nil
	}

	fact := e.schema.FactTable()
	runFact := false
	var dims []core.DimensionSpec
	for _, name := range names {
		if name == fact {
			runFact = true
			continue
		}
		spec, ok := reg.Get(name)
		if !ok {
			return nil, false, &core.ConfigurationError{
				Reason: fmt.Sprintf("unknown entity %q (available: %v)", name, append(reg.Names(), fact)),
			}
		}
		if !slices.ContainsFunc(dims, func(d core.DimensionSpec) bool { return d.Name == spec.Name }) {
			dims = append(dims, spec)
		}
	}

	if len(dims) > 0 && e.strategy == core.KeySequence && !runFact {
		e.logger.Warn("rebuilt dimensions get new sequence keys; existing fact rows may reference stale keys",
			"dimensions", len(dims))
	}
	return dims, runFact, nil
}

func (e *Engine) execute(ctx context.Context, runID string, dims []core.DimensionSpec, runFact, truncate bool, res *RunResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := ingest.New(e.source, e.db)
	if err != nil {
		return &core.ConfigurationError{Reason: err.Error()}
	}

	start := e.clock.Now()
	ds, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load source %s: %w", src.Describe(), err)
	}
	e.logger.Info("loaded source", "source", src.Describe(), "rows", ds.Len(), "duration", e.clock.Since(start))

	if len(dims) > 0 {
		if err := e.materializeDimensions(ctx, runID, ds, dims, res); err != nil {
			if runFact {
				e.skipEntity(runID, e.schema.FactTable(), core.EntityFact, "skipped: dimension materialization failed")
			}
			if rerr := e.restoreForeignKeys(ctx); rerr != nil {
				e.logger.Warn("fact foreign keys not restored", "table", e.schema.FactTable(), "error", rerr)
			}
			return err
		}
	}
	if !runFact {
		if len(dims) == 0 {
			return nil
		}
		if err := e.restoreForeignKeys(ctx); err != nil {
			e.failEntity(runID, e.schema.FactTable(), core.EntityFact, err)
			return err
		}
		return nil
	}
	return e.buildFact(ctx, runID, ds, truncate, res)
}

// restoreForeignKeys re-applies the fact schema when the fact table already
// exists and the store enforces foreign keys. Overwriting a dimension can drop
// the constraints that reference it.
func (e *Engine) restoreForeignKeys(ctx context.Context) error {
	if !e.dialect.SupportsAddForeignKey() {
		return nil
	}
	fact := e.schema.FactTable()
	if _, err := e.db.GetTableMetadata(ctx, fact); err != nil {
		e.logger.Debug("fact table not present, no foreign keys to restore", "table", fact, "error", err)
		return nil
	}

	fs, err := star.BuildSchema(e.schema, e.dialect)
	if err != nil {
		return &core.StageError{Entity: fact, Stage: core.StageConstraint, Err: err}
	}
	builder := star.NewSchemaBuilder(e.db, e.logger)
	err = e.stage(fact, core.StageConstraint, func() error { return builder.Apply(ctx, fs) })
	if err != nil {
		var cv *core.ConstraintViolationError
		if errors.As(err, &cv) {
			return &core.StageError{Entity: fact, Stage: core.StageConstraint, Err: cv}
		}
		return err
	}
	e.logger.Info("restored fact foreign keys", "table", fact, "constraints", len(e.schema.Dimensions()))
	return nil
}

func (e *Engine) materializeDimensions(ctx context.Context, runID string, ds *dataset.Dataset, dims []core.DimensionSpec, res *RunResult) error {
	entityRuns := make(map[string]string, len(dims))
	for _, spec := range dims {
		er := &core.EntityRun{RunID: runID, Entity: spec.Name, Kind: core.EntityDimension}
		if err := e.store.RecordEntityRun(er); err != nil {
			return fmt.Errorf("failed to record entity run for %s: %w", spec.Name, err)
		}
		entityRuns[spec.Name] = er.ID
	}

	m := star.NewMaterializer(e.db, e.schema, star.MaterializerConfig{
		KeyStrategy: e.strategy,
		Parallelism: e.parallelism,
		Logger:      e.logger,
	})
	results, err := m.MaterializeAll(ctx, ds, dims)
	res.Dimensions = results

	for _, r := range results {
		stage := string(core.StageMaterialize)
		var se *core.StageError
		if errors.As(r.Err, &se) {
			stage = string(se.Stage)
		}
		e.metrics.Stage(r.Dimension, stage, r.Duration, r.Err)
		e.metrics.CastFailures(r.Dimension, r.CastFailures)

		status, errMsg := core.EntityRunStatusSuccess, ""
		if r.Err != nil {
			status, errMsg = core.EntityRunStatusFailed, r.Err.Error()
		} else {
			e.metrics.Rows(r.Dimension, r.Rows)
		}
		if uerr := e.store.UpdateEntityRun(entityRuns[r.Dimension], status, r.Rows, errMsg); uerr != nil {
			e.logger.Warn("failed to update entity run", "entity", r.Dimension, "error", uerr)
		}
	}

	if err != nil {
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		return fmt.Errorf("%d of %d dimension(s) failed: %w", failed, len(results), err)
	}
	return nil
}

func (e *Engine) buildFact(ctx context.Context, runID string, ds *dataset.Dataset, truncate bool, res *RunResult) error {
	fact := e.schema.FactTable()
	er := &core.EntityRun{RunID: runID, Entity: fact, Kind: core.EntityFact}
	if err := e.store.RecordEntityRun(er); err != nil {
		return fmt.Errorf("failed to record entity run for %s: %w", fact, err)
	}

	fr := &FactResult{Table: fact}
	res.Fact = fr
	err := e.factStages(ctx, ds, truncate, fr)

	status, errMsg := core.EntityRunStatusSuccess, ""
	if err != nil {
		status, errMsg = core.EntityRunStatusFailed, err.Error()
	}
	if uerr := e.store.UpdateEntityRun(er.ID, status, fr.Rows, errMsg); uerr != nil {
		e.logger.Warn("failed to update entity run", "entity", fact, "error", uerr)
	}
	return err
}

func (e *Engine) factStages(ctx context.Context, ds *dataset.Dataset, truncate bool, fr *FactResult) error {
	fact := e.schema.FactTable()

	fs, err := star.BuildSchema(e.schema, e.dialect)
	if err != nil {
		return &core.StageError{Entity: fact, Stage: core.StageSchema, Err: err}
	}
	fr.SkippedConstraints = fs.Skipped
	if len(fs.Skipped) > 0 {
		e.logger.Debug("dialect cannot add foreign keys to existing tables", "dialect", e.dialect.Name, "skipped", fs.Skipped)
	}
	builder := star.NewSchemaBuilder(e.db, e.logger)
	if err := e.stage(fact, core.StageSchema, func() error { return builder.Apply(ctx, fs) }); err != nil {
		return err
	}

	loader := star.NewLoader(e.db, e.schema, e.logger)
	if truncate {
		if err := e.stage(fact, core.StageLoad, func() error { return loader.Truncate(ctx) }); err != nil {
			return err
		}
	}

	resolver := star.NewResolver(e.db, e.schema, e.parallelism, e.logger)
	var (
		rows  *dataset.Dataset
		stats *star.ResolveStats
	)
	err = e.stage(fact, core.StageResolve, func() error {
		var rerr error
		rows, stats, rerr = resolver.Resolve(ctx, ds)
		return rerr
	})
	if err != nil {
		return err
	}
	fr.Unresolved = stats.Unresolved
	fr.CastFailures = stats.CastFailures
	e.metrics.CastFailures(fact, stats.CastFailures)
	for dim, n := range stats.Unresolved {
		e.metrics.Unresolved(dim, n)
		if n > 0 {
			e.logger.Warn("fact rows without dimension key", "dimension", dim, "rows", n)
		}
	}

	err = e.stage(fact, core.StageLoad, func() error {
		n, lerr := loader.Load(ctx, rows)
		fr.Rows = n
		return lerr
	})
	if err != nil {
		return err
	}
	e.metrics.Rows(fact, fr.Rows)
	e.logger.Info("loaded fact table", "table", fact, "rows", fr.Rows)
	return nil
}

// stage runs fn and records its duration and outcome.
func (e *Engine) stage(entity string, stage core.Stage, fn func() error) error {
	start := e.clock.Now()
	err := fn()
	d := e.clock.Since(start)
	e.metrics.Stage(entity, string(stage), d, err)
	e.logger.Debug("stage finished", "entity", entity, "stage", stage, "duration", d, "error", err)
	return err
}

func (e *Engine) failEntity(runID, entity string, kind core.EntityKind, cause error) {
	e.recordEntity(runID, entity, kind, core.EntityRunStatusFailed, cause.Error())
}

func (e *Engine) skipEntity(runID, entity string, kind core.EntityKind, reason string) {
	e.recordEntity(runID, entity, kind, core.EntityRunStatusSkipped, reason)
}

// recordEntity records an entity that did not go through its normal stages.
func (e *Engine) recordEntity(runID, entity string, kind core.EntityKind, status core.EntityRunStatus, msg string) {
	er := &core.EntityRun{RunID: runID, Entity: entity, Kind: kind}
	if err := e.store.RecordEntityRun(er); err != nil {
		e.logger.Warn("failed to record entity run", "entity", entity, "status", status, "error", err)
		return
	}
	if err := e.store.UpdateEntityRun(er.ID, status, 0, msg); err != nil {
		e.logger.Warn("failed to record entity run", "entity", entity, "status", status, "error", err)
	}
}
