package star

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
)

// DefaultParallelism bounds concurrent dimension builds and lookups.
const DefaultParallelism = 4

// MaterializerConfig configures a Materializer.
type MaterializerConfig struct {
	KeyStrategy core.KeyStrategy
	Parallelism int
	Logger      *slog.Logger
}

// Materializer builds dimension tables.
type Materializer struct {
	store       Store
	schema      *Schema
	strategy    core.KeyStrategy
	parallelism int
	logger      *slog.Logger
}

// NewMaterializer creates a materializer writing to store.
func NewMaterializer(store Store, schema *Schema, cfg MaterializerConfig) *Materializer {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.KeyStrategy == "" {
		cfg.KeyStrategy = core.KeySequence
	}
	return &Materializer{
		store:       store,
		schema:      schema,
		strategy:    cfg.KeyStrategy,
		parallelism: cfg.Parallelism,
		logger:      cfg.Logger,
	}
}

// DimensionResult is the outcome of materializing one dimension.
type DimensionResult struct {
	Dimension    string
	SourceRows   int
	Rows         int64
	CastFailures int
	Duration     time.Duration
	Err          error
}

// Materialize projects ds onto spec's fields, removes duplicate rows,
// assigns surrogate keys, replaces the dimension table and then adds the
// key constraint. The returned result is never nil; its Err matches the
// returned error.
func (m *Materializer) Materialize(ctx context.Context, ds *dataset.Dataset, spec core.DimensionSpec) (*DimensionResult, error) {
	start := time.Now()
	res := &DimensionResult{Dimension: spec.Name, SourceRows: ds.Len()}
	fail := func(stage core.Stage, err error) (*DimensionResult, error) {
		res.Err = &core.StageError{Entity: spec.Name, Stage: stage, Err: err}
		res.Duration = time.Since(start)
		return res, res.Err
	}

	projected, stats, err := ds.Project(spec.Fields)
	if err != nil {
		return fail(core.StageMaterialize, err)
	}
	res.CastFailures = stats.Total()
	if res.CastFailures > 0 {
		m.logger.Warn("values could not be cast and were stored as null",
			"dimension", spec.Name, "failures", res.CastFailures)
	}

	distinct := projected.Distinct()
	gen := newKeyFunc(m.strategy)
	keys := make([]any, distinct.Len())
	for r := range keys {
		keys[r] = gen(distinct.Row(r))
	}
	key := m.schema.KeyField(spec.Name)
	table, err := distinct.WithColumn(key, keys, true)
	if err != nil {
		return fail(core.StageMaterialize, err)
	}

	n, err := m.store.Write(ctx, m.schema.DimensionTableDef(spec), table, core.WriteOverwrite)
	if err != nil {
		return fail(core.StageMaterialize, err)
	}
	res.Rows = n

	if err := m.applyKeyConstraint(ctx, spec.Name, key.Name); err != nil {
		return fail(core.StageConstraint, err)
	}

	res.Duration = time.Since(start)
	m.logger.Info("dimension materialized",
		"dimension", spec.Name,
		"rows", res.Rows,
		"source_rows", res.SourceRows,
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}

// applyKeyConstraint enforces key uniqueness after the bulk write has
// committed. Stores that cannot add a primary key get a unique index.
func (m *Materializer) applyKeyConstraint(ctx context.Context, table, column string) error {
	d := m.store.Dialect()
	name := m.schema.Naming().PrimaryKeyName(table)
	var stmt string
	if d.SupportsAddPrimaryKey() {
		stmt = fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
			d.QuoteQualified(table), d.QuoteIdentifier(name), d.QuoteIdentifier(column))
	} else {
		stmt = fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
			d.QuoteIdentifier(name), d.QuoteQualified(table), d.QuoteIdentifier(column))
	}
	if err := m.store.ExecInTx(ctx, []string{stmt}); err != nil {
		return &core.ConstraintViolationError{Table: table, Constraint: name, Err: err}
	}
	return nil
}

// MaterializeAll materializes specs concurrently. A failing dimension does
// not stop or undo the others. Results are returned in spec order and the
// error joins every per-dimension failure.
func (m *Materializer) MaterializeAll(ctx context.Context, ds *dataset.Dataset, specs []core.DimensionSpec) ([]*DimensionResult, error) {
	results := make([]*DimensionResult, len(specs))
	var g errgroup.Group
	g.SetLimit(m.parallelism)
	for i, spec := range specs {
		g.Go(func() error {
			results[i], _ = m.Materialize(ctx, ds, spec)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return results, errors.Join(errs...)
}
