package star

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
)

// Resolver replaces the natural keys of fact rows with dimension surrogate keys.
type Resolver struct {
	store       Store
	schema      *Schema
	parallelism int
	logger      *slog.Logger
}

// NewResolver creates a resolver reading dimension tables from store.
func NewResolver(store Store, schema *Schema, parallelism int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Resolver{store: store, schema: schema, parallelism: parallelism, logger: logger}
}

// ResolveStats summarizes a resolution.
type ResolveStats struct {
	Rows int
	// Unresolved counts rows left with a null foreign key, by dimension.
	Unresolved map[string]int
	// CastFailures counts measure values stored as null.
	CastFailures int
}

// Resolve returns one row per input row holding the measures followed by
// one foreign key per dimension, in FactColumns order.
//
// Each dimension is read back from the store, never from memory, and its
// natural keys are compared after the same cast used to build it. A fact
// row with no matching dimension row gets a null key. Null natural keys
// match the dimension row whose fields are all null.
func (r *Resolver) Resolve(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, *ResolveStats, error) {
	fact := r.schema.FactTable()
	measures, castStats, err := ds.Project(r.schema.Measures())
	if err != nil {
		return nil, nil, &core.StageError{Entity: fact, Stage: core.StageResolve, Err: err}
	}

	dims := r.schema.Dimensions()
	keyCols := make([][]any, len(dims))
	unresolved := make([]int, len(dims))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, spec := range dims {
		g.Go(func() error {
			col, missing, err := r.lookup(gctx, ds, spec)
			if err != nil {
				return &core.StageError{Entity: spec.Name, Stage: core.StageResolve, Err: err}
			}
			keyCols[i], unresolved[i] = col, missing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := measures
	stats := &ResolveStats{Rows: ds.Len(), Unresolved: make(map[string]int, len(dims)), CastFailures: castStats.Total()}
	for i, spec := range dims {
		out, err = out.WithColumn(r.schema.KeyField(spec.Name), keyCols[i], false)
		if err != nil {
			return nil, nil, &core.StageError{Entity: fact, Stage: core.StageResolve, Err: err}
		}
		stats.Unresolved[spec.Name] = unresolved[i]
		if unresolved[i] > 0 {
			r.logger.Warn("fact rows without a matching dimension row", "dimension", spec.Name, "rows", unresolved[i])
		}
	}

	if out.Len() != ds.Len() {
		return nil, nil, &core.JoinCardinalityError{Dimension: fact, Input: ds.Len(), Output: out.Len()}
	}
	if want := core.FieldNames(r.schema.FactColumns()); !slices.Equal(out.Names(), want) {
		return nil, nil, &core.StageError{
			Entity: fact,
			Stage:  core.StageResolve,
			Err:    fmt.Errorf("resolved columns %v do not match fact columns %v", out.Names(), want),
		}
	}
	return out, stats, nil
}

// lookup resolves one dimension, returning one key (or nil) per fact row
// and the number of rows left unresolved.
func (r *Resolver) lookup(ctx context.Context, ds *dataset.Dataset, spec core.DimensionSpec) ([]any, int, error) {
	natural, _, err := ds.Project(spec.Fields)
	if err != nil {
		return nil, 0, err
	}

	key := r.schema.KeyField(spec.Name)
	table, err := r.store.Read(ctx, spec.Name, append([]core.Field{key}, spec.Fields...))
	if err != nil {
		return nil, 0, err
	}

	index := make(map[string]int64, table.Len())
	for row := 0; row < table.Len(); row++ {
		values := table.Row(row)
		k := dataset.EncodeKey(values[1:])
		if _, dup := index[k]; dup {
			// Two dimension rows for one natural key would fan the join out.
			return nil, 0, &core.JoinCardinalityError{
				Dimension: spec.Name,
				Input:     ds.Len(),
				Output:    -1,
				Reason:    fmt.Sprintf("natural key %v appears more than once in the dimension", values[1:]),
			}
		}
		id, ok := values[0].(int64)
		if !ok {
			return nil, 0, fmt.Errorf("dimension %s has a null key", spec.Name)
		}
		index[k] = id
	}

	col := make([]any, natural.Len())
	missing := 0
	for row := range col {
		if id, ok := index[dataset.EncodeKey(natural.Row(row))]; ok {
			col[row] = id
		} else {
			missing++
		}
	}
	if len(col) != ds.Len() {
		return nil, 0, &core.JoinCardinalityError{Dimension: spec.Name, Input: ds.Len(), Output: len(col)}
	}
	r.logger.Debug("dimension resolved", "dimension", spec.Name, "dimension_rows", table.Len(), "unresolved", missing)
	return col, missing, nil
}
