package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapstar/internal/config"
	"github.com/leapstack-labs/leapstar/internal/ingest"
	"github.com/leapstack-labs/leapstar/internal/olap"
	"github.com/leapstack-labs/leapstar/internal/testutil"
	"github.com/leapstack-labs/leapstar/pkg/adapter"
	_ "github.com/leapstack-labs/leapstar/pkg/adapters/duckdb"
	"github.com/leapstack-labs/leapstar/pkg/core"
)

const factTable = "FACT_CENSO_ESCOLAR"

func newTestEngine(t *testing.T, starCfg config.StarConfig, mutate ...func(*Config)) *Engine {
	t.Helper()
	schema, err := starCfg.Schema()
	require.NoError(t, err)
	strategy, err := starCfg.Strategy()
	require.NoError(t, err)

	cfg := Config{
		StatePath:     filepath.Join(t.TempDir(), "state.db"),
		Target:        "test",
		AdapterConfig: core.AdapterConfig{Type: "duckdb", Path: ":memory:"},
		Source: ingest.Config{
			Kind: ingest.KindCSV,
			Path: testutil.WriteFile(t, "censo.csv", testutil.CensusCSV),
		},
		Schema:      schema,
		KeyStrategy: strategy,
		Parallelism: 2,
		Logger:      testutil.NewTestLogger(t),
		Clock:       clockwork.NewFakeClock(),
	}
	for _, m := range mutate {
		m(&cfg)
	}

	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func countRows(t *testing.T, e *Engine, table string) int64 {
	t.Helper()
	db, err := e.DB(context.Background())
	require.NoError(t, err)
	meta, err := db.GetTableMetadata(context.Background(), table)
	require.NoError(t, err)
	return meta.RowCount
}

func entityStatuses(t *testing.T, e *Engine, runID string) map[string]core.EntityRunStatus {
	t.Helper()
	ers, err := e.EntityRuns(runID)
	require.NoError(t, err)
	out := make(map[string]core.EntityRunStatus, len(ers))
	for _, er := range ers {
		out[er.Entity] = er.Status
	}
	return out
}

func TestNew(t *testing.T) {
	defStar := config.DefaultStar()
	schema, err := defStar.Schema()
	require.NoError(t, err)

	t.Run("lazy connection", func(t *testing.T) {
		e, err := New(Config{StatePath: ":memory:", Schema: schema})
		require.NoError(t, err)
		defer func() { _ = e.Close() }()

		assert.Nil(t, e.db)
		assert.Equal(t, "duckdb", e.Dialect().Name)
		assert.Equal(t, core.KeySequence, e.strategy)
		assert.Len(t, e.Dimensions(), 9)
	})

	t.Run("requires schema", func(t *testing.T) {
		_, err := New(Config{StatePath: ":memory:"})
		var cfgErr *core.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("unknown target type", func(t *testing.T) {
		_, err := New(Config{StatePath: ":memory:", Schema: schema, AdapterConfig: core.AdapterConfig{Type: "oracle"}})
		var unknown *adapter.UnknownAdapterError
		assert.ErrorAs(t, err, &unknown)
	})

	t.Run("invalid state path", func(t *testing.T) {
		_, err := New(Config{StatePath: "/nonexistent/path/state.db", Schema: schema})
		assert.Error(t, err)
	})
}

func TestRun_FullPipeline(t *testing.T) {
	ctx := context.Background()
	metricsFile := filepath.Join(t.TempDir(), "leapstar.prom")
	e := newTestEngine(t, config.DefaultStar(), func(c *Config) { c.MetricsFile = metricsFile })

	res, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Run)
	assert.Equal(t, core.RunStatusCompleted, res.Run.Status)
	assert.NotNil(t, res.Run.CompletedAt)
	assert.Len(t, res.Dimensions, 9)

	rows := make(map[string]int64, len(res.Dimensions))
	for _, d := range res.Dimensions {
		require.NoError(t, d.Err)
		rows[d.Dimension] = d.Rows
	}
	assert.EqualValues(t, 3, rows["DIM_LOCAL"])
	assert.EqualValues(t, 3, rows["DIM_TP_DEPENDENCIA"])
	assert.EqualValues(t, 2, rows["DIM_IN_INTERNET"], "blank flag is its own null row")

	require.NotNil(t, res.Fact)
	assert.EqualValues(t, 5, res.Fact.Rows)
	assert.Equal(t, 1, res.Fact.CastFailures)
	assert.Equal(t, 0, res.Fact.Unresolved["DIM_LOCAL"])
	assert.Len(t, res.Fact.SkippedConstraints, 9, "duckdb cannot add foreign keys")
	assert.EqualValues(t, 5, countRows(t, e, factTable))

	statuses := entityStatuses(t, e, res.Run.ID)
	assert.Len(t, statuses, 10)
	for entity, status := range statuses {
		assert.Equal(t, core.EntityRunStatusSuccess, status, entity)
	}

	n, err := promtest.GatherAndCount(e.Metrics().Registry(), "leapstar_entity_rows")
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "leapstar_stage_total")
}

func TestRun_AppendsAndTruncates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, config.DefaultStar())

	_, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	_, err = e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 10, countRows(t, e, factTable))

	_, err = e.Run(ctx, RunOptions{Truncate: true})
	require.NoError(t, err)
	assert.EqualValues(t, 5, countRows(t, e, factTable))
}

func TestRun_SelectedEntities(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, config.DefaultStar())

	_, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)

	res, err := e.Run(ctx, RunOptions{Select: []string{"DIM_LOCAL", "DIM_LOCAL"}})
	require.NoError(t, err)
	require.Len(t, res.Dimensions, 1)
	assert.Equal(t, "DIM_LOCAL", res.Dimensions[0].Dimension)
	assert.Nil(t, res.Fact)
	assert.Contains(t, res.Run.Selection, "DIM_LOCAL")
	assert.EqualValues(t, 5, countRows(t, e, factTable))
	assert.Equal(t, map[string]core.EntityRunStatus{"DIM_LOCAL": core.EntityRunStatusSuccess}, entityStatuses(t, e, res.Run.ID),
		"stores without foreign keys have nothing to restore")

	res, err = e.Run(ctx, RunOptions{Select: []string{factTable}})
	require.NoError(t, err)
	assert.Empty(t, res.Dimensions)
	require.NotNil(t, res.Fact)
	assert.EqualValues(t, 10, countRows(t, e, factTable))
	assert.Equal(t, map[string]core.EntityRunStatus{factTable: core.EntityRunStatusSuccess}, entityStatuses(t, e, res.Run.ID))
}

func TestRun_UnknownSelection(t *testing.T) {
	e := newTestEngine(t, config.DefaultStar())

	_, err := e.Run(context.Background(), RunOptions{Select: []string{"DIM_ESCOLA"}})
	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "DIM_ESCOLA")

	runs, err := e.Runs(10)
	require.NoError(t, err)
	assert.Empty(t, runs, "no run is recorded for an invalid selection")
}

func TestRun_DimensionFailureSkipsFact(t *testing.T) {
	ctx := context.Background()
	starCfg := config.DefaultStar()
	starCfg.Dimensions = append(starCfg.Dimensions, config.DimensionConfig{
		Name:   "DIM_DISTRITO",
		Fields: []config.FieldConfig{{Name: "NO_DISTRITO", Type: "string"}},
	})
	e := newTestEngine(t, starCfg)

	res, err := e.Run(ctx, RunOptions{})
	require.Error(t, err)
	var se *core.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "DIM_DISTRITO", se.Entity)
	assert.Equal(t, core.StageMaterialize, se.Stage)

	assert.Equal(t, core.RunStatusFailed, res.Run.Status)
	assert.Contains(t, res.Run.Error, "1 of 10 dimension(s) failed")
	assert.Nil(t, res.Fact)

	statuses := entityStatuses(t, e, res.Run.ID)
	assert.Equal(t, core.EntityRunStatusFailed, statuses["DIM_DISTRITO"])
	assert.Equal(t, core.EntityRunStatusSuccess, statuses["DIM_LOCAL"], "other dimensions still build")
	assert.Equal(t, core.EntityRunStatusSkipped, statuses[factTable])

	db, err := e.DB(ctx)
	require.NoError(t, err)
	_, err = db.GetTableMetadata(ctx, factTable)
	assert.Error(t, err, "fact table is not created")
}

func TestRun_SourceFailure(t *testing.T) {
	e := newTestEngine(t, config.DefaultStar(), func(c *Config) {
		c.Source.Path = filepath.Join(t.TempDir(), "missing.csv")
	})

	res, err := e.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Equal(t, core.RunStatusFailed, res.Run.Status)
	assert.Empty(t, entityStatuses(t, e, res.Run.ID))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newTestEngine(t, config.DefaultStar())
	_, err := e.DB(ctx)
	require.NoError(t, err)
	cancel()

	res, err := e.Run(ctx, RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, core.RunStatusCancelled, res.Run.Status)
}

func TestRun_HashKeysSurviveRebuild(t *testing.T) {
	ctx := context.Background()
	starCfg := config.DefaultStar()
	starCfg.KeyStrategy = "hash"
	e := newTestEngine(t, starCfg)

	_, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	_, err = e.Run(ctx, RunOptions{Select: []string{"DIM_LOCAL"}})
	require.NoError(t, err)

	res, err := e.Query(ctx, olap.RollUp(olap.CountAll, olap.AggCount, olap.Level{Dimension: "DIM_LOCAL", Field: "NO_UF"}))
	require.NoError(t, err)
	require.Len(t, res.Rows, 2, "every fact row still joins its location")
	assert.Equal(t, "Acre", res.Rows[0][0])
	assert.Equal(t, "Bahia", res.Rows[1][0])
}

func TestRunHistory(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, config.DefaultStar(), func(c *Config) { c.Clock = clock })

	first, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := e.Run(ctx, RunOptions{Select: []string{"DIM_TP_DEPENDENCIA"}})
	require.NoError(t, err)

	runs, err := e.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.Run.ID, runs[0].ID)
	assert.Equal(t, first.Run.ID, runs[1].ID)
	assert.Equal(t, "test", runs[0].Target)
	assert.Equal(t, []string{"DIM_TP_DEPENDENCIA"}, runs[0].Selection)

	latest, err := e.GetStateStore().GetLatestEntityRun("DIM_TP_DEPENDENCIA")
	require.NoError(t, err)
	assert.Equal(t, second.Run.ID, latest.RunID)
}

func TestSeedAndTableSource(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, config.DefaultStar(), func(c *Config) {
		c.Source = ingest.Config{Kind: ingest.KindTable, Table: "microdados"}
	})

	path := testutil.WriteFile(t, "microdados.csv", testutil.CensusCSV)
	table, err := e.Seed(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, "microdados", table)

	res, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, res.Fact.Rows)
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, config.DefaultStar())
	_, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)

	uf := olap.Level{Dimension: "DIM_LOCAL", Field: "NO_UF"}
	res, err := e.Query(ctx, olap.RollUp("QT_MAT_BAS", olap.AggSum, uf))
	require.NoError(t, err)
	assert.Equal(t, []string{"DIM_LOCAL.NO_UF", "sum_QT_MAT_BAS"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Acre", res.Rows[0][0])
	assert.EqualValues(t, 2130, res.Rows[0][1])

	internet := olap.Level{Dimension: "DIM_IN_INTERNET", Field: "IN_INTERNET"}
	res, err = e.Query(ctx, olap.RollUp(olap.CountAll, olap.AggCount).Slice(internet, ""))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 1, res.Rows[0][0], "blank flag slices the null member")

	_, err = e.Query(ctx, olap.RollUp("QT_MAT_BAS", olap.AggSum, olap.Level{Dimension: "DIM_ESCOLA", Field: "NO_ESCOLA"}))
	assert.Error(t, err)
}

func TestFactSchema(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, config.DefaultStar())

	fs, err := e.FactSchema()
	require.NoError(t, err)
	assert.Equal(t, factTable, fs.Table)
	assert.Nil(t, e.db, "rendering does not connect")

	_, err = e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	applied, err := e.ApplySchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, fs.SQL(), applied.SQL())
}
