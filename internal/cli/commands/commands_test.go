package commands

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapstar/internal/cli/config"
	"github.com/leapstack-labs/leapstar/internal/cli/output"
	"github.com/leapstack-labs/leapstar/internal/cli/testutil"
	"github.com/leapstack-labs/leapstar/internal/olap"

	_ "github.com/leapstack-labs/leapstar/pkg/adapters/duckdb"
)

func loadProject(t *testing.T) *config.Config {
	t.Helper()
	dir := testutil.SetupTestProject(t)
	config.ResetConfig()
	cfg, err := config.LoadConfigWithTarget(filepath.Join(dir, "leapstar.yaml"), "", nil)
	require.NoError(t, err)
	return cfg
}

func execute(cfg *config.Config, tr *testutil.TestRenderer, cmd *cobra.Command, args ...string) error {
	ctx := config.WithConfig(context.Background(), cfg)
	ctx = output.WithRenderer(ctx, tr.Renderer)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(tr.Out)
	cmd.SetErr(tr.ErrOut)
	return cmd.ExecuteContext(ctx)
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewRunCommand(), "run", []string{"select", "truncate"}},
		{NewSchemaCommand(), "schema", []string{"apply"}},
		{NewDimsCommand(), "dims", nil},
		{NewSeedCommand(), "seed <csv>", []string{"table"}},
		{NewQueryCommand(), "query", []string{"measure", "agg", "by", "drill", "where"}},
		{NewRunsCommand(), "runs", []string{"limit", "run"}},
		{NewConfigCommand(), "config", nil},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotEmpty(t, tt.cmd.Long)
			for _, name := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestRunCommand_Markdown(t *testing.T) {
	cfg := loadProject(t)
	tr := testutil.NewTestRendererMarkdown()

	require.NoError(t, execute(cfg, tr, NewRunCommand()))

	out := tr.Output()
	assert.Contains(t, out, ": completed")
	assert.Contains(t, out, "DIM_LOCAL")
	assert.Contains(t, out, "FACT_CENSO_ESCOLAR")
	assert.Contains(t, out, "Completed in")
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
}

func TestRunCommand_JSON(t *testing.T) {
	cfg := loadProject(t)
	tr := testutil.NewTestRendererJSON()

	require.NoError(t, execute(cfg, tr, NewRunCommand()))

	var summary runSummary
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &summary), tr.Output())
	assert.Equal(t, "completed", summary.Status)
	require.Len(t, summary.Entities, 10)

	fact := summary.Entities[9]
	assert.Equal(t, "FACT_CENSO_ESCOLAR", fact.Entity)
	assert.Equal(t, "fact", fact.Kind)
	assert.Equal(t, int64(5), fact.Rows)
	assert.Equal(t, 1, fact.CastFailures)
	assert.NotEmpty(t, summary.Skipped, "duckdb cannot add foreign keys")
}

func TestRunCommand_Select(t *testing.T) {
	cfg := loadProject(t)

	tr := testutil.NewTestRendererJSON()
	require.NoError(t, execute(cfg, tr, NewRunCommand(), "--select", "DIM_LOCAL,DIM_TP_DEPENDENCIA"))

	var summary runSummary
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &summary))
	require.Len(t, summary.Entities, 2)
	assert.Equal(t, "DIM_LOCAL", summary.Entities[0].Entity)
	assert.Equal(t, int64(3), summary.Entities[0].Rows)

	tr = testutil.NewTestRendererJSON()
	err := execute(cfg, tr, NewRunCommand(), "-s", "DIM_NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown entity")
	assert.Empty(t, tr.Output())
}

func TestQueryCommand(t *testing.T) {
	cfg := loadProject(t)
	require.NoError(t, execute(cfg, testutil.NewTestRendererJSON(), NewRunCommand()))

	t.Run("slice", func(t *testing.T) {
		tr := testutil.NewTestRendererJSON()
		require.NoError(t, execute(cfg, tr, NewQueryCommand(),
			"--measure", "QT_MAT_BAS", "--by", "DIM_LOCAL.NO_UF", "--where", "DIM_LOCAL.NO_UF=Acre"))

		var records []map[string]any
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &records), tr.Output())
		require.Len(t, records, 1)
		assert.Equal(t, "Acre", records[0]["DIM_LOCAL.NO_UF"])
		assert.InDelta(t, 2130, records[0]["sum_QT_MAT_BAS"], 0)
	})

	t.Run("count rows by state", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, execute(cfg, tr, NewQueryCommand(), "--by", "DIM_LOCAL.NO_UF"))
		assert.Contains(t, tr.Output(), "Acre")
		assert.Contains(t, tr.Output(), "Bahia")
		assert.Contains(t, tr.Output(), "(2 rows)")
	})

	t.Run("unknown measure", func(t *testing.T) {
		err := execute(cfg, testutil.NewTestRendererJSON(), NewQueryCommand(), "--measure", "QT_NOPE")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown measure")
	})
}

func TestBuildQuery(t *testing.T) {
	uf := olap.Level{Dimension: "DIM_LOCAL", Field: "NO_UF"}
	mun := olap.Level{Dimension: "DIM_LOCAL", Field: "NO_MUNICIPIO"}

	tests := []struct {
		name    string
		opts    QueryOptions
		want    *olap.Query
		wantErr string
	}{
		{
			name: "row count",
			opts: QueryOptions{Measure: olap.CountAll},
			want: olap.RollUp(olap.CountAll, olap.AggCount),
		},
		{
			name: "sum with drill down",
			opts: QueryOptions{Measure: "QT_MAT_BAS", By: []string{"DIM_LOCAL.NO_UF"}, Drill: []string{"DIM_LOCAL.NO_MUNICIPIO"}},
			want: olap.RollUp("QT_MAT_BAS", olap.AggSum, uf).DrillDown(mun),
		},
		{
			name: "dice",
			opts: QueryOptions{Measure: "QT_MAT_BAS", Agg: "avg", Where: []string{"DIM_LOCAL.NO_UF=Acre, Bahia"}},
			want: olap.RollUp("QT_MAT_BAS", olap.AggAvg).Dice(uf, "Acre", "Bahia"),
		},
		{
			name:    "bad level",
			opts:    QueryOptions{Measure: olap.CountAll, By: []string{"NO_UF"}},
			wantErr: "invalid level",
		},
		{
			name:    "filter without value",
			opts:    QueryOptions{Measure: olap.CountAll, Where: []string{"DIM_LOCAL.NO_UF="}},
			wantErr: "has no values",
		},
		{
			name:    "bad aggregate",
			opts:    QueryOptions{Measure: "QT_MAT_BAS", Agg: "median"},
			wantErr: "unknown aggregate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := buildQuery(&tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestSchemaCommand(t *testing.T) {
	cfg := loadProject(t)

	tr := testutil.NewTestRendererText()
	require.NoError(t, execute(cfg, tr, NewSchemaCommand()))
	out := tr.Output()
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS")
	assert.Contains(t, out, "FACT_CENSO_ESCOLAR")
	assert.Contains(t, out, "-- FACT_CENSO_ESCOLAR_DIM_LOCAL_fk: not supported by this target")
	assert.NotContains(t, out, "applied")

	tr = testutil.NewTestRendererJSON()
	require.NoError(t, execute(cfg, tr, NewSchemaCommand(), "--apply"))
	var got schemaJSON
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	assert.True(t, got.Applied)
	assert.Equal(t, "FACT_CENSO_ESCOLAR", got.Table)
	assert.Len(t, got.Skipped, 9)
}

func TestDimsCommand(t *testing.T) {
	cfg := loadProject(t)
	tr := testutil.NewTestRendererJSON()

	require.NoError(t, execute(cfg, tr, NewDimsCommand()))

	var dims []struct {
		Name   string            `json:"name"`
		Key    string            `json:"key"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &dims))
	require.Len(t, dims, 9)
	assert.Equal(t, "DIM_LOCAL", dims[0].Name)
	assert.Equal(t, "ID_DIM_LOCAL", dims[0].Key)
	assert.Equal(t, "string", dims[0].Fields["NO_UF"])
}

func TestRunsCommand(t *testing.T) {
	cfg := loadProject(t)
	require.NoError(t, execute(cfg, testutil.NewTestRendererJSON(), NewRunCommand()))

	tr := testutil.NewTestRendererJSON()
	require.NoError(t, execute(cfg, tr, NewRunsCommand()))
	var runs []runJSON
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.NotNil(t, runs[0].CompletedAt)

	tr = testutil.NewTestRendererJSON()
	require.NoError(t, execute(cfg, tr, NewRunsCommand(), "--run", runs[0].ID))
	var entities []entityRunJSON
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &entities))
	assert.Len(t, entities, 10)
	for _, e := range entities {
		assert.Equal(t, "success", e.Status, e.Entity)
	}
}

func TestSeedCommand(t *testing.T) {
	cfg := loadProject(t)
	tr := testutil.NewTestRendererText()

	require.NoError(t, execute(cfg, tr, NewSeedCommand(), cfg.Source.Path, "--table", "censo"))
	assert.Contains(t, tr.Output(), "into censo")

	err := execute(cfg, testutil.NewTestRendererText(), NewSeedCommand())
	require.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	cfg := loadProject(t)
	cfg.Target.Password = "secret123"
	cfg.Environments = map[string]config.EnvConfig{
		"prod": {Target: &config.TargetConfig{Type: "postgres", Password: "prod-secret"}},
	}
	tr := testutil.NewTestRendererText()

	require.NoError(t, execute(cfg, tr, NewConfigCommand()))

	out := tr.Output()
	assert.Contains(t, out, "state_path:")
	assert.Contains(t, out, "fact_table: FACT_CENSO_ESCOLAR")
	assert.Contains(t, out, maskedPassword)
	assert.NotContains(t, out, "secret123")
	assert.NotContains(t, out, "prod-secret")
	assert.Equal(t, "secret123", cfg.Target.Password, "config is not modified")
	assert.Equal(t, "prod-secret", cfg.Environments["prod"].Target.Password)
}

func TestGetConfig_NotLoaded(t *testing.T) {
	_, err := getConfig(context.Background())
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", "", " c "}))
	assert.Nil(t, splitList(nil))
}
