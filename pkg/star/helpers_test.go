package star

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapstar/pkg/adapters/duckdb"
	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
)

var censusFields = []core.Field{
	{Name: "NO_UF", Type: core.TypeString},
	{Name: "NO_MUNICIPIO", Type: core.TypeString},
	{Name: "TP_DEPENDENCIA", Type: core.TypeString},
	{Name: "QT_DOC_BAS", Type: core.TypeString},
}

var localSpec = core.DimensionSpec{
	Name: "DIM_LOCAL",
	Fields: []core.Field{
		{Name: "NO_UF", Type: core.TypeString},
		{Name: "NO_MUNICIPIO", Type: core.TypeString},
	},
}

func censusRows(t *testing.T, rows ...[]any) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRows(censusFields, rows)
	require.NoError(t, err)
	return ds
}

func newDuckDB(t *testing.T) *duckdb.Adapter {
	t.Helper()
	adp := duckdb.New(nil)
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func censusSchema(t *testing.T) *Schema {
	t.Helper()
	base, err := NewRegistry([]core.DimensionSpec{localSpec})
	require.NoError(t, err)
	reg, err := base.Expand([]string{"TP_DEPENDENCIA"}, core.DefaultNaming())
	require.NoError(t, err)
	schema, err := NewSchema(reg, core.FactSpec{
		Table:    "FACT_CENSO_ESCOLAR",
		Measures: []core.Field{{Name: "QT_DOC_BAS", Type: core.TypeInteger}},
	}, core.DefaultNaming())
	require.NoError(t, err)
	return schema
}

// failingStore wraps a store and fails selected operations.
type failingStore struct {
	Store
	failWrite map[string]error
	failExec  func(stmts []string) error
}

func (f *failingStore) Write(ctx context.Context, def core.TableDef, ds *dataset.Dataset, mode core.WriteMode) (int64, error) {
	if err, ok := f.failWrite[def.Name]; ok {
		return 0, err
	}
	return f.Store.Write(ctx, def, ds, mode)
}

func (f *failingStore) ExecInTx(ctx context.Context, stmts []string) error {
	if f.failExec != nil {
		if err := f.failExec(stmts); err != nil {
			return err
		}
	}
	return f.Store.ExecInTx(ctx, stmts)
}
