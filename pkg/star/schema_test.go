package star

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapstar/pkg/adapter"
	"github.com/leapstack-labs/leapstar/pkg/core"
	duckdbdialect "github.com/leapstack-labs/leapstar/pkg/dialects/duckdb"
	pgdialect "github.com/leapstack-labs/leapstar/pkg/dialects/postgres"
)

func TestNewSchema_Validation(t *testing.T) {
	reg, err := NewRegistry([]core.DimensionSpec{localSpec})
	require.NoError(t, err)

	tests := []struct {
		name    string
		fact    core.FactSpec
		wantErr string
	}{
		{
			name:    "empty table",
			fact:    core.FactSpec{},
			wantErr: "fact table name is empty",
		},
		{
			name: "unknown dimension",
			fact: core.FactSpec{
				Table:      "FACT",
				Dimensions: []string{"DIM_MISSING"},
			},
			wantErr: "unknown dimension DIM_MISSING",
		},
		{
			name: "non-integer measure",
			fact: core.FactSpec{
				Table:    "FACT",
				Measures: []core.Field{{Name: "VL_MEDIA", Type: core.TypeDouble}},
			},
			wantErr: "must be integer",
		},
		{
			name: "measure shadows foreign key",
			fact: core.FactSpec{
				Table:    "FACT",
				Measures: []core.Field{{Name: "ID_DIM_LOCAL", Type: core.TypeInteger}},
			},
			wantErr: "ID_DIM_LOCAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(reg, tt.fact, core.DefaultNaming())
			require.Error(t, err)
			var cfgErr *core.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchema_Columns(t *testing.T) {
	s := censusSchema(t)

	assert.Equal(t, "ID_FACT_CENSO_ESCOLAR", s.FactKey())
	assert.Equal(t, []string{"QT_DOC_BAS", "ID_DIM_LOCAL", "ID_DIM_TP_DEPENDENCIA"}, core.FieldNames(s.FactColumns()))

	def := s.DimensionTableDef(localSpec)
	assert.Equal(t, []string{"ID_DIM_LOCAL", "NO_UF", "NO_MUNICIPIO"}, core.FieldNames(def.Columns))
	assert.True(t, def.IsNotNull("ID_DIM_LOCAL"))

	fact := s.FactTableDef()
	assert.Equal(t, "ID_FACT_CENSO_ESCOLAR", fact.Identity)
	assert.Equal(t, s.FactColumns(), fact.Columns)
}

func TestBuildSchema_Postgres(t *testing.T) {
	fs, err := BuildSchema(censusSchema(t), pgdialect.Postgres)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`CREATE TABLE IF NOT EXISTS "FACT_CENSO_ESCOLAR" ("ID_FACT_CENSO_ESCOLAR" BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, "QT_DOC_BAS" BIGINT, "ID_DIM_LOCAL" BIGINT, "ID_DIM_TP_DEPENDENCIA" BIGINT)`,
		`ALTER TABLE "FACT_CENSO_ESCOLAR" DROP CONSTRAINT IF EXISTS "FACT_CENSO_ESCOLAR_DIM_LOCAL_fk"`,
		`ALTER TABLE "FACT_CENSO_ESCOLAR" ADD CONSTRAINT "FACT_CENSO_ESCOLAR_DIM_LOCAL_fk" FOREIGN KEY ("ID_DIM_LOCAL") REFERENCES "DIM_LOCAL" ("ID_DIM_LOCAL")`,
		`ALTER TABLE "FACT_CENSO_ESCOLAR" DROP CONSTRAINT IF EXISTS "FACT_CENSO_ESCOLAR_DIM_TP_DEPENDENCIA_fk"`,
		`ALTER TABLE "FACT_CENSO_ESCOLAR" ADD CONSTRAINT "FACT_CENSO_ESCOLAR_DIM_TP_DEPENDENCIA_fk" FOREIGN KEY ("ID_DIM_TP_DEPENDENCIA") REFERENCES "DIM_TP_DEPENDENCIA" ("ID_DIM_TP_DEPENDENCIA")`,
	}, fs.SQL())
	assert.Empty(t, fs.Skipped)
	assert.Equal(t, "", fs.Statements[0].Constraint)
	assert.Equal(t, "FACT_CENSO_ESCOLAR_DIM_LOCAL_fk", fs.Statements[2].Constraint)
}

func TestBuildSchema_DuckDB(t *testing.T) {
	fs, err := BuildSchema(censusSchema(t), duckdbdialect.DuckDB)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`CREATE SEQUENCE IF NOT EXISTS "FACT_CENSO_ESCOLAR_seq"`,
		`CREATE TABLE IF NOT EXISTS "FACT_CENSO_ESCOLAR" ("ID_FACT_CENSO_ESCOLAR" BIGINT DEFAULT nextval('FACT_CENSO_ESCOLAR_seq') PRIMARY KEY, "QT_DOC_BAS" BIGINT, "ID_DIM_LOCAL" BIGINT, "ID_DIM_TP_DEPENDENCIA" BIGINT)`,
	}, fs.SQL())
	assert.Equal(t, []string{"FACT_CENSO_ESCOLAR_DIM_LOCAL_fk", "FACT_CENSO_ESCOLAR_DIM_TP_DEPENDENCIA_fk"}, fs.Skipped)
}

func TestBuildSchema_RequiresDialect(t *testing.T) {
	_, err := BuildSchema(censusSchema(t), nil)
	assert.Error(t, err)
}

func TestSchemaBuilder_ApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newDuckDB(t)
	fs, err := BuildSchema(censusSchema(t), store.Dialect())
	require.NoError(t, err)

	b := NewSchemaBuilder(store, nil)
	require.NoError(t, b.Apply(ctx, fs))
	before, err := store.GetTableMetadata(ctx, "FACT_CENSO_ESCOLAR")
	require.NoError(t, err)

	require.NoError(t, b.Apply(ctx, fs))
	after, err := store.GetTableMetadata(ctx, "FACT_CENSO_ESCOLAR")
	require.NoError(t, err)

	assert.Equal(t, before.Columns, after.Columns)
	assert.Equal(t, []string{"ID_FACT_CENSO_ESCOLAR", "QT_DOC_BAS", "ID_DIM_LOCAL", "ID_DIM_TP_DEPENDENCIA"},
		[]string{after.Columns[0].Name, after.Columns[1].Name, after.Columns[2].Name, after.Columns[3].Name})
}

func TestSchemaBuilder_ApplyReportsFailedConstraint(t *testing.T) {
	fs, err := BuildSchema(censusSchema(t), pgdialect.Postgres)
	require.NoError(t, err)

	store := &failingStore{
		Store: newDuckDB(t),
		failExec: func(stmts []string) error {
			return &adapter.StatementError{Index: 4, SQL: stmts[4], Err: assert.AnError}
		},
	}
	err = NewSchemaBuilder(store, nil).Apply(context.Background(), fs)
	require.Error(t, err)

	var stageErr *core.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, core.StageSchema, stageErr.Stage)
	assert.Equal(t, "FACT_CENSO_ESCOLAR", stageErr.Entity)

	var cv *core.ConstraintViolationError
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, "FACT_CENSO_ESCOLAR_DIM_TP_DEPENDENCIA_fk", cv.Constraint)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSchemaBuilder_ApplyRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	store := newDuckDB(t)
	fs := &FactSchema{
		Table: "FACT_X",
		Statements: []Statement{
			{SQL: `CREATE TABLE IF NOT EXISTS "FACT_X" ("A" BIGINT)`},
			{Constraint: "FACT_X_DIM_GONE_fk", SQL: `ALTER TABLE "DIM_GONE" ADD COLUMN "B" BIGINT`},
		},
	}

	err := NewSchemaBuilder(store, nil).Apply(ctx, fs)
	var cv *core.ConstraintViolationError
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, "FACT_X_DIM_GONE_fk", cv.Constraint)

	_, err = store.GetTableMetadata(ctx, "FACT_X")
	assert.Error(t, err, "table creation must not be committed")
}
