package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/leapstar/pkg/core"
)

func TestFormatPlaceholder(t *testing.T) {
	question := New(&core.DialectConfig{Name: "q", Placeholder: core.PlaceholderQuestion})
	dollar := New(&core.DialectConfig{Name: "d", Placeholder: core.PlaceholderDollar})

	assert.Equal(t, "?", question.FormatPlaceholder(3))
	assert.Equal(t, "$3", dollar.FormatPlaceholder(3))
	assert.Equal(t, "$2, $3, $4", dollar.Placeholders(2, 3))
	assert.Equal(t, "?, ?", question.Placeholders(1, 2))
}

func TestQuoteIdentifier(t *testing.T) {
	d := New(&core.DialectConfig{Name: "test"})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "ID_DIM_LOCAL", `"ID_DIM_LOCAL"`},
		{"embedded quote", `we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.QuoteIdentifier(tt.in))
		})
	}

	assert.Equal(t, `"main"."DIM_LOCAL"`, d.QuoteQualified("main.DIM_LOCAL"))
	assert.Equal(t, `"A", "B"`, d.QuoteList([]string{"A", "B"}))
}

func TestTypeName(t *testing.T) {
	d := New(&core.DialectConfig{
		Name:  "test",
		Types: map[core.DataType]string{core.TypeDouble: "DOUBLE"},
	})

	assert.Equal(t, "BIGINT", d.TypeName(core.TypeInteger))
	assert.Equal(t, "DOUBLE", d.TypeName(core.TypeDouble))
	assert.Equal(t, "VARCHAR", d.TypeName(core.DataType("unknown")))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		norm core.NormalizationStrategy
		want string
	}{
		{core.NormLowercase, "dim_local"},
		{core.NormCaseInsensitive, "dim_local"},
		{core.NormUppercase, "DIM_LOCAL"},
		{core.NormCaseSensitive, "Dim_Local"},
	}
	for _, tt := range tests {
		d := New(&core.DialectConfig{Name: "t", Identifiers: core.IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`, Normalization: tt.norm}})
		assert.Equal(t, tt.want, d.NormalizeName("Dim_Local"))
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := &core.DialectConfig{
		Name:                  "rt",
		SupportsAddForeignKey: true,
		IdentitySequence:      true,
	}
	got := New(cfg).Config()
	assert.True(t, got.SupportsAddForeignKey)
	assert.False(t, got.SupportsAddPrimaryKey)
	assert.True(t, got.IdentitySequence)
	assert.Equal(t, "BIGINT", got.Types[core.TypeInteger])
}
