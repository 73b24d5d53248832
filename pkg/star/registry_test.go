package star

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapstar/pkg/core"
)

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name    string
		specs   []core.DimensionSpec
		wantErr string
	}{
		{
			name:  "valid",
			specs: []core.DimensionSpec{localSpec},
		},
		{
			name:    "duplicate name",
			specs:   []core.DimensionSpec{localSpec, localSpec},
			wantErr: "defined more than once",
		},
		{
			name:    "no fields",
			specs:   []core.DimensionSpec{{Name: "DIM_EMPTY"}},
			wantErr: "declares no fields",
		},
		{
			name: "duplicate field",
			specs: []core.DimensionSpec{{Name: "DIM_X", Fields: []core.Field{
				{Name: "A", Type: core.TypeInteger},
				{Name: "A", Type: core.TypeString},
			}}},
			wantErr: "declares field A twice",
		},
		{
			name: "unknown type",
			specs: []core.DimensionSpec{{Name: "DIM_X", Fields: []core.Field{
				{Name: "A", Type: core.DataType("date")},
			}}},
			wantErr: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.specs)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, len(tt.specs), reg.Len())
				return
			}
			require.Error(t, err)
			var cfgErr *core.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_Expand(t *testing.T) {
	base, err := NewRegistry([]core.DimensionSpec{localSpec})
	require.NoError(t, err)

	reg, err := base.Expand([]string{"tp_dependencia", "IN_INTERNET"}, core.DefaultNaming())
	require.NoError(t, err)

	assert.Equal(t, []string{"DIM_LOCAL", "DIM_TP_DEPENDENCIA", "DIM_IN_INTERNET"}, reg.Names())

	spec, ok := reg.Get("DIM_TP_DEPENDENCIA")
	require.True(t, ok)
	assert.Equal(t, []core.Field{{Name: "tp_dependencia", Type: core.TypeInteger}}, spec.Fields)

	// The base registry is untouched.
	assert.Equal(t, 1, base.Len())
}

func TestRegistry_ExpandCollisions(t *testing.T) {
	handWritten := core.DimensionSpec{
		Name:   "DIM_TP_DEPENDENCIA",
		Fields: []core.Field{{Name: "TP_DEPENDENCIA", Type: core.TypeString}},
	}
	tests := []struct {
		name  string
		base  []core.DimensionSpec
		flags []string
	}{
		{"collides with hand-written spec", []core.DimensionSpec{handWritten}, []string{"TP_DEPENDENCIA"}},
		{"collides with another generated spec", nil, []string{"tp_dependencia", "TP_DEPENDENCIA"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, err := NewRegistry(tt.base)
			require.NoError(t, err)

			_, err = base.Expand(tt.flags, core.DefaultNaming())
			require.Error(t, err)
			var cfgErr *core.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, err.Error(), "DIM_TP_DEPENDENCIA")
		})
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	reg, err := NewRegistry([]core.DimensionSpec{localSpec})
	require.NoError(t, err)

	specs := reg.Specs()
	specs[0].Fields[0].Name = "CHANGED"

	got, ok := reg.Get("DIM_LOCAL")
	require.True(t, ok)
	assert.Equal(t, "NO_UF", got.Fields[0].Name)

	_, ok = reg.Get("DIM_MISSING")
	assert.False(t, ok)
}
