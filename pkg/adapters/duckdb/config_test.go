package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr string
	}{
		{name: "nil", input: nil, want: &Params{}},
		{
			name:  "typed limits from yaml",
			input: map[string]any{"threads": "2", "memory_limit": "512MB"},
			want:  &Params{Threads: 2, MemoryLimit: "512MB"},
		},
		{
			name: "extensions and weakly typed settings",
			input: map[string]any{
				"extensions": []any{"icu"},
				"settings":   map[string]any{"preserve_insertion_order": false},
			},
			want: &Params{
				Extensions: []string{"icu"},
				Settings:   map[string]string{"preserve_insertion_order": "0"},
			},
		},
		{name: "unknown key", input: map[string]any{"secrets": []any{}}, wantErr: "invalid duckdb params"},
		{name: "negative threads", input: map[string]any{"threads": -1}, wantErr: "threads"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParams_Settings(t *testing.T) {
	p := &Params{Threads: 4, MemoryLimit: "1GB", Settings: map[string]string{"threads": "1"}}
	assert.Equal(t, map[string]string{"threads": "1", "memory_limit": "1GB"}, p.settings())
	assert.Empty(t, (&Params{}).settings())
}
