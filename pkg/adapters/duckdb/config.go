package duckdb

import (
	"fmt"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific target configuration, decoded from the
// params block of the target with mapstructure.
//
//	params:
//	  threads: 4
//	  memory_limit: 2GB
//	  extensions: [icu]
//	  settings: {preserve_insertion_order: false}
type Params struct {
	// Threads caps DuckDB worker threads. Zero keeps DuckDB's default.
	Threads int `mapstructure:"threads"`
	// MemoryLimit bounds DuckDB's buffer pool, e.g. "2GB".
	MemoryLimit string `mapstructure:"memory_limit"`
	// Extensions are installed and loaded after connecting.
	Extensions []string `mapstructure:"extensions"`
	// Settings are applied with SET GLOBAL after connecting.
	Settings map[string]string `mapstructure:"settings"`
}

// ParseParams decodes the target's params block.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	if p.Threads < 0 {
		return nil, fmt.Errorf("invalid duckdb params: threads must not be negative, got %d", p.Threads)
	}
	return p, nil
}

// settings merges the typed params into the free-form settings.
// Explicit settings win.
func (p *Params) settings() map[string]string {
	out := make(map[string]string, len(p.Settings)+2)
	if p.Threads > 0 {
		out["threads"] = strconv.Itoa(p.Threads)
	}
	if p.MemoryLimit != "" {
		out["memory_limit"] = p.MemoryLimit
	}
	for k, v := range p.Settings {
		out[k] = v
	}
	return out
}
