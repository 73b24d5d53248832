package config

import (
	"fmt"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/star"
)

// NamingRules returns the naming rules with defaults for unset prefixes.
func (c *StarConfig) NamingRules() core.Naming {
	n := core.DefaultNaming()
	if c.Naming.DimensionPrefix != "" {
		n.DimensionPrefix = c.Naming.DimensionPrefix
	}
	if c.Naming.KeyPrefix != "" {
		n.KeyPrefix = c.Naming.KeyPrefix
	}
	return n
}

// Specs converts the explicit dimension declarations.
func (c *StarConfig) Specs() ([]core.DimensionSpec, error) {
	specs := make([]core.DimensionSpec, len(c.Dimensions))
	for i, d := range c.Dimensions {
		spec := core.DimensionSpec{Name: d.Name, Fields: make([]core.Field, len(d.Fields))}
		for j, f := range d.Fields {
			t, err := core.ParseDataType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("dimension %s field %s: %w", d.Name, f.Name, err)
			}
			spec.Fields[j] = core.Field{Name: f.Name, Type: t}
		}
		specs[i] = spec
	}
	return specs, nil
}

// Strategy parses the key strategy. Empty means sequence.
func (c *StarConfig) Strategy() (core.KeyStrategy, error) {
	return core.ParseKeyStrategy(c.KeyStrategy)
}

// Schema validates the configuration and builds the star schema: explicit
// dimensions first, then one generated dimension per flag column.
// Measures are integer fields.
func (c *StarConfig) Schema() (*star.Schema, error) {
	specs, err := c.Specs()
	if err != nil {
		return nil, err
	}
	base, err := star.NewRegistry(specs)
	if err != nil {
		return nil, err
	}
	naming := c.NamingRules()
	reg, err := base.Expand(c.FlagColumns, naming)
	if err != nil {
		return nil, err
	}
	if _, err := c.Strategy(); err != nil {
		return nil, err
	}
	measures := make([]core.Field, len(c.Measures))
	for i, m := range c.Measures {
		measures[i] = core.Field{Name: m, Type: core.TypeInteger}
	}
	return star.NewSchema(reg, core.FactSpec{
		Table:      c.FactTable,
		Measures:   measures,
		Dimensions: c.FactDimensions,
	}, naming)
}
