// Package config provides shared configuration types for leapstar.
// It is decoupled from CLI concerns: the CLI layers files, environment and
// flags on top of these types, and tests build them directly.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapstar/pkg/adapter"
	"github.com/leapstack-labs/leapstar/pkg/core"
)

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type" yaml:"type"` // duckdb, postgres

	// File-based databases (DuckDB)
	Database string `koanf:"database" yaml:"database,omitempty"` // file path or database name

	// Network databases
	Host     string `koanf:"host" yaml:"host,omitempty"`
	Port     int    `koanf:"port" yaml:"port,omitempty"`
	User     string `koanf:"user" yaml:"user,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty"`

	// Common
	Schema string `koanf:"schema" yaml:"schema,omitempty"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options" yaml:"options,omitempty"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, settings)
	Params map[string]any `koanf:"params" yaml:"params,omitempty"`
}

// DefaultSchemaForType returns the default schema for a database type.
// It looks up the dialect in the registry; if not found, returns "main" as fallback.
func DefaultSchemaForType(dbType string) string {
	if d, err := adapter.DialectFor(dbType); err == nil && d.DefaultSchema != "" {
		return d.DefaultSchema
	}
	return "main"
}

// Validate checks if the target configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(t.Type) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// AdapterConfig converts the target to an adapter connection config.
func (t *TargetConfig) AdapterConfig() core.AdapterConfig {
	return core.AdapterConfig{
		Type:     strings.ToLower(t.Type),
		Path:     t.Database,
		Database: t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// SourceConfig selects the denormalized input table.
type SourceConfig struct {
	Kind      string   `koanf:"kind" yaml:"kind"` // csv or table
	Path      string   `koanf:"path" yaml:"path,omitempty"`
	Delimiter string   `koanf:"delimiter" yaml:"delimiter,omitempty"`
	Encoding  string   `koanf:"encoding" yaml:"encoding,omitempty"`
	Table     string   `koanf:"table" yaml:"table,omitempty"`
	Columns   []string `koanf:"columns" yaml:"columns,omitempty"`
}

// FieldConfig declares one typed column.
type FieldConfig struct {
	Name string `koanf:"name" yaml:"name"`
	Type string `koanf:"type" yaml:"type"`
}

// DimensionConfig declares one explicit dimension.
type DimensionConfig struct {
	Name   string        `koanf:"name" yaml:"name"`
	Fields []FieldConfig `koanf:"fields" yaml:"fields"`
}

// NamingConfig overrides the table and key name prefixes.
type NamingConfig struct {
	DimensionPrefix string `koanf:"dimension_prefix" yaml:"dimension_prefix,omitempty"`
	KeyPrefix       string `koanf:"key_prefix" yaml:"key_prefix,omitempty"`
}

// StarConfig declares the star layout: explicit dimensions, flag columns
// that each become a one-field integer dimension, and the fact table.
type StarConfig struct {
	FactTable   string            `koanf:"fact_table" yaml:"fact_table"`
	KeyStrategy string            `koanf:"key_strategy" yaml:"key_strategy,omitempty"`
	Naming      NamingConfig      `koanf:"naming" yaml:"naming,omitempty"`
	Measures    []string          `koanf:"measures" yaml:"measures"`
	FlagColumns []string          `koanf:"flag_columns" yaml:"flag_columns"`
	Dimensions  []DimensionConfig `koanf:"dimensions" yaml:"dimensions"`
	// FactDimensions limits the dimensions the fact table references.
	// Empty references all of them.
	FactDimensions []string `koanf:"fact_dimensions" yaml:"fact_dimensions,omitempty"`
}

// ProjectConfig holds the configuration the pipeline needs.
type ProjectConfig struct {
	Target *TargetConfig `koanf:"target" yaml:"target"`
	Source SourceConfig  `koanf:"source" yaml:"source"`
	Star   StarConfig    `koanf:"star" yaml:"star"`
}
