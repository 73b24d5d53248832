// Package config provides configuration management for the leapstar CLI.
//
// This package extends the shared configuration types from internal/config
// with CLI-specific fields (state path, output mode, environments) and the
// koanf loader that layers defaults, file, environment and flags.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapstar/internal/config"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = sharedcfg.TargetConfig

// SourceConfig is an alias for the shared source configuration.
type SourceConfig = sharedcfg.SourceConfig

// StarConfig is an alias for the shared star layout configuration.
type StarConfig = sharedcfg.StarConfig

// Config holds all CLI configuration options.
type Config struct {
	StatePath    string               `koanf:"state_path" yaml:"state_path"`
	Verbose      bool                 `koanf:"verbose" yaml:"verbose"`
	OutputFormat string               `koanf:"output" yaml:"output"`
	Parallelism  int                  `koanf:"parallelism" yaml:"parallelism"`
	MetricsFile  string               `koanf:"metrics_file" yaml:"metrics_file,omitempty"`
	Target       *TargetConfig        `koanf:"target" yaml:"target"`
	Source       SourceConfig         `koanf:"source" yaml:"source"`
	Star         StarConfig           `koanf:"star" yaml:"star"`
	Environments map[string]EnvConfig `koanf:"environments" yaml:"environments,omitempty"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-" yaml:"-"`
	// TargetName is the environment selected with --target, if any.
	TargetName string `koanf:"-" yaml:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Target *TargetConfig `koanf:"target" yaml:"target,omitempty"`
	Source *SourceConfig `koanf:"source" yaml:"source,omitempty"`
}

// Project returns the pipeline configuration.
func (c *Config) Project() *sharedcfg.ProjectConfig {
	return &sharedcfg.ProjectConfig{Target: c.Target, Source: c.Source, Star: c.Star}
}

// Default configuration values.
const (
	DefaultStateFile = ".leapstar/state.db"
	DefaultDatabase  = ".leapstar/censo.duckdb"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Output formats accepted by --output.
var OutputFormats = []string{"auto", "text", "markdown", "json"}
