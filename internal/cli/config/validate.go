package config

import (
	"fmt"
	"slices"
	"strings"

	intconfig "github.com/leapstack-labs/leapstar/internal/config"
)

// DefaultSchemaForType returns the default schema for a database type.
// This is a convenience wrapper that delegates to the shared config function.
func DefaultSchemaForType(dbType string) string {
	return intconfig.DefaultSchemaForType(dbType)
}

// Validate checks the CLI-level settings. The star layout is validated
// when the schema is built.
func (c *Config) Validate() error {
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("invalid output format %q (supported: %s)", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	if _, err := c.Star.Strategy(); err != nil {
		return err
	}
	return nil
}
