package commands

// helpers.go - engine construction shared across commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapstar/internal/cli/config"
	"github.com/leapstack-labs/leapstar/internal/engine"
	"github.com/leapstack-labs/leapstar/internal/ingest"
)

// getConfig returns the configuration loaded by the root command.
func getConfig(ctx context.Context) (*config.Config, error) {
	cfg, ok := config.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// createEngine builds an engine from the loaded configuration.
func createEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := getConfig(ctx)
	if err != nil {
		return nil, err
	}

	// Ensure state and database directories exist
	dirs := []string{filepath.Dir(cfg.StatePath)}
	if cfg.Target.Type == "duckdb" && cfg.Target.Database != "" && cfg.Target.Database != ":memory:" {
		dirs = append(dirs, filepath.Dir(cfg.Target.Database))
	}
	for _, dir := range dirs {
		if dir == "." || dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	schema, err := cfg.Star.Schema()
	if err != nil {
		return nil, err
	}
	strategy, err := cfg.Star.Strategy()
	if err != nil {
		return nil, err
	}

	target := cfg.TargetName
	if target == "" {
		target = cfg.Target.Type
	}

	return engine.New(engine.Config{
		StatePath:     cfg.StatePath,
		Target:        target,
		AdapterConfig: cfg.Target.AdapterConfig(),
		Source: ingest.Config{
			Kind:      cfg.Source.Kind,
			Path:      cfg.Source.Path,
			Delimiter: cfg.Source.Delimiter,
			Encoding:  cfg.Source.Encoding,
			Table:     cfg.Source.Table,
			Columns:   cfg.Source.Columns,
		},
		Schema:      schema,
		KeyStrategy: strategy,
		Parallelism: cfg.Parallelism,
		MetricsFile: cfg.MetricsFile,
		Logger:      config.GetLogger(ctx),
	})
}

// splitList splits comma-separated flag values and drops blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
