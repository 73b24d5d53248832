package engine

// seeds.go - CSV seed loading into the target

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Seed loads a CSV file into table, replacing it. An empty table name is
// derived from the file name. Seeding lets a table source read census
// data that was bulk-loaded by the database itself.
func (e *Engine) Seed(ctx context.Context, path, table string) (string, error) {
	if table == "" {
		table = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if err := e.ensureDBConnected(ctx); err != nil {
		return "", err
	}

	e.logger.Debug("loading seed file", "table", table, "path", path)

	if err := e.db.LoadCSV(ctx, table, path); err != nil {
		return "", fmt.Errorf("failed to load seed %s: %w", filepath.Base(path), err)
	}
	return table, nil
}
