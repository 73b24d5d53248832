// Package ingest loads the source table the star schema is built from.
//
// Every source yields string columns; dimension and fact stages cast values
// to their declared types.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapstar/pkg/dataset"
)

// Source produces the denormalized input table.
type Source interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
	// Describe names the source for logs and run history.
	Describe() string
}

// Source kinds accepted by New.
const (
	KindCSV   = "csv"
	KindTable = "table"
)

// Config selects and configures a source.
type Config struct {
	Kind      string
	Path      string
	Delimiter string
	Encoding  string
	Table     string
	Columns   []string
}

// New builds the source described by cfg. reader is only used by table
// sources and may be nil otherwise.
func New(cfg Config, reader TableReader) (Source, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindCSV:
		if cfg.Path == "" {
			return nil, fmt.Errorf("csv source requires a path")
		}
		var delim rune
		if cfg.Delimiter != "" {
			r := []rune(cfg.Delimiter)
			if len(r) != 1 {
				return nil, fmt.Errorf("csv delimiter must be a single character, got %q", cfg.Delimiter)
			}
			delim = r[0]
		}
		return &CSVSource{Path: cfg.Path, Delimiter: delim, Encoding: cfg.Encoding, Columns: cfg.Columns}, nil
	case KindTable:
		if cfg.Table == "" {
			return nil, fmt.Errorf("table source requires a table name")
		}
		if reader == nil {
			return nil, fmt.Errorf("table source %s requires a connected target", cfg.Table)
		}
		return &TableSource{Reader: reader, Table: cfg.Table, Columns: cfg.Columns}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q (supported: csv, table)", cfg.Kind)
	}
}
