package ingest

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapstar/pkg/adapter"
	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
)

// TableReader is the part of an adapter a table source needs.
type TableReader interface {
	Read(ctx context.Context, table string, fields []core.Field) (*dataset.Dataset, error)
	GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error)
}

// TableSource reads a table already in the target, typically one loaded
// with the seed command.
type TableSource struct {
	Reader  TableReader
	Table   string
	Columns []string
}

// Describe returns the table name.
func (s *TableSource) Describe() string { return "table:" + s.Table }

// Load reads the configured columns, or every column when none are set,
// as strings.
func (s *TableSource) Load(ctx context.Context) (*dataset.Dataset, error) {
	names := s.Columns
	if len(names) == 0 {
		meta, err := s.Reader.GetTableMetadata(ctx, s.Table)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", s.Table, err)
		}
		for _, c := range meta.Columns {
			names = append(names, c.Name)
		}
	}
	fields := make([]core.Field, len(names))
	for i, n := range names {
		fields[i] = core.Field{Name: n, Type: core.TypeString}
	}
	ds, err := s.Reader.Read(ctx, s.Table, fields)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.Table, err)
	}
	return ds, nil
}
