package star

import (
	"context"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
)

// Store is the subset of a database adapter the pipeline needs.
// Every adapter.Adapter satisfies it.
type Store interface {
	ExecInTx(ctx context.Context, stmts []string) error
	Write(ctx context.Context, def core.TableDef, ds *dataset.Dataset, mode core.WriteMode) (int64, error)
	Read(ctx context.Context, table string, fields []core.Field) (*dataset.Dataset, error)
	Dialect() *dialect.Dialect
}
