// Package state records run history in SQLite.
// It tracks pipeline runs and the outcome of each dimension and fact
// table within a run.
package state

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/leapstack-labs/leapstar/pkg/core"
)

// Compile-time check that SQLiteStore satisfies core.Store.
var _ core.Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(clock clockwork.Clock) Option {
	return func(s *SQLiteStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}
