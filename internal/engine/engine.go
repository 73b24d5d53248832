// Package engine runs the star schema pipeline.
// It loads the source table, materializes dimensions, prepares the fact
// schema, resolves foreign keys and appends fact rows, recording every
// entity in the run history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/leapstack-labs/leapstar/internal/ingest"
	"github.com/leapstack-labs/leapstar/internal/metrics"
	"github.com/leapstack-labs/leapstar/internal/state"
	"github.com/leapstack-labs/leapstar/pkg/adapter"
	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
	"github.com/leapstack-labs/leapstar/pkg/star"
)

// Engine orchestrates star schema runs against one target.
type Engine struct {
	// Database adapter (lazy initialized)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	// runMu serializes runs within this process.
	runMu sync.Mutex

	dialect     *dialect.Dialect
	logger      *slog.Logger
	clock       clockwork.Clock
	store       core.Store
	metrics     *metrics.Recorder
	schema      *star.Schema
	source      ingest.Config
	strategy    core.KeyStrategy
	target      string
	parallelism int
	metricsFile string
}

// Config holds engine configuration.
type Config struct {
	// StatePath is the path to the SQLite run history database.
	StatePath string
	// Target names the target in run history.
	Target string
	// AdapterConfig contains the database connection configuration.
	AdapterConfig adapter.Config
	// Source describes the denormalized input table.
	Source ingest.Config
	// Schema is the validated star layout.
	Schema *star.Schema
	// KeyStrategy selects surrogate key generation (default sequence).
	KeyStrategy core.KeyStrategy
	// Parallelism bounds concurrent dimension builds and key lookups.
	Parallelism int
	// MetricsFile, when set, receives run metrics in Prometheus text format.
	MetricsFile string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Clock is used for run timing (optional, uses the real clock if nil)
	Clock clockwork.Clock
}

// New creates a new engine with lazy database connection.
// The database adapter is only connected when a run, seed or query needs it.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Schema == nil {
		return nil, &core.ConfigurationError{Reason: "engine requires a star schema"}
	}

	dbConfig := cfg.AdapterConfig
	if dbConfig.Type == "" {
		dbConfig.Type = "duckdb"
	}
	if dbConfig.Path == "" && dbConfig.Database != "" && dbConfig.Type == "duckdb" {
		dbConfig.Path = dbConfig.Database
	}
	d, err := adapter.DialectFor(dbConfig.Type)
	if err != nil {
		return nil, err
	}

	logger.Debug("initializing engine", "target", cfg.Target, "adapter_type", dbConfig.Type, "state", cfg.StatePath)

	store := state.NewSQLiteStore(state.WithLogger(logger), state.WithClock(clock))
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	strategy := cfg.KeyStrategy
	if strategy == "" {
		strategy = core.KeySequence
	}
	target := cfg.Target
	if target == "" {
		target = "default"
	}

	return &Engine{
		dbConfig:    dbConfig,
		dialect:     d,
		logger:      logger,
		clock:       clock,
		store:       store,
		metrics:     metrics.New(),
		schema:      cfg.Schema,
		source:      cfg.Source,
		strategy:    strategy,
		target:      target,
		parallelism: cfg.Parallelism,
		metricsFile: cfg.MetricsFile,
	}, nil
}

// ensureDBConnected lazily connects to the database.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type)

	db, err := adapter.NewAdapter(e.dbConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create database adapter: %w", err)
	}
	if err := db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	e.db = db
	e.dbConnected = true
	if d := db.Dialect(); d != nil {
		e.dialect = d
	}

	e.logger.Debug("database connected", "dialect", e.dialect.Name)
	return nil
}

// DB returns the connected database adapter, connecting on first use.
func (e *Engine) DB(ctx context.Context) (adapter.Adapter, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.db, nil
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}

// --- Getters (public accessors) ---

// Schema returns the star layout.
func (e *Engine) Schema() *star.Schema {
	return e.schema
}

// Dialect returns the target's SQL dialect.
func (e *Engine) Dialect() *dialect.Dialect {
	return e.dialect
}

// Dimensions returns every registered dimension spec.
func (e *Engine) Dimensions() []core.DimensionSpec {
	return e.schema.Registry().Specs()
}

// Metrics returns the run metrics recorder.
func (e *Engine) Metrics() *metrics.Recorder {
	return e.metrics
}

// GetStateStore returns the run history store.
func (e *Engine) GetStateStore() core.Store {
	return e.store
}
