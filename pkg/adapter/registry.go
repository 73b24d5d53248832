package adapter

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dialect"
)

// Factory creates an unconnected adapter.
type Factory func(logger *slog.Logger) Adapter

// Target is a registered store type: its SQL dialect and adapter factory.
// The dialect is known before connecting, so DDL can be rendered without a store.
type Target struct {
	Name    string
	Dialect *dialect.Dialect
	New     Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Target)
)

// Register adds a target type. Adapter packages call it from init().
// Names are case-insensitive; registering a name twice panics.
func Register(name string, d *dialect.Dialect, factory Factory) {
	if d == nil || factory == nil {
		panic("adapter: Register " + name + " without dialect or factory")
	}
	key := strings.ToLower(name)

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[key]; dup {
		panic("adapter: Register called twice for " + key)
	}
	registry[key] = Target{Name: key, Dialect: d, New: factory}
}

// Lookup returns the registered target type name.
func Lookup(name string) (Target, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[strings.ToLower(name)]
	return t, ok
}

// DialectFor returns the dialect of a target type.
func DialectFor(name string) (*dialect.Dialect, error) {
	t, ok := Lookup(name)
	if !ok {
		return nil, &UnknownAdapterError{Type: name, Available: ListAdapters()}
	}
	return t.Dialect, nil
}

// NewAdapter creates an unconnected adapter for cfg.Type.
// A nil logger uses the discard logger.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	t, ok := Lookup(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return t.New(logger), nil
}

// ListAdapters returns all registered target type names, sorted.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

// IsRegistered reports whether a target type is registered.
func IsRegistered(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// UnknownAdapterError is returned for a target type no adapter registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check target.type in leapstar.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
