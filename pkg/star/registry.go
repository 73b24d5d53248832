package star

import (
	"fmt"

	"github.com/leapstack-labs/leapstar/pkg/core"
)

// Registry is the read-only set of dimension definitions for one run.
// It is built once at startup and passed to every pipeline component.
type Registry struct {
	specs  []core.DimensionSpec
	byName map[string]int
}

// NewRegistry registers hand-written dimension specs.
func NewRegistry(base []core.DimensionSpec) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(base))}
	for _, spec := range base {
		if err := r.add(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(spec core.DimensionSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if _, dup := r.byName[spec.Name]; dup {
		return &core.ConfigurationError{Reason: fmt.Sprintf("dimension %s is defined more than once", spec.Name)}
	}
	r.byName[spec.Name] = len(r.specs)
	r.specs = append(r.specs, spec.Clone())
	return nil
}

// Expand returns a new registry holding r's specs followed by one
// single-field integer dimension per flag column. A generated name that
// collides with an existing spec, or with another generated one, is a
// configuration error.
func (r *Registry) Expand(flagColumns []string, naming core.Naming) (*Registry, error) {
	out := &Registry{byName: make(map[string]int, len(r.specs)+len(flagColumns))}
	for _, spec := range r.specs {
		if err := out.add(spec); err != nil {
			return nil, err
		}
	}
	for _, col := range flagColumns {
		spec := core.DimensionSpec{
			Name:   naming.DimensionName(col),
			Fields: []core.Field{{Name: col, Type: core.TypeInteger}},
		}
		if _, dup := out.byName[spec.Name]; dup {
			return nil, &core.ConfigurationError{
				Reason: fmt.Sprintf("generated dimension %s for column %s collides with an existing dimension", spec.Name, col),
			}
		}
		if err := out.add(spec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Specs returns copies of all specs in registration order.
func (r *Registry) Specs() []core.DimensionSpec {
	out := make([]core.DimensionSpec, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.Clone()
	}
	return out
}

// Get returns a copy of the named spec.
func (r *Registry) Get(name string) (core.DimensionSpec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return core.DimensionSpec{}, false
	}
	return r.specs[i].Clone(), true
}

// Names returns the dimension names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of registered dimensions.
func (r *Registry) Len() int {
	return len(r.specs)
}
