// Package core defines the shared language of the leapstar system.
//
// This package contains:
//   - Domain entities (Field, DimensionSpec, FactSpec, TableDef, Run)
//   - Naming rules for generated tables, key columns and constraints
//   - Typed errors shared by the star pipeline and its adapters
//   - Dialect configuration and adapter connection settings
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
