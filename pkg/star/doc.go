// Package star materializes a star schema from a flat dataset.
//
// The pipeline has five parts, each usable on its own:
//
//   - Registry holds the immutable dimension definitions.
//   - Materializer builds one deduplicated dimension table per spec and
//     gives every distinct natural key a surrogate key.
//   - BuildSchema and SchemaBuilder derive and apply the fact table DDL.
//   - Resolver swaps natural keys in fact rows for surrogate keys.
//   - Loader appends resolved rows to the fact table.
//
// Dimensions must be materialized, and the fact schema applied, before
// any fact row is resolved or loaded.
package star
