package star

import (
	"math"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
)

// keyFunc assigns a surrogate key to one distinct natural-key row.
type keyFunc func(row []any) int64

// newKeyFunc returns a fresh key generator for one dimension table.
func newKeyFunc(strategy core.KeyStrategy) keyFunc {
	if strategy == core.KeyHash {
		return hashKey
	}
	var next atomic.Int64
	return func([]any) int64 {
		return next.Add(1)
	}
}

// hashKey derives a non-negative key from the canonical encoding of the
// natural key. Equal tuples always get equal keys; a collision between
// different tuples is caught by the dimension's key constraint.
func hashKey(row []any) int64 {
	return int64(xxh3.HashString(dataset.EncodeKey(row)) & math.MaxInt64)
}
