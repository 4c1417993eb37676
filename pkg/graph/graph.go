// Package graph implements the neighbor-list back-end for one layer of
// the hierarchical index, in flat and Elias-Fano compressed variants.
package graph

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
)

// DegreeOverflowError is returned by SetNeighbors when the caller tries
// to store more neighbors than the store's max degree allows.
type DegreeOverflowError struct {
	InnerId label.InnerId
	Attempt int
	MaxDeg  int
}

func (e *DegreeOverflowError) Error() string {
	return fmt.Sprintf("graph: vertex %d: %d neighbors exceeds max degree %d", e.InnerId, e.Attempt, e.MaxDeg)
}

// Store is the graph back-end for a single layer. Implementations must
// never expose raw pointers: all addressing is by InnerId into an
// arena, so a Resize never invalidates anything a caller is holding.
type Store interface {
	// MaxDegree returns the maximum neighbor-list length this store
	// accepts.
	MaxDegree() int

	// Capacity returns the number of vertices this store currently has
	// row storage for.
	Capacity() int

	// Resize grows the store to hold at least n vertices.
	Resize(n int)

	// SetNeighbors overwrites vertex i's neighbor list. len(ids) must
	// not exceed MaxDegree(), or DegreeOverflowError is returned.
	SetNeighbors(i label.InnerId, ids []label.InnerId) error

	// GetNeighbors returns vertex i's current neighbor list. Callers
	// must not mutate the returned slice.
	GetNeighbors(i label.InnerId) []label.InnerId

	// Prefetch hints that vertex i's neighbor list will be read soon.
	// A documented no-op on pure-Go back-ends: Go has no portable
	// prefetch intrinsic. The call exists so the shape matches hosts
	// that might back this with cgo.
	Prefetch(i label.InnerId)

	// MemoryBytes reports the store's current footprint, feeding the
	// index's memory_bytes stat.
	MemoryBytes() int64
}
