package graph

import "github.com/therealutkarshpriyadarshi/vector/pkg/label"

// FlatStore is the flat back-end: a fixed-capacity row per vertex, a
// length prefix, and contiguous neighbor ids, all in one arena
// addressed only by InnerId. No pointers, so Resize never invalidates
// anything a caller is holding.
type FlatStore struct {
	maxDegree int
	degrees   []uint8
	rows      []label.InnerId // capacity-maxDegree row per vertex
}

// NewFlat returns an empty FlatStore accepting up to maxDegree
// neighbors per vertex.
func NewFlat(maxDegree int) *FlatStore {
	return &FlatStore{maxDegree: maxDegree}
}

func (s *FlatStore) MaxDegree() int { return s.maxDegree }

func (s *FlatStore) Capacity() int { return len(s.degrees) }

func (s *FlatStore) Resize(n int) {
	if n <= len(s.degrees) {
		return
	}
	grown := make([]uint8, n)
	copy(grown, s.degrees)
	s.degrees = grown

	rows := make([]label.InnerId, n*s.maxDegree)
	copy(rows, s.rows)
	s.rows = rows
}

func (s *FlatStore) SetNeighbors(i label.InnerId, ids []label.InnerId) error {
	if len(ids) > s.maxDegree {
		return &DegreeOverflowError{InnerId: i, Attempt: len(ids), MaxDeg: s.maxDegree}
	}
	if int(i) >= len(s.degrees) {
		s.Resize(int(i) + 1)
	}
	row := s.rows[int(i)*s.maxDegree : int(i)*s.maxDegree+s.maxDegree]
	copy(row, ids)
	s.degrees[i] = uint8(len(ids))
	return nil
}

func (s *FlatStore) GetNeighbors(i label.InnerId) []label.InnerId {
	if int(i) >= len(s.degrees) {
		return nil
	}
	n := int(s.degrees[i])
	start := int(i) * s.maxDegree
	return s.rows[start : start+n : start+n]
}

// Prefetch is a documented no-op: Go has no portable prefetch
// intrinsic. The call site exists so the shape matches a future
// cgo-backed implementation.
func (s *FlatStore) Prefetch(i label.InnerId) {}

func (s *FlatStore) MemoryBytes() int64 {
	return int64(len(s.degrees)) + int64(len(s.rows))*4
}
