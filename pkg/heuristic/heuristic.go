// Package heuristic implements the edge-selection heuristic: the
// RNG-style pruning that keeps graph degree bounded while preserving
// navigability, plus the mutual-connect step that wires a freshly
// inserted vertex into its neighbors' adjacency lists. Plain
// keep-the-M-closest selection produces neighbor sets that all point
// into the same cluster; the alpha and tau variants here diversify the
// set by rejecting candidates that fall inside the cone of an
// already-accepted edge.
package heuristic

import (
	"sort"
	"sync"

	"github.com/therealutkarshpriyadarshi/vector/pkg/graph"
	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
)

// Variant selects which pruning rule SelectEdges/MutualConnect apply.
type Variant int

const (
	Alpha Variant = iota
	Tau
)

// Candidate is one entry in the set offered to the heuristic: a
// distance paired with the InnerId it was measured to.
type Candidate struct {
	Dist float32
	ID   label.InnerId
}

// PairDist evaluates the distance between two already-stored vectors,
// used by the heuristic to test whether a candidate falls inside the
// "cone" of an already-accepted neighbor.
type PairDist func(a, b label.InnerId) float32

// Params bundles the variant-specific tuning constant: alpha for the
// α-variant (robust pruning), tau for the τ-variant (tau-MG). Only the
// field matching Variant is read.
type Params struct {
	Variant Variant
	Alpha   float32
	Tau     float32
}

// SelectEdges prunes candidates down to at most m entries, in ascending
// distance order, each one strictly outside the cone of every
// previously accepted entry (diversification). candidates need not be
// pre-sorted.
func SelectEdges(candidates []Candidate, m int, p Params, pairDist PairDist) []label.InnerId {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Dist != sorted[j].Dist {
			return sorted[i].Dist < sorted[j].Dist
		}
		return sorted[i].ID > sorted[j].ID
	})

	accepted := make([]Candidate, 0, m)
	for _, cur := range sorted {
		if len(accepted) >= m {
			break
		}
		if admits(accepted, cur, p, pairDist) {
			accepted = append(accepted, cur)
		}
	}

	out := make([]label.InnerId, len(accepted))
	for i, c := range accepted {
		out[i] = c.ID
	}
	return out
}

func admits(accepted []Candidate, cur Candidate, p Params, pairDist PairDist) bool {
	for _, w := range accepted {
		d := pairDist(w.ID, cur.ID)
		switch p.Variant {
		case Alpha:
			if p.Alpha*d < cur.Dist {
				return false
			}
		case Tau:
			if d < cur.Dist-3*p.Tau {
				return false
			}
			if cur.Dist <= 3*p.Tau {
				return true
			}
		}
	}
	return true
}

// LockArray is a fixed-size array of reader/writer locks keyed by
// InnerId mod N. Keying by id rather than by node pointer keeps lock
// identity independent of memory layout, so arena resizes never move a
// lock out from under a holder.
type LockArray struct {
	locks []sync.RWMutex
}

// NewLockArray returns a LockArray with n buckets (n should be a power
// of two; 2^16 is the usual choice).
func NewLockArray(n int) *LockArray {
	return &LockArray{locks: make([]sync.RWMutex, n)}
}

func (a *LockArray) bucket(id label.InnerId) *sync.RWMutex {
	return &a.locks[uint32(id)%uint32(len(a.locks))]
}

func (a *LockArray) Lock(id label.InnerId)    { a.bucket(id).Lock() }
func (a *LockArray) Unlock(id label.InnerId)  { a.bucket(id).Unlock() }
func (a *LockArray) RLock(id label.InnerId)   { a.bucket(id).RLock() }
func (a *LockArray) RUnlock(id label.InnerId) { a.bucket(id).RUnlock() }

// MutualConnect writes u's chosen outgoing edges, then for each chosen
// neighbor w either appends u directly (if w has spare degree) or
// re-runs the heuristic over w's existing neighbors plus u (if w is
// already at its degree budget). It acquires exactly one vertex lock
// at a time, so it cannot deadlock against concurrent inserts. Returns
// the closest chosen neighbor as the entry point for the layer below.
func MutualConnect(
	u label.InnerId,
	chosen []label.InnerId,
	g graph.Store,
	locks *LockArray,
	m int,
	p Params,
	pairDist PairDist,
) (label.InnerId, error) {
	locks.Lock(u)
	err := g.SetNeighbors(u, chosen)
	locks.Unlock(u)
	if err != nil {
		return 0, err
	}

	for _, w := range chosen {
		locks.Lock(w)
		existing := g.GetNeighbors(w)

		if len(existing) < m {
			merged := make([]label.InnerId, len(existing), len(existing)+1)
			copy(merged, existing)
			merged = append(merged, u)
			if err := g.SetNeighbors(w, merged); err != nil {
				locks.Unlock(w)
				return 0, err
			}
		} else {
			candidates := make([]Candidate, 0, len(existing)+1)
			candidates = append(candidates, Candidate{Dist: pairDist(u, w), ID: u})
			for _, n := range existing {
				candidates = append(candidates, Candidate{Dist: pairDist(n, w), ID: n})
			}
			selected := SelectEdges(candidates, m, p, pairDist)
			if err := g.SetNeighbors(w, selected); err != nil {
				locks.Unlock(w)
				return 0, err
			}
		}
		locks.Unlock(w)
	}

	if len(chosen) == 0 {
		return u, nil
	}
	return chosen[0], nil
}
