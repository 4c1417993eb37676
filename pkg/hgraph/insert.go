package hgraph

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/vector/pkg/beam"
	"github.com/therealutkarshpriyadarshi/vector/pkg/heuristic"
	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
)

// InsertOutcome carries the best-effort side observations of one
// insert. DuplicateOf is set when the construction search passed a
// stored vector closer than DuplicateEpsilon; it is a hint, not a
// contract, and insertion proceeds regardless.
type InsertOutcome struct {
	DuplicateOf *label.InnerId
}

// Insert adds one vector under the given external label and wires it
// into every layer up to its drawn level.
func (idx *Index) Insert(lbl label.Label, vec []float32) (label.InnerId, *InsertOutcome, error) {
	outcome := &InsertOutcome{}
	level := idx.randomLevel()

	// Exclusive section one: label and id assignment, arena growth,
	// layer addition. Everything that resizes shared storage happens
	// here, so readers holding the shared lock never observe a swap.
	idx.topo.Lock()
	if _, exists := idx.labels.GetInner(lbl); exists {
		idx.topo.Unlock()
		return 0, nil, &label.DuplicateError{Label: lbl}
	}
	id, err := idx.store.EncodeOne(vec)
	if err != nil {
		idx.topo.Unlock()
		return 0, nil, err
	}
	if err := idx.labels.Insert(id, lbl); err != nil {
		idx.topo.Unlock()
		return 0, nil, err
	}
	idx.levels = append(idx.levels, uint8(level))
	for len(idx.layers) <= level {
		idx.layers = append(idx.layers, idx.newLayerStore(len(idx.layers)))
	}
	for l := 0; l <= level; l++ {
		idx.layers[l].Resize(int(id) + 1)
	}
	idx.pool.Resize(int(id) + 1)

	if idx.epLevel < 0 {
		idx.epID = id
		idx.epLevel = level
		idx.topo.Unlock()
		return id, outcome, nil
	}
	idx.topo.Unlock()

	// Shared section: greedy descent and per-layer wiring. Neighbor
	// mutations inside take per-vertex write locks only.
	idx.topo.RLock()
	epID, epLevel := idx.epID, idx.epLevel
	comp := idx.store.MakeQuery(vec)

	ep := epID
	for l := epLevel; l > level; l-- {
		res := idx.beam.Search(context.Background(), idx.layers[l], comp, beam.Params{
			Ep:   ep,
			Ef:   1,
			TopK: 1,
			Mode: beam.ModeKNN,
		})
		if len(res) > 0 {
			ep = res[0].ID
		}
	}

	startLayer := level
	if epLevel < startLayer {
		startLayer = epLevel
	}
	var insertErr error
	for l := startLayer; l >= 0; l-- {
		res := idx.beam.Search(context.Background(), idx.layers[l], comp, beam.Params{
			Ep:   ep,
			Ef:   idx.params.EfConstruction,
			TopK: idx.params.EfConstruction,
			Mode: beam.ModeKNN,
		})
		if outcome.DuplicateOf == nil && len(res) > 0 && res[0].Dist < idx.params.DuplicateEpsilon {
			dup := res[0].ID
			outcome.DuplicateOf = &dup
		}

		candidates := make([]heuristic.Candidate, 0, len(res))
		for _, it := range res {
			if it.ID == id {
				continue
			}
			candidates = append(candidates, heuristic.Candidate{Dist: it.Dist, ID: it.ID})
		}

		budget := idx.degreeForLayer(l)
		chosen := heuristic.SelectEdges(candidates, budget, idx.params.Heuristic, idx.store.ComputePair)
		next, err := heuristic.MutualConnect(id, chosen, idx.layers[l], idx.locks, budget, idx.params.Heuristic, idx.store.ComputePair)
		if err != nil {
			insertErr = fmt.Errorf("hgraph: connect layer %d: %w", l, err)
			break
		}
		if len(chosen) > 0 {
			ep = next
		}
	}
	idx.topo.RUnlock()

	if insertErr != nil {
		return id, outcome, insertErr
	}

	// Exclusive section two: entry-point upgrade. Re-checked under the
	// lock since a concurrent insert may have raised it higher already.
	if level > epLevel {
		idx.topo.Lock()
		if level > idx.epLevel {
			idx.epID = id
			idx.epLevel = level
		}
		idx.topo.Unlock()
	}

	return id, outcome, nil
}
