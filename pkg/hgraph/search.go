package hgraph

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/vector/pkg/beam"
	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
	"github.com/therealutkarshpriyadarshi/vector/pkg/store"
)

// Result is one scored answer, mapped back to the host's label.
type Result struct {
	Label label.Label
	Inner label.InnerId
	Dist  float32
}

// SearchOptions tunes a single query. The zero value gives kNN an ef
// equal to topk and range search no frontier beyond the radius, no
// filter, and no skip deferral.
type SearchOptions struct {
	Ef        int
	Filter    beam.Filter
	SkipRatio float64
}

// KNNSearch returns the topk nearest stored vectors to query under the
// index's metric, in non-decreasing distance order. An empty index
// returns an empty slice. A ctx deadline yields the partial result
// found so far, not an error.
func (idx *Index) KNNSearch(ctx context.Context, query []float32, topk int, opt SearchOptions) ([]Result, error) {
	if len(query) != idx.store.Dim() {
		return nil, fmt.Errorf("hgraph: expected dim %d, got %d: %w", idx.store.Dim(), len(query), store.ErrDimMismatch)
	}
	if topk < 1 {
		return nil, fmt.Errorf("hgraph: invalid topk %d", topk)
	}

	idx.topo.RLock()
	defer idx.topo.RUnlock()

	if idx.epLevel < 0 {
		return nil, nil
	}

	comp := idx.store.MakeQuery(query)
	ep := idx.descend(ctx, comp, idx.epID, idx.epLevel)

	ef := opt.Ef
	if ef < topk {
		ef = topk
	}
	items := idx.beam.Search(ctx, idx.layers[0], comp, beam.Params{
		Ep:        ep,
		Ef:        ef,
		TopK:      topk,
		Mode:      beam.ModeKNN,
		Filter:    opt.Filter,
		SkipRatio: opt.SkipRatio,
	})
	return idx.toResults(items), nil
}

// RangeSearch returns every stored vector within radius of query (up
// to the drift tolerance), nearest first. limit > 0 caps the result to
// the limit smallest distances. opt.Ef sizes the frontier the walk keeps
// outside the radius; a larger value finds more of the in-radius vectors.
func (idx *Index) RangeSearch(ctx context.Context, query []float32, radius float32, limit int, opt SearchOptions) ([]Result, error) {
	if len(query) != idx.store.Dim() {
		return nil, fmt.Errorf("hgraph: expected dim %d, got %d: %w", idx.store.Dim(), len(query), store.ErrDimMismatch)
	}

	idx.topo.RLock()
	defer idx.topo.RUnlock()

	if idx.epLevel < 0 {
		return nil, nil
	}

	comp := idx.store.MakeQuery(query)
	ep := idx.descend(ctx, comp, idx.epID, idx.epLevel)

	items := idx.beam.Search(ctx, idx.layers[0], comp, beam.Params{
		Ep:           ep,
		Ef:           opt.Ef,
		Mode:         beam.ModeRange,
		Radius:       radius,
		RangeLimit:   limit,
		RangeEpsilon: idx.params.RangeEpsilon,
		Filter:       opt.Filter,
		SkipRatio:    opt.SkipRatio,
	})
	return idx.toResults(items), nil
}

// descend greedily walks layers epLevel..1 with ef=1, returning the
// entry point for the base-layer search. Caller holds the shared
// topology lock.
func (idx *Index) descend(ctx context.Context, comp *store.Computer, ep label.InnerId, epLevel int) label.InnerId {
	for l := epLevel; l >= 1; l-- {
		res := idx.beam.Search(ctx, idx.layers[l], comp, beam.Params{
			Ep:   ep,
			Ef:   1,
			TopK: 1,
			Mode: beam.ModeKNN,
		})
		if len(res) > 0 {
			ep = res[0].ID
		}
	}
	return ep
}

func (idx *Index) toResults(items []beam.Item) []Result {
	out := make([]Result, 0, len(items))
	for _, it := range items {
		lbl, ok := idx.labels.GetLabel(it.ID)
		if !ok {
			continue
		}
		out = append(out, Result{Label: lbl, Inner: it.ID, Dist: it.Dist})
	}
	return out
}
