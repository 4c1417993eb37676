// Package beam implements the greedy best-first graph traversal shared
// by index build and query: a bounded candidate frontier of size ef
// driving both kNN and radius range search, with optional predicate
// filtering, skip-ratio deferral of distance evaluation, and
// deadline-aware early return.
package beam

import (
	"container/heap"
	"context"
	"math/rand"
	"sort"

	"github.com/therealutkarshpriyadarshi/vector/pkg/graph"
	"github.com/therealutkarshpriyadarshi/vector/pkg/heuristic"
	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
	"github.com/therealutkarshpriyadarshi/vector/pkg/store"
	"github.com/therealutkarshpriyadarshi/vector/pkg/visited"
)

// Mode selects the admission rules the traversal applies.
type Mode int

const (
	ModeKNN Mode = iota
	ModeRange
)

// Filter is the external predicate collaborator: the engine never
// implements attribute predicates itself, it only consults one the host
// supplies. ValidRatio is the filter's own estimate of the fraction of
// ids it accepts, used to derive the skip threshold.
type Filter interface {
	Valid(id label.InnerId) bool
	ValidRatio() float64
}

// Item is one scored result: a distance paired with the id it was
// measured to.
type Item struct {
	Dist float32
	ID   label.InnerId
}

// Params configures a single traversal.
type Params struct {
	Ep   label.InnerId
	Ef   int
	TopK int
	Mode Mode

	// Range-mode only.
	Radius       float32
	RangeLimit   int
	RangeEpsilon float32

	Filter    Filter
	SkipRatio float64
}

// Searcher bundles the shared collaborators a traversal needs. One
// Searcher serves any number of concurrent Search calls; all per-query
// scratch state is taken from the pool or allocated inside the call.
type Searcher struct {
	store *store.Store
	pool  *visited.Pool
	locks *heuristic.LockArray
}

// New returns a Searcher over the given vector store, visited-list
// pool, and per-vertex lock array.
func New(s *store.Store, pool *visited.Pool, locks *heuristic.LockArray) *Searcher {
	return &Searcher{store: s, pool: pool, locks: locks}
}

// skipThreshold derives the probability of discarding a filter-rejected
// candidate before its distance is even computed: 0 when the filter
// accepts everything, 1-(1-r)*skipRatio otherwise.
func skipThreshold(f Filter, skipRatio float64) float64 {
	if f == nil {
		return 0
	}
	r := f.ValidRatio()
	if r >= 1 {
		return 0
	}
	return 1 - (1-r)*skipRatio
}

// Search runs one traversal of g from p.Ep and returns the surviving
// results in ascending distance order, ties broken by larger id first.
// An empty graph or store yields an empty slice. When ctx expires the
// partial result gathered so far is returned; cancellation is not an
// error here.
func (s *Searcher) Search(ctx context.Context, g graph.Store, comp *store.Computer, p Params) []Item {
	// The population is snapshotted once: ids appended by a concurrent
	// insert after this point are ignored for the rest of the traversal,
	// which both bounds the visited list and keeps the miss-new-labels
	// (never read-torn-state) ordering guarantee.
	count := s.store.Count()
	if count == 0 || g.Capacity() == 0 || int(p.Ep) >= count {
		return nil
	}

	vl := s.pool.Take()
	defer s.pool.Return(vl)
	if vl.Capacity() < count {
		vl.Grow(count)
	}

	top := &maxHeap{}
	cand := &minHeap{}

	threshold := skipThreshold(p.Filter, p.SkipRatio)

	d0 := s.store.ComputeOne(comp, p.Ep)
	if p.Filter == nil || p.Filter.Valid(p.Ep) {
		heap.Push(top, Item{Dist: d0, ID: p.Ep})
	}
	heap.Push(cand, Item{Dist: d0, ID: p.Ep})
	vl.Visit(int(p.Ep))
	// Range mode keeps an ef-bounded frontier (disabled when Ef is 0) so
	// the walk can pass through vertices just outside the radius.
	frontier := &maxHeap{{Dist: d0, ID: p.Ep}}

	// Scratch reused across expansions: the neighbor copy (the flat
	// back-end hands out a view a concurrent writer may overwrite, so it
	// is copied under the vertex read lock), the fresh-id batch handed
	// to the store, and the scored batch admitted afterwards.
	neighbors := make([]label.InnerId, 0, g.MaxDegree())
	fresh := make([]label.InnerId, 0, g.MaxDegree())
	rejected := make([]bool, 0, g.MaxDegree())
	batch := make([]scored, 0, g.MaxDegree())

	for cand.Len() > 0 {
		select {
		case <-ctx.Done():
			return s.extract(top, p)
		default:
		}

		cur := heap.Pop(cand).(Item)
		if p.Mode == ModeKNN && top.Len() >= p.Ef && cur.Dist > (*top)[0].Dist {
			break
		}

		s.locks.RLock(cur.ID)
		raw := g.GetNeighbors(cur.ID)
		neighbors = append(neighbors[:0], raw...)
		s.locks.RUnlock(cur.ID)

		fresh = fresh[:0]
		rejected = rejected[:0]
		for _, v := range neighbors {
			g.Prefetch(v)
			if int(v) >= count || vl.IsVisited(int(v)) {
				continue
			}
			vl.Visit(int(v))
			rej := p.Filter != nil && !p.Filter.Valid(v)
			if rej && rand.Float64() < threshold {
				continue
			}
			fresh = append(fresh, v)
			rejected = append(rejected, rej)
		}
		if len(fresh) == 0 {
			continue
		}

		// Admit the batch in ascending-distance order. The order is
		// canonical: back-ends hand out neighbor lists in different
		// orders (flat keeps insertion order, compressed sorts), and
		// admission must not depend on which one is underneath.
		dists := s.store.Compute(comp, fresh)
		batch = batch[:0]
		for i, v := range fresh {
			batch = append(batch, scored{dist: dists[i], id: v, rejected: rejected[i]})
		}
		sort.Slice(batch, func(i, j int) bool {
			if batch[i].dist != batch[j].dist {
				return batch[i].dist < batch[j].dist
			}
			return batch[i].id > batch[j].id
		})

		for _, sc := range batch {
			v, d := sc.id, sc.dist
			switch p.Mode {
			case ModeKNN:
				if top.Len() < p.Ef || d < (*top)[0].Dist {
					heap.Push(cand, Item{Dist: d, ID: v})
					if !sc.rejected {
						heap.Push(top, Item{Dist: d, ID: v})
						for top.Len() > p.Ef {
							heap.Pop(top)
						}
					}
				}
			case ModeRange:
				inside := d <= p.Radius
				if inside || (p.Ef > 0 && (frontier.Len() < p.Ef || d < (*frontier)[0].Dist)) {
					heap.Push(cand, Item{Dist: d, ID: v})
					if heap.Push(frontier, Item{Dist: d, ID: v}); frontier.Len() > p.Ef {
						heap.Pop(frontier)
					}
				}
				if inside {
					if !sc.rejected {
						heap.Push(top, Item{Dist: d, ID: v})
						if p.RangeLimit > 0 {
							for top.Len() > p.RangeLimit {
								heap.Pop(top)
							}
						}
					}
				}
			}
		}
	}

	return s.extract(top, p)
}

// extract drains the max-heap into an ascending-distance slice,
// applying the mode's final trim: kNN keeps the topk smallest, range
// discards everything past radius plus the quantization-drift
// tolerance.
func (s *Searcher) extract(top *maxHeap, p Params) []Item {
	if p.Mode == ModeKNN && p.TopK > 0 {
		for top.Len() > p.TopK {
			heap.Pop(top)
		}
	}

	out := make([]Item, top.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(top).(Item)
	}

	if p.Mode == ModeRange {
		limit := p.Radius + p.RangeEpsilon
		kept := out[:0]
		for _, it := range out {
			if it.Dist <= limit {
				kept = append(kept, it)
			}
		}
		out = kept
	}
	return out
}

// scored is one batch entry awaiting admission.
type scored struct {
	dist     float32
	id       label.InnerId
	rejected bool
}

// minHeap orders candidates closest first; among equal distances the
// larger id is explored first for deterministic output.
type minHeap []Item

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].Dist != h[j].Dist {
		return h[i].Dist < h[j].Dist
	}
	return h[i].ID > h[j].ID
}
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x interface{}) {
	*h = append(*h, x.(Item))
}

func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxHeap keeps the current worst result on top so trimming to ef (or
// range_limit) is a single pop. Among equal distances the smaller id is
// popped first, which leaves the larger id earlier in the final
// ascending output.
type maxHeap []Item

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool {
	if h[i].Dist != h[j].Dist {
		return h[i].Dist > h[j].Dist
	}
	return h[i].ID < h[j].ID
}
func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *maxHeap) Push(x interface{}) {
	*h = append(*h, x.(Item))
}

func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
