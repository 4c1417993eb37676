// Package hgraph implements the hierarchical proximity-graph index: a
// stack of navigable small-world graphs over exponentially sparser
// subsets of the dataset, built and queried through the shared beam
// searcher, safe for concurrent adds and searches.
package hgraph

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/vector/pkg/beam"
	"github.com/therealutkarshpriyadarshi/vector/pkg/config"
	"github.com/therealutkarshpriyadarshi/vector/pkg/distance"
	"github.com/therealutkarshpriyadarshi/vector/pkg/graph"
	"github.com/therealutkarshpriyadarshi/vector/pkg/heuristic"
	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
	"github.com/therealutkarshpriyadarshi/vector/pkg/store"
	"github.com/therealutkarshpriyadarshi/vector/pkg/visited"
)

// GraphKind selects the per-layer neighbor-list back-end.
type GraphKind int

const (
	GraphFlat GraphKind = iota
	GraphCompressed
)

// numVertexLocks is the size of the per-vertex lock array. Lock
// identity is keyed by InnerId mod this, never by memory layout.
const numVertexLocks = 1 << 16

// maxLevel caps the geometric layer draw so a level always fits the
// per-vertex uint8 assignment.
const maxLevel = 255

// Params configures a hierarchical index. MaxDegree is the base-layer
// degree cap; upper layers use half of it.
type Params struct {
	MaxDegree      int
	EfConstruction int
	GraphKind      GraphKind
	Heuristic      heuristic.Params

	// RangeEpsilon is the tolerance added to the radius when discarding
	// range results, absorbing quantized-distance drift. Zero selects a
	// metric-dependent default.
	RangeEpsilon float32

	// DuplicateEpsilon is the distance under which an insert reports an
	// existing vertex as a best-effort duplicate hint.
	DuplicateEpsilon float32

	// RandomSeed fixes the level-assignment RNG for reproducible
	// builds. Zero seeds from the clock.
	RandomSeed int64
}

// Index is the multi-layer navigable small-world index. Layer 0 holds
// every vertex; each higher layer holds the geometrically thinned
// subset whose drawn level reaches it.
type Index struct {
	params      Params
	upperDegree int
	ml          float64

	store  *store.Store
	labels *label.Table
	layers []graph.Store
	levels []uint8

	epID    label.InnerId
	epLevel int

	// topo guards the structural fields no per-vertex lock can cover:
	// entry point, label-table tail, level assignments, layer addition,
	// and every arena resize. Searches hold it shared for the whole
	// query; adds take it exclusive only for the short assignment and
	// entry-point-upgrade sections.
	topo  sync.RWMutex
	locks *heuristic.LockArray
	pool  *visited.Pool
	beam  *beam.Searcher

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New returns an empty index over the given trained-or-untrained vector
// store.
func New(params Params, st *store.Store) *Index {
	if params.MaxDegree < 2 {
		params.MaxDegree = 16
	}
	if params.EfConstruction < params.MaxDegree {
		params.EfConstruction = params.MaxDegree
	}
	if params.Heuristic.Variant == heuristic.Alpha && params.Heuristic.Alpha == 0 {
		params.Heuristic.Alpha = 1.0
	}
	if params.RangeEpsilon == 0 {
		params.RangeEpsilon = defaultRangeEpsilon(st.Metric())
	}
	if params.DuplicateEpsilon == 0 {
		params.DuplicateEpsilon = 1e-6
	}

	upper := params.MaxDegree / 2
	if upper < 2 {
		upper = 2
	}

	seed := params.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	idx := &Index{
		params:      params,
		upperDegree: upper,
		ml:          1.0 / math.Log(float64(params.MaxDegree)),
		store:       st,
		labels:      label.New(),
		epLevel:     -1,
		locks:       heuristic.NewLockArray(numVertexLocks),
		pool:        visited.NewPool(0),
		rng:         rand.New(rand.NewSource(seed)),
	}
	idx.beam = beam.New(st, idx.pool, idx.locks)
	return idx
}

// ParamsFromConfig maps the host-facing build-parameter bag onto the
// index's own parameters.
func ParamsFromConfig(cfg *config.Config) Params {
	kind := GraphFlat
	if cfg.GraphStorageType == config.GraphStorageCompressed {
		kind = GraphCompressed
	}

	h := heuristic.Params{Variant: heuristic.Alpha, Alpha: 1.0}
	if cfg.EdgeSelection == config.EdgeSelectionTau {
		h = heuristic.Params{Variant: heuristic.Tau, Tau: 0.01}
	}

	return Params{
		MaxDegree:      cfg.MaxDegree,
		EfConstruction: cfg.EfConstruction,
		GraphKind:      kind,
		Heuristic:      h,
		RandomSeed:     cfg.RandomSeed,
	}
}

func defaultRangeEpsilon(m distance.Metric) float32 {
	if m == distance.InnerProduct {
		return 1e-6
	}
	return 1e-4
}

// Restore rebuilds an Index from deserialized parts. Level assignments
// are recovered from layer membership: a vertex's level is the highest
// layer where it has outgoing edges, with the entry point pinned to its
// recorded level. An isolated non-entry vertex demotes across a round
// trip, which cannot change any query answer: with no edges at a layer
// it was unreachable there.
func Restore(params Params, st *store.Store, labels *label.Table, layers []graph.Store, epID label.InnerId, epLevel int) *Index {
	idx := New(params, st)
	idx.labels = labels
	idx.layers = layers
	idx.epID = epID
	idx.epLevel = epLevel

	count := st.Count()
	idx.levels = make([]uint8, count)
	for l := len(layers) - 1; l >= 1; l-- {
		g := layers[l]
		for i := 0; i < g.Capacity() && i < count; i++ {
			if idx.levels[i] == 0 && len(g.GetNeighbors(label.InnerId(i))) > 0 {
				idx.levels[i] = uint8(l)
			}
		}
	}
	if epLevel >= 0 && int(epID) < count {
		idx.levels[epID] = uint8(epLevel)
	}
	idx.pool.Resize(count)
	return idx
}

// randomLevel draws the geometric layer assignment for a new vertex:
// floor(-ln(U) * ml), the exponential thinning that gives logarithmic
// descent time.
func (idx *Index) randomLevel() int {
	idx.rngMu.Lock()
	r := idx.rng.Float64()
	idx.rngMu.Unlock()

	level := int(math.Floor(-math.Log(r) * idx.ml))
	if level > maxLevel {
		level = maxLevel
	}
	return level
}

// degreeForLayer returns the degree budget at layer l: the full
// MaxDegree at the base, half of it above.
func (idx *Index) degreeForLayer(l int) int {
	if l == 0 {
		return idx.params.MaxDegree
	}
	return idx.upperDegree
}

func (idx *Index) newLayerStore(l int) graph.Store {
	deg := idx.degreeForLayer(l)
	if idx.params.GraphKind == GraphCompressed {
		return graph.NewCompressed(deg)
	}
	return graph.NewFlat(deg)
}

// Params returns the index's effective (normalized) parameters.
func (idx *Index) Params() Params { return idx.params }

// VectorStore exposes the underlying vector store.
func (idx *Index) VectorStore() *store.Store { return idx.store }

// Labels exposes the label table.
func (idx *Index) Labels() *label.Table { return idx.labels }

// Count returns the number of vectors currently in the index.
func (idx *Index) Count() int {
	idx.topo.RLock()
	defer idx.topo.RUnlock()
	return idx.labels.Len()
}

// LayerCount returns the number of layers currently allocated.
func (idx *Index) LayerCount() int {
	idx.topo.RLock()
	defer idx.topo.RUnlock()
	return len(idx.layers)
}

// Layer returns the graph store backing layer l.
func (idx *Index) Layer(l int) graph.Store {
	idx.topo.RLock()
	defer idx.topo.RUnlock()
	return idx.layers[l]
}

// EntryPoint returns the current global entry point. epLevel is -1 on
// an empty index.
func (idx *Index) EntryPoint() (label.InnerId, int) {
	idx.topo.RLock()
	defer idx.topo.RUnlock()
	return idx.epID, idx.epLevel
}

// Level returns the layer assignment of vertex i.
func (idx *Index) Level(i label.InnerId) int {
	idx.topo.RLock()
	defer idx.topo.RUnlock()
	return int(idx.levels[i])
}

// MemoryBytes estimates the index's current footprint: code arena,
// per-layer neighbor storage, label table, and level assignments.
func (idx *Index) MemoryBytes() int64 {
	idx.topo.RLock()
	defer idx.topo.RUnlock()

	total := idx.store.MemoryBytes()
	for _, g := range idx.layers {
		total += g.MemoryBytes()
	}
	total += int64(idx.labels.Len()) * 12 // 8-byte label + 4-byte inner id
	total += int64(len(idx.levels))
	return total
}
