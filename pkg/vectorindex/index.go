package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/vector/pkg/alloc"
	"github.com/therealutkarshpriyadarshi/vector/pkg/beam"
	"github.com/therealutkarshpriyadarshi/vector/pkg/config"
	"github.com/therealutkarshpriyadarshi/vector/pkg/distance"
	"github.com/therealutkarshpriyadarshi/vector/pkg/graph"
	"github.com/therealutkarshpriyadarshi/vector/pkg/hgraph"
	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
	"github.com/therealutkarshpriyadarshi/vector/pkg/observability"
	"github.com/therealutkarshpriyadarshi/vector/pkg/quantize"
	"github.com/therealutkarshpriyadarshi/vector/pkg/store"
	"github.com/therealutkarshpriyadarshi/vector/pkg/wire"
)

// Kind selects the index flavor. Both flavors share the hierarchical
// engine; "hgraph" additionally accepts the compressed graph back-end.
type Kind string

const (
	KindHNSW   Kind = "hnsw"
	KindHGraph Kind = "hgraph"
)

// Options is the explicit construction context: the host's allocator
// and logger, never process-wide singletons.
type Options struct {
	Allocator alloc.Allocator
	Logger    *observability.Logger
}

// Prometheus metrics are registered once per process: promauto panics
// on duplicate registration, and every Index shares the same counter
// family anyway.
var (
	metricsOnce sync.Once
	metrics     *observability.Metrics
)

func sharedMetrics() *observability.Metrics {
	metricsOnce.Do(func() {
		metrics = observability.NewMetrics()
	})
	return metrics
}

// Index is one host-owned ANN index.
type Index struct {
	name      string
	cfg       *config.Config
	h         *hgraph.Index
	st        *store.Store
	allocator alloc.Allocator
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// Dataset describes a batch of vectors offered to Add. Vectors is
// row-major, NumElements by Dim. When Owner is true the index takes
// the buffers as-is; otherwise it copies before keeping anything.
type Dataset struct {
	NumElements int
	Dim         int
	IDs         []label.Label
	Vectors     []float32
	Owner       bool
}

// SearchParams is the per-query knob bag, parsed from the caller's
// JSON blob.
type SearchParams struct {
	EfSearch   int     `json:"ef_search"`
	RangeLimit int     `json:"range_limit"`
	SkipRatio  float64 `json:"skip_ratio"`
}

// Result carries the labels and distances of one query, parallel
// slices in non-decreasing distance order.
type Result struct {
	Labels    []label.Label
	Distances []float32
}

// Stats is the shape summary returned by GetStats.
type Stats struct {
	IndexName   string `json:"index_name"`
	NumElements int    `json:"num_elements"`
	MemoryBytes int64  `json:"memory_bytes"`
	EntryPoint  uint32 `json:"entry_point"`
	LayerCount  int    `json:"layer_count"`
}

// Create builds an empty index of the given kind from the
// build-parameter JSON blob.
func Create(kind Kind, paramsJSON []byte) (*Index, error) {
	return CreateWithOptions(kind, paramsJSON, Options{})
}

// CreateWithOptions is Create with an explicit allocator and logger.
func CreateWithOptions(kind Kind, paramsJSON []byte, opts Options) (*Index, error) {
	const op = "create"

	if kind != KindHNSW && kind != KindHGraph {
		return nil, errorf(InvalidArgument, op, "unknown index kind %q", kind)
	}
	cfg, err := config.ParamsFromJSON(paramsJSON)
	if err != nil {
		return nil, newError(InvalidArgument, op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError(InvalidArgument, op, err)
	}
	if kind == KindHNSW && cfg.GraphStorageType == config.GraphStorageCompressed {
		return nil, errorf(InvalidArgument, op, "kind %q does not support compressed graph storage", kind)
	}

	st, err := buildStore(cfg)
	if err != nil {
		return nil, newError(InvalidArgument, op, err)
	}
	return assemble(kind, cfg, st, hgraph.New(hgraph.ParamsFromConfig(cfg), st), opts), nil
}

func assemble(kind Kind, cfg *config.Config, st *store.Store, h *hgraph.Index, opts Options) *Index {
	if opts.Allocator == nil {
		opts.Allocator = alloc.New()
	}
	if opts.Logger == nil {
		opts.Logger = observability.GetGlobalLogger()
	}
	return &Index{
		name:      string(kind),
		cfg:       cfg,
		h:         h,
		st:        st,
		allocator: opts.Allocator,
		logger:    opts.Logger,
		metrics:   sharedMetrics(),
	}
}

func buildStore(cfg *config.Config) (*store.Store, error) {
	metric, ok := distance.ParseMetric(cfg.Metric)
	if !ok {
		return nil, errors.New("unknown metric_type")
	}

	var codec quantize.Codec
	switch cfg.BaseQuantizationType {
	case config.QuantizationScalar:
		codec = quantize.NewScalar(cfg.Dim)
	case config.QuantizationProduct:
		codec = quantize.NewProduct(cfg.PQSubvectors, cfg.PQBitsPerCode)
	default:
		codec = quantize.NewFlat(cfg.Dim)
	}
	return store.New(codec, metric, cfg.Dim), nil
}

// Add ingests a dataset, training the vector store on the first batch
// if it has not been trained yet, and returns the assigned InnerIds in
// offer order. On the first failing vector the error is returned and
// the previously inserted prefix stays in the index.
func (ix *Index) Add(ds Dataset) ([]label.InnerId, error) {
	const op = "add"

	if ds.NumElements <= 0 {
		return nil, errorf(InvalidArgument, op, "num_elements must be positive, got %d", ds.NumElements)
	}
	if ds.Dim != ix.cfg.Dim {
		return nil, errorf(InvalidArgument, op, "dataset dim %d does not match index dim %d", ds.Dim, ix.cfg.Dim)
	}
	if len(ds.IDs) != ds.NumElements {
		return nil, errorf(InvalidArgument, op, "ids length %d does not match num_elements %d", len(ds.IDs), ds.NumElements)
	}
	if len(ds.Vectors) != ds.NumElements*ds.Dim {
		return nil, errorf(InvalidArgument, op, "vectors length %d does not match num_elements*dim %d", len(ds.Vectors), ds.NumElements*ds.Dim)
	}

	rows := make([][]float32, ds.NumElements)
	for i := range rows {
		row := ds.Vectors[i*ds.Dim : (i+1)*ds.Dim]
		if !ds.Owner {
			copied := make([]float32, ds.Dim)
			copy(copied, row)
			row = copied
		}
		rows[i] = row
	}

	if !ix.st.Trained() {
		if err := ix.st.Train(rows); err != nil {
			return nil, newError(NotTrained, op, err)
		}
	}

	ids := make([]label.InnerId, 0, ds.NumElements)
	for i, row := range rows {
		start := time.Now()
		id, _, err := ix.h.Insert(ds.IDs[i], row)
		if err != nil {
			wrapped := ix.classify(op, err)
			ix.metrics.RecordInsertError(KindOf(wrapped).String())
			if IsKind(wrapped, DuplicateLabel) {
				ix.metrics.RecordDuplicateLabel()
			}
			return ids, wrapped
		}
		ix.metrics.RecordInsert(time.Since(start))
		ids = append(ids, id)
	}

	ix.refreshShapeMetrics()
	ix.logger.Debug("dataset added", map[string]interface{}{
		"count":        ds.NumElements,
		"num_elements": ix.h.Count(),
	})
	return ids, nil
}

// classify maps the engine-internal error vocabulary onto the public
// error kinds.
func (ix *Index) classify(op string, err error) *Error {
	var dup *label.DuplicateError
	var degree *graph.DegreeOverflowError
	switch {
	case errors.As(err, &dup):
		return newError(DuplicateLabel, op, err)
	case errors.As(err, &degree):
		return newError(DegreeOverflow, op, err)
	case errors.Is(err, store.ErrNotTrained):
		return newError(NotTrained, op, err)
	case errors.Is(err, store.ErrDimMismatch):
		return newError(InvalidArgument, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return newError(Cancelled, op, err)
	default:
		return newError(InternalError, op, err)
	}
}

// KNNSearch returns the k nearest stored vectors to query. paramsJSON
// may be nil for defaults.
func (ix *Index) KNNSearch(query []float32, k int, paramsJSON []byte) (*Result, error) {
	return ix.KNNSearchContext(context.Background(), query, k, paramsJSON, nil)
}

// KNNSearchContext is KNNSearch with a deadline context and an optional
// host-supplied predicate filter. Expiry returns the partial result
// found so far.
func (ix *Index) KNNSearchContext(ctx context.Context, query []float32, k int, paramsJSON []byte, filter beam.Filter) (*Result, error) {
	const op = "knn_search"

	sp, err := parseSearchParams(paramsJSON)
	if err != nil {
		return nil, newError(InvalidArgument, op, err)
	}
	if k < 1 {
		return nil, errorf(InvalidArgument, op, "k must be positive, got %d", k)
	}

	start := time.Now()
	res, err := ix.h.KNNSearch(ctx, query, k, hgraph.SearchOptions{
		Ef:        sp.EfSearch,
		Filter:    filter,
		SkipRatio: sp.SkipRatio,
	})
	if err != nil {
		return nil, ix.classify(op, err)
	}
	ix.metrics.RecordSearch("knn", time.Since(start), len(res))
	return toResult(res), nil
}

// RangeSearch returns every stored vector within radius of query,
// nearest first, capped to limit when limit > 0.
func (ix *Index) RangeSearch(query []float32, radius float32, paramsJSON []byte, limit int) (*Result, error) {
	return ix.RangeSearchContext(context.Background(), query, radius, paramsJSON, limit, nil)
}

// RangeSearchContext is RangeSearch with a deadline context and an
// optional predicate filter.
func (ix *Index) RangeSearchContext(ctx context.Context, query []float32, radius float32, paramsJSON []byte, limit int, filter beam.Filter) (*Result, error) {
	const op = "range_search"

	sp, err := parseSearchParams(paramsJSON)
	if err != nil {
		return nil, newError(InvalidArgument, op, err)
	}
	if limit <= 0 {
		limit = sp.RangeLimit
	}

	start := time.Now()
	res, err := ix.h.RangeSearch(ctx, query, radius, limit, hgraph.SearchOptions{
		Ef:        sp.EfSearch,
		Filter:    filter,
		SkipRatio: sp.SkipRatio,
	})
	if err != nil {
		return nil, ix.classify(op, err)
	}
	ix.metrics.RecordSearch("range", time.Since(start), len(res))
	return toResult(res), nil
}

func parseSearchParams(paramsJSON []byte) (*SearchParams, error) {
	sp := &SearchParams{}
	if len(paramsJSON) == 0 {
		return sp, nil
	}
	if err := json.Unmarshal(paramsJSON, sp); err != nil {
		return nil, err
	}
	if sp.SkipRatio < 0 || sp.SkipRatio > 1 {
		return nil, errors.New("skip_ratio must be in [0, 1]")
	}
	return sp, nil
}

func toResult(res []hgraph.Result) *Result {
	out := &Result{
		Labels:    make([]label.Label, len(res)),
		Distances: make([]float32, len(res)),
	}
	for i, r := range res {
		out.Labels[i] = r.Label
		out.Distances[i] = r.Dist
	}
	return out
}

// Serialize writes the index to w in the on-disk layout.
func (ix *Index) Serialize(w io.Writer) error {
	const op = "serialize"
	if err := wire.Save(w, ix.h, ix.cfg); err != nil {
		return newError(WriteError, op, err)
	}
	return nil
}

// Deserialize reads an index back from a stream written by Serialize,
// reconstructing it from the serialized parameter tree.
func Deserialize(r io.Reader) (*Index, error) {
	return DeserializeWithOptions(r, Options{})
}

// DeserializeWithOptions is Deserialize with an explicit allocator and
// logger.
func DeserializeWithOptions(r io.Reader, opts Options) (*Index, error) {
	const op = "deserialize"

	allocator := opts.Allocator
	if allocator == nil {
		allocator = alloc.New()
	}
	h, cfg, err := wire.Load(r, allocator)
	if err != nil {
		if errors.Is(err, wire.ErrIncompatible) {
			return nil, newError(IncompatibleIndex, op, err)
		}
		return nil, newError(ReadError, op, err)
	}

	kind := KindHNSW
	if cfg.GraphStorageType == config.GraphStorageCompressed {
		kind = KindHGraph
	}
	ix := assemble(kind, cfg, h.VectorStore(), h, opts)
	ix.refreshShapeMetrics()
	return ix, nil
}

// LoadFrom replaces this index's contents with a stream written by
// Serialize, refusing with IncompatibleIndex when the serialized
// parameter tree does not match this index's constructor parameters.
func (ix *Index) LoadFrom(r io.Reader) error {
	const op = "deserialize"

	h, cfg, err := wire.Load(r, ix.allocator)
	if err != nil {
		if errors.Is(err, wire.ErrIncompatible) {
			return newError(IncompatibleIndex, op, err)
		}
		return newError(ReadError, op, err)
	}
	if !ix.cfg.CompatibleWith(cfg) {
		return newError(IncompatibleIndex, op, wire.ErrIncompatible)
	}

	ix.h = h
	ix.st = h.VectorStore()
	ix.refreshShapeMetrics()
	return nil
}

// GetStats returns the index shape summary.
func (ix *Index) GetStats() Stats {
	epID, _ := ix.h.EntryPoint()
	return Stats{
		IndexName:   ix.name,
		NumElements: ix.h.Count(),
		MemoryBytes: ix.h.MemoryBytes(),
		EntryPoint:  uint32(epID),
		LayerCount:  ix.h.LayerCount(),
	}
}

// GetStatsJSON returns GetStats marshaled to JSON.
func (ix *Index) GetStatsJSON() ([]byte, error) {
	return json.Marshal(ix.GetStats())
}

func (ix *Index) refreshShapeMetrics() {
	ix.metrics.UpdateIndexShape(ix.h.Count(), ix.h.MemoryBytes(), ix.h.LayerCount())
}
