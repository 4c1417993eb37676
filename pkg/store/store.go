// Package store implements the vector store: an append-only arena of
// encoded vectors addressed by InnerId, wrapping one of the
// pkg/quantize codec families.
package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/therealutkarshpriyadarshi/vector/pkg/distance"
	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
	"github.com/therealutkarshpriyadarshi/vector/pkg/quantize"
)

// Sentinel errors callers classify with errors.Is.
var (
	ErrNotTrained  = errors.New("store: not trained")
	ErrDimMismatch = errors.New("store: dimension mismatch")
)

// Store owns the append-only arena of encoded vectors. Entries become
// visible to readers only after their bytes are fully written: visible
// is bumped last with a release store, and readers load it first with
// an acquire load, so Decode/Compute never observe a partially written
// code.
type Store struct {
	mu      sync.Mutex // guards append (growth of codes); reads never take it
	codec   quantize.Codec
	kernel  distance.Kernel
	dim     int
	codes   [][]byte
	visible atomic.Int64
	trained bool
}

// New returns a Store over the given codec, computing distances under
// metric.
func New(codec quantize.Codec, metric distance.Metric, dim int) *Store {
	return &Store{
		codec:  codec,
		kernel: distance.New(metric),
		dim:    dim,
	}
}

// Train fits the underlying codec. Must be called before EncodeOne/
// EncodeBatch for codecs that require training (scalar, product); flat
// quantization's Train is a dimension check only. A second call on an
// already-trained store is a no-op returning success, so calibration
// can never be silently replaced under live codes.
func (s *Store) Train(vectors [][]float32) error {
	if s.trained {
		return nil
	}
	if err := s.codec.Train(vectors); err != nil {
		return err
	}
	s.trained = true
	return nil
}

// EncodeOne appends a single vector to the arena, returning its
// assigned InnerId. The caller must hold the index's topology lock
// when id assignment must be atomic with label insertion; EncodeOne
// itself only serializes against other EncodeOne/EncodeBatch calls.
func (s *Store) EncodeOne(vector []float32) (label.InnerId, error) {
	if len(vector) != s.dim {
		return 0, fmt.Errorf("store: expected dim %d, got %d: %w", s.dim, len(vector), ErrDimMismatch)
	}
	if !s.trained {
		return 0, ErrNotTrained
	}

	code := s.codec.EncodeOne(vector)

	s.mu.Lock()
	id := label.InnerId(len(s.codes))
	s.codes = append(s.codes, code)
	s.mu.Unlock()

	s.visible.Store(int64(id) + 1)
	return id, nil
}

// EncodeBatch appends many vectors contiguously, returning their
// assigned InnerIds in order.
func (s *Store) EncodeBatch(vectors [][]float32) ([]label.InnerId, error) {
	if !s.trained {
		return nil, ErrNotTrained
	}
	for _, v := range vectors {
		if len(v) != s.dim {
			return nil, fmt.Errorf("store: expected dim %d, got %d: %w", s.dim, len(v), ErrDimMismatch)
		}
	}

	codes := s.codec.EncodeBatch(vectors)

	s.mu.Lock()
	start := label.InnerId(len(s.codes))
	s.codes = append(s.codes, codes...)
	s.mu.Unlock()

	ids := make([]label.InnerId, len(vectors))
	for i := range ids {
		ids[i] = start + label.InnerId(i)
	}
	s.visible.Store(int64(start) + int64(len(vectors)))
	return ids, nil
}

// Count returns the number of entries currently visible to readers.
func (s *Store) Count() int { return int(s.visible.Load()) }

// DecodeOne reconstructs the vector stored at id.
func (s *Store) DecodeOne(id label.InnerId) ([]float32, error) {
	if int64(id) >= s.visible.Load() {
		return nil, fmt.Errorf("store: inner id %d not visible", id)
	}
	return s.codec.DecodeOne(s.codes[id]), nil
}

// DecodeBatch reconstructs the vectors stored at ids, in order.
func (s *Store) DecodeBatch(ids []label.InnerId) ([][]float32, error) {
	visible := s.visible.Load()
	out := make([][]float32, len(ids))
	for i, id := range ids {
		if int64(id) >= visible {
			return nil, fmt.Errorf("store: inner id %d not visible", id)
		}
		out[i] = s.codec.DecodeOne(s.codes[id])
	}
	return out, nil
}

// ComputePair returns the metric-appropriate distance between the
// decoded vectors at i and j.
func (s *Store) ComputePair(i, j label.InnerId) float32 {
	vi := s.codec.DecodeOne(s.codes[i])
	vj := s.codec.DecodeOne(s.codes[j])
	return s.kernel.One(vi, vj)
}

// Computer is a query-scoped cache returned by MakeQuery: for
// asymmetric codecs (product quantization) it holds the precomputed
// distance table; for flat/scalar codecs it just holds the raw query
// vector.
type Computer struct {
	store *Store
	raw   []float32
	table interface{}
	async quantize.AsymmetricCodec
}

// MakeQuery prepares a Computer for repeated distance evaluation
// against the store's population.
func (s *Store) MakeQuery(vec []float32) *Computer {
	c := &Computer{store: s, raw: vec}
	if async, ok := s.codec.(quantize.AsymmetricCodec); ok {
		c.async = async
		c.table = async.ComputeDistanceTable(vec)
	}
	return c
}

// Compute evaluates the query distance to every id in ids, in order.
func (s *Store) Compute(q *Computer, ids []label.InnerId) []float32 {
	out := make([]float32, len(ids))
	if q.async != nil {
		for i, id := range ids {
			out[i] = q.async.AsymmetricDistance(q.table, s.codes[id])
		}
		return out
	}
	for i, id := range ids {
		vec := s.codec.DecodeOne(s.codes[id])
		out[i] = s.kernel.One(q.raw, vec)
	}
	return out
}

// ComputeOne evaluates the query distance to a single id.
func (s *Store) ComputeOne(q *Computer, id label.InnerId) float32 {
	if q.async != nil {
		return q.async.AsymmetricDistance(q.table, s.codes[id])
	}
	vec := s.codec.DecodeOne(s.codes[id])
	return s.kernel.One(q.raw, vec)
}

// Dim returns the vector dimension the store was constructed with.
func (s *Store) Dim() int { return s.dim }

// Metric returns the distance metric the store computes under.
func (s *Store) Metric() distance.Metric { return s.kernel.Metric }

// Trained reports whether Train has completed successfully.
func (s *Store) Trained() bool { return s.trained }

// Codec exposes the underlying encode/decode family, used when the
// store's calibration data is serialized alongside the codes.
func (s *Store) Codec() quantize.Codec { return s.codec }

// CodeSize returns the fixed byte size of one encoded entry.
func (s *Store) CodeSize() int { return s.codec.CodeSize() }

// QueryCodeSize returns the byte size of the query-side state a
// Computer carries: the precomputed distance table for asymmetric
// codecs, the raw float32 query otherwise.
func (s *Store) QueryCodeSize() int {
	if pq, ok := s.codec.(*quantize.ProductQuantizer); ok {
		return pq.DistanceTableSize()
	}
	return s.dim * 4
}

// Code returns the raw encoded bytes of entry id. Callers must not
// mutate the returned slice.
func (s *Store) Code(id label.InnerId) []byte { return s.codes[id] }

// MemoryBytes reports the arena footprint of the visible entries.
func (s *Store) MemoryBytes() int64 {
	return s.visible.Load() * int64(s.codec.CodeSize())
}

// Restore rebuilds a Store around an already-trained codec and a
// previously serialized code arena, marking every entry visible. Used
// on deserialization, where re-encoding is neither possible nor wanted.
func Restore(codec quantize.Codec, metric distance.Metric, dim int, codes [][]byte) *Store {
	s := New(codec, metric, dim)
	s.codes = codes
	s.trained = true
	s.visible.Store(int64(len(codes)))
	return s
}
