package graph

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
)

// eliasFanoRecord is one vertex's Elias-Fano-encoded neighbor list:
// high bits as a unary bitmap, low bits packed at a fixed width, the
// element count capped at 255 so it fits a single byte.
type eliasFanoRecord struct {
	numElements  uint8
	lowBitsWidth uint8
	highBits     []uint64
	lowBits      []uint64
}

const maxCompressedDegree = 255

func setHighBit(vec []uint64, pos int) {
	vec[pos>>6] |= 1 << uint(pos&63)
}

func (r *eliasFanoRecord) setLowBits(index int, value label.InnerId) {
	if r.lowBitsWidth == 0 {
		return
	}
	width := int(r.lowBitsWidth)
	bitPos := index * width
	wordPos := bitPos >> 6
	shift := uint(bitPos & 63)
	mask := (uint64(1)<<uint(width) - 1) << shift
	r.lowBits[wordPos] = (r.lowBits[wordPos] &^ mask) | (uint64(value) << shift)

	if shift+uint(width) > 64 && wordPos+1 < len(r.lowBits) {
		remaining := shift + uint(width) - 64
		mask = uint64(1)<<remaining - 1
		r.lowBits[wordPos+1] = (r.lowBits[wordPos+1] &^ mask) | (uint64(value) >> (uint(width) - remaining))
	}
}

func (r *eliasFanoRecord) getLowBits(index int) label.InnerId {
	if r.lowBitsWidth == 0 {
		return 0
	}
	width := int(r.lowBitsWidth)
	bitPos := index * width
	wordPos := bitPos >> 6
	shift := uint(bitPos & 63)
	value := (r.lowBits[wordPos] >> shift) & (uint64(1)<<uint(width) - 1)

	if shift+uint(width) > 64 && wordPos+1 < len(r.lowBits) {
		remaining := shift + uint(width) - 64
		value |= (r.lowBits[wordPos+1] & (uint64(1)<<remaining - 1)) << (uint(width) - remaining)
	}
	return label.InnerId(value)
}

// encode builds the record from a sorted, deduplicated id list. universe
// is one past the maximum id any element could take (the store's
// current capacity), used to size the unary high-bit bitmap.
func (r *eliasFanoRecord) encode(values []label.InnerId, universe int) error {
	*r = eliasFanoRecord{}
	if len(values) == 0 {
		return nil
	}
	if len(values) > maxCompressedDegree {
		return fmt.Errorf("graph: compressed: %d neighbors exceeds encoding cap %d", len(values), maxCompressedDegree)
	}
	r.numElements = uint8(len(values))

	maxValue := int(values[len(values)-1])
	if universe <= maxValue {
		universe = maxValue + 1
	}
	r.lowBitsWidth = uint8(math.Floor(math.Log2(float64(universe) / float64(r.numElements))))

	highBitsCount := (maxValue >> r.lowBitsWidth) + int(r.numElements) + 1
	r.highBits = make([]uint64, (highBitsCount+63)/64)

	totalLowBits := int(r.numElements) * int(r.lowBitsWidth)
	lowWords := (totalLowBits + 63) / 64
	if lowWords < 1 {
		lowWords = 1
	}
	r.lowBits = make([]uint64, lowWords)

	for i, x := range values {
		high := int(x) >> r.lowBitsWidth
		low := label.InnerId(int(x) & (1<<r.lowBitsWidth - 1))
		setHighBit(r.highBits, i+high)
		r.setLowBits(i, low)
	}
	return nil
}

func (r *eliasFanoRecord) decompressAll() []label.InnerId {
	result := make([]label.InnerId, 0, r.numElements)
	count := 0
	for wi, word := range r.highBits {
		for word != 0 && count < int(r.numElements) {
			bit := bits.TrailingZeros64(word)
			high := (wi*64 + bit) - count
			low := r.getLowBits(count)
			result = append(result, label.InnerId(high<<r.lowBitsWidth)|low)
			count++
			word &= word - 1
		}
		if count >= int(r.numElements) {
			break
		}
	}
	return result
}

// CompressedStore is the Elias-Fano-encoded graph back-end. Neighbor
// lists are sorted before encoding; append is rebuild-on-insert since
// Elias-Fano has no native incremental-update operation.
type CompressedStore struct {
	maxDegree int
	records   []eliasFanoRecord
}

// NewCompressed returns an empty CompressedStore accepting up to
// maxDegree neighbors per vertex (maxDegree must not exceed 255, the
// encoding's element-count cap).
func NewCompressed(maxDegree int) *CompressedStore {
	if maxDegree > maxCompressedDegree {
		maxDegree = maxCompressedDegree
	}
	return &CompressedStore{maxDegree: maxDegree}
}

func (s *CompressedStore) MaxDegree() int { return s.maxDegree }

func (s *CompressedStore) Capacity() int { return len(s.records) }

func (s *CompressedStore) Resize(n int) {
	if n <= len(s.records) {
		return
	}
	grown := make([]eliasFanoRecord, n)
	copy(grown, s.records)
	s.records = grown
}

func (s *CompressedStore) SetNeighbors(i label.InnerId, ids []label.InnerId) error {
	if len(ids) > s.maxDegree {
		return &DegreeOverflowError{InnerId: i, Attempt: len(ids), MaxDeg: s.maxDegree}
	}
	if int(i) >= len(s.records) {
		s.Resize(int(i) + 1)
	}

	sorted := make([]label.InnerId, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })

	universe := len(s.records)
	if int(i)+1 > universe {
		universe = int(i) + 1
	}
	return s.records[i].encode(sorted, universe)
}

func (s *CompressedStore) GetNeighbors(i label.InnerId) []label.InnerId {
	if int(i) >= len(s.records) {
		return nil
	}
	return s.records[i].decompressAll()
}

func (s *CompressedStore) Prefetch(i label.InnerId) {}

func (s *CompressedStore) MemoryBytes() int64 {
	var total int64
	for i := range s.records {
		total += int64(s.SizeInBytes(label.InnerId(i)))
	}
	return total
}

// SizeInBytes reports the encoded footprint of vertex i's neighbor
// list.
func (s *CompressedStore) SizeInBytes(i label.InnerId) int {
	if int(i) >= len(s.records) {
		return 0
	}
	r := &s.records[i]
	return len(r.highBits)*8 + len(r.lowBits)*8 + 2
}
