package quantize

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FlatQuantizer is the raw fp32 passthrough family: encode is a byte
// cast of the float32 slice, decode its inverse. It is the baseline
// codec alongside scalar and product quantization.
type FlatQuantizer struct {
	dim int
}

// NewFlat returns a FlatQuantizer for vectors of the given dimension.
func NewFlat(dim int) *FlatQuantizer {
	return &FlatQuantizer{dim: dim}
}

// Train only checks that the training data matches the configured
// dimension; flat storage has no parameters to learn.
func (q *FlatQuantizer) Train(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != q.dim {
			return fmt.Errorf("quantize: flat: expected dim %d, got %d", q.dim, len(v))
		}
	}
	return nil
}

func (q *FlatQuantizer) EncodeOne(vector []float32) []byte {
	code := make([]byte, q.CodeSize())
	for i, v := range vector {
		binary.LittleEndian.PutUint32(code[i*4:], math.Float32bits(v))
	}
	return code
}

func (q *FlatQuantizer) EncodeBatch(vectors [][]float32) [][]byte {
	codes := make([][]byte, len(vectors))
	for i, v := range vectors {
		codes[i] = q.EncodeOne(v)
	}
	return codes
}

func (q *FlatQuantizer) DecodeOne(code []byte) []float32 {
	vec := make([]float32, q.dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(code[i*4:]))
	}
	return vec
}

func (q *FlatQuantizer) DecodeBatch(codes [][]byte) [][]float32 {
	vecs := make([][]float32, len(codes))
	for i, c := range codes {
		vecs[i] = q.DecodeOne(c)
	}
	return vecs
}

func (q *FlatQuantizer) CodeSize() int { return q.dim * 4 }

// Serialize writes the quantizer's only parameter, the dimension.
func (q *FlatQuantizer) Serialize() ([]byte, error) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(q.dim))
	return data, nil
}

// DeserializeFlat rebuilds a FlatQuantizer from a buffer written by
// Serialize.
func DeserializeFlat(data []byte) (*FlatQuantizer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("quantize: flat: data too short")
	}
	return &FlatQuantizer{dim: int(binary.LittleEndian.Uint32(data))}, nil
}
