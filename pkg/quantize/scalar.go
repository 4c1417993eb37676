package quantize

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ScalarQuantizer compresses float32 vectors (4 bytes/dim) to int8
// (1 byte/dim) via a global affine map learned at Train time.
type ScalarQuantizer struct {
	dim    int
	min    float32
	max    float32
	scale  float32
	offset float32
}

// NewScalar returns an untrained scalar quantizer for vectors of the
// given dimension.
func NewScalar(dim int) *ScalarQuantizer {
	return &ScalarQuantizer{dim: dim}
}

// Train computes the affine scale/offset mapping [min, max] across all
// training vectors onto [-127, 127].
func (q *ScalarQuantizer) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("quantize: scalar: no training data")
	}

	q.min = float32(math.MaxFloat32)
	q.max = float32(-math.MaxFloat32)
	for _, vector := range vectors {
		if len(vector) != q.dim {
			return fmt.Errorf("quantize: scalar: expected dim %d, got %d", q.dim, len(vector))
		}
		for _, val := range vector {
			if val < q.min {
				q.min = val
			}
			if val > q.max {
				q.max = val
			}
		}
	}

	valueRange := q.max - q.min
	if valueRange == 0 {
		valueRange = 1.0
	}
	q.scale = 254.0 / valueRange
	q.offset = -127.0 - (q.min * q.scale)
	return nil
}

func (q *ScalarQuantizer) EncodeOne(vector []float32) []byte {
	code := make([]byte, q.dim)
	for i, val := range vector {
		scaled := val*q.scale + q.offset
		if scaled < -127 {
			scaled = -127
		} else if scaled > 127 {
			scaled = 127
		}
		code[i] = byte(int8(math.Round(float64(scaled))))
	}
	return code
}

func (q *ScalarQuantizer) EncodeBatch(vectors [][]float32) [][]byte {
	codes := make([][]byte, len(vectors))
	for i, v := range vectors {
		codes[i] = q.EncodeOne(v)
	}
	return codes
}

func (q *ScalarQuantizer) DecodeOne(code []byte) []float32 {
	vector := make([]float32, len(code))
	for i, b := range code {
		vector[i] = (float32(int8(b)) - q.offset) / q.scale
	}
	return vector
}

func (q *ScalarQuantizer) DecodeBatch(codes [][]byte) [][]float32 {
	vectors := make([][]float32, len(codes))
	for i, c := range codes {
		vectors[i] = q.DecodeOne(c)
	}
	return vectors
}

func (q *ScalarQuantizer) CodeSize() int { return q.dim }

// Serialize writes the dimension and the learned affine calibration in
// little-endian order.
func (q *ScalarQuantizer) Serialize() ([]byte, error) {
	data := make([]byte, 4+4*4)
	binary.LittleEndian.PutUint32(data[0:], uint32(q.dim))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(q.min))
	binary.LittleEndian.PutUint32(data[8:], math.Float32bits(q.max))
	binary.LittleEndian.PutUint32(data[12:], math.Float32bits(q.scale))
	binary.LittleEndian.PutUint32(data[16:], math.Float32bits(q.offset))
	return data, nil
}

// DeserializeScalar rebuilds a trained ScalarQuantizer from a buffer
// written by Serialize.
func DeserializeScalar(data []byte) (*ScalarQuantizer, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("quantize: scalar: data too short")
	}
	return &ScalarQuantizer{
		dim:    int(binary.LittleEndian.Uint32(data[0:])),
		min:    math.Float32frombits(binary.LittleEndian.Uint32(data[4:])),
		max:    math.Float32frombits(binary.LittleEndian.Uint32(data[8:])),
		scale:  math.Float32frombits(binary.LittleEndian.Uint32(data[12:])),
		offset: math.Float32frombits(binary.LittleEndian.Uint32(data[16:])),
	}, nil
}

// DistanceInt8 computes approximate Euclidean distance directly between
// two quantized int8 codes, skipping dequantization entirely.
func DistanceInt8(a, b []byte) float32 {
	if len(a) != len(b) {
		return float32(math.MaxFloat32)
	}
	var sum int64
	for i := range a {
		diff := int64(int8(a[i])) - int64(int8(b[i]))
		sum += diff * diff
	}
	return float32(math.Sqrt(float64(sum)))
}

// DotProductInt8 computes the dot product between two quantized codes.
func DotProductInt8(a, b []byte) int64 {
	if len(a) != len(b) {
		return 0
	}
	var sum int64
	for i := range a {
		sum += int64(int8(a[i])) * int64(int8(b[i]))
	}
	return sum
}
