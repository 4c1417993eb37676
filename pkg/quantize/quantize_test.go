package quantize

import (
	"math"
	"math/rand"
	"testing"
)

func randomVectors(n, dim int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		for j := range vectors[i] {
			vectors[i][j] = rand.Float32()
		}
	}
	return vectors
}

func TestFlatQuantizer_RoundTrip(t *testing.T) {
	q := NewFlat(8)
	vec := []float32{0.1, 0.2, 0.3, -1.5, 2.25, 0, 7, -7}

	if err := q.Train([][]float32{vec}); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	code := q.EncodeOne(vec)
	if len(code) != q.CodeSize() {
		t.Fatalf("expected code size %d, got %d", q.CodeSize(), len(code))
	}

	decoded := q.DecodeOne(code)
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Errorf("flat codec is lossy at %d: got %f, want %f", i, decoded[i], vec[i])
		}
	}
}

func TestFlatQuantizer_TrainRejectsDimMismatch(t *testing.T) {
	q := NewFlat(4)
	if err := q.Train([][]float32{{1, 2, 3}}); err == nil {
		t.Fatal("expected error for dimension mismatch")
	}
}

func TestScalarQuantizer_Train(t *testing.T) {
	q := NewScalar(3)
	vectors := [][]float32{
		{0.0, 0.5, 1.0},
		{0.2, 0.6, 0.8},
		{0.1, 0.4, 0.9},
	}

	if err := q.Train(vectors); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if q.min >= q.max {
		t.Errorf("invalid min/max: min=%f, max=%f", q.min, q.max)
	}
}

func TestScalarQuantizer_RoundTrip(t *testing.T) {
	q := NewScalar(768)
	vectors := randomVectors(100, 768)
	q.Train(vectors)

	testVector := randomVectors(1, 768)[0]
	code := q.EncodeOne(testVector)
	decoded := q.DecodeOne(code)

	var totalError float64
	for i := range testVector {
		totalError += math.Abs(float64(testVector[i] - decoded[i]))
	}
	avgError := totalError / float64(len(testVector))
	if avgError > 0.05 {
		t.Errorf("average reconstruction error too high: %f", avgError)
	}
}

func TestScalarQuantizer_EncodeBatch(t *testing.T) {
	q := NewScalar(3)
	vectors := [][]float32{
		{0.0, 0.5, 1.0},
		{0.2, 0.6, 0.8},
		{0.1, 0.4, 0.9},
	}
	q.Train(vectors)

	codes := q.EncodeBatch(vectors)
	if len(codes) != 3 {
		t.Fatalf("expected 3 codes, got %d", len(codes))
	}
	decoded := q.DecodeBatch(codes)
	if len(decoded) != 3 {
		t.Fatalf("expected 3 decoded vectors, got %d", len(decoded))
	}
}

func TestDistanceInt8(t *testing.T) {
	a := []byte{10, 20, 30}
	b := []byte{12, 22, 32}

	dist := DistanceInt8(a, b)
	expected := float32(math.Sqrt(12))
	if math.Abs(float64(dist-expected)) > 0.01 {
		t.Errorf("expected distance %f, got %f", expected, dist)
	}
}

func TestDistanceInt8_DifferentLengths(t *testing.T) {
	a := []byte{10, 20, 30}
	b := []byte{12, 22}

	if dist := DistanceInt8(a, b); dist != float32(math.MaxFloat32) {
		t.Errorf("expected MaxFloat32 for mismatched lengths, got %f", dist)
	}
}

func TestDotProductInt8(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5, 6}

	if dot := DotProductInt8(a, b); dot != 32 {
		t.Errorf("expected dot product 32, got %d", dot)
	}
}

func TestProductQuantizer_Train(t *testing.T) {
	pq := NewProduct(4, 6)
	pq.kmeans.iterations = 5
	vectors := randomVectors(200, 32)

	if err := pq.Train(vectors); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if len(pq.codebooks) != 4 {
		t.Fatalf("expected 4 codebooks, got %d", len(pq.codebooks))
	}
	for i, codebook := range pq.codebooks {
		if len(codebook) != 1<<6 {
			t.Errorf("codebook %d: expected %d centroids, got %d", i, 1<<6, len(codebook))
		}
	}
}

func TestProductQuantizer_EncodeDecode(t *testing.T) {
	pq := NewProduct(4, 6)
	pq.kmeans.iterations = 5
	vectors := randomVectors(200, 32)
	pq.Train(vectors)

	testVector := randomVectors(1, 32)[0]
	codes := pq.EncodeOne(testVector)
	if len(codes) != pq.CodeSize() {
		t.Fatalf("expected %d codes, got %d", pq.CodeSize(), len(codes))
	}

	decoded := pq.DecodeOne(codes)
	if len(decoded) != 32 {
		t.Errorf("expected 32 dimensions, got %d", len(decoded))
	}
}

func TestProductQuantizer_AsymmetricDistanceMatchesTable(t *testing.T) {
	pq := NewProduct(4, 6)
	pq.kmeans.iterations = 5
	vectors := randomVectors(200, 32)
	pq.Train(vectors)

	query := randomVectors(1, 32)[0]
	table := pq.ComputeDistanceTable(query)
	codes := pq.EncodeOne(vectors[0])

	dist := pq.AsymmetricDistance(table, codes)
	if dist < 0 || math.IsNaN(float64(dist)) {
		t.Errorf("unexpected asymmetric distance: %f", dist)
	}
}

func TestProductQuantizer_SerializeRoundTrip(t *testing.T) {
	pq := NewProduct(2, 4)
	pq.kmeans.iterations = 3
	vectors := randomVectors(64, 16)
	pq.Train(vectors)

	data, err := pq.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	pq2, err := DeserializeProduct(data)
	if err != nil {
		t.Fatalf("DeserializeProduct failed: %v", err)
	}
	if pq2.numSubvectors != pq.numSubvectors || pq2.subvectorDim != pq.subvectorDim {
		t.Fatalf("deserialized shape mismatch")
	}

	testVector := vectors[0]
	if got, want := pq2.EncodeOne(testVector), pq.EncodeOne(testVector); len(got) != len(want) {
		t.Fatalf("code length mismatch after round-trip")
	}
}
