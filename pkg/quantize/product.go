package quantize

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ProductQuantizer divides a vector into numSubvectors subvectors and
// quantizes each independently against its own k-means codebook,
// achieving 8-256x compression with asymmetric-distance search support.
type ProductQuantizer struct {
	numSubvectors int
	bitsPerCode   int
	codebooks     [][][]float32
	subvectorDim  int
	kmeans        kmeansConfig
}

// NewProduct returns an untrained product quantizer with the given
// number of subvectors and bits per code (2^bitsPerCode centroids per
// subvector).
func NewProduct(numSubvectors, bitsPerCode int) *ProductQuantizer {
	return &ProductQuantizer{
		numSubvectors: numSubvectors,
		bitsPerCode:   bitsPerCode,
		codebooks:     make([][][]float32, numSubvectors),
		kmeans:        defaultKMeansConfig(),
	}
}

func (pq *ProductQuantizer) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("quantize: product: no training data")
	}

	dim := len(vectors[0])
	if dim%pq.numSubvectors != 0 {
		return fmt.Errorf("quantize: product: dim %d not divisible by numSubvectors %d", dim, pq.numSubvectors)
	}
	pq.subvectorDim = dim / pq.numSubvectors
	numCodes := 1 << pq.bitsPerCode

	for sv := 0; sv < pq.numSubvectors; sv++ {
		start := sv * pq.subvectorDim
		end := start + pq.subvectorDim

		subvectors := make([][]float32, len(vectors))
		for i, vec := range vectors {
			sub := make([]float32, pq.subvectorDim)
			copy(sub, vec[start:end])
			subvectors[i] = sub
		}

		centroids, err := kMeansPlusPlus(subvectors, numCodes, pq.kmeans)
		if err != nil {
			return fmt.Errorf("quantize: product: k-means failed for subvector %d: %w", sv, err)
		}
		pq.codebooks[sv] = centroids
	}

	return nil
}

func (pq *ProductQuantizer) EncodeOne(vector []float32) []byte {
	codes := make([]byte, pq.numSubvectors)
	for sv := 0; sv < pq.numSubvectors; sv++ {
		start := sv * pq.subvectorDim
		end := start + pq.subvectorDim
		sub := vector[start:end]

		minDist := float32(math.MaxFloat32)
		minCode := 0
		for code, centroid := range pq.codebooks[sv] {
			if d := euclidean(sub, centroid); d < minDist {
				minDist = d
				minCode = code
			}
		}
		codes[sv] = byte(minCode)
	}
	return codes
}

func (pq *ProductQuantizer) EncodeBatch(vectors [][]float32) [][]byte {
	codes := make([][]byte, len(vectors))
	for i, v := range vectors {
		codes[i] = pq.EncodeOne(v)
	}
	return codes
}

func (pq *ProductQuantizer) DecodeOne(codes []byte) []float32 {
	if len(codes) != pq.numSubvectors {
		return nil
	}
	vector := make([]float32, pq.numSubvectors*pq.subvectorDim)
	for sv := 0; sv < pq.numSubvectors; sv++ {
		code := codes[sv]
		if int(code) >= len(pq.codebooks[sv]) {
			continue
		}
		centroid := pq.codebooks[sv][code]
		start := sv * pq.subvectorDim
		copy(vector[start:start+pq.subvectorDim], centroid)
	}
	return vector
}

func (pq *ProductQuantizer) DecodeBatch(codes [][]byte) [][]float32 {
	vectors := make([][]float32, len(codes))
	for i, c := range codes {
		vectors[i] = pq.DecodeOne(c)
	}
	return vectors
}

func (pq *ProductQuantizer) CodeSize() int { return pq.numSubvectors }

// DistanceTableSize returns the byte footprint of one precomputed
// query distance table: one float32 per centroid per subvector.
func (pq *ProductQuantizer) DistanceTableSize() int {
	return pq.numSubvectors * (1 << pq.bitsPerCode) * 4
}

// ComputeDistanceTable precomputes, for every subvector, the squared
// distance from the query's subvector to each of that subvector's
// codebook centroids. Distance to any encoded vector thereafter is a
// table lookup plus a sum over numSubvectors entries.
func (pq *ProductQuantizer) ComputeDistanceTable(query []float32) interface{} {
	table := make([][]float32, pq.numSubvectors)
	for sv := 0; sv < pq.numSubvectors; sv++ {
		start := sv * pq.subvectorDim
		end := start + pq.subvectorDim
		querySub := query[start:end]

		numCodes := len(pq.codebooks[sv])
		table[sv] = make([]float32, numCodes)
		for code, centroid := range pq.codebooks[sv] {
			var dist float32
			for d := 0; d < pq.subvectorDim; d++ {
				diff := querySub[d] - centroid[d]
				dist += diff * diff
			}
			table[sv][code] = dist
		}
	}
	return table
}

// AsymmetricDistance evaluates a precomputed distance table against one
// code in O(numSubvectors) instead of O(dim).
func (pq *ProductQuantizer) AsymmetricDistance(tableIface interface{}, codes []byte) float32 {
	table := tableIface.([][]float32)
	if len(codes) != pq.numSubvectors {
		return float32(math.MaxFloat32)
	}
	var total float32
	for sv := 0; sv < pq.numSubvectors; sv++ {
		code := codes[sv]
		if int(code) >= len(table[sv]) {
			return float32(math.MaxFloat32)
		}
		total += table[sv][code]
	}
	return total
}

// SymmetricDistance computes the (squared) distance between two encoded
// vectors via their centroids, without a query-side distance table.
func (pq *ProductQuantizer) SymmetricDistance(codes1, codes2 []byte) float32 {
	if len(codes1) != pq.numSubvectors || len(codes2) != pq.numSubvectors {
		return float32(math.MaxFloat32)
	}
	var total float32
	for sv := 0; sv < pq.numSubvectors; sv++ {
		c1, c2 := codes1[sv], codes2[sv]
		if int(c1) >= len(pq.codebooks[sv]) || int(c2) >= len(pq.codebooks[sv]) {
			return float32(math.MaxFloat32)
		}
		d := euclidean(pq.codebooks[sv][c1], pq.codebooks[sv][c2])
		total += d * d
	}
	return total
}

// Serialize writes the codebook header and raw centroid floats in
// little-endian order.
func (pq *ProductQuantizer) Serialize() ([]byte, error) {
	numCodes := 1 << pq.bitsPerCode
	headerSize := 12
	codebookSize := pq.numSubvectors * numCodes * pq.subvectorDim * 4
	data := make([]byte, headerSize+codebookSize)

	offset := 0
	binary.LittleEndian.PutUint32(data[offset:], uint32(pq.numSubvectors))
	offset += 4
	binary.LittleEndian.PutUint32(data[offset:], uint32(pq.bitsPerCode))
	offset += 4
	binary.LittleEndian.PutUint32(data[offset:], uint32(pq.subvectorDim))
	offset += 4

	for sv := 0; sv < pq.numSubvectors; sv++ {
		for code := 0; code < numCodes; code++ {
			for d := 0; d < pq.subvectorDim; d++ {
				bits := math.Float32bits(pq.codebooks[sv][code][d])
				binary.LittleEndian.PutUint32(data[offset:], bits)
				offset += 4
			}
		}
	}
	return data, nil
}

// DeserializeProduct rebuilds a ProductQuantizer from a buffer written
// by Serialize.
func DeserializeProduct(data []byte) (*ProductQuantizer, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("quantize: product: data too short")
	}
	offset := 0
	pq := &ProductQuantizer{kmeans: defaultKMeansConfig()}
	pq.numSubvectors = int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	pq.bitsPerCode = int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	pq.subvectorDim = int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4

	numCodes := 1 << pq.bitsPerCode
	pq.codebooks = make([][][]float32, pq.numSubvectors)
	for sv := 0; sv < pq.numSubvectors; sv++ {
		pq.codebooks[sv] = make([][]float32, numCodes)
		for code := 0; code < numCodes; code++ {
			pq.codebooks[sv][code] = make([]float32, pq.subvectorDim)
			for d := 0; d < pq.subvectorDim; d++ {
				if offset+4 > len(data) {
					return nil, fmt.Errorf("quantize: product: unexpected end of data")
				}
				bits := binary.LittleEndian.Uint32(data[offset:])
				pq.codebooks[sv][code][d] = math.Float32frombits(bits)
				offset += 4
			}
		}
	}
	return pq, nil
}
