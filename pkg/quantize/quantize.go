// Package quantize implements the encode/decode families vectors can be
// stored under: raw fp32 passthrough, scalar int8 quantization, and
// product quantization.
package quantize

// Codec is the common contract every encode/decode family implements.
// CodeSize is only meaningful after Train (or, for FlatQuantizer, is
// known from construction).
type Codec interface {
	// Train learns any quantization parameters from a representative
	// sample. FlatQuantizer's Train is a no-op beyond recording the
	// dimension.
	Train(vectors [][]float32) error

	// EncodeOne compresses a single vector into its on-disk/in-arena
	// representation.
	EncodeOne(vector []float32) []byte

	// EncodeBatch compresses many vectors at once.
	EncodeBatch(vectors [][]float32) [][]byte

	// DecodeOne reconstructs a vector from its code, up to the family's
	// quantization error.
	DecodeOne(code []byte) []float32

	// DecodeBatch reconstructs many vectors from their codes.
	DecodeBatch(codes [][]byte) [][]float32

	// CodeSize returns the fixed number of bytes one encoded vector
	// occupies.
	CodeSize() int
}

// AsymmetricCodec is implemented by codecs (today, only ProductQuantizer)
// that support precomputed-distance-table asymmetric search: the query
// stays uncompressed and only the database vectors are coded.
type AsymmetricCodec interface {
	Codec

	// ComputeDistanceTable precomputes per-subvector distances from a
	// query to every codebook entry.
	ComputeDistanceTable(query []float32) interface{}

	// AsymmetricDistance evaluates a distance table against one code.
	AsymmetricDistance(table interface{}, code []byte) float32
}
