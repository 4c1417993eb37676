// Package wire implements the deterministic binary dump/restore of a
// hierarchical index: header, parameter blob, label table, vector
// store, per-layer graphs, entry point, and a metadata footer used to
// refuse incompatible indexes on load. All integers are little-endian.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/therealutkarshpriyadarshi/vector/pkg/alloc"
	"github.com/therealutkarshpriyadarshi/vector/pkg/config"
	"github.com/therealutkarshpriyadarshi/vector/pkg/distance"
	"github.com/therealutkarshpriyadarshi/vector/pkg/graph"
	"github.com/therealutkarshpriyadarshi/vector/pkg/hgraph"
	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
	"github.com/therealutkarshpriyadarshi/vector/pkg/quantize"
	"github.com/therealutkarshpriyadarshi/vector/pkg/store"
)

var magic = [8]byte{'V', 'E', 'C', 'G', 'R', 'P', 'H', '1'}

const formatVersion uint32 = 1

// Codec kind tags inside the calibration blob.
const (
	codecFlat   uint8 = 0
	codecScalar uint8 = 1
	codecPQ     uint8 = 2
)

// Sentinel errors callers classify with errors.Is.
var (
	ErrBadMagic     = errors.New("wire: bad magic, not a serialized index")
	ErrBadVersion   = errors.New("wire: unsupported format version")
	ErrIncompatible = errors.New("wire: incompatible index parameters")
)

// footer is the trailing metadata record: the full parameter tree plus
// the shape counters, re-checked against the header on load.
type footer struct {
	Params      *config.Config `json:"params"`
	NumElements int            `json:"num_elements"`
	LayerCount  int            `json:"layer_count"`
}

func writeLengthPrefixed(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Save writes idx and its build parameters to w in the on-disk layout.
func Save(w io.Writer, idx *hgraph.Index, cfg *config.Config) error {
	if err := binary.Write(w, binary.LittleEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(0)); err != nil { // reserved
		return err
	}

	paramsJSON, err := cfg.ToJSON()
	if err != nil {
		return fmt.Errorf("wire: params: %w", err)
	}
	if err := writeLengthPrefixed(w, paramsJSON); err != nil {
		return err
	}

	if err := idx.Labels().Serialize(w); err != nil {
		return err
	}

	if err := saveStore(w, idx.VectorStore()); err != nil {
		return err
	}

	layerCount := idx.LayerCount()
	if err := binary.Write(w, binary.LittleEndian, uint32(layerCount)); err != nil {
		return err
	}
	for l := 0; l < layerCount; l++ {
		if err := graph.Write(w, idx.Layer(l)); err != nil {
			return err
		}
	}

	epID, epLevel := idx.EntryPoint()
	if epLevel < 0 {
		epID, epLevel = 0, 0
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(epID)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(epLevel)); err != nil {
		return err
	}

	meta, err := json.Marshal(footer{
		Params:      cfg,
		NumElements: idx.Labels().Len(),
		LayerCount:  layerCount,
	})
	if err != nil {
		return fmt.Errorf("wire: footer: %w", err)
	}
	return writeLengthPrefixed(w, meta)
}

func saveStore(w io.Writer, st *store.Store) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(st.CodeSize())); err != nil {
		return err
	}
	count := st.Count()
	if err := binary.Write(w, binary.LittleEndian, uint32(count)); err != nil {
		return err
	}

	kind, blob, err := calibrationBlob(st.Codec())
	if err != nil {
		return err
	}
	calib := make([]byte, 0, len(blob)+1)
	calib = append(calib, kind)
	calib = append(calib, blob...)
	if err := writeLengthPrefixed(w, calib); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		if _, err := w.Write(st.Code(label.InnerId(i))); err != nil {
			return err
		}
	}
	return nil
}

func calibrationBlob(c quantize.Codec) (uint8, []byte, error) {
	switch q := c.(type) {
	case *quantize.FlatQuantizer:
		blob, err := q.Serialize()
		return codecFlat, blob, err
	case *quantize.ScalarQuantizer:
		blob, err := q.Serialize()
		return codecScalar, blob, err
	case *quantize.ProductQuantizer:
		blob, err := q.Serialize()
		return codecPQ, blob, err
	default:
		return 0, nil, fmt.Errorf("wire: cannot serialize codec type %T", c)
	}
}

// Load rebuilds an index from a stream written by Save, allocating the
// code arena through the supplied allocator. The returned config is the
// parameter tree the index was built with; callers holding their own
// constructor parameters compare against it and reject a mismatch with
// an incompatible-index error.
func Load(r io.Reader, allocator alloc.Allocator) (*hgraph.Index, *config.Config, error) {
	var gotMagic [8]byte
	if err := binary.Read(r, binary.LittleEndian, &gotMagic); err != nil {
		return nil, nil, err
	}
	if gotMagic != magic {
		return nil, nil, ErrBadMagic
	}
	var version, reserved uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, nil, err
	}
	if version != formatVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	if err := binary.Read(r, binary.LittleEndian, &reserved); err != nil {
		return nil, nil, err
	}

	paramsJSON, err := readLengthPrefixed(r)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.ParamsFromJSON(paramsJSON)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	labels, err := label.Deserialize(r)
	if err != nil {
		return nil, nil, err
	}

	st, err := loadStore(r, allocator, cfg)
	if err != nil {
		return nil, nil, err
	}

	var layerCount uint32
	if err := binary.Read(r, binary.LittleEndian, &layerCount); err != nil {
		return nil, nil, err
	}
	layers := make([]graph.Store, layerCount)
	for l := range layers {
		layers[l], err = graph.Read(r)
		if err != nil {
			return nil, nil, err
		}
	}

	var epID uint32
	var epLevel uint16
	if err := binary.Read(r, binary.LittleEndian, &epID); err != nil {
		return nil, nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &epLevel); err != nil {
		return nil, nil, err
	}

	meta, err := readLengthPrefixed(r)
	if err != nil {
		return nil, nil, err
	}
	var ft footer
	if err := json.Unmarshal(meta, &ft); err != nil {
		return nil, nil, fmt.Errorf("wire: footer: %w", err)
	}
	if ft.Params == nil || !cfg.CompatibleWith(ft.Params) {
		return nil, nil, ErrIncompatible
	}
	if ft.NumElements != labels.Len() || ft.LayerCount != int(layerCount) {
		return nil, nil, fmt.Errorf("wire: footer counters disagree with body")
	}

	level := -1
	if st.Count() > 0 {
		level = int(epLevel)
	}
	idx := hgraph.Restore(hgraph.ParamsFromConfig(cfg), st, labels, layers, label.InnerId(epID), level)
	return idx, cfg, nil
}

func loadStore(r io.Reader, allocator alloc.Allocator, cfg *config.Config) (*store.Store, error) {
	var codeSize, count uint32
	if err := binary.Read(r, binary.LittleEndian, &codeSize); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	calib, err := readLengthPrefixed(r)
	if err != nil {
		return nil, err
	}
	if len(calib) < 1 {
		return nil, fmt.Errorf("wire: empty calibration blob")
	}
	codec, err := loadCodec(calib[0], calib[1:])
	if err != nil {
		return nil, err
	}
	if codec.CodeSize() != int(codeSize) {
		return nil, fmt.Errorf("wire: code size %d disagrees with codec's %d", codeSize, codec.CodeSize())
	}

	arena, err := allocator.Allocate(int(count) * int(codeSize))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, arena); err != nil {
		return nil, err
	}
	codes := make([][]byte, count)
	for i := range codes {
		codes[i] = arena[i*int(codeSize) : (i+1)*int(codeSize)]
	}

	metric, ok := distance.ParseMetric(cfg.Metric)
	if !ok {
		return nil, fmt.Errorf("wire: unknown metric %q", cfg.Metric)
	}
	return store.Restore(codec, metric, cfg.Dim, codes), nil
}

func loadCodec(kind uint8, blob []byte) (quantize.Codec, error) {
	switch kind {
	case codecFlat:
		return quantize.DeserializeFlat(blob)
	case codecScalar:
		return quantize.DeserializeScalar(blob)
	case codecPQ:
		return quantize.DeserializeProduct(blob)
	default:
		return nil, fmt.Errorf("wire: unknown codec kind %d", kind)
	}
}
