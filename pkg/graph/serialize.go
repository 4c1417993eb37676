package graph

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
)

// Storage-kind tags written into the per-layer header.
const (
	kindFlat       uint8 = 0
	kindCompressed uint8 = 1
)

// Write serializes one layer's store: max_degree, vertex_count, and the
// storage kind, followed by the per-vertex rows in the back-end's own
// row format. Everything is little-endian.
func Write(w io.Writer, s Store) error {
	var kind uint8
	switch s.(type) {
	case *FlatStore:
		kind = kindFlat
	case *CompressedStore:
		kind = kindCompressed
	default:
		return fmt.Errorf("graph: cannot serialize store type %T", s)
	}

	header := []interface{}{
		uint32(s.MaxDegree()),
		uint32(s.Capacity()),
		kind,
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	switch st := s.(type) {
	case *FlatStore:
		return st.writeRows(w)
	case *CompressedStore:
		return st.writeRows(w)
	}
	return nil
}

// Read rebuilds a layer store from a stream written by Write.
func Read(r io.Reader) (Store, error) {
	var maxDegree, vertexCount uint32
	var kind uint8
	if err := binary.Read(r, binary.LittleEndian, &maxDegree); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &vertexCount); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return nil, err
	}

	switch kind {
	case kindFlat:
		s := NewFlat(int(maxDegree))
		s.Resize(int(vertexCount))
		if err := s.readRows(r, int(vertexCount)); err != nil {
			return nil, err
		}
		return s, nil
	case kindCompressed:
		s := NewCompressed(int(maxDegree))
		s.Resize(int(vertexCount))
		if err := s.readRows(r, int(vertexCount)); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("graph: unknown storage kind %d", kind)
	}
}

// writeRows emits each vertex as a u8 degree followed by the full
// max_degree-wide row (unused tail slots included, so every record has
// the same size and loading can stream without per-row bookkeeping).
func (s *FlatStore) writeRows(w io.Writer) error {
	for i := 0; i < len(s.degrees); i++ {
		if err := binary.Write(w, binary.LittleEndian, s.degrees[i]); err != nil {
			return err
		}
		row := s.rows[i*s.maxDegree : (i+1)*s.maxDegree]
		for _, id := range row {
			if err := binary.Write(w, binary.LittleEndian, uint32(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *FlatStore) readRows(r io.Reader, vertexCount int) error {
	for i := 0; i < vertexCount; i++ {
		var degree uint8
		if err := binary.Read(r, binary.LittleEndian, &degree); err != nil {
			return err
		}
		if int(degree) > s.maxDegree {
			return fmt.Errorf("graph: vertex %d: stored degree %d exceeds max degree %d", i, degree, s.maxDegree)
		}
		row := s.rows[i*s.maxDegree : (i+1)*s.maxDegree]
		for j := range row {
			var id uint32
			if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
				return err
			}
			row[j] = label.InnerId(id)
		}
		s.degrees[i] = degree
	}
	return nil
}

// writeRows emits each vertex's Elias-Fano record: element count, low
// bit width, the low and high word counts, then the low words followed
// by the high words.
func (s *CompressedStore) writeRows(w io.Writer) error {
	for i := range s.records {
		rec := &s.records[i]
		header := []interface{}{
			rec.numElements,
			rec.lowBitsWidth,
			uint32(len(rec.lowBits)),
			uint32(len(rec.highBits)),
		}
		for _, v := range header {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		for _, word := range rec.lowBits {
			if err := binary.Write(w, binary.LittleEndian, word); err != nil {
				return err
			}
		}
		for _, word := range rec.highBits {
			if err := binary.Write(w, binary.LittleEndian, word); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *CompressedStore) readRows(r io.Reader, vertexCount int) error {
	for i := 0; i < vertexCount; i++ {
		rec := &s.records[i]
		var lowSize, highSize uint32
		if err := binary.Read(r, binary.LittleEndian, &rec.numElements); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &rec.lowBitsWidth); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &lowSize); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &highSize); err != nil {
			return err
		}
		rec.lowBits = make([]uint64, lowSize)
		for j := range rec.lowBits {
			if err := binary.Read(r, binary.LittleEndian, &rec.lowBits[j]); err != nil {
				return err
			}
		}
		rec.highBits = make([]uint64, highSize)
		for j := range rec.highBits {
			if err := binary.Read(r, binary.LittleEndian, &rec.highBits[j]); err != nil {
				return err
			}
		}
	}
	return nil
}
