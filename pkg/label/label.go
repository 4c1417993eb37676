// Package label implements the bijection between host-chosen external
// identifiers and the index's own dense internal identifiers.
package label

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Label is the 64-bit external identifier chosen by the host. Unique
// per index.
type Label uint64

// InnerId is the 32-bit dense internal identifier assigned by the index
// at first insertion. Never reused within an index.
type InnerId uint32

// DuplicateError is returned by Insert when the label is already present.
type DuplicateError struct {
	Label Label
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("label: duplicate label %d", uint64(e.Label))
}

// Table holds the forward map Label -> InnerId and the inverse dense
// vector InnerId -> Label. Insertion order of inverse matches InnerId
// assignment, so inverse[i] is always the label of InnerId(i).
type Table struct {
	forward map[Label]InnerId
	inverse []Label
}

// New returns an empty label table.
func New() *Table {
	return &Table{forward: make(map[Label]InnerId)}
}

// Insert records the bijection inner <-> label. inner must equal
// len(inverse) at the time of the call (the caller assigns InnerIds
// sequentially); Insert itself only guards against a label collision.
func (t *Table) Insert(inner InnerId, lbl Label) error {
	if _, exists := t.forward[lbl]; exists {
		return &DuplicateError{Label: lbl}
	}
	if int(inner) != len(t.inverse) {
		t.grow(int(inner) + 1)
	}
	if int(inner) == len(t.inverse) {
		t.inverse = append(t.inverse, lbl)
	} else {
		t.inverse[inner] = lbl
	}
	t.forward[lbl] = inner
	return nil
}

func (t *Table) grow(n int) {
	for len(t.inverse) < n {
		t.inverse = append(t.inverse, 0)
	}
}

// GetLabel returns the external label for an InnerId. The second return
// value is false if inner is out of range.
func (t *Table) GetLabel(inner InnerId) (Label, bool) {
	if int(inner) < 0 || int(inner) >= len(t.inverse) {
		return 0, false
	}
	return t.inverse[inner], true
}

// GetInner returns the InnerId assigned to lbl, if any.
func (t *Table) GetInner(lbl Label) (InnerId, bool) {
	inner, ok := t.forward[lbl]
	return inner, ok
}

// Len reports the number of entries in the table.
func (t *Table) Len() int { return len(t.inverse) }

// Serialize writes count, then the inverse vector. The forward map is
// never written since it is fully derivable from the inverse vector on
// load.
func (t *Table) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(t.inverse))); err != nil {
		return err
	}
	for _, l := range t.inverse {
		if err := binary.Write(w, binary.LittleEndian, uint64(l)); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize rebuilds a Table from a stream written by Serialize,
// reconstructing the forward map from the inverse vector.
func Deserialize(r io.Reader) (*Table, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	t := &Table{
		forward: make(map[Label]InnerId, count),
		inverse: make([]Label, count),
	}
	for i := uint32(0); i < count; i++ {
		var raw uint64
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, err
		}
		lbl := Label(raw)
		t.inverse[i] = lbl
		t.forward[lbl] = InnerId(i)
	}
	return t, nil
}
