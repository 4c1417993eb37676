package alloc

import "testing"

func TestDefault_AllocateZeroed(t *testing.T) {
	a := New()
	buf, err := a.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(buf) != 64 {
		t.Fatalf("expected 64 bytes, got %d", len(buf))
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}

func TestDefault_AllocateNegative(t *testing.T) {
	a := New()
	if _, err := a.Allocate(-1); err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestDefault_ReallocatePreservesPrefix(t *testing.T) {
	a := New()
	buf, _ := a.Allocate(4)
	copy(buf, []byte{1, 2, 3, 4})

	grown, err := a.Reallocate(buf, 8)
	if err != nil {
		t.Fatalf("Reallocate failed: %v", err)
	}
	if len(grown) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(grown))
	}
	for i := 0; i < 4; i++ {
		if grown[i] != byte(i+1) {
			t.Errorf("prefix byte %d changed: %d", i, grown[i])
		}
	}

	shrunk, err := a.Reallocate(grown, 2)
	if err != nil {
		t.Fatalf("Reallocate shrink failed: %v", err)
	}
	if len(shrunk) != 2 || shrunk[0] != 1 || shrunk[1] != 2 {
		t.Errorf("shrink lost data: %v", shrunk)
	}
}
