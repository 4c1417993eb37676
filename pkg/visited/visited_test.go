package visited

import (
	"sync"
	"testing"
)

func TestList_VisitAndReset(t *testing.T) {
	l := NewList(10)

	if l.IsVisited(3) {
		t.Fatal("expected id 3 unvisited initially")
	}
	l.Visit(3)
	if !l.IsVisited(3) {
		t.Fatal("expected id 3 visited after Visit")
	}
	if l.IsVisited(4) {
		t.Fatal("expected id 4 unvisited")
	}

	l.Reset()
	if l.IsVisited(3) {
		t.Fatal("expected id 3 unvisited after Reset")
	}
}

func TestList_GrowPreservesState(t *testing.T) {
	l := NewList(4)
	l.Visit(2)
	l.Grow(8)

	if !l.IsVisited(2) {
		t.Fatal("expected id 2 still visited after Grow")
	}
	if l.Capacity() != 8 {
		t.Fatalf("expected capacity 8, got %d", l.Capacity())
	}
}

func TestPool_TakeReturnsResetList(t *testing.T) {
	p := NewPool(16)
	l := p.Take()
	l.Visit(5)
	p.Return(l)

	l2 := p.Take()
	if l2.IsVisited(5) {
		t.Fatal("expected recycled list to come back reset")
	}
}

func TestPool_GrowsOnDemandNeverShrinks(t *testing.T) {
	p := NewPool(4)
	l1 := p.Take()
	p.Return(l1)

	p.Resize(100)
	l2 := p.Take()
	if l2.Capacity() < 100 {
		t.Fatalf("expected recycled list grown to >= 100, got %d", l2.Capacity())
	}
}

func TestPool_ConcurrentTakeReturn(t *testing.T) {
	p := NewPool(32)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := p.Take()
			l.Visit(1)
			p.Return(l)
		}()
	}
	wg.Wait()
}
