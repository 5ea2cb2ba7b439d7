// Tests for pool.go

package rtosexec

import "testing"

func TestStaticHeapAlloc(t *testing.T) {
	h := NewStaticHeap(16)

	if _, err := h.Alloc("a", 10); err != nil {
		t.Fatalf("first alloc: unexpected error: %v", err)
	}
	if got := h.Allocated(); got != 10 {
		t.Fatalf("allocated: want 10, got %d", got)
	}
	if _, err := h.Alloc("b", 10); err == nil {
		t.Fatal("second alloc: want ErrMaxAlloc, got nil")
	}
}

func TestPoolAllocDealloc(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, err := NewPool[int](heap, "ints", 2)
	if err != nil {
		t.Fatalf("NewPool: unexpected error: %v", err)
	}

	c1, err := p.Alloc()
	if err != nil {
		t.Fatalf("alloc 1: unexpected error: %v", err)
	}
	c2, err := p.Alloc()
	if err != nil {
		t.Fatalf("alloc 2: unexpected error: %v", err)
	}
	if _, err := p.Alloc(); err == nil {
		t.Fatal("alloc 3: want ErrMaxPool, got nil")
	}

	c1.Value = 1
	c2.Value = 2

	if err := p.Dealloc(c1); err != nil {
		t.Fatalf("dealloc: unexpected error: %v", err)
	}
	c3, err := p.Alloc()
	if err != nil {
		t.Fatalf("alloc after dealloc: unexpected error: %v", err)
	}
	if c3 != c1 {
		t.Fatal("alloc after dealloc: want LIFO reuse of the just-freed chunk")
	}
	if c3.Value != 0 {
		t.Fatalf("alloc after dealloc: want zeroed value, got %v", c3.Value)
	}
}

func TestPoolDeallocNil(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, err := NewPool[int](heap, "ints", 1)
	if err != nil {
		t.Fatalf("NewPool: unexpected error: %v", err)
	}
	if err := p.Dealloc(nil); err != ErrNullPool {
		t.Fatalf("dealloc nil: want ErrNullPool, got %v", err)
	}
}

func TestConsNextOf(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, err := NewPool[int](heap, "ints", 3)
	if err != nil {
		t.Fatalf("NewPool: unexpected error: %v", err)
	}
	a, _ := p.Alloc()
	b, _ := p.Alloc()
	c, _ := p.Alloc()

	if _, err := Cons(a, b); err != nil {
		t.Fatalf("cons a,b: unexpected error: %v", err)
	}
	if _, err := Cons(b, c); err != nil {
		t.Fatalf("cons b,c: unexpected error: %v", err)
	}
	if _, err := Cons(c, nil); err != nil {
		t.Fatalf("cons c,nil: unexpected error: %v", err)
	}

	if NextOf(a) != b || NextOf(b) != c || NextOf(c) != nil {
		t.Fatal("cons/next_of: list not linked as expected")
	}

	if _, err := Cons[int](nil, a); err != ErrNullPool {
		t.Fatalf("cons nil,a: want ErrNullPool, got %v", err)
	}
}
