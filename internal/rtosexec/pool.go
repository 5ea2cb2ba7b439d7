// Static heap accounting and the fixed-chunk pool allocator.
//
// The static heap never reclaims memory; it only tracks a monotonically
// increasing high-water mark so that callers can be told ErrMaxAlloc before
// they overrun their configured budget. The pool built on top of it carves
// a fixed number of same-size chunks out of that budget up front and threads
// them onto a free list. An allocated chunk doubles as a list node: its
// `next` slot is exposed via Cons/NextOf so that a scheduler (or any other
// caller) can thread an intrusive singly-linked list through pool chunks
// without a second pointer field, mirroring the pool's own free list.
package rtosexec

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrMaxAlloc = errors.New("static heap exhausted")
	ErrMaxPool  = errors.New("pool exhausted")
	ErrNullPool = errors.New("nil pool or chunk")
)

var poolLog = NewCompLogger("pool")

// StaticHeap accounts for a compile-time-sized region of memory. It never
// frees; static_alloc only bumps the high-water mark and fails once the
// configured size would be exceeded.
type StaticHeap struct {
	mu        sync.Mutex
	size      int
	allocated int
}

func NewStaticHeap(size int) *StaticHeap {
	return &StaticHeap{size: size}
}

// Alloc bumps the high-water mark by n bytes and returns the prior offset.
// The handle is for tracing/diagnostics only.
func (h *StaticHeap) Alloc(handle string, n int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	offset := h.allocated
	h.allocated += n
	if h.allocated > h.size {
		poolLog.Errorf("%s: requested %d bytes, only %d remaining", handle, n, h.size-offset)
		return offset, fmt.Errorf("%s: %w", handle, ErrMaxAlloc)
	}
	return offset, nil
}

func (h *StaticHeap) Size() int { return h.size }

func (h *StaticHeap) Allocated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocated
}

// Chunk is one fixed-size pool allocation. When free, next links it into the
// pool's LIFO free list; when allocated, next is available to the owner as a
// generic "next chunk in this intrusive list" slot via Cons/NextOf.
type Chunk[T any] struct {
	next  *Chunk[T]
	Value T
}

// Pool is a fixed-chunk allocator carved out of a StaticHeap. It never grows
// past its initial chunk count.
type Pool[T any] struct {
	mu      sync.Mutex
	handle  string
	storage []Chunk[T]
	free    *Chunk[T]
}

// NewPool reserves chunkCount chunks of sizeof(T)+sizeof(link) bytes from
// heap (for accounting purposes only — the actual backing array is a
// regular Go slice) and threads them onto a free list, head = chunk 0.
func NewPool[T any](heap *StaticHeap, handle string, chunkCount int) (*Pool[T], error) {
	var zero T
	chunkSize := int(approxSizeOf(zero)) + 8 // +8 for the next pointer, for tracing parity only
	if _, err := heap.Alloc(handle, chunkSize*chunkCount); err != nil {
		return nil, err
	}

	p := &Pool[T]{
		handle:  handle,
		storage: make([]Chunk[T], chunkCount),
	}
	for i := range p.storage {
		if i+1 < len(p.storage) {
			p.storage[i].next = &p.storage[i+1]
		} else {
			p.storage[i].next = nil
		}
	}
	if chunkCount > 0 {
		p.free = &p.storage[0]
	}
	poolLog.Infof("%s: %d chunks reserved", handle, chunkCount)
	return p, nil
}

// Alloc pops the free-list head, zeroing its next slot, and returns it.
func (p *Pool[T]) Alloc() (*Chunk[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.free == nil {
		return nil, fmt.Errorf("%s: %w", p.handle, ErrMaxPool)
	}
	c := p.free
	p.free = c.next
	c.next = nil
	return c, nil
}

// Dealloc pushes chunk onto the free list (LIFO). The caller is responsible
// for ensuring the chunk is not referenced by any other intrusive list.
func (p *Pool[T]) Dealloc(c *Chunk[T]) error {
	if c == nil {
		return ErrNullPool
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	c.Value = zero
	c.next = p.free
	p.free = c
	return nil
}

// Cons sets a.next := b (b may be nil) and returns a, splicing intrusive
// lists through pool chunks.
func Cons[T any](a, b *Chunk[T]) (*Chunk[T], error) {
	if a == nil {
		return nil, ErrNullPool
	}
	a.next = b
	return a, nil
}

// NextOf returns the chunk pointed to by next, or nil.
func NextOf[T any](c *Chunk[T]) *Chunk[T] {
	if c == nil {
		return nil
	}
	return c.next
}

// approxSizeOf is a tracing-only estimate of a value's footprint; it does
// not need to be exact, but it must stay small enough that
// MAX_TASKS_DEFAULT chunks fit inside VIRTUAL_HEAP_DEFAULT bytes (the
// defaults are lifted directly from the original's Conf.h: 64 tasks in a
// 2048-byte heap), the same way the original's much smaller AVR task
// struct fits the same bound.
func approxSizeOf(v any) uintptr {
	switch v.(type) {
	case Task:
		return 16
	default:
		return 8
	}
}
