package gf2

import (
	"fmt"
	"sync"
)

// Allocator hands out matrix rows. Implementations must tolerate FreeRow
// being called exactly once for every row they returned.
type Allocator interface {
	AllocRow(cols int) ([]uint8, error)
	FreeRow(row []uint8)
}

type heapAllocator struct{}

func (heapAllocator) AllocRow(cols int) ([]uint8, error) { return make([]uint8, cols), nil }
func (heapAllocator) FreeRow([]uint8)                    {}

// Heap allocates rows from the Go heap with no limit.
var Heap Allocator = heapAllocator{}

// Budget is an accounting Allocator: it caps the bytes a single run may hold
// and tracks how many rows are live.
type Budget struct {
	mu    sync.Mutex
	limit int64
	used  int64
	live  int
	peak  int64
}

// NewBudget returns a Budget allowing at most limitBytes of live rows.
// A limit <= 0 means unlimited, which still keeps the accounting.
func NewBudget(limitBytes int64) *Budget {
	return &Budget{limit: limitBytes}
}

// AllocRow implements Allocator.
func (b *Budget) AllocRow(cols int) ([]uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit > 0 && b.used+int64(cols) > b.limit {
		return nil, fmt.Errorf("row of %d bytes exceeds scratch budget (%d of %d used)", cols, b.used, b.limit)
	}
	b.used += int64(cols)
	b.live++
	if b.used > b.peak {
		b.peak = b.used
	}
	return make([]uint8, cols), nil
}

// FreeRow implements Allocator.
func (b *Budget) FreeRow(row []uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used -= int64(len(row))
	b.live--
}

// Live returns the number of rows currently allocated.
func (b *Budget) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// Used returns the bytes currently allocated.
func (b *Budget) Used() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Peak returns the high-water mark in bytes.
func (b *Budget) Peak() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}
