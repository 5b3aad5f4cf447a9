package ports

import (
	"context"

	"gosts/domain/bits"
	"gosts/domain/kernel"
	"gosts/internal/gf2"
	"gosts/internal/workpool"
)

// KernelEnv carries the execution resources lent to one test run.
type KernelEnv struct {
	// Strategy decides how a multi-threaded kernel partitions its work.
	Strategy workpool.Strategy
	// Alloc supplies scratch rows; nil means the unbounded heap.
	Alloc gf2.Allocator
}

// Allocator returns Alloc, falling back to the heap.
func (e KernelEnv) Allocator() gf2.Allocator {
	if e.Alloc == nil {
		return gf2.Heap
	}
	return e.Alloc
}

// Kernel computes one statistical test over a read-only bit sequence.
// A sequence below the kernel's minimum yields an error wrapping
// core.ErrInsufficientData rather than a degraded statistic.
type Kernel interface {
	Variant() kernel.Variant
	Compute(ctx context.Context, seq *bits.Sequence, params kernel.ParameterSet, env KernelEnv) (kernel.TestResult, error)
}

// KernelRegistry resolves a variant to its implementation.
type KernelRegistry interface {
	Kernel(v kernel.Variant) (Kernel, error)
}
