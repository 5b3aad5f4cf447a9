// Package workpool provides the fixed-size worker pool shared by run
// dispatch and kernel-internal partitioning.
package workpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"gosts/domain/core"
)

// MaxWorkers bounds the pool size a configuration may request.
const MaxWorkers = 1024

// Pool is a counting semaphore over a fixed number of worker slots.
type Pool struct {
	size int
	sem  *semaphore.Weighted
}

// New creates a pool of size slots. A size outside [1, MaxWorkers] is a
// fatal configuration error.
func New(size int) (*Pool, error) {
	if size < 1 || size > MaxWorkers {
		return nil, fmt.Errorf("%w: worker pool size %d outside [1,%d]", core.ErrScheduleFatal, size, MaxWorkers)
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}, nil
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// TryAcquire takes a slot only if one is free right now.
func (p *Pool) TryAcquire() bool {
	return p.sem.TryAcquire(1)
}

// Release returns a slot.
func (p *Pool) Release() {
	p.sem.Release(1)
}
