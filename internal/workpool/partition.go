package workpool

import (
	"context"
	"fmt"
	"sync"

	"gosts/domain/core"
)

// Strategy tells a kernel how many ways to split its work and where the
// pieces run. The zero value is the sequential identity partition.
type Strategy struct {
	pool *Pool
	ways int
}

// Sequential runs everything as a single partition on the calling goroutine.
func Sequential() Strategy { return Strategy{ways: 1} }

// Parallel splits work pool.Size() ways. Partitions borrow idle pool slots
// when available and otherwise run on the calling goroutine, so a kernel
// dispatched from inside the pool can never starve waiting on it.
func Parallel(pool *Pool) Strategy {
	if pool == nil || pool.Size() <= 1 {
		return Sequential()
	}
	return Strategy{pool: pool, ways: pool.Size()}
}

// Ways returns the number of partitions the strategy aims for.
func (s Strategy) Ways() int {
	if s.ways < 1 {
		return 1
	}
	return s.ways
}

// Range is the half-open interval [Lo, Hi) of items owned by one partition.
type Range struct {
	Index  int
	Lo, Hi int
}

// Split cuts [0, n) into at most ways contiguous, non-empty ranges.
func Split(n, ways int) []Range {
	if n <= 0 {
		return nil
	}
	if ways < 1 {
		ways = 1
	}
	if ways > n {
		ways = n
	}
	out := make([]Range, ways)
	for i := range out {
		out[i] = Range{Index: i, Lo: i * n / ways, Hi: (i + 1) * n / ways}
	}
	return out
}

// Map runs fn over each partition of [0, n) and returns the partial results
// indexed by partition, never by completion order. Cancellation is checked
// before each partition is dispatched; a panic inside fn becomes an error
// wrapping core.ErrComputation.
func Map[T any](ctx context.Context, s Strategy, n int, fn func(r Range) (T, error)) ([]T, error) {
	ranges := Split(n, s.Ways())
	out := make([]T, len(ranges))
	errs := make([]error, len(ranges))

	run := func(r Range) {
		defer func() {
			if rec := recover(); rec != nil {
				errs[r.Index] = core.NewComputationError("partition %d panicked: %v", r.Index, rec)
			}
		}()
		out[r.Index], errs[r.Index] = fn(r)
	}

	var wg sync.WaitGroup
	for i, r := range ranges {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		if i > 0 && s.pool != nil && s.pool.TryAcquire() {
			wg.Add(1)
			go func(r Range) {
				defer wg.Done()
				defer s.pool.Release()
				run(r)
			}(r)
			continue
		}
		run(r)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("partition %d: %w", i, err)
		}
	}
	return out, nil
}

// SumCounts adds equally sized integer partials in partition order.
func SumCounts(parts [][]int) []int {
	if len(parts) == 0 {
		return nil
	}
	total := make([]int, len(parts[0]))
	for _, p := range parts {
		for i, v := range p {
			total[i] += v
		}
	}
	return total
}

// Concat joins per-item partials in partition order.
func Concat[T any](parts [][]T) []T {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]T, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
