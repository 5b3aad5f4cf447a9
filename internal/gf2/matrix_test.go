package gf2

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosts/domain/core"
)

// failingAllocator succeeds failAt times, then refuses, while counting live rows.
type failingAllocator struct {
	budget *Budget
	failAt int
	calls  int
}

func (f *failingAllocator) AllocRow(cols int) ([]uint8, error) {
	f.calls++
	if f.calls > f.failAt {
		return nil, errors.New("simulated exhaustion")
	}
	return f.budget.AllocRow(cols)
}

func (f *failingAllocator) FreeRow(row []uint8) { f.budget.FreeRow(row) }

func randomMatrix(t *testing.T, rng *rand.Rand, m, q int, density float64) *Matrix {
	t.Helper()
	mx, err := New(m, q, nil)
	require.NoError(t, err)
	for i := 0; i < m; i++ {
		for j := 0; j < q; j++ {
			if rng.Float64() < density {
				mx.Set(i, j, 1)
			}
		}
	}
	return mx
}

// referenceRank eliminates on packed rows, taking pivots in whatever order
// rows appear, independent of Matrix.Rank.
func referenceRank(mx *Matrix) int {
	rows := make([]uint64, mx.Rows())
	for i := range rows {
		for j := 0; j < mx.Cols(); j++ {
			rows[i] |= uint64(mx.At(i, j)) << uint(j)
		}
	}
	rank := 0
	for len(rows) > 0 {
		p := rows[0]
		rows = rows[1:]
		if p == 0 {
			continue
		}
		rank++
		low := p & -p
		for i := range rows {
			if rows[i]&low != 0 {
				rows[i] ^= p
			}
		}
	}
	return rank
}

func TestRank_MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 5000; trial++ {
		m := 1 + rng.IntN(12)
		q := 1 + rng.IntN(12)
		mx := randomMatrix(t, rng, m, q, rng.Float64())
		clone, err := mx.Clone()
		require.NoError(t, err)

		want := referenceRank(clone)
		got := mx.Rank()
		require.Equal(t, want, got, "trial %d %dx%d", trial, m, q)
		assert.LessOrEqual(t, got, min(m, q))
	}
}

func TestRank_ZeroAndIdentity(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {3, 5}, {32, 32}, {6, 2}} {
		mx, err := New(dims[0], dims[1], nil)
		require.NoError(t, err)
		assert.Equal(t, 0, mx.Rank(), "zero %v", dims)
	}
	for _, n := range []int{1, 2, 7, 32, 64} {
		mx, err := New(n, n, nil)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			mx.Set(i, i, 1)
		}
		assert.Equal(t, n, mx.Rank(), "identity %d", n)
	}
}

func TestRank_InvariantUnderRowOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for trial := 0; trial < 500; trial++ {
		m := 2 + rng.IntN(10)
		q := 2 + rng.IntN(10)
		mx := randomMatrix(t, rng, m, q, 0.5)
		moved, err := mx.Clone()
		require.NoError(t, err)
		for op := 0; op < 20; op++ {
			dst, src := rng.IntN(m), rng.IntN(m)
			if dst != src {
				moved.XorRow(dst, src)
			}
		}
		assert.Equal(t, mx.Rank(), moved.Rank())
	}
}

func TestRank_Rectangular(t *testing.T) {
	// Columns 0 and 2 are the only independent directions.
	mx, err := New(4, 3, nil)
	require.NoError(t, err)
	rows := [][]uint8{{1, 1, 0}, {0, 0, 1}, {1, 0, 0}, {0, 0, 0}}
	for i, row := range rows {
		for j, v := range row {
			mx.Set(i, j, v)
		}
	}
	assert.Equal(t, 3, mx.Rank())

	wide, err := New(3, 7, nil)
	require.NoError(t, err)
	for i, row := range [][]uint8{{0, 0, 0, 1, 0, 0, 0}, {0, 0, 0, 1, 0, 0, 0}, {1, 0, 1, 0, 0, 0, 1}} {
		for j, v := range row {
			wide.Set(i, j, v)
		}
	}
	assert.Equal(t, 2, wide.Rank())
}

func TestNew_AllocationFailureReleasesRows(t *testing.T) {
	for failAt := 0; failAt < 8; failAt++ {
		budget := NewBudget(0)
		alloc := &failingAllocator{budget: budget, failAt: failAt}
		mx, err := New(8, 16, alloc)
		require.Error(t, err)
		assert.Nil(t, mx)
		assert.True(t, core.IsAllocationFailure(err))
		assert.Equal(t, 0, budget.Live(), "leaked rows after failing at row %d", failAt)
		assert.Equal(t, int64(0), budget.Used())
	}
}

func TestBudget_LimitTriggersAllocationFailure(t *testing.T) {
	budget := NewBudget(32 * 31)
	_, err := New(32, 32, budget)
	require.ErrorIs(t, err, core.ErrAllocationFailure)
	assert.Equal(t, 0, budget.Live())

	mx, err := New(31, 32, budget)
	require.NoError(t, err)
	assert.Equal(t, 31, budget.Live())
	mx.Release()
	assert.Equal(t, 0, budget.Live())
	assert.Equal(t, int64(32*31), budget.Peak())
}

func TestRelease_Idempotent(t *testing.T) {
	budget := NewBudget(0)
	mx, err := New(4, 4, budget)
	require.NoError(t, err)
	mx.Release()
	mx.Release()
	assert.True(t, mx.Released())
	assert.Equal(t, 0, budget.Live())

	var nilMatrix *Matrix
	assert.NotPanics(t, nilMatrix.Release)
}

func TestNew_RejectsEmptyDimensions(t *testing.T) {
	_, err := New(0, 3, nil)
	assert.ErrorIs(t, err, core.ErrInvalidParameters)
}

func TestPopulate_WindowLayout(t *testing.T) {
	buf := []uint8{
		0, 1, 0, 1, 1, 0, // window 0
		1, 1, 1, 0, 0, 0, // window 1
	}
	mx, err := Populate(buf, 2, 3, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), mx.At(0, 0))
	assert.Equal(t, uint8(1), mx.At(0, 2))
	assert.Equal(t, uint8(0), mx.At(1, 0))
	assert.Equal(t, 1, mx.Rank())

	first, err := Populate(buf, 2, 3, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), first.At(0, 1))
	assert.Equal(t, uint8(1), first.At(1, 0))
	assert.Equal(t, 2, first.Rank())

	_, err = Populate(buf, 2, 3, 2, nil)
	assert.ErrorIs(t, err, core.ErrInvalidParameters)
}

func TestPopulate_FailedFillReleases(t *testing.T) {
	budget := NewBudget(0)
	_, err := Populate(make([]uint8, 5), 2, 3, 0, budget)
	require.Error(t, err)
	assert.Equal(t, 0, budget.Live())
}
