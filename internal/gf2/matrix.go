// Package gf2 implements binary matrices and sequences over the two-element
// field. Every entry is 0 or 1 and every sum is an XOR.
package gf2

import (
	"fmt"

	"gosts/domain/core"
)

// Matrix is an M-row, Q-column binary matrix. A Matrix returned by New is
// always fully allocated; there is no partially built state.
type Matrix struct {
	rows  [][]uint8
	m, q  int
	alloc Allocator
}

// New allocates a zeroed m×q matrix. If any row cannot be allocated, every
// row obtained so far is returned to the allocator and an error wrapping
// core.ErrAllocationFailure is returned.
func New(m, q int, alloc Allocator) (*Matrix, error) {
	if m <= 0 || q <= 0 {
		return nil, core.NewInvalidParametersError("matrix", fmt.Sprintf("dimensions %dx%d", m, q))
	}
	if alloc == nil {
		alloc = Heap
	}
	rows := make([][]uint8, m)
	for i := range rows {
		row, err := alloc.AllocRow(q)
		if err != nil || len(row) != q {
			for j := 0; j < i; j++ {
				alloc.FreeRow(rows[j])
			}
			return nil, core.NewAllocationError(m, q, err)
		}
		rows[i] = row
	}
	return &Matrix{rows: rows, m: m, q: q, alloc: alloc}, nil
}

// Populate allocates a matrix and fills it from window index k of buf.
func Populate(buf []uint8, m, q, k int, alloc Allocator) (*Matrix, error) {
	mx, err := New(m, q, alloc)
	if err != nil {
		return nil, err
	}
	if err := mx.Fill(buf, k); err != nil {
		mx.Release()
		return nil, err
	}
	return mx, nil
}

// Fill overwrites the matrix with the k-th contiguous window of M·Q bits of
// buf, row-major: entry (i,j) is buf[k·M·Q + i·Q + j].
func (mx *Matrix) Fill(buf []uint8, k int) error {
	if mx.rows == nil {
		return fmt.Errorf("fill on released matrix")
	}
	size := mx.m * mx.q
	start := k * size
	if k < 0 || start+size > len(buf) {
		return core.NewInvalidParametersError("window", fmt.Sprintf("%d of size %d exceeds %d bits", k, size, len(buf)))
	}
	for i, row := range mx.rows {
		copy(row, buf[start+i*mx.q:start+(i+1)*mx.q])
	}
	return nil
}

// Rows returns M.
func (mx *Matrix) Rows() int { return mx.m }

// Cols returns Q.
func (mx *Matrix) Cols() int { return mx.q }

// At returns entry (i,j).
func (mx *Matrix) At(i, j int) uint8 { return mx.rows[i][j] }

// Set assigns entry (i,j); any non-zero v is stored as 1.
func (mx *Matrix) Set(i, j int, v uint8) {
	if v != 0 {
		v = 1
	}
	mx.rows[i][j] = v
}

// XorRow adds row src into row dst.
func (mx *Matrix) XorRow(dst, src int) {
	xorFrom(mx.rows[dst], mx.rows[src], 0)
}

// Released reports whether Release has run.
func (mx *Matrix) Released() bool { return mx.rows == nil }

// Release returns every row to the allocator. It is idempotent and safe on
// a nil matrix.
func (mx *Matrix) Release() {
	if mx == nil || mx.rows == nil {
		return
	}
	for _, row := range mx.rows {
		if row != nil {
			mx.alloc.FreeRow(row)
		}
	}
	mx.rows = nil
}

// Clone copies the matrix using the same allocator.
func (mx *Matrix) Clone() (*Matrix, error) {
	out, err := New(mx.m, mx.q, mx.alloc)
	if err != nil {
		return nil, err
	}
	for i, row := range mx.rows {
		copy(out.rows[i], row)
	}
	return out, nil
}

func xorFrom(dst, src []uint8, from int) {
	for j := from; j < len(dst); j++ {
		dst[j] ^= src[j]
	}
}
