package gf2

// Rank reduces the matrix in place and returns its rank over GF(2).
//
// The forward pass walks rows top to bottom. Row r takes the next column c
// that still has a 1 at or below r (swapping that row up when A[r][c] is 0)
// and clears column c from every row beneath. When every column has a pivot
// this is exactly the diagonal scheme, A[i][i] as the pivot of row i. The
// backward pass clears each pivot column from the rows above it. The rank is
// M minus the number of all-zero rows left behind.
func (mx *Matrix) Rank() int {
	a := mx.rows
	m, q := mx.m, mx.q

	r := 0
	for c := 0; c < q && r < m; c++ {
		if a[r][c] == 0 {
			swap := -1
			for k := r + 1; k < m; k++ {
				if a[k][c] == 1 {
					swap = k
					break
				}
			}
			if swap < 0 {
				continue
			}
			a[r], a[swap] = a[swap], a[r]
		}
		for k := r + 1; k < m; k++ {
			if a[k][c] == 1 {
				xorFrom(a[k], a[r], c)
			}
		}
		r++
	}

	for i := r - 1; i > 0; i-- {
		c := leading(a[i])
		for k := i - 1; k >= 0; k-- {
			if a[k][c] == 1 {
				xorFrom(a[k], a[i], c)
			}
		}
	}

	zero := 0
	for _, row := range a {
		if leading(row) < 0 {
			zero++
		}
	}
	return m - zero
}

func leading(row []uint8) int {
	for j, v := range row {
		if v != 0 {
			return j
		}
	}
	return -1
}
