package gf2

import "gosts/domain/core"

// Scratch holds the three connection-polynomial buffers Berlekamp–Massey
// needs. One Scratch serves any number of sequences of length <= its size
// and must not be shared between goroutines.
type Scratch struct {
	c, b, t []uint8
	alloc   Allocator
}

// NewScratch sizes buffers for sequences of up to n bits.
func NewScratch(n int) *Scratch {
	return &Scratch{c: make([]uint8, n), b: make([]uint8, n), t: make([]uint8, n)}
}

// AllocScratch draws the three buffers from alloc so they count against its
// budget. On failure nothing stays allocated.
func AllocScratch(n int, alloc Allocator) (*Scratch, error) {
	if alloc == nil {
		alloc = Heap
	}
	bufs := make([][]uint8, 3)
	for i := range bufs {
		row, err := alloc.AllocRow(n)
		if err != nil || len(row) != n {
			for j := 0; j < i; j++ {
				alloc.FreeRow(bufs[j])
			}
			return nil, core.NewAllocationError(3, n, err)
		}
		bufs[i] = row
	}
	return &Scratch{c: bufs[0], b: bufs[1], t: bufs[2], alloc: alloc}, nil
}

// Release hands allocator-backed buffers back. Safe to call twice.
func (sc *Scratch) Release() {
	if sc == nil || sc.alloc == nil || sc.c == nil {
		return
	}
	sc.alloc.FreeRow(sc.c)
	sc.alloc.FreeRow(sc.b)
	sc.alloc.FreeRow(sc.t)
	sc.c, sc.b, sc.t = nil, nil, nil
}

// LinearComplexity returns the length of the shortest LFSR generating s,
// computed with the Berlekamp–Massey algorithm over GF(2).
func LinearComplexity(s []uint8, sc *Scratch) int {
	n := len(s)
	if sc == nil || len(sc.c) < n {
		sc = NewScratch(n)
	}
	c, b, t := sc.c[:n], sc.b[:n], sc.t[:n]
	for i := range c {
		c[i], b[i] = 0, 0
	}
	if n == 0 {
		return 0
	}
	c[0], b[0] = 1, 1

	l, m := 0, -1
	for i := 0; i < n; i++ {
		d := s[i]
		for j := 1; j <= l; j++ {
			d ^= c[j] & s[i-j]
		}
		if d == 0 {
			continue
		}
		copy(t, c)
		shift := i - m
		for j := 0; j+shift < n; j++ {
			c[j+shift] ^= b[j]
		}
		if l <= i/2 {
			l = i + 1 - l
			m = i
			copy(b, t)
		}
	}
	return l
}
