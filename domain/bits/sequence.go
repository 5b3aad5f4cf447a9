// Package bits holds the immutable bit sequences every kernel reads.
package bits

import (
	"fmt"

	"gosts/domain/core"
)

// Sequence is an immutable, ordered run of bits. Bits are stored one per
// byte (0 or 1) so kernels can index without shifting; the backing slice is
// never handed out writable.
type Sequence struct {
	id   core.SampleID
	bits []uint8
}

// FromBits copies a 0/1 slice into a new sequence. Any value other than 0
// or 1 is rejected.
func FromBits(id core.SampleID, src []uint8) (*Sequence, error) {
	out := make([]uint8, len(src))
	for i, b := range src {
		if b > 1 {
			return nil, fmt.Errorf("bit %d has value %d", i, b)
		}
		out[i] = b
	}
	return &Sequence{id: id, bits: out}, nil
}

// FromASCII parses '0'/'1' characters. Whitespace is skipped; any other
// character is an error.
func FromASCII(id core.SampleID, text string) (*Sequence, error) {
	out := make([]uint8, 0, len(text))
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '0':
			out = append(out, 0)
		case '1':
			out = append(out, 1)
		case ' ', '\t', '\r', '\n':
		default:
			return nil, fmt.Errorf("invalid character %q at offset %d", c, i)
		}
	}
	return &Sequence{id: id, bits: out}, nil
}

// FromBytes unpacks bytes most-significant bit first, keeping at most
// maxBits bits (all of them when maxBits <= 0).
func FromBytes(id core.SampleID, data []byte, maxBits int) *Sequence {
	n := len(data) * 8
	if maxBits > 0 && maxBits < n {
		n = maxBits
	}
	out := make([]uint8, n)
	for i := 0; i < n; i++ {
		out[i] = (data[i>>3] >> (7 - uint(i&7))) & 1
	}
	return &Sequence{id: id, bits: out}
}

// MustASCII is FromASCII for literals in tests and fixtures.
func MustASCII(id core.SampleID, text string) *Sequence {
	s, err := FromASCII(id, text)
	if err != nil {
		panic(err)
	}
	return s
}

// ID returns the sample identifier.
func (s *Sequence) ID() core.SampleID { return s.id }

// Len returns the number of bits.
func (s *Sequence) Len() int { return len(s.bits) }

// At returns bit i.
func (s *Sequence) At(i int) uint8 { return s.bits[i] }

// View exposes the bits for read-only scanning. Callers must not write to
// the returned slice.
func (s *Sequence) View() []uint8 { return s.bits }

// Window returns a read-only view of bits [from, to).
func (s *Sequence) Window(from, to int) []uint8 { return s.bits[from:to:to] }

// Ones counts the set bits.
func (s *Sequence) Ones() int {
	n := 0
	for _, b := range s.bits {
		n += int(b)
	}
	return n
}

// Split cuts the sequence into count consecutive streams of length bits each,
// the way a single capture file is divided into independent samples.
func (s *Sequence) Split(prefix string, length, count int) ([]*Sequence, error) {
	if length <= 0 || count <= 0 {
		return nil, fmt.Errorf("stream length and count must be positive")
	}
	if length*count > len(s.bits) {
		return nil, fmt.Errorf("need %d bits for %d streams of %d, have %d",
			length*count, count, length, len(s.bits))
	}
	out := make([]*Sequence, count)
	for i := 0; i < count; i++ {
		out[i] = &Sequence{
			id:   core.SampleIDForIndex(prefix, i),
			bits: s.bits[i*length : (i+1)*length : (i+1)*length],
		}
	}
	return out, nil
}

// String renders the bits as ASCII, truncated for long sequences.
func (s *Sequence) String() string {
	const limit = 64
	n := len(s.bits)
	if n > limit {
		n = limit
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = '0' + s.bits[i]
	}
	if len(s.bits) > limit {
		return fmt.Sprintf("%s... (%d bits)", buf, len(s.bits))
	}
	return string(buf)
}
