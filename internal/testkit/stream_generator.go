package testkit

import (
	"encoding/binary"
	"math/rand/v2"
	"strings"

	"gosts/domain/bits"
	"gosts/domain/core"
)

// StreamGeneratorConfig configures deterministic bit-stream fixtures.
type StreamGeneratorConfig struct {
	Length int    `json:"length"` // bits per stream
	Count  int    `json:"count"`  // number of streams
	Seed   uint64 `json:"seed"`
	// Bias is the probability of a one; 0 means an unbiased stream.
	Bias   float64 `json:"bias"`
	Prefix string  `json:"prefix"`
}

// DefaultStreamConfig returns a small, fast fixture configuration.
func DefaultStreamConfig() StreamGeneratorConfig {
	return StreamGeneratorConfig{
		Length: 100000,
		Count:  4,
		Seed:   42,
		Prefix: "fixture",
	}
}

// StreamGenerator produces reproducible streams from a ChaCha8 source.
// Stream i is keyed by (Seed, i), so adding streams never changes earlier ones.
type StreamGenerator struct {
	config StreamGeneratorConfig
}

// NewStreamGenerator creates a generator for config.
func NewStreamGenerator(config StreamGeneratorConfig) *StreamGenerator {
	if config.Prefix == "" {
		config.Prefix = "fixture"
	}
	return &StreamGenerator{config: config}
}

// Generate returns Count streams of Length bits.
func (g *StreamGenerator) Generate() []*bits.Sequence {
	out := make([]*bits.Sequence, g.config.Count)
	for i := range out {
		out[i] = g.Stream(i)
	}
	return out
}

// Stream returns stream i.
func (g *StreamGenerator) Stream(i int) *bits.Sequence {
	id := core.SampleIDForIndex(g.config.Prefix, i)
	rng := rand.New(rand.NewChaCha8(seedFor(g.config.Seed, uint64(i))))
	src := make([]uint8, g.config.Length)
	if g.config.Bias > 0 {
		for j := range src {
			if rng.Float64() < g.config.Bias {
				src[j] = 1
			}
		}
	} else {
		var word uint64
		for j := range src {
			if j%64 == 0 {
				word = rng.Uint64()
			}
			src[j] = uint8(word>>uint(63-j%64)) & 1
		}
	}
	seq, err := bits.FromBits(id, src)
	if err != nil {
		panic(err)
	}
	return seq
}

// RandomBits is a one-off unbiased stream.
func RandomBits(seed uint64, n int) *bits.Sequence {
	return NewStreamGenerator(StreamGeneratorConfig{Length: n, Count: 1, Seed: seed, Prefix: "random"}).Stream(0)
}

// Constant returns n copies of bit v.
func Constant(v uint8, n int) *bits.Sequence {
	src := make([]uint8, n)
	for i := range src {
		src[i] = v
	}
	seq, err := bits.FromBits(core.SampleID("constant"), src)
	if err != nil {
		panic(err)
	}
	return seq
}

// Periodic repeats pattern until n bits are produced.
func Periodic(pattern string, n int) *bits.Sequence {
	reps := n/len(pattern) + 1
	return bits.MustASCII(core.SampleID("periodic"), strings.Repeat(pattern, reps)[:n])
}

func seedFor(seed, stream uint64) [32]byte {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:], seed)
	binary.LittleEndian.PutUint64(key[8:], stream)
	binary.LittleEndian.PutUint64(key[16:], 0x5350383030323232)
	return key
}

// BalancedBits shuffles equal numbers of ones and zeros within each chunk,
// so the ±1 walk returns to zero at least every chunk bits. Excursion
// kernels need that many cycles.
func BalancedBits(seed uint64, n, chunk int) *bits.Sequence {
	rng := rand.New(rand.NewChaCha8(seedFor(seed, 1<<32)))
	src := make([]uint8, n)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		block := src[lo:hi]
		for i := 0; i < len(block)/2; i++ {
			block[i] = 1
		}
		rng.Shuffle(len(block), func(i, j int) { block[i], block[j] = block[j], block[i] })
	}
	seq, err := bits.FromBits(core.SampleID("balanced"), src)
	if err != nil {
		panic(err)
	}
	return seq
}
