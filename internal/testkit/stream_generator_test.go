package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamGenerator_Deterministic(t *testing.T) {
	cfg := DefaultStreamConfig()
	cfg.Length = 4096
	a := NewStreamGenerator(cfg).Generate()
	b := NewStreamGenerator(cfg).Generate()
	require.Len(t, a, cfg.Count)
	for i := range a {
		assert.Equal(t, a[i].View(), b[i].View())
		assert.Equal(t, "fixture-"+pad(i), a[i].ID().String())
	}
	assert.NotEqual(t, a[0].View(), a[1].View())
}

func TestStreamGenerator_RoughlyBalanced(t *testing.T) {
	seq := RandomBits(7, 100000)
	ones := seq.Ones()
	assert.InDelta(t, 50000, ones, 1000)
}

func TestStreamGenerator_Bias(t *testing.T) {
	cfg := StreamGeneratorConfig{Length: 20000, Count: 1, Seed: 1, Bias: 0.8}
	seq := NewStreamGenerator(cfg).Stream(0)
	assert.InDelta(t, 16000, seq.Ones(), 600)
}

func TestFixtures(t *testing.T) {
	assert.Equal(t, 0, Constant(0, 64).Ones())
	assert.Equal(t, 64, Constant(1, 64).Ones())
	p := Periodic("110", 10)
	assert.Equal(t, "1101101101", p.String())
	assert.Len(t, Epsilon100, 100)
	assert.Len(t, LongestRun128, 128)
}

func pad(i int) string {
	return string([]byte{'0', '0', '0', byte('0' + i)})
}

func TestBalancedBits(t *testing.T) {
	seq := BalancedBits(3, 6400, 64)
	assert.Equal(t, 3200, seq.Ones())
	walk := 0
	for i := 0; i < seq.Len(); i++ {
		if seq.At(i) == 1 {
			walk++
		} else {
			walk--
		}
		if (i+1)%64 == 0 {
			assert.Equal(t, 0, walk)
		}
	}
}
