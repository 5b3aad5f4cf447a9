package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromASCII(t *testing.T) {
	s, err := FromASCII("a", "0101 1\n10")
	require.NoError(t, err)
	assert.Equal(t, 7, s.Len())
	assert.Equal(t, []uint8{0, 1, 0, 1, 1, 1, 0}, s.View())
	assert.Equal(t, 4, s.Ones())

	_, err = FromASCII("b", "01x")
	assert.Error(t, err)
}

func TestFromBytes_MSBFirst(t *testing.T) {
	s := FromBytes("a", []byte{0xA5, 0x0F}, 0)
	assert.Equal(t, "1010010100001111", s.String())

	s = FromBytes("a", []byte{0xA5, 0x0F}, 5)
	assert.Equal(t, "10100", s.String())
}

func TestFromBits_CopiesInput(t *testing.T) {
	src := []uint8{1, 0, 1}
	s, err := FromBits("a", src)
	require.NoError(t, err)
	src[0] = 0
	assert.Equal(t, uint8(1), s.At(0))

	_, err = FromBits("a", []uint8{0, 2})
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	s := MustASCII("src", "000111000111")
	parts, err := s.Split("e", 3, 4)
	require.NoError(t, err)
	require.Len(t, parts, 4)
	assert.Equal(t, "e-0002", parts[2].ID().String())
	assert.Equal(t, "000", parts[2].String())
	assert.Equal(t, "111", parts[3].String())

	_, err = s.Split("e", 5, 3)
	assert.Error(t, err)
}

func TestWindow_CannotGrowIntoNeighbour(t *testing.T) {
	s := MustASCII("a", "0011")
	w := s.Window(0, 2)
	assert.Equal(t, 2, cap(w))
}
