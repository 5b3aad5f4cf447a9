package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"

	"gosts/domain/core"
	"gosts/internal/config"
	"gosts/internal/testkit"
	"gosts/ports"
)

var (
	_ ports.SampleSource = (*FileSource)(nil)
	_ ports.SampleSource = (*SerialSource)(nil)
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFileSource_ASCIIWholeFile(t *testing.T) {
	path := writeFile(t, "epsilon.txt", []byte(testkit.Epsilon100[:50]+"\n"+testkit.Epsilon100[50:]+"\n"))
	src := NewFileSource(config.SampleConfig{Path: path})

	seqs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	assert.Equal(t, core.SampleID("epsilon"), seqs[0].ID())
	assert.Equal(t, 100, seqs[0].Len())
	assert.Equal(t, testkit.Epsilon100[:64], seqs[0].String()[:64])
	assert.Contains(t, src.Describe(), "ascii")
}

func TestFileSource_ASCIISplit(t *testing.T) {
	path := writeFile(t, "data.txt", []byte(testkit.Epsilon100))
	src := NewFileSource(config.SampleConfig{Path: path, Length: 30, Count: 3, Prefix: "eps"})

	seqs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, seqs, 3)
	assert.Equal(t, core.SampleID("eps-0002"), seqs[2].ID())
	assert.Equal(t, testkit.Epsilon100[60:90], seqs[2].String())

	src.Count = 4
	_, err = src.Load(context.Background())
	assert.Error(t, err, "120 bits requested from a 100-bit file")
}

func TestFileSource_BinaryIsMSBFirst(t *testing.T) {
	path := writeFile(t, "capture.bin", []byte{0xA5, 0x0F, 0xFF})
	src := NewFileSource(config.SampleConfig{Path: path, Format: config.FormatBinary, Length: 8, Count: 2})

	seqs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	assert.Equal(t, "10100101", seqs[0].String())
	assert.Equal(t, "00001111", seqs[1].String())
}

func TestFileSource_Errors(t *testing.T) {
	bad := writeFile(t, "bad.txt", []byte("0101x"))
	_, err := NewFileSource(config.SampleConfig{Path: bad}).Load(context.Background())
	assert.Error(t, err)

	empty := writeFile(t, "empty.txt", []byte("\n"))
	_, err = NewFileSource(config.SampleConfig{Path: empty}).Load(context.Background())
	assert.Error(t, err)

	_, err = NewFileSource(config.SampleConfig{Path: filepath.Join(t.TempDir(), "nope.txt")}).Load(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFileSource(config.SampleConfig{Path: bad}).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// fakePort serves bytes in short reads, like a real device.
type fakePort struct {
	r      io.Reader
	closed bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(b) > 7 {
		b = b[:7]
	}
	return p.r.Read(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialSource_CapturesStreams(t *testing.T) {
	data := bytes.Repeat([]byte{0xF0}, 10000)
	port := &fakePort{r: bytes.NewReader(data)}
	src := NewSerialSource(config.SampleConfig{Device: "/dev/ttyACM0", Baud: 115200, Length: 16, Count: 3})
	var opened *serial.Config
	src.Open = func(cfg *serial.Config) (io.ReadCloser, error) {
		opened = cfg
		return port, nil
	}

	seqs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, seqs, 3)
	assert.Equal(t, "1111000011110000", seqs[1].String())
	assert.Equal(t, core.SampleID("trng-0001"), seqs[1].ID())
	assert.True(t, port.closed)
	assert.Equal(t, "/dev/ttyACM0", opened.Name)
	assert.Equal(t, 8, int(opened.Size))
	assert.Contains(t, src.Describe(), "115200")
}

func TestSerialSource_ShortDeviceFails(t *testing.T) {
	src := NewSerialSource(config.SampleConfig{Device: "/dev/ttyACM0", Baud: 9600, Length: 800, Count: 1})
	src.Open = func(*serial.Config) (io.ReadCloser, error) {
		return &fakePort{r: bytes.NewReader(make([]byte, 50))}, nil
	}
	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	src.Open = func(*serial.Config) (io.ReadCloser, error) { return nil, errors.New("permission denied") }
	_, err = src.Load(context.Background())
	assert.ErrorContains(t, err, "permission denied")
}
