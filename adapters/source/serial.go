package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/internal/config"
)

// readChunk bounds each device read so cancellation is seen promptly.
const readChunk = 4096

// Opener opens a serial port. Tests substitute an in-memory device.
type Opener func(cfg *serial.Config) (io.ReadCloser, error)

func openPort(cfg *serial.Config) (io.ReadCloser, error) {
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SerialSource captures Count streams of Length bits from a hardware TRNG
// on a serial line. Bytes are unpacked most significant bit first.
type SerialSource struct {
	Config *serial.Config
	Length int
	Count  int
	Prefix string
	Open   Opener
}

// NewSerialSource builds a SerialSource from the assessment's sample settings.
func NewSerialSource(cfg config.SampleConfig) *SerialSource {
	timeout := cfg.ReadTimeout
	if timeout == 0 {
		timeout = time.Second
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "trng"
	}
	return &SerialSource{
		Config: &serial.Config{
			Name:        cfg.Device,
			Baud:        cfg.Baud,
			Size:        8,
			ReadTimeout: timeout,
		},
		Length: cfg.Length,
		Count:  cfg.Count,
		Prefix: prefix,
		Open:   openPort,
	}
}

// Describe implements ports.SampleSource.
func (s *SerialSource) Describe() string {
	return fmt.Sprintf("serial device %s @%d", s.Config.Name, s.Config.Baud)
}

// Load implements ports.SampleSource.
func (s *SerialSource) Load(ctx context.Context) ([]*bits.Sequence, error) {
	if s.Length <= 0 || s.Count <= 0 {
		return nil, fmt.Errorf("serial capture needs positive length and count")
	}
	open := s.Open
	if open == nil {
		open = openPort
	}
	port, err := open(s.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Config.Name, err)
	}
	defer port.Close()

	total := s.Length * s.Count
	buf := make([]byte, (total+7)/8)
	for off := 0; off < len(buf); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := off + readChunk
		if end > len(buf) {
			end = len(buf)
		}
		n, err := io.ReadFull(port, buf[off:end])
		off += n
		if err != nil {
			return nil, fmt.Errorf("read %d of %d bytes from %s: %w", off, len(buf), s.Config.Name, err)
		}
	}

	whole := bits.FromBytes(core.SampleID(s.Prefix), buf, total)
	return whole.Split(s.Prefix, s.Length, s.Count)
}
