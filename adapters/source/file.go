// Package source loads bit sequences from files and hardware entropy devices.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/internal/config"
)

// FileSource reads one capture file. With Length and Count set the capture
// is cut into Count streams of Length bits; otherwise the whole file is one
// sample named after the file.
type FileSource struct {
	Path   string
	Format string
	Length int
	Count  int
	Prefix string
}

// NewFileSource builds a FileSource from the assessment's sample settings.
func NewFileSource(cfg config.SampleConfig) *FileSource {
	return &FileSource{
		Path:   cfg.Path,
		Format: cfg.SampleFormat(),
		Length: cfg.Length,
		Count:  cfg.Count,
		Prefix: cfg.Prefix,
	}
}

// Describe implements ports.SampleSource.
func (f *FileSource) Describe() string {
	return fmt.Sprintf("%s file %s", f.Format, f.Path)
}

// Load implements ports.SampleSource.
func (f *FileSource) Load(ctx context.Context) ([]*bits.Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}

	name := strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
	id := core.SampleID(name)

	var whole *bits.Sequence
	switch f.Format {
	case config.FormatBinary:
		maxBits := 0
		if f.Length > 0 {
			maxBits = f.Length * f.Count
		}
		whole = bits.FromBytes(id, data, maxBits)
	case config.FormatASCII, "":
		whole, err = bits.FromASCII(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
	default:
		return nil, fmt.Errorf("unknown sample format %q", f.Format)
	}

	if whole.Len() == 0 {
		return nil, fmt.Errorf("%s holds no bits", f.Path)
	}
	if f.Length == 0 {
		return []*bits.Sequence{whole}, nil
	}
	prefix := f.Prefix
	if prefix == "" {
		prefix = name
	}
	return whole.Split(prefix, f.Length, f.Count)
}
