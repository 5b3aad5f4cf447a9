package ports

import (
	"context"

	"gosts/domain/bits"
)

// SampleSource yields the bit sequences a schedule runs over. Sequences
// must carry distinct ids.
type SampleSource interface {
	Load(ctx context.Context) ([]*bits.Sequence, error)
	// Describe names the source for logs and reports.
	Describe() string
}
