package ports

import (
	"context"
	"io"

	"gosts/domain/run"
)

// ReportEmitter renders a schedule result in one format.
type ReportEmitter interface {
	Emit(ctx context.Context, w io.Writer, res run.Result) error
	// Format is the short name used on the command line, e.g. "json".
	Format() string
	// Extension is the file suffix including the dot.
	Extension() string
}
