package report

import (
	"context"
	"encoding/json"
	"io"

	"gosts/domain/run"
)

// JSONEmitter writes the result as a single JSON document.
type JSONEmitter struct {
	Indent bool
}

func (JSONEmitter) Format() string    { return "json" }
func (JSONEmitter) Extension() string { return ".json" }

// Emit implements ports.ReportEmitter.
func (e JSONEmitter) Emit(_ context.Context, w io.Writer, res run.Result) error {
	enc := json.NewEncoder(w)
	if e.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}
