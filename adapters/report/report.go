// Package report renders schedule results as JSON, Excel workbooks,
// Markdown and HTML.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gosts/domain/run"
	"gosts/ports"
)

// ForFormat returns the emitter for a short format name.
func ForFormat(name string) (ports.ReportEmitter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return JSONEmitter{Indent: true}, nil
	case "xlsx", "excel":
		return ExcelEmitter{}, nil
	case "md", "markdown":
		return MarkdownEmitter{}, nil
	case "html":
		return HTMLEmitter{}, nil
	}
	return nil, fmt.Errorf("unknown report format %q", name)
}

// Formats lists the names ForFormat accepts, one per emitter.
func Formats() []string {
	return []string{"json", "xlsx", "md", "html"}
}

// WriteAll emits res once per format into dir, naming each file after the
// schedule fingerprint. It returns the paths written in format order.
func WriteAll(ctx context.Context, dir string, res run.Result, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	base := "assessment-" + res.Manifest.Fingerprint.Short()
	var paths []string
	for _, name := range formats {
		em, err := ForFormat(name)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, base+em.Extension())
		if err := writeFile(ctx, path, em, res); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(ctx context.Context, path string, em ports.ReportEmitter, res run.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	if err := em.Emit(ctx, f, res); err != nil {
		return fmt.Errorf("%s report: %w", em.Format(), err)
	}
	return nil
}

// formatValues renders named values as "a=0.123456; b=0.5".
func formatValues(vals []namedValue) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%s=%.6f", v.name, v.value)
	}
	return strings.Join(parts, "; ")
}

type namedValue struct {
	name  string
	value float64
}

// pValues flattens a run's p-values for tabular output.
func pValues(r run.TestRun) []namedValue {
	if r.Result == nil {
		return nil
	}
	out := make([]namedValue, len(r.Result.PValues))
	for i, p := range r.Result.PValues {
		out[i] = namedValue{p.Name, p.Value}
	}
	return out
}

// failedRuns returns the Failed runs sorted by sample then kernel.
func failedRuns(res run.Result) []run.TestRun {
	var out []run.TestRun
	for _, r := range res.Runs {
		if r.Status == run.StatusFailed {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sample != out[j].Sample {
			return out[i].Sample < out[j].Sample
		}
		return out[i].Kernel < out[j].Kernel
	})
	return out
}
