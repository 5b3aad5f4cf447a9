package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gosts/domain/run"
)

// MarkdownEmitter writes a human-readable summary.
type MarkdownEmitter struct{}

func (MarkdownEmitter) Format() string    { return "md" }
func (MarkdownEmitter) Extension() string { return ".md" }

// Emit implements ports.ReportEmitter.
func (MarkdownEmitter) Emit(_ context.Context, w io.Writer, res run.Result) error {
	_, err := w.Write(renderMarkdown(res))
	return err
}

// HTMLEmitter renders the Markdown summary as a standalone HTML page.
type HTMLEmitter struct{}

func (HTMLEmitter) Format() string    { return "html" }
func (HTMLEmitter) Extension() string { return ".html" }

// Emit implements ports.ReportEmitter.
func (HTMLEmitter) Emit(_ context.Context, w io.Writer, res run.Result) error {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(renderMarkdown(res))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Randomness assessment " + res.Manifest.Fingerprint.Short(),
	})
	_, err := w.Write(markdown.Render(doc, renderer))
	return err
}

func renderMarkdown(res run.Result) []byte {
	var b bytes.Buffer
	m := res.Manifest

	fmt.Fprintf(&b, "# Randomness assessment %s\n\n", m.ScheduleID)
	fmt.Fprintf(&b, "- Fingerprint: `%s`\n", m.Fingerprint.Fingerprint)
	fmt.Fprintf(&b, "- Samples: %d, runs: %d, workers: %d\n", m.Samples, m.Runs, m.Workers)
	fmt.Fprintf(&b, "- Significance level: %g\n", m.Alpha)
	fmt.Fprintf(&b, "- Elapsed: %s\n", res.Elapsed.Round(time.Millisecond))
	if m.CodeVersion != "" {
		fmt.Fprintf(&b, "- Version: %s\n", m.CodeVersion)
	}
	overall := "PASS"
	if !res.Passed() {
		overall = "FAIL"
	}
	fmt.Fprintf(&b, "- Overall: **%s**\n\n", overall)

	b.WriteString("## Verdicts\n\n")
	b.WriteString("| Kernel | Status | Samples | Proportion | Uniformity p | Mean p | Reason |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---|\n")
	for _, v := range res.Verdicts {
		fmt.Fprintf(&b, "| %s | %s | %d | %.4f | %.6f | %.4f | %s |\n",
			v.Kernel, v.Status, v.Samples, v.Proportion, v.UniformityPValue, v.Summary.Mean, v.Reason)
	}

	c := res.Counts
	b.WriteString("\n## Runs\n\n")
	b.WriteString("| Completed | Failed | Insufficient data | Pending |\n")
	b.WriteString("|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n", c.Completed, c.Failed, c.InsufficientData, c.Pending)

	if failed := failedRuns(res); len(failed) > 0 {
		b.WriteString("\n## Failed runs\n\n")
		b.WriteString("| Sample | Kernel | Parameter set | Reason | Detail |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				r.Sample, r.Kernel, r.Parameter, r.Reason, escapeCell(r.Detail))
		}
	}
	return b.Bytes()
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
