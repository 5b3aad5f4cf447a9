package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/domain/run"
	"gosts/domain/verdict"
	"gosts/ports"
)

func sampleResult(t *testing.T) run.Result {
	t.Helper()
	samples := []core.SampleID{"s-0000", "s-0001"}
	sched, err := run.Build(samples, nil, []kernel.Variant{kernel.CumulativeSums, kernel.Rank})
	require.NoError(t, err)

	for _, r := range sched.Runs() {
		require.NoError(t, r.Start())
		if r.Kernel == kernel.Rank && r.Sample == "s-0001" {
			require.NoError(t, r.Fail(core.NewAllocationError(32, 32, nil)))
			continue
		}
		var res kernel.TestResult
		if r.Kernel == kernel.Rank {
			res.AddPValue("p", 0.25)
		} else {
			res.AddPValue("forward", 0.25)
			res.AddPValue("reverse", 0.25)
		}
		require.NoError(t, r.Complete(res))
	}

	var verdicts []verdict.Verdict
	for _, v := range sched.Kernels() {
		verdicts = append(verdicts, verdict.Aggregate(v, sched.Evidence(v), verdict.DefaultConfig()))
	}
	m := run.NewManifest(sched, 2, 0.01, "test")
	return run.NewResult(sched, m, verdicts, 1500*time.Millisecond)
}

func TestForFormat(t *testing.T) {
	for _, name := range Formats() {
		em, err := ForFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, em.Format())
		assert.Equal(t, "."+name, em.Extension())
	}
	_, err := ForFormat("pdf")
	assert.Error(t, err)
}

func TestJSONEmitter(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, JSONEmitter{Indent: true}.Emit(context.Background(), &buf, res))

	var doc struct {
		Manifest struct {
			Samples int      `json:"samples"`
			Kernels []string `json:"kernels"`
		} `json:"manifest"`
		Counts run.Counts `json:"counts"`
		Runs   []struct {
			Kernel string `json:"kernel"`
			Status string `json:"status"`
			Reason string `json:"failure_reason"`
		} `json:"runs"`
		Verdicts []struct {
			Kernel string `json:"kernel"`
			Status string `json:"status"`
		} `json:"verdicts"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 2, doc.Manifest.Samples)
	assert.Equal(t, []string{"CumulativeSums", "Rank"}, doc.Manifest.Kernels)
	assert.Equal(t, run.Counts{Completed: 3, Failed: 1}, doc.Counts)
	require.Len(t, doc.Runs, 4)
	assert.Equal(t, "allocation_failure", doc.Runs[3].Reason)
	require.Len(t, doc.Verdicts, 2)
	assert.Equal(t, "Rank", doc.Verdicts[1].Kernel)
}

func TestMarkdownEmitter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarkdownEmitter{}.Emit(context.Background(), &buf, sampleResult(t)))
	out := buf.String()

	assert.Contains(t, out, "## Verdicts")
	assert.Contains(t, out, "| CumulativeSums | pass | 2 |")
	assert.Contains(t, out, "| 3 | 1 | 0 | 0 |")
	assert.Contains(t, out, "## Failed runs")
	assert.Contains(t, out, "| s-0001 | Rank | default | allocation_failure |")
	assert.Contains(t, out, "- Overall: **FAIL**")
	assert.Contains(t, out, "- Elapsed: 1.5s")
}

func TestHTMLEmitter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTMLEmitter{}.Emit(context.Background(), &buf, sampleResult(t)))
	out := buf.String()

	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>CumulativeSums</td>")
	assert.Contains(t, out, `id="verdicts"`)
}

func TestExcelEmitter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExcelEmitter{}.Emit(context.Background(), &buf, sampleResult(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetVerdicts, SheetComponents, SheetRuns}, f.GetSheetList())

	verdicts, err := f.GetRows(SheetVerdicts)
	require.NoError(t, err)
	require.Len(t, verdicts, 3)
	assert.Equal(t, "Kernel", verdicts[0][0])
	assert.Equal(t, []string{"CumulativeSums", "pass"}, verdicts[1][:2])

	components, err := f.GetRows(SheetComponents)
	require.NoError(t, err)
	assert.Len(t, components, 1+3, "forward, reverse and rank p")

	runs, err := f.GetRows(SheetRuns)
	require.NoError(t, err)
	require.Len(t, runs, 5)
	assert.Equal(t, "forward=0.250000; reverse=0.250000", runs[1][5])
	assert.Equal(t, "failed", runs[4][3])
}

func TestWriteAll(t *testing.T) {
	res := sampleResult(t)
	dir := filepath.Join(t.TempDir(), "reports")

	paths, err := WriteAll(context.Background(), dir, res, []string{"json", "md", "html", "xlsx"})
	require.NoError(t, err)
	require.Len(t, paths, 4)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
		assert.Contains(t, filepath.Base(p), res.Manifest.Fingerprint.Short())
	}

	_, err = WriteAll(context.Background(), dir, res, []string{"json", "pdf"})
	assert.Error(t, err)
}

var (
	_ ports.ReportEmitter = JSONEmitter{}
	_ ports.ReportEmitter = ExcelEmitter{}
	_ ports.ReportEmitter = MarkdownEmitter{}
	_ ports.ReportEmitter = HTMLEmitter{}
)
