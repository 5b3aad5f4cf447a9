package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosts/adapters/kernels"
	"gosts/adapters/metrics"
	"gosts/app"
	"gosts/domain/bits"
	"gosts/domain/run"
	"gosts/domain/verdict"
	"gosts/internal"
	"gosts/internal/errors"
	"gosts/internal/testkit"
	"gosts/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	hub    *SSEHub
	reg    *prometheus.Registry
}

type fixtureOpts struct {
	apiKey  string
	maxBody int64
	timeout time.Duration
	device  DeviceFunc
}

func newFixture(t *testing.T, opts fixtureOpts) fixture {
	t.Helper()
	log := internal.NewNopLogger()
	reg := prometheus.NewRegistry()
	sched, err := app.NewScheduler(kernels.Registry{}, app.SchedulerConfig{
		Workers: 2,
		Metrics: metrics.NewRecorder(reg),
		Logger:  log,
	})
	require.NoError(t, err)

	hub := NewSSEHub(log)
	h := NewAssessmentHandler(app.NewAssessmentService(sched), hub, log, opts.timeout)
	if opts.device != nil {
		h.WithDevice(opts.device)
	}
	router := NewRouter(h, hub, RouterConfig{
		APIKey:       opts.apiKey,
		MaxBodyBytes: opts.maxBody,
		Gatherer:     reg,
		Logger:       log,
	})
	return fixture{router: router, hub: hub, reg: reg}
}

func (f fixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func ascii(seq *bits.Sequence) string {
	var b strings.Builder
	for _, bit := range seq.View() {
		b.WriteByte('0' + bit)
	}
	return b.String()
}

func packed(seq *bits.Sequence) []byte {
	out := make([]byte, (seq.Len()+7)/8)
	for i, bit := range seq.View() {
		out[i/8] |= bit << (7 - uint(i%8))
	}
	return out
}

type assessmentResponse struct {
	ID     string     `json:"id"`
	Passed bool       `json:"passed"`
	Result run.Result `json:"result"`
	Error  string     `json:"error"`
	Code   string     `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) assessmentResponse {
	t.Helper()
	var out assessmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func validBody() gin.H {
	a := testkit.RandomBits(11, 2000)
	b := testkit.RandomBits(12, 2000)
	return gin.H{
		"id": "job-1",
		"samples": []gin.H{
			{"id": "a", "bits": ascii(a)},
			{"id": "b", "bytes": packed(b)},
		},
		"kernels": []string{"CumulativeSums", "discrete_fourier_transform"},
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	w := f.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","workers":2}`, w.Body.String())
}

func TestListKernels(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	w := f.do(t, http.MethodGet, "/v1/kernels", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Kernels []struct {
			Name          string `json:"name"`
			MultiThreaded bool   `json:"multi_threaded"`
			Defaults      struct {
				Values map[string]int `json:"values"`
			} `json:"defaults"`
		} `json:"kernels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Kernels, 13)
	assert.Equal(t, "ApproximateEntropy", out.Kernels[0].Name)
	assert.Equal(t, "Rank", out.Kernels[10].Name)
	assert.Equal(t, map[string]int{"rows": 32, "cols": 32}, out.Kernels[10].Defaults.Values)
}

func TestCreateAssessment(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	w := f.do(t, http.MethodPost, "/v1/assessments", validBody(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "job-1", w.Header().Get("X-Assessment-ID"))

	out := decode(t, w)
	assert.Equal(t, "job-1", out.ID)
	assert.Equal(t, run.Counts{Completed: 4}, out.Result.Counts)
	assert.Equal(t, 2, out.Result.Manifest.Samples)
	require.Len(t, out.Result.Verdicts, 2)
	assert.Equal(t, out.Result.Passed(), out.Passed)
}

func TestCreateAssessment_BytesAndASCIIAgree(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	seq := testkit.RandomBits(5, 1500)
	body := gin.H{
		"samples": []gin.H{
			{"id": "ascii", "bits": ascii(seq)},
			{"id": "bytes", "bytes": packed(seq), "length": 1500},
		},
		"kernels": []string{"CumulativeSums"},
	}
	w := f.do(t, http.MethodPost, "/v1/assessments", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode(t, w)
	assert.NotEmpty(t, out.ID)
	require.Len(t, out.Result.Runs, 2)
	assert.Equal(t, out.Result.Runs[0].Result, out.Result.Runs[1].Result)
}

func TestCreateAssessment_RejectsBadInput(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	cases := map[string]gin.H{
		"no samples":     {"samples": []gin.H{}},
		"bad character":  {"samples": []gin.H{{"id": "a", "bits": "0102"}}},
		"no bits":        {"samples": []gin.H{{"id": "a"}}},
		"both encodings": {"samples": []gin.H{{"id": "a", "bits": "01", "bytes": []byte{1}}}},
		"long length":    {"samples": []gin.H{{"id": "a", "bytes": []byte{1}, "length": 9}}},
		"unknown kernel": {"samples": []gin.H{{"id": "a", "bits": "01"}}, "kernels": []string{"Poker"}},
		"duplicate ids":  {"samples": []gin.H{{"id": "a", "bits": "01"}, {"id": "a", "bits": "10"}}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/assessments", body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, errors.CodeInvalidInput, decode(t, w).Code)
		})
	}
}

func TestCreateAssessment_BodyLimit(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxBody: 256})
	w := f.do(t, http.MethodPost, "/v1/assessments", validBody(), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCreateAssessment_CancelledReturnsPartialResult(t *testing.T) {
	f := newFixture(t, fixtureOpts{timeout: time.Minute})
	raw, err := json.Marshal(validBody())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/assessments", bytes.NewReader(raw)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestTimeout, w.Code, w.Body.String())

	out := decode(t, w)
	assert.Equal(t, errors.CodeCancelled, out.Code)
	assert.Equal(t, "job-1", out.ID)
	assert.Equal(t, 4, out.Result.Counts.Pending)
	require.Len(t, out.Result.Verdicts, 2)
	for _, vd := range out.Result.Verdicts {
		assert.Equal(t, verdict.ReasonPending, vd.Reason, "%s", vd.Kernel)
		assert.False(t, vd.Pass)
	}
}

type memorySource struct {
	samples []*bits.Sequence
	err     error
}

func (m memorySource) Load(context.Context) ([]*bits.Sequence, error) { return m.samples, m.err }
func (m memorySource) Describe() string                               { return "memory" }

func TestAssessDevice(t *testing.T) {
	body := gin.H{"length": 1000, "count": 3, "kernels": []string{"CumulativeSums"}}

	f := newFixture(t, fixtureOpts{})
	w := f.do(t, http.MethodPost, "/v1/device/assessments", body, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var asked [2]int
	f = newFixture(t, fixtureOpts{device: func(length, count int) ports.SampleSource {
		asked = [2]int{length, count}
		seqs, err := testkit.RandomBits(3, length*count).Split("trng", length, count)
		require.NoError(t, err)
		return memorySource{samples: seqs}
	}})
	w = f.do(t, http.MethodPost, "/v1/device/assessments", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, [2]int{1000, 3}, asked)
	assert.Equal(t, run.Counts{Completed: 3}, decode(t, w).Result.Counts)

	w = f.do(t, http.MethodPost, "/v1/device/assessments", gin.H{"length": 0, "count": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f = newFixture(t, fixtureOpts{device: func(int, int) ports.SampleSource {
		return memorySource{err: io.ErrUnexpectedEOF}
	}})
	w = f.do(t, http.MethodPost, "/v1/device/assessments", body, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errors.CodeUnavailable, decode(t, w).Code)
}

func TestAPIKey(t *testing.T) {
	f := newFixture(t, fixtureOpts{apiKey: "s3cret"})

	w := f.do(t, http.MethodGet, "/v1/kernels", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/v1/kernels", nil, map[string]string{"X-API-KEY": "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code, "health stays open")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/assessments", validBody(), nil).Code)

	w := f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gosts_schedules_total 1")
	assert.Contains(t, w.Body.String(), `gosts_runs_started_total{kernel="CumulativeSums"} 2`)
}

func TestSSEHub_SubscribeBroadcast(t *testing.T) {
	hub := NewSSEHub(internal.NewNopLogger())
	events, cancel := hub.Subscribe("x")
	other, cancelOther := hub.Subscribe("y")
	defer cancelOther()
	assert.Equal(t, 1, hub.Clients("x"))

	hub.Broadcast(progressEvent("x", 1, 4))
	ev := <-events
	assert.Equal(t, EventProgress, ev.Type)
	assert.Equal(t, 0.25, ev.Progress)
	assert.False(t, ev.Terminal())
	assert.Empty(t, other)

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
	assert.Equal(t, 0, hub.Clients("x"))
	assert.NotPanics(t, func() { hub.Broadcast(progressEvent("x", 2, 4)) })
}

func TestSSEHub_DropsWhenClientIsFull(t *testing.T) {
	hub := NewSSEHub(internal.NewNopLogger())
	events, cancel := hub.Subscribe("x")
	defer cancel()
	for i := 0; i < 100; i++ {
		hub.Broadcast(progressEvent("x", i, 100))
	}
	assert.Len(t, events, cap(events))
	assert.Equal(t, 0, (<-events).Done)
}

func TestAssessmentEventsStream(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	type streamed struct {
		body string
		err  error
	}
	got := make(chan streamed, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/v1/assessments/job-1/events")
		if err != nil {
			got <- streamed{err: err}
			return
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		got <- streamed{body: string(raw), err: err}
	}()
	require.Eventually(t, func() bool { return f.hub.Clients("job-1") == 1 }, 5*time.Second, 10*time.Millisecond)

	raw, err := json.Marshal(validBody())
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/v1/assessments", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case s := <-got:
		require.NoError(t, s.err)
		assert.Contains(t, s.body, "event:finished")
		assert.Contains(t, s.body, `"assessment_id":"job-1"`)
		assert.Contains(t, s.body, `"passed":`)
	case <-time.After(10 * time.Second):
		t.Fatal("event stream did not finish")
	}
}
