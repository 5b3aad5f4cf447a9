package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gosts/app"
	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/domain/run"
	"gosts/internal"
	"gosts/internal/errors"
	"gosts/ports"
)

// SampleInput carries one bit sequence. Exactly one of Bits and Bytes is
// set. Bytes are unpacked most-significant bit first; Length, when
// positive, truncates them.
type SampleInput struct {
	ID     string `json:"id" binding:"required"`
	Bits   string `json:"bits,omitempty"`
	Bytes  []byte `json:"bytes,omitempty"`
	Length int    `json:"length,omitempty" binding:"gte=0"`
}

// AssessmentBody is the POST /v1/assessments payload. ID is optional and
// lets a client subscribe to progress events before posting.
type AssessmentBody struct {
	ID      string        `json:"id,omitempty"`
	Samples []SampleInput `json:"samples" binding:"required,min=1,dive"`
	app.AssessmentRequest
}

func (s SampleInput) sequence() (*bits.Sequence, error) {
	id, err := core.ParseSampleID(s.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case s.Bits != "" && len(s.Bytes) > 0:
		return nil, fmt.Errorf("sample %s: bits and bytes are mutually exclusive", id)
	case s.Bits != "":
		seq, err := bits.FromASCII(id, s.Bits)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", id, err)
		}
		return seq, nil
	case len(s.Bytes) > 0:
		if s.Length > len(s.Bytes)*8 {
			return nil, fmt.Errorf("sample %s: length %d exceeds %d supplied bits", id, s.Length, len(s.Bytes)*8)
		}
		return bits.FromBytes(id, s.Bytes, s.Length), nil
	}
	return nil, fmt.Errorf("sample %s: no bits supplied", id)
}

// KernelInfo describes one available kernel.
type KernelInfo struct {
	Name          string              `json:"name"`
	MultiThreaded bool                `json:"multi_threaded"`
	Defaults      kernel.ParameterSet `json:"defaults"`
}

// AssessmentHandler serves the assessment endpoints.
type AssessmentHandler struct {
	service *app.AssessmentService
	hub     *SSEHub
	log     *internal.Logger
	timeout time.Duration
	device  DeviceFunc
}

// DeviceFunc returns a source capturing count streams of length bits.
type DeviceFunc func(length, count int) ports.SampleSource

// NewAssessmentHandler creates a new assessment handler. A zero timeout
// leaves requests bounded only by the client connection.
func NewAssessmentHandler(service *app.AssessmentService, hub *SSEHub, log *internal.Logger, timeout time.Duration) *AssessmentHandler {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &AssessmentHandler{service: service, hub: hub, log: log, timeout: timeout}
}

// WithDevice enables POST /v1/device/assessments.
func (h *AssessmentHandler) WithDevice(fn DeviceFunc) *AssessmentHandler {
	h.device = fn
	return h
}

// CreateAssessment runs a schedule synchronously and returns its result.
// Failing verdicts are still a 200; only request and engine problems are
// errors.
func (h *AssessmentHandler) CreateAssessment(c *gin.Context) {
	var body AssessmentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				"code":  errors.CodeInvalidInput,
			})
			return
		}
		h.respondError(c, errors.InvalidInput(err.Error()))
		return
	}

	samples := make([]*bits.Sequence, len(body.Samples))
	for i, in := range body.Samples {
		seq, err := in.sequence()
		if err != nil {
			h.respondError(c, errors.InvalidInput(err.Error()))
			return
		}
		samples[i] = seq
	}

	h.execute(c, body.ID, body.AssessmentRequest, func(context.Context) ([]*bits.Sequence, error) {
		return samples, nil
	})
}

// DeviceBody is the POST /v1/device/assessments payload: capture Count
// streams of Length bits from the configured hardware device and test them.
type DeviceBody struct {
	ID     string `json:"id,omitempty"`
	Length int    `json:"length" binding:"required,gt=0"`
	Count  int    `json:"count" binding:"required,gt=0"`
	app.AssessmentRequest
}

// AssessDevice captures samples from the hardware device and assesses them.
func (h *AssessmentHandler) AssessDevice(c *gin.Context) {
	if h.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no entropy device configured", "code": errors.CodeUnavailable})
		return
	}
	var body DeviceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, errors.InvalidInput(err.Error()))
		return
	}
	src := h.device(body.Length, body.Count)
	h.execute(c, body.ID, body.AssessmentRequest, func(ctx context.Context) ([]*bits.Sequence, error) {
		samples, err := src.Load(ctx)
		if err != nil {
			return nil, errors.SourceUnavailable(src.Describe(), err)
		}
		return samples, nil
	})
}

// execute loads samples, runs the assessment and writes the response while
// broadcasting progress under the assessment id.
func (h *AssessmentHandler) execute(c *gin.Context, id string, req app.AssessmentRequest, load func(context.Context) ([]*bits.Sequence, error)) {
	if id == "" {
		id = core.NewID().String()
	}
	c.Header("X-Assessment-ID", id)

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	ctx = app.WithProgress(ctx, func(done, total int) {
		h.hub.Broadcast(progressEvent(id, done, total))
	})

	res, err := func() (run.Result, error) {
		samples, err := load(ctx)
		if err != nil {
			return run.Result{}, err
		}
		return h.service.Assess(ctx, samples, req)
	}()
	if err != nil {
		h.hub.Broadcast(Event{AssessmentID: id, Type: EventFailed, Error: err.Error()})
		if ctx.Err() != nil {
			err = &errors.AppError{Code: errors.CodeCancelled, Message: "assessment interrupted", Cause: err}
			c.JSON(errors.HTTPStatus(err), gin.H{
				"id":     id,
				"error":  err.Error(),
				"code":   errors.GetCode(err),
				"result": res,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	passed := res.Passed()
	h.hub.Broadcast(Event{
		AssessmentID: id, Type: EventFinished, Passed: &passed,
		Done: res.Counts.Total(), Total: res.Counts.Total(), Progress: 1,
	})
	c.JSON(http.StatusOK, gin.H{"id": id, "passed": passed, "result": res})
}

// ListKernels returns every kernel with its default parameter set.
func (h *AssessmentHandler) ListKernels(c *gin.Context) {
	out := make([]KernelInfo, 0, len(kernel.All()))
	for _, v := range kernel.All() {
		out = append(out, KernelInfo{Name: v.String(), MultiThreaded: v.MultiThreaded(), Defaults: kernel.Defaults(v)})
	}
	c.JSON(http.StatusOK, gin.H{"kernels": out})
}

// Health reports liveness and the engine's pool size.
func (h *AssessmentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "workers": h.service.Scheduler().Workers()})
}

func (h *AssessmentHandler) respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}
