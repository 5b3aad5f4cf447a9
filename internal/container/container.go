package container

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"gosts/adapters/kernels"
	"gosts/adapters/metrics"
	"gosts/adapters/source"
	"gosts/app"
	"gosts/internal"
	"gosts/internal/api"
	"gosts/internal/config"
	"gosts/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Engine
	Registry    ports.KernelRegistry
	Metrics     *metrics.Recorder
	Scheduler   *app.Scheduler
	Assessments *app.AssessmentService

	// HTTP surface
	SSEHub  *api.SSEHub
	Handler *api.AssessmentHandler

	gatherer prometheus.Gatherer
}

// Options overrides infrastructure the container would otherwise create.
type Options struct {
	Logger      *internal.Logger
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
	Kernels     ports.KernelRegistry
	CodeVersion string
}

// New creates a new dependency injection container
func New(cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{Config: cfg, Logger: opts.Logger, Registry: opts.Kernels}
	if c.Logger == nil {
		c.Logger = internal.DefaultLogger
	}
	if c.Registry == nil {
		c.Registry = kernels.Registry{}
	}
	reg, gatherer := opts.Registerer, opts.Gatherer
	if reg == nil {
		reg, gatherer = prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	}
	c.gatherer = gatherer

	if err := c.initEngine(reg, opts.CodeVersion); err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	c.initAPI()

	c.Logger.Info("container initialized: %d workers, alpha %g", c.Scheduler.Workers(), cfg.Engine.Alpha)
	return c, nil
}

func (c *Container) initEngine(reg prometheus.Registerer, codeVersion string) error {
	c.Metrics = metrics.NewRecorder(reg)

	sched, err := app.NewScheduler(c.Registry, app.SchedulerConfig{
		Workers:           c.Config.Engine.Workers,
		ScratchLimitBytes: c.Config.Engine.ScratchLimitBytes,
		Verdict:           c.Config.Engine.Verdict(),
		CodeVersion:       codeVersion,
		Metrics:           c.Metrics,
		Logger:            c.Logger,
	})
	if err != nil {
		return err
	}
	c.Scheduler = sched
	c.Assessments = app.NewAssessmentService(sched)
	return nil
}

func (c *Container) initAPI() {
	c.SSEHub = api.NewSSEHub(c.Logger)
	c.Handler = api.NewAssessmentHandler(c.Assessments, c.SSEHub, c.Logger, c.Config.Server.RunTimeout)

	if serial := c.Config.Serial; serial.Device != "" {
		c.Handler.WithDevice(func(length, count int) ports.SampleSource {
			return source.NewSerialSource(config.SampleConfig{
				Device:      serial.Device,
				Baud:        serial.Baud,
				ReadTimeout: serial.ReadTimeout,
				Length:      length,
				Count:       count,
			})
		})
		c.Logger.Info("entropy device %s enabled at %d baud", serial.Device, serial.Baud)
	}
}

// Router builds the HTTP router over the container's handlers.
func (c *Container) Router() *gin.Engine {
	return api.NewRouter(c.Handler, c.SSEHub, api.RouterConfig{
		APIKey:       c.Config.Server.APIKey,
		MaxBodyBytes: c.Config.Server.MaxBodyBytes,
		Gatherer:     c.gatherer,
		Logger:       c.Logger,
	})
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- c.Logger.Sync() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("logger sync timed out")
	}
}
