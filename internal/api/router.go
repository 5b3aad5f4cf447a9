package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gosts/internal"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	// APIKey, when set, must be sent in the X-API-KEY header on /v1 routes.
	APIKey       string
	MaxBodyBytes int64
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *internal.Logger
}

// NewRouter wires the handlers onto a gin engine.
func NewRouter(h *AssessmentHandler, hub *SSEHub, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = internal.DefaultLogger
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	router.GET("/healthz", h.Health)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1", CheckHeader("X-API-KEY", cfg.APIKey))
	v1.GET("/kernels", h.ListKernels)
	v1.POST("/assessments", LimitBody(cfg.MaxBodyBytes), h.CreateAssessment)
	v1.POST("/device/assessments", LimitBody(cfg.MaxBodyBytes), h.AssessDevice)
	v1.GET("/assessments/:id/events", hub.HandleSSE)

	return router
}

// CheckHeader rejects requests whose header does not carry the expected
// value. An empty expected value disables the check.
func CheckHeader(headerName, expectedValue string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expectedValue == "" {
			c.Next()
			return
		}
		if c.GetHeader(headerName) != expectedValue {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// LimitBody caps the request body at n bytes; n <= 0 means no cap.
func LimitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger(log *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Sugar().Debugw("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
