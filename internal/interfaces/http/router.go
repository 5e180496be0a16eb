package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemSight/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil members are skipped.
type RouterConfig struct {
	AnalysisHandler *handlers.AnalysisHandler
	HealthHandler   *handlers.HealthHandler

	CORS        *middleware.CORSConfig
	Logging     *middleware.LoggingConfig
	RateLimiter middleware.RateLimiter
	RateLimit   middleware.RateLimitConfig
	HTTPMetrics middleware.HTTPMetrics

	// MetricsHandler serves /metrics.
	MetricsHandler http.Handler
	// MaxBodySize caps request bodies; zero leaves them unbounded.
	MaxBodySize int64

	Logger logging.Logger
}

// NewRouter builds the gin engine. Global middleware runs in the order
// recovery, request ID, metrics, CORS, logging, rate limit.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log), middleware.RequestID())
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics))
	}
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.Logging != nil {
		r.Use(middleware.RequestLogging(log, *cfg.Logging))
	}
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit))
	}
	if cfg.MaxBodySize > 0 {
		limit := cfg.MaxBodySize
		r.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
			c.Next()
		})
	}

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
		r.GET("/health/detailed", h.Detailed)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	registerAnalysisRoutes(r, cfg.AnalysisHandler)
	return r
}

func registerAnalysisRoutes(r *gin.Engine, h *handlers.AnalysisHandler) {
	if h == nil {
		return
	}
	api := r.Group("/api")
	api.GET("/hello", h.Hello)
	api.POST("/llm", h.LLM)

	v1 := api.Group("/v1")
	v1.GET("/analyze", h.Analyze)
	v1.GET("/results", h.Analyze)
	v1.POST("/analyze/smiles", h.AnalyzeSMILES)
	v1.POST("/measure", h.Measure)
	v1.POST("/smiles/validate", h.ValidateSMILES)
	v1.GET("/compounds/search", h.Search)
	v1.GET("/compounds/similar", h.Similar)
}
