package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/ed-intake/internal/handler"
	"github.com/jwalitptl/ed-intake/internal/middleware"
	"github.com/jwalitptl/ed-intake/pkg/logger"
)

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	h        *handler.Handler
	gatherer prometheus.Gatherer
}

type RouterConfig struct {
	RateLimit     rate.Limit
	RateBurst     int
	SizeLimit     middleware.SizeLimitConfig
	MetricsPrefix string
	// Logger receives access and error logs. Nil discards them.
	Logger *logger.Logger
	// Registry receives the HTTP collectors and backs /health/metrics. A nil
	// registry gets a private one.
	Registry *prometheus.Registry
}

func NewRouter(auth *middleware.AuthMiddleware, h *handler.Handler, config RouterConfig) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	reg := config.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	prefix := config.MetricsPrefix
	if prefix == "" {
		prefix = "ed_sandbox"
	}
	if config.SizeLimit.MaxBodySize == 0 {
		config.SizeLimit = middleware.DefaultSizeLimitConfig()
	}

	r := &Router{
		engine:   engine,
		auth:     auth,
		h:        h,
		gatherer: reg,
	}

	engine.Use(
		middleware.RequestID(config.Logger),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.NewHTTPMetrics(reg, prefix).Middleware(),
		middleware.SizeLimit(config.SizeLimit),
	)

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		engine.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: burst,
		}).RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse(http.StatusNotFound, "Recurso no encontrado"))
	})

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api")

	r.setupHealthCheck(api)

	r.h.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.h.RegisterRoutes(protected)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.h.LivenessCheck)
		health.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
