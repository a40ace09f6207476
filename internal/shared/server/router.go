package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/services/health"
	"vitaeforge/internal/shared/config"
	"vitaeforge/internal/shared/metrics"
	"vitaeforge/internal/shared/server/middleware"
	"vitaeforge/internal/shared/server/respond"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps are the dependencies of the HTTP router.
type RouterDeps struct {
	Config   config.Config
	Health   *health.Service
	Metrics  *metrics.Metrics
	Verifier middleware.TokenVerifier
	Revoked  middleware.RevocationChecker
	Limiter  *middleware.RateLimiter
	Handlers []RouteRegistrar
}

const (
	rateGroupDefault = "DEFAULT"
	rateGroupRefine  = "REFINE"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		deps.Metrics.Middleware(),
		middleware.Auth(middleware.AuthConfig{
			Env:      deps.Config.Env,
			Verifier: deps.Verifier,
			Revoked:  deps.Revoked,
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Limiter:      deps.Limiter,
			Rules: map[string]middleware.RateLimitRule{
				rateGroupDefault: {Rate: 20, Burst: 60},
				rateGroupRefine:  {Rate: 0.2, Burst: 5},
			},
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	api.GET("/metrics", deps.Metrics.Handler())
	api.GET("/legal", legal)

	for _, h := range deps.Handlers {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}

	return r
}

// AI calls are the expensive routes.
func rateGroupFor(c *gin.Context) string {
	if strings.HasSuffix(c.FullPath(), "/refine") {
		return rateGroupRefine
	}
	return rateGroupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
