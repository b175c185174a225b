package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docscan-backend/internal/services/health"
	"docscan-backend/internal/shared/config"
	"docscan-backend/internal/shared/metrics"
	"docscan-backend/internal/shared/server/middleware"
	"docscan-backend/internal/shared/server/respond"
)

// RouteRegistrar attaches routes to a /users/:userId group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps collects the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config           config.Config
	Health           *health.Service
	RateLimiter      middleware.Limiter
	DocumentHandler  RouteRegistrar
	QuestionsHandler RouteRegistrar
	SearchHandler    RouteRegistrar
	UploadsHandler   RouteRegistrar
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if !cfg.IsDevLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	respond.SetDebug(cfg.DebugErrors)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/ready", func(c *gin.Context) {
		ok, checks := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, gin.H{"ok": ok, "checks": checks})
	})
	api.GET("/metrics", metrics.Handler())

	authed := api.Group("", middleware.Auth(middleware.AuthConfig{Mode: cfg.AuthMode, Secret: cfg.JWTSecret}))
	registerMeRoutes(authed)

	users := authed.Group("/users/:userId",
		middleware.RequireOwner(),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: middleware.RateGroupRead,
			GroupFor:     rateGroup,
			Limiter:      deps.RateLimiter,
			Rules: map[string]middleware.RateLimitRule{
				middleware.RateGroupUpload: {Rate: cfg.UploadRatePerSec, Burst: cfg.UploadRateBurst},
				middleware.RateGroupRead:   {Rate: cfg.ReadRatePerSec, Burst: cfg.ReadRateBurst},
			},
		}),
	)
	for _, h := range []RouteRegistrar{deps.DocumentHandler, deps.QuestionsHandler, deps.SearchHandler, deps.UploadsHandler} {
		if h != nil {
			h.RegisterRoutes(users)
		}
	}

	return r
}

// rateGroup puts every write that can reach OCR or the LLM in the upload bucket.
func rateGroup(c *gin.Context) string {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead:
		return middleware.RateGroupRead
	default:
		return middleware.RateGroupUpload
	}
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
