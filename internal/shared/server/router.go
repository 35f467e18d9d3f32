package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autoapply-backend/internal/autoapply"
	"autoapply-backend/internal/shared/config"
	"autoapply-backend/internal/shared/metrics"
	"autoapply-backend/internal/shared/server/middleware"
)

const triggerRateLimitGroup = "TRIGGER"

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, svc *autoapply.Service) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	registerHealthRoutes(r, svc)
	r.GET("/metrics", metrics.Handler())

	// Each manual trigger walks every listing page and submits applications,
	// so it is throttled well below the read routes.
	limiter := middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			triggerRateLimitGroup: {Rate: 1.0 / 60.0, Burst: 2},
		},
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/api/jobs/apply" {
				return triggerRateLimitGroup
			}
			return ""
		},
	})

	api := r.Group("/api")
	autoapply.NewHandler(svc, cfg.Apply.Filtered).RegisterRoutes(api,
		middleware.AdminToken(cfg.AdminToken),
		limiter,
	)

	return r
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

// NewHTTPServer wraps the router with timeouts. WriteTimeout stays unset
// because a manual apply run holds its response open until it finishes.
func NewHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              Addr(cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
