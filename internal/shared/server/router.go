package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"atsense-api/internal/analyses"
	googleauth "atsense-api/internal/auth"
	"atsense-api/internal/shared/config"
	"atsense-api/internal/shared/metrics"
	"atsense-api/internal/shared/server/middleware"
	"atsense-api/internal/shared/server/respond"
)

// Rate limit groups.
const (
	GroupAnalyze = "ANALYZE"
	GroupDefault = "DEFAULT"
)

// RouterDeps bundles the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	GoogleAuth      *googleauth.GoogleService
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Deadline(cfg.RequestTimeout),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(
		middleware.Auth(cfg.AllowGuests),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rateLimitRules(cfg),
			DefaultGroup: GroupDefault,
			GroupFor:     rateLimitGroup,
			Limiter:      deps.RateLimiter,
		}),
	)
	registerMeRoutes(protected)
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(protected)
	}

	return r
}

// Only analyze runs against the provider quota; reads are unmetered.
func rateLimitRules(cfg config.Config) map[string]middleware.RateLimitRule {
	if cfg.RateLimitMaxRequests <= 0 {
		return nil
	}
	return map[string]middleware.RateLimitRule{
		GroupAnalyze: {Limit: cfg.RateLimitMaxRequests, Window: cfg.RateLimitWindow},
	}
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/analyze" {
		return GroupAnalyze
	}
	return GroupDefault
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
