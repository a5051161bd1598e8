package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sitegrazer/sitegrazer/api/handler"
	"github.com/sitegrazer/sitegrazer/api/middleware"
	"github.com/sitegrazer/sitegrazer/browser"
	"github.com/sitegrazer/sitegrazer/cache"
	"github.com/sitegrazer/sitegrazer/config"
	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/engine"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics are intentionally outside auth so monitoring probes
// always work.
func NewRouter(eng *engine.Engine, pool *browser.Pool, det *detector.Detector, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(pool, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(eng, cc))
	protected.POST("/scrape/stream", handler.ScrapeStream(eng))
	protected.POST("/analyze", handler.Analyze(det))

	return r
}
