package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitegrazer/sitegrazer/browser"
	"github.com/sitegrazer/sitegrazer/models"
)

const version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports browser pool state and degrades status when the open-context
// count approaches the configured ceiling.
func Health(pool *browser.Pool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := pool.Stats()

		status := "healthy"
		if stats.Active && stats.ContextCount > 8 {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status: status,
			Uptime: time.Since(startTime).Round(time.Second).String(),
			Browser: models.BrowserStatus{
				Active:   stats.Active,
				Contexts: stats.ContextCount,
				Launches: stats.Launches,
			},
			Version: version,
		})
	}
}
