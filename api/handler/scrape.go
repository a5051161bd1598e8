package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitegrazer/sitegrazer/cache"
	"github.com/sitegrazer/sitegrazer/engine"
	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/progress"
)

// ScrapeRequest is the API wrapper around the engine request, adding
// delivery options that don't belong in the core model.
type ScrapeRequest struct {
	models.ScrapeRequest

	// WebhookURL receives progress events as signed POSTs when set.
	WebhookURL    string `json:"webhook_url,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// NoCache bypasses the result cache for this request.
	NoCache bool `json:"no_cache,omitempty"`
}

// Scrape returns a handler for POST /api/v1/scrape. The job runs
// synchronously; progress goes to the log and, when configured, the
// caller's webhook. For incremental delivery use the stream endpoint.
func Scrape(eng *engine.Engine, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		var cacheKey string
		if cc != nil && !req.NoCache {
			cacheKey = cache.Key(&req.ScrapeRequest)
			if cached, hit := cc.Get(cacheKey); hit {
				cached.Cached = true
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		sink := progress.Sink(progress.SlogSink{})
		if req.WebhookURL != "" {
			sink = progress.MultiSink{
				progress.SlogSink{},
				progress.NewWebhookSink(req.WebhookURL, req.WebhookSecret),
			}
		}

		results, metrics, err := eng.Scrape(c.Request.Context(), &req.ScrapeRequest, sink)
		if err != nil {
			respondError(c, err)
			return
		}

		resp := &models.ScrapeResponse{
			Success:   true,
			JobID:     req.ID,
			Results:   results,
			Metrics:   metrics,
			Cancelled: c.Request.Context().Err() != nil,
		}
		if cc != nil && cacheKey != "" && !resp.Cancelled {
			cc.Set(cacheKey, resp)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps error codes onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	detail := &models.ErrorDetail{
		Code:    models.ErrCodeInternal,
		Message: err.Error(),
	}

	var serr *models.ScrapeError
	if errors.As(err, &serr) {
		detail = serr.ToDetail()
		switch serr.Code {
		case models.ErrCodeInvalidInput, models.ErrCodeNoURLs:
			status = http.StatusBadRequest
		case models.ErrCodeTimeout:
			status = http.StatusGatewayTimeout
		case models.ErrCodeBrowserCrash:
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, models.ScrapeResponse{Success: false, Error: detail})
}
