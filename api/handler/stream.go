package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitegrazer/sitegrazer/engine"
	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/progress"
)

// ScrapeStream returns a handler for POST /api/v1/scrape/stream. Progress
// events are delivered incrementally as server-sent events; the terminal
// event carries the final metrics and is followed by a "results" event
// with the full result set.
func ScrapeStream(eng *engine.Engine) gin.HandlerFunc {
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

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		sink := progress.NewChannelSink(64)

		type outcome struct {
			results []*models.ScrapingResult
			metrics *models.ScrapingMetrics
			err     error
		}
		done := make(chan outcome, 1)
		go func() {
			results, metrics, err := eng.Scrape(c.Request.Context(), &req.ScrapeRequest, sink)
			done <- outcome{results, metrics, err}
			close(sink.C)
		}()

		for event := range sink.C {
			writeSSE(c, string(event.Phase), event)
			if event.Terminal() {
				break
			}
		}
		// Drain any events queued behind the terminal one.
		for range sink.C {
		}

		out := <-done
		if out.err == nil {
			writeSSE(c, "results", models.ScrapeResponse{
				Success:   true,
				JobID:     req.ID,
				Results:   out.results,
				Metrics:   out.metrics,
				Cancelled: c.Request.Context().Err() != nil,
			})
		}
	}
}

func writeSSE(c *gin.Context, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	c.Writer.Flush()
}
