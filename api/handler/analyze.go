package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/strategy"
)

// AnalyzeRequest asks for framework detection without a full scrape.
type AnalyzeRequest struct {
	URL string `json:"url" binding:"required"`
}

// Analyze returns a handler for POST /api/v1/analyze. It fetches a
// preview of the page and runs framework and rendering detection only.
func Analyze(det *detector.Detector) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		scrapeReq := &models.ScrapeRequest{URLs: []string{req.URL}}
		scrapeReq.Defaults()

		html, headers := strategy.NewStatic(scrapeReq, det).FetchPreview(c.Request.Context(), req.URL)
		if html == "" {
			c.JSON(http.StatusBadGateway, models.AnalyzeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeNavigation,
					Message: "could not fetch a page preview",
				},
			})
			return
		}

		c.JSON(http.StatusOK, models.AnalyzeResponse{
			Success:  true,
			Analysis: det.Analyze(req.URL, html, headers),
		})
	}
}
