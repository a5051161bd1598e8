package models

// ScrapeResponse is the API envelope for a scrape job.
type ScrapeResponse struct {
	Success   bool              `json:"success"`
	JobID     string            `json:"job_id,omitempty"`
	Results   []*ScrapingResult `json:"results,omitempty"`
	Metrics   *ScrapingMetrics  `json:"metrics,omitempty"`
	Cancelled bool              `json:"cancelled,omitempty"`

	// Cached marks a response served from the result cache.
	Cached bool `json:"cached,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}

// AnalyzeResponse is the API envelope for detection-only requests.
type AnalyzeResponse struct {
	Success  bool         `json:"success"`
	Analysis any          `json:"analysis,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// BrowserStatus mirrors the pool's stats for the health endpoint.
type BrowserStatus struct {
	Active   bool  `json:"active"`
	Contexts int   `json:"contexts"`
	Launches int64 `json:"launches"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Browser BrowserStatus `json:"browser"`
	Version string        `json:"version"`
}
