// Package progress implements the phased event stream a scrape job emits.
// Events are fire-and-forget: a slow or failing sink never stalls the
// scrape loop.
package progress

import (
	"math"
	"time"

	"github.com/sitegrazer/sitegrazer/models"
)

// Phase identifies the stage of a scrape job an event belongs to.
type Phase string

const (
	PhaseDiscovery      Phase = "discovery"
	PhaseInitialization Phase = "initialization"
	PhaseScraping       Phase = "scraping"
	PhaseComplete       Phase = "complete"
	PhaseError          Phase = "error"
	PhaseCancelled      Phase = "cancelled"
)

// Event types within phases.
const (
	TypeDiscoveryStarted   = "discovery.started"
	TypeDiscoveryCompleted = "discovery.completed"
	TypeBrowserReady       = "browser.ready"
	TypePageStarted        = "page.started"
	TypePageCompleted      = "page.completed"
	TypePageFailed         = "page.failed"
	TypeJobCompleted       = "job.completed"
	TypeJobFailed          = "job.failed"
	TypeJobCancelled       = "job.cancelled"
)

// Event is one unit of the streaming protocol.
type Event struct {
	JobID      string         `json:"job_id"`
	Phase      Phase          `json:"phase"`
	Type       string         `json:"type"`
	Current    int            `json:"current"`
	Total      int            `json:"total"`
	Percentage float64        `json:"percentage"`
	Message    string         `json:"message"`
	Strategy   string         `json:"strategy,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`

	// Metrics is set only on terminal events.
	Metrics *models.ScrapingMetrics `json:"metrics,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Terminal reports whether the event ends the stream.
func (e *Event) Terminal() bool {
	switch e.Phase {
	case PhaseComplete, PhaseError, PhaseCancelled:
		return true
	}
	return false
}

// percentage computes current/total as 0-100, rounded to the nearest
// whole percent, guarding the zero total.
func percentage(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := math.Round(float64(current) / float64(total) * 100)
	if pct > 100 {
		pct = 100
	}
	return pct
}
