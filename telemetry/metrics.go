// Package telemetry holds the Prometheus collectors and timing helpers
// shared across the engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesScraped counts successfully scraped pages by strategy.
	PagesScraped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitegrazer",
		Name:      "pages_scraped_total",
		Help:      "Pages scraped successfully, labelled by strategy.",
	}, []string{"strategy"})

	// PagesFailed counts failed pages by strategy.
	PagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitegrazer",
		Name:      "pages_failed_total",
		Help:      "Pages that produced an error result, labelled by strategy.",
	}, []string{"strategy"})

	// PageDuration observes per-page scrape time by strategy.
	PageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sitegrazer",
		Name:      "page_duration_seconds",
		Help:      "Per-page scrape duration, labelled by strategy.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"strategy"})

	// BrowserLaunches counts headless-browser process launches.
	BrowserLaunches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitegrazer",
		Name:      "browser_launches_total",
		Help:      "Headless browser launches performed by the pool.",
	})

	// ProgressEventsDropped counts progress events discarded because the
	// streamer buffer was full or the sink failed.
	ProgressEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitegrazer",
		Name:      "progress_events_dropped_total",
		Help:      "Progress events dropped instead of blocking the scrape loop.",
	})

	// ScrapeJobs counts whole scrape jobs by terminal state.
	ScrapeJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitegrazer",
		Name:      "scrape_jobs_total",
		Help:      "Scrape jobs by terminal state (complete, error, cancelled).",
	}, []string{"state"})
)
