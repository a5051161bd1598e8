// Package engine orchestrates a scrape job end to end: URL discovery,
// browser warm-up, the bounded scraping loop, and the progress stream.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sitegrazer/sitegrazer/browser"
	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/progress"
	"github.com/sitegrazer/sitegrazer/strategy"
	"github.com/sitegrazer/sitegrazer/telemetry"
)

// URLScraper resolves and executes the strategy for single URLs.
// strategy.Manager satisfies it; tests substitute a stub.
type URLScraper interface {
	ScrapeOne(ctx context.Context, url string) *models.ScrapingResult
}

// Engine runs scrape jobs against a shared browser pool. Safe for
// concurrent use; each job gets its own strategy manager while the pool
// and domain memory are shared.
type Engine struct {
	pool       *browser.Pool
	det        *detector.Detector
	memory     *strategy.Memory
	newScraper func(req *models.ScrapeRequest) URLScraper
}

// Option customizes an Engine.
type Option func(*Engine)

// WithScraperFactory overrides how the per-job URL scraper is built.
func WithScraperFactory(f func(req *models.ScrapeRequest) URLScraper) Option {
	return func(e *Engine) { e.newScraper = f }
}

func New(pool *browser.Pool, det *detector.Detector, memory *strategy.Memory, opts ...Option) *Engine {
	e := &Engine{pool: pool, det: det, memory: memory}
	e.newScraper = func(req *models.ScrapeRequest) URLScraper {
		return strategy.NewDefaultManager(req, e.det, e.pool, e.memory)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scrape executes one job. It returns all per-URL results (successes and
// failures both), the job metrics, and a fatal error when the job could
// not run at all. Partial failure is not fatal: pages that errored are
// counted in the metrics and carried as failed results. Repeated browser
// crashes are fatal: the remaining pages are skipped and the job returns
// a BROWSER_CRASH error alongside the results gathered so far.
//
// Exactly one terminal progress event is emitted before return, on every
// path. sink may be nil.
func (e *Engine) Scrape(ctx context.Context, req *models.ScrapeRequest, sink progress.Sink) ([]*models.ScrapingResult, *models.ScrapingMetrics, error) {
	req.Defaults()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	metrics := &models.ScrapingMetrics{StartedAt: time.Now()}
	streamer := progress.NewStreamer(req.ID, sink, 0)
	defer streamer.Close()

	fatal := func(err error) ([]*models.ScrapingResult, *models.ScrapingMetrics, error) {
		finishMetrics(metrics)
		telemetry.ScrapeJobs.WithLabelValues("error").Inc()
		streamer.Fail(metrics, err.Error())
		return nil, metrics, err
	}

	if err := req.Validate(); err != nil {
		return fatal(err)
	}

	urls, err := e.discover(ctx, req, streamer)
	if err != nil {
		return fatal(err)
	}

	if err := e.warmBrowser(ctx, req, streamer); err != nil {
		return fatal(err)
	}

	results, aborted := e.scrapeAll(ctx, req, urls, streamer, metrics)
	finishMetrics(metrics)

	if ctx.Err() != nil {
		telemetry.ScrapeJobs.WithLabelValues("cancelled").Inc()
		streamer.Cancel(metrics, fmt.Sprintf("cancelled after %d of %d pages",
			metrics.PagesScraped+metrics.PagesFailed, len(urls)))
		return results, metrics, nil
	}

	if aborted {
		abortErr := models.NewScrapeError(models.ErrCodeBrowserCrash,
			fmt.Sprintf("aborted after repeated browser crashes, %d of %d pages attempted",
				metrics.PagesScraped+metrics.PagesFailed, len(urls)), nil)
		telemetry.ScrapeJobs.WithLabelValues("error").Inc()
		streamer.Fail(metrics, abortErr.Error())
		return results, metrics, abortErr
	}

	telemetry.ScrapeJobs.WithLabelValues("complete").Inc()
	streamer.Complete(metrics, fmt.Sprintf("scraped %d pages, %d failed",
		metrics.PagesScraped, metrics.PagesFailed))
	return results, metrics, nil
}

// discover resolves the URL list, either from the request or by crawling
// the domain.
func (e *Engine) discover(ctx context.Context, req *models.ScrapeRequest, streamer *progress.Streamer) ([]string, error) {
	streamer.Send(&progress.Event{
		Phase:   progress.PhaseDiscovery,
		Type:    progress.TypeDiscoveryStarted,
		Message: "discovering pages",
	})

	var urls []string
	if len(req.URLs) > 0 {
		urls = req.URLs
		if len(urls) > req.MaxPages {
			urls = urls[:req.MaxPages]
		}
	} else {
		crawled, err := crawlDomain(ctx, req)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeNoURLs, "domain crawl failed", err)
		}
		urls = crawled
	}
	if len(urls) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeNoURLs, "no pages discovered", nil)
	}

	streamer.Send(&progress.Event{
		Phase:      progress.PhaseDiscovery,
		Type:       progress.TypeDiscoveryCompleted,
		Current:    len(urls),
		Total:      len(urls),
		Percentage: 100,
		Message:    fmt.Sprintf("discovered %d pages", len(urls)),
	})
	return urls, nil
}

// warmBrowser launches the shared browser up front so the first page does
// not pay the launch cost. One relaunch is attempted on failure; a second
// failure is fatal for the job. Skipped when the job is forced static.
func (e *Engine) warmBrowser(ctx context.Context, req *models.ScrapeRequest, streamer *progress.Streamer) error {
	if req.Strategy == models.StrategyStatic || e.pool == nil {
		return nil
	}

	_, err := e.pool.Acquire(ctx)
	if err != nil {
		slog.Warn("browser warm-up failed, retrying after cleanup", "error", err)
		e.pool.Cleanup()
		if _, err = e.pool.Acquire(ctx); err != nil {
			return models.NewScrapeError(models.ErrCodeBrowserCrash, "browser launch failed twice", err)
		}
	}

	streamer.Send(&progress.Event{
		Phase:   progress.PhaseInitialization,
		Type:    progress.TypeBrowserReady,
		Message: "browser ready",
	})
	return nil
}

// scrapeAll runs the bounded worker loop over the URL list. Workers share
// one rate limiter per job, so the politeness delay holds across them.
// aborted reports that repeated browser crashes stopped the loop before
// the URL list was exhausted.
func (e *Engine) scrapeAll(ctx context.Context, req *models.ScrapeRequest, urls []string, streamer *progress.Streamer, metrics *models.ScrapingMetrics) (results []*models.ScrapingResult, aborted bool) {
	manager := e.newScraper(req)
	limiter := rate.NewLimiter(rate.Every(req.RequestDelay), 1)

	var (
		mu        sync.Mutex
		completed int
		crashes   int
	)

	jobs := make(chan string)
	// abort unblocks the dispatch loop when workers give up, so a crashed
	// browser can never leave the dispatcher stuck on an unreceived send.
	abort := make(chan struct{})
	var abortOnce sync.Once
	var wg sync.WaitGroup

	for i := 0; i < req.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				randomPause(ctx, req.RandomDelayRange)
				if ctx.Err() != nil {
					return
				}

				streamer.Progress(progress.TypePageStarted, currentCount(&mu, &completed), len(urls),
					fmt.Sprintf("scraping %s", url), "")

				watch := telemetry.NewStopwatch()
				result := manager.ScrapeOne(ctx, url)
				watch.ObservePage(result.Strategy)

				mu.Lock()
				results = append(results, result)
				completed++
				done := completed
				if result.Failed() {
					metrics.PagesFailed++
					if isBrowserCrash(result.Error) {
						crashes++
						if crashes == 1 && e.pool != nil {
							slog.Warn("browser infrastructure failure, relaunching", "url", url)
							e.pool.Cleanup()
						}
					}
				} else {
					metrics.PagesScraped++
					metrics.BytesScraped += int64(result.DOMSize)
				}
				metrics.NetworkRequests++
				giveUp := crashes > 1
				mu.Unlock()

				if result.Failed() {
					telemetry.PagesFailed.WithLabelValues(orUnknown(result.Strategy)).Inc()
					streamer.Progress(progress.TypePageFailed, done, len(urls),
						fmt.Sprintf("failed %s: %s", url, result.Error), result.Strategy)
				} else {
					telemetry.PagesScraped.WithLabelValues(result.Strategy).Inc()
					streamer.Progress(progress.TypePageCompleted, done, len(urls),
						fmt.Sprintf("scraped %s", url), result.Strategy)
				}

				if giveUp {
					slog.Error("repeated browser failures, aborting remaining pages")
					abortOnce.Do(func() { close(abort) })
					return
				}
			}
		}()
	}

dispatch:
	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- url:
		case <-ctx.Done():
			break dispatch
		case <-abort:
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case <-abort:
		aborted = true
	default:
	}
	return results, aborted
}

func currentCount(mu *sync.Mutex, completed *int) int {
	mu.Lock()
	defer mu.Unlock()
	return *completed
}

func isBrowserCrash(errText string) bool {
	return strings.Contains(errText, models.ErrCodeBrowserCrash)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func randomPause(ctx context.Context, window time.Duration) {
	if window <= 0 {
		return
	}
	d := time.Duration(rand.Int63n(int64(window)))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func finishMetrics(m *models.ScrapingMetrics) {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
}
