package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/progress"
)

type stubScraper struct {
	delay    time.Duration
	failURLs map[string]bool
	crashAll bool
	calls    atomic.Int32
}

func (s *stubScraper) ScrapeOne(ctx context.Context, url string) *models.ScrapingResult {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return &models.ScrapingResult{URL: url, Strategy: models.StrategyStatic, Error: "SCRAPE_CANCELLED: cancelled"}
		}
	}
	r := &models.ScrapingResult{
		URL:      url,
		FinalURL: url,
		Strategy: models.StrategyStatic,
		DOMSize:  1024,
	}
	if s.crashAll {
		r.Error = models.ErrCodeBrowserCrash + ": connection to browser lost"
	} else if s.failURLs[url] {
		r.Error = "NAVIGATION_FAILED: simulated"
	}
	return r
}

type collectingSink struct {
	mu     sync.Mutex
	events []*progress.Event
}

func (c *collectingSink) Deliver(_ context.Context, e *progress.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collectingSink) terminal() *progress.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Terminal() {
			return e
		}
	}
	return nil
}

func newTestEngine(stub *stubScraper) *Engine {
	return New(nil, nil, nil, WithScraperFactory(func(req *models.ScrapeRequest) URLScraper {
		return stub
	}))
}

func urlList(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/page-%d", i)
	}
	return urls
}

func newTestRequest(urls []string) *models.ScrapeRequest {
	return &models.ScrapeRequest{
		URLs:         urls,
		MaxPages:     len(urls),
		Strategy:     models.StrategyStatic,
		RequestDelay: time.Millisecond,
	}
}

func TestScrapeCountsMatchResults(t *testing.T) {
	urls := urlList(6)
	stub := &stubScraper{failURLs: map[string]bool{urls[1]: true, urls[4]: true}}
	sink := &collectingSink{}

	results, metrics, err := newTestEngine(stub).Scrape(context.Background(), newTestRequest(urls), sink)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if metrics.PagesScraped != 4 || metrics.PagesFailed != 2 {
		t.Errorf("expected 4 scraped + 2 failed, got %d + %d",
			metrics.PagesScraped, metrics.PagesFailed)
	}
	if metrics.PagesScraped+metrics.PagesFailed != len(results) {
		t.Error("scraped + failed must equal result count")
	}

	term := sink.terminal()
	if term == nil || term.Phase != progress.PhaseComplete {
		t.Fatal("expected a complete terminal event")
	}
	if term.Metrics == nil || term.Metrics.PagesScraped != 4 {
		t.Error("terminal event should carry final metrics")
	}
}

func TestScrapePartialFailureIsNotFatal(t *testing.T) {
	urls := urlList(3)
	stub := &stubScraper{failURLs: map[string]bool{urls[0]: true, urls[1]: true, urls[2]: true}}

	results, metrics, err := newTestEngine(stub).Scrape(context.Background(), newTestRequest(urls), nil)
	if err != nil {
		t.Fatalf("all-pages-failed should still not be fatal, got %v", err)
	}
	if len(results) != 3 || metrics.PagesFailed != 3 {
		t.Errorf("expected 3 failed results, got %d results / %d failed",
			len(results), metrics.PagesFailed)
	}
}

func TestScrapeRepeatedBrowserCrashesAreFatal(t *testing.T) {
	urls := urlList(5)
	stub := &stubScraper{crashAll: true}
	sink := &collectingSink{}

	results, metrics, err := newTestEngine(stub).Scrape(context.Background(), newTestRequest(urls), sink)
	if err == nil {
		t.Fatal("repeated browser crashes must be fatal for the job")
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeBrowserCrash {
		t.Fatalf("error = %v, want code %s", err, models.ErrCodeBrowserCrash)
	}

	// Sequential by default, so exactly two crashes trip the abort.
	if len(results) != 2 {
		t.Errorf("expected 2 attempted pages before the abort, got %d", len(results))
	}
	if metrics.PagesScraped != 0 || metrics.PagesFailed != len(results) {
		t.Errorf("expected only failed pages, got %d scraped / %d failed",
			metrics.PagesScraped, metrics.PagesFailed)
	}

	term := sink.terminal()
	if term == nil || term.Phase != progress.PhaseError {
		t.Fatalf("expected an error terminal event, got %+v", term)
	}
}

func TestScrapeCancellation(t *testing.T) {
	urls := urlList(10)
	stub := &stubScraper{delay: 30 * time.Millisecond}
	sink := &collectingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Let roughly two pages finish, then cancel.
		time.Sleep(80 * time.Millisecond)
		cancel()
	}()

	req := newTestRequest(urls)
	results, metrics, err := newTestEngine(stub).Scrape(ctx, req, sink)
	if err != nil {
		t.Fatalf("cancellation must not be a fatal error, got %v", err)
	}

	attempted := metrics.PagesScraped + metrics.PagesFailed
	if attempted >= len(urls) {
		t.Errorf("cancellation should stop the loop early, attempted %d", attempted)
	}
	if attempted != len(results) {
		t.Errorf("results (%d) must match attempted count (%d)", len(results), attempted)
	}

	term := sink.terminal()
	if term == nil || term.Phase != progress.PhaseCancelled {
		t.Fatal("expected a cancelled terminal event")
	}
}

func TestScrapeEmptyURLListIsFatal(t *testing.T) {
	stub := &stubScraper{}
	sink := &collectingSink{}

	req := &models.ScrapeRequest{Domain: "", Strategy: models.StrategyStatic}
	_, _, err := newTestEngine(stub).Scrape(context.Background(), req, sink)
	if err == nil {
		t.Fatal("a request with neither domain nor URLs must fail")
	}
	term := sink.terminal()
	if term == nil || term.Phase != progress.PhaseError {
		t.Error("fatal input error should still emit a terminal error event")
	}
}

func TestScrapeRespectsMaxPages(t *testing.T) {
	urls := urlList(8)
	stub := &stubScraper{}

	req := newTestRequest(urls)
	req.MaxPages = 3

	results, _, err := newTestEngine(stub).Scrape(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected MaxPages to cap attempts at 3, got %d", len(results))
	}
}

func TestScrapeConcurrentWorkers(t *testing.T) {
	urls := urlList(6)
	stub := &stubScraper{delay: 10 * time.Millisecond}

	req := newTestRequest(urls)
	req.Concurrency = 3

	results, metrics, err := newTestEngine(stub).Scrape(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 6 || metrics.PagesScraped != 6 {
		t.Errorf("concurrent run should scrape all pages, got %d results", len(results))
	}
	if got := stub.calls.Load(); got != 6 {
		t.Errorf("each URL should be scraped exactly once, got %d calls", got)
	}
}
