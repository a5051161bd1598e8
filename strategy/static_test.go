package strategy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/models"
)

const staticFixture = `<!DOCTYPE html>
<html><head><title>Fixture Page</title>
<meta name="description" content="A plain server-rendered page.">
</head><body>
<main><p>This paragraph is long enough to count as real page content for the extractor,
describing nothing in particular at considerable length so the main-content
selector threshold is comfortably cleared.</p></main>
<a href="/about">About</a>
</body></html>`

func newStaticForTest(t *testing.T, mutate func(*models.ScrapeRequest)) *Static {
	t.Helper()
	req := &models.ScrapeRequest{Domain: "example.com"}
	req.Defaults()
	if mutate != nil {
		mutate(req)
	}
	return NewStatic(req, detector.New(detector.Config{}))
}

func TestStaticExecuteNoRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, staticFixture)
	}))
	defer srv.Close()

	s := newStaticForTest(t, nil)
	result := s.Execute(context.Background(), srv.URL+"/")

	if result.Failed() {
		t.Fatalf("unexpected failure: %s", result.Error)
	}
	if result.RedirectCount != 0 {
		t.Errorf("expected 0 redirects, got %d", result.RedirectCount)
	}
	if result.FinalURL != srv.URL+"/" {
		t.Errorf("final URL should equal original, got %s", result.FinalURL)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", result.StatusCode)
	}
	if result.Content == nil || result.Content.Title != "Fixture Page" {
		t.Error("content extraction should run on the fetched body")
	}
	if result.Strategy != models.StrategyStatic {
		t.Errorf("strategy name not recorded, got %q", result.Strategy)
	}
}

func TestStaticFollowsRedirectChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/c", http.StatusFound)
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, staticFixture)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newStaticForTest(t, nil)
	result := s.Execute(context.Background(), srv.URL+"/a")

	if result.Failed() {
		t.Fatalf("unexpected failure: %s", result.Error)
	}
	if result.RedirectCount != 3 {
		t.Errorf("expected 3 redirects, got %d", result.RedirectCount)
	}
	if result.FinalURL != srv.URL+"/final" {
		t.Errorf("expected final URL %s/final, got %s", srv.URL, result.FinalURL)
	}
}

func TestStaticRedirectLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newStaticForTest(t, func(req *models.ScrapeRequest) {
		req.MaxRedirects = 2
		req.Retry.MaxRetries = 0
	})
	result := s.Execute(context.Background(), srv.URL+"/")

	if !result.Failed() {
		t.Fatal("exceeding the redirect limit should fail the page")
	}
}

func TestStaticRetriesRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, staticFixture)
	}))
	defer srv.Close()

	s := newStaticForTest(t, func(req *models.ScrapeRequest) {
		req.Retry.RetryDelay = 10 * time.Millisecond
	})
	result := s.Execute(context.Background(), srv.URL+"/")

	if result.Failed() {
		t.Fatalf("expected success after retries, got: %s", result.Error)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestStaticDoesNotRetryHardFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newStaticForTest(t, func(req *models.ScrapeRequest) {
		req.Retry.RetryDelay = 10 * time.Millisecond
	})
	result := s.Execute(context.Background(), srv.URL+"/missing")

	if !result.Failed() {
		t.Fatal("404 should fail the page")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("404 is not retryable, expected 1 attempt, got %d", got)
	}
}

func TestStaticConfidenceBounds(t *testing.T) {
	s := newStaticForTest(t, nil)

	probes := []*Probe{
		{URL: "https://example.com/blog/post.html"},
		{URL: "https://example.com/"},
		{URL: "https://example.com/app", HTML: `<div id="root"></div><script src="/main.js"></script>`},
	}
	for _, probe := range probes {
		score := s.DetectConfidence(context.Background(), probe)
		if score < 0 || score > 1 {
			t.Errorf("confidence out of bounds for %s: %f", probe.URL, score)
		}
	}
}
