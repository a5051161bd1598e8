package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/sitegrazer/sitegrazer/models"
)

const discoveryMaxDepth = 3

// crawlDomain walks the target domain breadth-first and returns up to
// MaxPages page URLs, the start page first. Domain filtering is done in
// OnRequest rather than with AllowedDomains, which matches hosts exactly
// and would reject www/apex variants of the same site.
func crawlDomain(ctx context.Context, req *models.ScrapeRequest) ([]string, error) {
	start := req.StartURL()
	startU, err := url.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	host := strings.TrimPrefix(startU.Hostname(), "www.")

	c := colly.NewCollector(
		colly.MaxDepth(discoveryMaxDepth),
	)
	c.SetRequestTimeout(15 * time.Second)
	if req.UserAgent != "" {
		c.UserAgent = req.UserAgent
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       req.RequestDelay,
		RandomDelay: req.RandomDelayRange,
	}); err != nil {
		slog.Warn("discovery rate limit not applied", "error", err)
	}

	var (
		mu   sync.Mutex
		urls []string
		seen = map[string]bool{}
	)
	full := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(urls) >= req.MaxPages
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || full() {
			r.Abort()
			return
		}
		reqHost := strings.TrimPrefix(r.URL.Hostname(), "www.")
		if reqHost != host {
			r.Abort()
			return
		}
		mu.Lock()
		key := canonicalURL(r.URL)
		if seen[key] {
			mu.Unlock()
			r.Abort()
			return
		}
		seen[key] = true
		urls = append(urls, r.URL.String())
		mu.Unlock()
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if full() {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || skipLink(link) {
			return
		}
		_ = e.Request.Visit(link)
	})

	c.OnError(func(r *colly.Response, err error) {
		slog.Debug("discovery fetch failed", "url", r.Request.URL.String(), "error", err)
	})

	if err := c.Visit(start); err != nil {
		return nil, err
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(urls) > req.MaxPages {
		urls = urls[:req.MaxPages]
	}
	return urls, ctx.Err()
}

// canonicalURL normalizes URLs for the visited set: fragments dropped,
// trailing slash trimmed.
func canonicalURL(u *url.URL) string {
	copied := *u
	copied.Fragment = ""
	s := copied.String()
	return strings.TrimSuffix(s, "/")
}

// skipLink filters out links that are never scrapeable pages.
var skipExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".css", ".js", ".json", ".xml", ".pdf", ".zip", ".gz",
	".mp4", ".mp3", ".webm", ".woff", ".woff2", ".ttf",
}

func skipLink(link string) bool {
	lower := strings.ToLower(link)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "javascript:") {
		return true
	}
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range skipExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
