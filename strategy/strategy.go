// Package strategy implements the per-URL scraping strategies (static,
// dynamic, spa) and the manager that picks between them. A strategy scores
// how well it fits a page, then executes the fetch and extraction. Execute
// never returns an error: failures are recorded on the result so callers
// can count partial progress.
package strategy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sitegrazer/sitegrazer/extract"
	"github.com/sitegrazer/sitegrazer/models"
)

// Cost ranks, used to break confidence ties cheapest-first.
const (
	CostStatic  = 1
	CostDynamic = 2
	CostSPA     = 3
)

// Probe is the cheap evidence available before a strategy commits to a
// full fetch. HTML is an optional preview body; Headers come from the
// preview response. Both may be empty, in which case strategies fall back
// to URL-pattern scoring.
type Probe struct {
	URL     string
	HTML    string
	Headers http.Header
}

// Strategy fetches and extracts one URL.
type Strategy interface {
	Name() string
	Cost() int
	DetectConfidence(ctx context.Context, probe *Probe) float64
	Execute(ctx context.Context, url string) *models.ScrapingResult
}

// assemble runs the extractors over fetched HTML and fills the result
// according to the requested output formats. rawHTML is the rendered or
// fetched document; base is the URL used to absolutize relative links.
func assemble(req *models.ScrapeRequest, md *extract.MarkdownConverter, r *models.ScrapingResult, rawHTML, base string) {
	r.Content = extract.Content(rawHTML, base)
	r.Metadata = extract.Meta(rawHTML)
	r.Social = extract.Social(rawHTML, base)
	r.DOMSize = len(rawHTML)

	if req.WantsFormat(models.FormatLinks) {
		r.Links = extract.Links(rawHTML, base)
		r.Images = extract.Images(rawHTML, base)
	}
	if req.WantsFormat(models.FormatHTML) {
		r.HTML = rawHTML
	}
	if req.WantsFormat(models.FormatMarkdown) {
		markdown, err := md.Convert(rawHTML, base)
		if err != nil {
			slog.Warn("markdown conversion failed", "url", r.URL, "error", err)
		} else {
			r.Markdown = markdown
		}
	}
}

// failed builds a terminal error result for a URL. The error is folded
// into the result rather than returned so the scrape loop keeps going.
func failed(rawURL, strategyName string, err error) *models.ScrapingResult {
	serr := categorize(err)
	return &models.ScrapingResult{
		URL:      rawURL,
		FinalURL: rawURL,
		Strategy: strategyName,
		Error:    serr.Error(),
	}
}

// categorize wraps raw errors into typed ScrapeErrors so callers can map
// them to the taxonomy (timeout, navigation, cancellation).
func categorize(err error) *models.ScrapeError {
	var serr *models.ScrapeError
	if errors.As(err, &serr) {
		return serr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, "page operation timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeCancelled, "scrape cancelled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, "fetch failed", err)
	}
}

// Domain extracts the hostname from a URL, falling back to the raw string
// when parsing fails.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// clamp bounds a confidence score to [0, 1].
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// sleepCtx pauses for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
