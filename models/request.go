package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Output formats a ScrapeRequest may ask for.
const (
	FormatText       = "text"
	FormatHTML       = "html"
	FormatMarkdown   = "markdown"
	FormatLinks      = "links"
	FormatScreenshot = "screenshot"
	FormatPDF        = "pdf"
)

// Strategy identifiers recorded on results and used for forcing a strategy.
const (
	StrategyAuto    = "auto"
	StrategyStatic  = "static"
	StrategyDynamic = "dynamic"
	StrategySPA     = "spa"
)

// RetryConfig controls retry behaviour for transient fetch failures.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first failure.
	MaxRetries int `json:"max_retries"`

	// RetryDelay is the base delay before the first retry.
	RetryDelay time.Duration `json:"retry_delay"`

	// BackoffMultiplier scales the delay after each attempt.
	BackoffMultiplier float64 `json:"backoff_multiplier"`

	// RetryableStatusCodes lists HTTP status codes worth retrying.
	RetryableStatusCodes []int `json:"retryable_status_codes"`
}

// Retryable reports whether the given status code is configured as retryable.
func (rc RetryConfig) Retryable(status int) bool {
	for _, code := range rc.RetryableStatusCodes {
		if code == status {
			return true
		}
	}
	return false
}

// Viewport is the browser window size used for rendering strategies.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Cookie is set on the browser before navigation, for pages behind
// consent walls or simple session auth.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// ScrapeRequest describes one scrape job. It is immutable once the engine
// accepts it: the engine works on its own copy and never writes back.
type ScrapeRequest struct {
	// ID identifies the job in logs and progress events. Assigned by the
	// engine when empty.
	ID string `json:"id,omitempty"`

	// Domain is the site to scrape. URL discovery crawls it up to MaxPages.
	// Ignored when URLs is non-empty.
	Domain string `json:"domain,omitempty"`

	// URLs is an explicit page list that skips discovery.
	URLs []string `json:"urls,omitempty"`

	// MaxPages bounds discovery and the scrape loop. Default: 20.
	MaxPages int `json:"max_pages,omitempty"`

	// Strategy forces a strategy ("static", "dynamic", "spa") instead of
	// per-URL detection. Default: "auto".
	Strategy string `json:"strategy,omitempty"`

	// OutputFormats selects what each result carries beyond structured
	// content: text, html, markdown, links, screenshot, pdf.
	OutputFormats []string `json:"output_formats,omitempty"`

	// PageTimeout is the per-page deadline covering navigation, waits and
	// extraction. Default: 30s.
	PageTimeout time.Duration `json:"page_timeout,omitempty"`

	// FollowRedirects + MaxRedirects control HTTP redirect handling for the
	// static strategy. Defaults: true, 5.
	FollowRedirects *bool `json:"follow_redirects,omitempty"`
	MaxRedirects    int   `json:"max_redirects,omitempty"`

	// Stealth toggles anti-bot evasions on browser strategies; Evasions
	// narrows them to a named subset when non-empty.
	Stealth  bool     `json:"stealth,omitempty"`
	Evasions []string `json:"evasions,omitempty"`

	// BlockResourceTypes lists resource types the browser refuses to load
	// (Image, Stylesheet, Font, Script, Media). BlockAds adds the ad-domain
	// blocklist.
	BlockResourceTypes []string `json:"block_resource_types,omitempty"`
	BlockAds           bool     `json:"block_ads,omitempty"`

	// Viewport and UserAgent override browser defaults.
	Viewport  *Viewport `json:"viewport,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`

	// Cookies are installed on browser strategies before navigation.
	Cookies []Cookie `json:"cookies,omitempty"`

	// RequestDelay is the politeness pause between pages of one domain.
	// RandomDelayRange, when positive, adds jitter in [0, range).
	// Defaults: 1s, 0.
	RequestDelay     time.Duration `json:"request_delay,omitempty"`
	RandomDelayRange time.Duration `json:"random_delay_range,omitempty"`

	// Concurrency is the bounded worker count. Default: 1 (sequential).
	Concurrency int `json:"concurrency,omitempty"`

	// Fallback enables one retry with the next-best strategy when the
	// selected strategy returns a failed result. Default: true.
	Fallback *bool `json:"fallback,omitempty"`

	// Retry controls transient-error retries inside the static strategy.
	Retry RetryConfig `json:"retry,omitempty"`
}

// Defaults fills unset fields with the engine's defaults.
func (r *ScrapeRequest) Defaults() {
	if r.MaxPages <= 0 {
		r.MaxPages = 20
	}
	if r.Strategy == "" {
		r.Strategy = StrategyAuto
	}
	if len(r.OutputFormats) == 0 {
		r.OutputFormats = []string{FormatText, FormatLinks}
	}
	if r.PageTimeout <= 0 {
		r.PageTimeout = 30 * time.Second
	}
	if r.FollowRedirects == nil {
		t := true
		r.FollowRedirects = &t
	}
	if r.MaxRedirects <= 0 {
		r.MaxRedirects = 5
	}
	if r.RequestDelay <= 0 {
		r.RequestDelay = time.Second
	}
	if r.Concurrency <= 0 {
		r.Concurrency = 1
	}
	if r.Fallback == nil {
		t := true
		r.Fallback = &t
	}
	if r.Retry.MaxRetries <= 0 {
		r.Retry.MaxRetries = 3
	}
	if r.Retry.RetryDelay <= 0 {
		r.Retry.RetryDelay = time.Second
	}
	if r.Retry.BackoffMultiplier <= 0 {
		r.Retry.BackoffMultiplier = 2
	}
	if len(r.Retry.RetryableStatusCodes) == 0 {
		r.Retry.RetryableStatusCodes = []int{408, 429, 500, 502, 503, 504}
	}
}

// Validate rejects requests the engine cannot start. Input errors are fatal
// before any page is attempted.
func (r *ScrapeRequest) Validate() error {
	if r.Domain == "" && len(r.URLs) == 0 {
		return NewScrapeError(ErrCodeInvalidInput, "request needs a domain or a URL list", nil)
	}
	if r.Domain != "" {
		target := r.Domain
		if !strings.Contains(target, "://") {
			target = "https://" + target
		}
		u, err := url.Parse(target)
		if err != nil || u.Hostname() == "" {
			return NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("invalid domain %q", r.Domain), err)
		}
	}
	for _, raw := range r.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("invalid URL %q", raw), err)
		}
	}
	for _, f := range r.OutputFormats {
		switch f {
		case FormatText, FormatHTML, FormatMarkdown, FormatLinks, FormatScreenshot, FormatPDF:
		default:
			return NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("unknown output format %q", f), nil)
		}
	}
	return nil
}

// WantsFormat reports whether the request asked for the given output format.
func (r *ScrapeRequest) WantsFormat(format string) bool {
	for _, f := range r.OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// StartURL returns the seed URL for discovery: the first explicit URL, or
// the domain normalized to https.
func (r *ScrapeRequest) StartURL() string {
	if len(r.URLs) > 0 {
		return r.URLs[0]
	}
	if strings.Contains(r.Domain, "://") {
		return r.Domain
	}
	return "https://" + r.Domain
}
