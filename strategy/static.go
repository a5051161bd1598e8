package strategy

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html/charset"

	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/extract"
	"github.com/sitegrazer/sitegrazer/models"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	maxBodyBytes     = 10 << 20
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init time and reused for every
// connection: utls negotiating h2 would mismatch Go's h1-only transport.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// newChromeTransport builds an http.Transport whose TLS handshake carries
// the Chrome fingerprint.
func newChromeTransport() *http.Transport {
	return &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("static: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
}

// Static fetches pages over plain HTTP with a Chrome TLS fingerprint.
// The fastest strategy; fits server-rendered pages that don't need a
// JavaScript runtime.
type Static struct {
	req       *models.ScrapeRequest
	md        *extract.MarkdownConverter
	det       *detector.Detector
	transport http.RoundTripper
}

func NewStatic(req *models.ScrapeRequest, det *detector.Detector) *Static {
	return &Static{
		req:       req,
		md:        extract.NewMarkdownConverter(),
		det:       det,
		transport: newChromeTransport(),
	}
}

func (s *Static) Name() string { return models.StrategyStatic }
func (s *Static) Cost() int    { return CostStatic }

// staticURLHints are path markers for content that is usually
// server-rendered.
var staticURLHints = []string{
	".html", ".htm", "/blog/", "/article", "/docs/", "/news/", "/post",
	"/about", "/contact", "/privacy", "/terms",
}

// DetectConfidence scores from URL shape alone when no preview exists,
// and from the framework analysis when it does.
func (s *Static) DetectConfidence(ctx context.Context, probe *Probe) float64 {
	score := 0.5
	lowerURL := strings.ToLower(probe.URL)
	for _, hint := range staticURLHints {
		if strings.Contains(lowerURL, hint) {
			score += 0.15
			break
		}
	}

	if probe.HTML == "" {
		return clamp(score)
	}

	analysis := s.det.Analyze(probe.URL, probe.HTML, probe.Headers)
	switch analysis.RecommendedScraper {
	case detector.RecommendHTTP:
		score += 0.3
	case detector.RecommendBrowserStealth:
		score -= 0.4
	default:
		score -= 0.2
	}
	if analysis.RequiresJavaScript {
		score -= 0.3
	}
	return clamp(score)
}

// Execute fetches the URL with retries and exponential backoff, decodes
// the body, and runs extraction. It never returns an error; failures land
// on the result.
func (s *Static) Execute(ctx context.Context, rawURL string) *models.ScrapingResult {
	start := time.Now()

	result, err := s.fetchWithRetry(ctx, rawURL)
	if err != nil {
		r := failed(rawURL, s.Name(), err)
		r.LoadTime = time.Since(start)
		return r
	}
	result.Strategy = s.Name()
	result.LoadTime = time.Since(start)
	return result
}

func (s *Static) fetchWithRetry(ctx context.Context, rawURL string) (*models.ScrapingResult, error) {
	retry := s.req.Retry
	delay := retry.RetryDelay

	var lastErr error
	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying fetch",
				"url", rawURL, "attempt", attempt, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			delay = time.Duration(float64(delay) * retry.BackoffMultiplier)
		}

		result, retryable, err := s.fetchOnce(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// fetchOnce performs a single GET. The bool return marks the error as
// retryable (network errors and configured status codes).
func (s *Static) fetchOnce(ctx context.Context, rawURL string) (*models.ScrapingResult, bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.req.PageTimeout)
	defer cancel()

	redirects := 0
	client := &http.Client{
		Transport: s.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !*s.req.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) > s.req.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", s.req.MaxRedirects)
			}
			redirects = len(via)
			return nil
		},
	}

	httpReq, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, models.NewScrapeError(models.ErrCodeInvalidInput, "build request", err)
	}

	ua := s.req.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	httpReq.Header.Set("User-Agent", ua)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if httpReq.Header.Get("Referer") == "" {
		if u, parseErr := url.Parse(rawURL); parseErr == nil {
			httpReq.Header.Set("Referer", "https://www.google.com/search?q="+url.QueryEscape(u.Hostname()))
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if s.req.Retry.Retryable(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, true, fmt.Errorf("retryable status %d for %s", resp.StatusCode, rawURL)
	}
	if resp.StatusCode >= 400 {
		return nil, false, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if ct := resp.Header.Get("Content-Type"); !isHTMLContentType(ct) {
		return nil, false, models.NewScrapeError(models.ErrCodeExtraction,
			fmt.Sprintf("non-html content-type %q", ct), nil)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	result := &models.ScrapingResult{
		URL:           rawURL,
		FinalURL:      finalURL,
		RedirectCount: redirects,
		StatusCode:    resp.StatusCode,
	}
	assemble(s.req, s.md, result, string(body), finalURL)
	return result, false, nil
}

// decodeBody decompresses the response according to Content-Encoding,
// converts legacy charsets to UTF-8, and reads at most maxBodyBytes.
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	// Charset sniffing falls back to BOM and meta tags when the header
	// carries no charset parameter.
	utf8Reader, err := charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("charset: %w", err)
	}
	return io.ReadAll(io.LimitReader(utf8Reader, maxBodyBytes))
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// FetchPreview grabs a small HTML preview for probe scoring. Best-effort:
// any failure returns an empty probe body.
func (s *Static) FetchPreview(ctx context.Context, rawURL string) (string, http.Header) {
	previewCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	client := &http.Client{Transport: s.transport}
	httpReq, err := http.NewRequestWithContext(previewCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil
	}
	ua := s.req.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	httpReq.Header.Set("User-Agent", ua)
	httpReq.Header.Set("Accept", "text/html")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 || !isHTMLContentType(resp.Header.Get("Content-Type")) {
		return "", resp.Header
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		return "", resp.Header
	}
	return string(body), resp.Header
}
