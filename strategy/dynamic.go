package strategy

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/sitegrazer/sitegrazer/browser"
	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/extract"
	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/stealth"
)

// Dynamic renders pages in the shared headless browser. It fits pages
// that need a JavaScript runtime but are not full single-page apps:
// lazy-loaded listings, AJAX-filled widgets, client-side hydration.
type Dynamic struct {
	req  *models.ScrapeRequest
	md   *extract.MarkdownConverter
	det  *detector.Detector
	pool *browser.Pool
}

func NewDynamic(req *models.ScrapeRequest, det *detector.Detector, pool *browser.Pool) *Dynamic {
	return &Dynamic{
		req:  req,
		md:   extract.NewMarkdownConverter(),
		det:  det,
		pool: pool,
	}
}

func (d *Dynamic) Name() string { return models.StrategyDynamic }
func (d *Dynamic) Cost() int    { return CostDynamic }

// Fixed weights added to a base score of 0.3 when a marker class is
// present in the preview HTML. Heuristic tuning constants; capped at 1.0.
const (
	dynamicBase         = 0.3
	weightAJAX          = 0.15
	weightLazyLoad      = 0.15
	weightWidgets       = 0.1
	weightRouter        = 0.1
	weightScriptHeavy   = 0.2
	scriptHeavyPerChars = 400
)

var (
	ajaxMarkers     = []string{"fetch(", "xmlhttprequest", "axios", "$.ajax", "$.get(", "$.post("}
	lazyLoadMarkers = []string{"data-src", "data-lazy", "lazyload", `loading="lazy"`, "intersectionobserver"}
	widgetMarkers   = []string{"carousel", "accordion", "data-toggle", "modal", "dropdown-menu", "swiper"}
	routerMarkers   = []string{"pushstate", "history.replacestate", "data-router", "hashchange"}
)

// DetectConfidence uses preview markers over a base score; with no
// preview it returns just the base, letting static win by default.
func (d *Dynamic) DetectConfidence(ctx context.Context, probe *Probe) float64 {
	score := dynamicBase
	if probe.HTML == "" {
		return score
	}
	lower := strings.ToLower(probe.HTML)

	if containsAny(lower, ajaxMarkers) {
		score += weightAJAX
	}
	if containsAny(lower, lazyLoadMarkers) {
		score += weightLazyLoad
	}
	if containsAny(lower, widgetMarkers) {
		score += weightWidgets
	}
	if containsAny(lower, routerMarkers) {
		score += weightRouter
	}
	if scriptHeavy(lower) {
		score += weightScriptHeavy
	}
	return clamp(score)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// scriptHeavy reports whether the document is mostly script by a crude
// script-tag-to-length ratio.
func scriptHeavy(lower string) bool {
	scripts := strings.Count(lower, "<script")
	if scripts == 0 {
		return false
	}
	return len(lower)/scripts < scriptHeavyPerChars
}

// Execute renders the URL and extracts from the settled DOM. Never
// returns an error past its boundary.
func (d *Dynamic) Execute(ctx context.Context, rawURL string) *models.ScrapingResult {
	start := time.Now()

	pageCtx, cancel := context.WithTimeout(ctx, d.req.PageTimeout)
	defer cancel()

	page, release, err := openPage(pageCtx, d.pool, d.req)
	if err != nil {
		r := failed(rawURL, d.Name(), err)
		r.LoadTime = time.Since(start)
		return r
	}
	defer release()

	result := d.scrapePage(pageCtx, page, rawURL)
	result.Strategy = d.Name()
	result.LoadTime = time.Since(start)
	return result
}

// openPage acquires the shared browser and prepares a fresh page: stealth
// before navigation, resource blocking, viewport and header overrides.
// The returned release func closes the page and stops the hijack router.
func openPage(ctx context.Context, pool *browser.Pool, req *models.ScrapeRequest) (*rod.Page, func(), error) {
	b, err := pool.Acquire(ctx)
	if err != nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "acquire browser", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "create page", err)
	}

	if req.Stealth {
		stealth.Apply(page, stealthConfig(req.Evasions))
	}

	var router *rod.HijackRouter
	if len(req.BlockResourceTypes) > 0 || req.BlockAds {
		router = browser.BlockResources(page, req.BlockResourceTypes, req.BlockAds)
	}

	if vp := req.Viewport; vp != nil {
		_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width: vp.Width, Height: vp.Height, DeviceScaleFactor: 1,
		})
	}
	if req.UserAgent != "" {
		_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: req.UserAgent})
	}
	if len(req.Cookies) > 0 {
		setCookies(page, req.Cookies)
	}

	release := func() {
		if router != nil {
			_ = router.Stop()
		}
		// Close with the original page reference so cleanup succeeds even
		// after the request context expired.
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("page close failed", "error", closeErr)
		}
	}
	return page, release, nil
}

func (d *Dynamic) scrapePage(ctx context.Context, page *rod.Page, rawURL string) *models.ScrapingResult {
	p := page.Context(ctx)

	setReferer(p, rawURL)

	if err := p.Navigate(rawURL); err != nil {
		return failed(rawURL, d.Name(), err)
	}
	settle(p)
	waitLoadingIndicatorsGone(p)
	autoScroll(ctx, p)
	if d.req.Stealth {
		stealth.SimulateHuman(ctx, p)
	}
	removeOverlays(p)
	markHidden(p)

	rawHTML, err := p.HTML()
	if err != nil {
		return failed(rawURL, d.Name(), err)
	}

	finalURL := evalString(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = rawURL
	}
	result := &models.ScrapingResult{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: navStatusCode(p),
	}
	assemble(d.req, d.md, result, rawHTML, finalURL)
	capturePage(p, d.req, result)
	return result
}

// stealthConfig maps the request's evasion names onto a stealth config.
// An empty list means all evasions.
func stealthConfig(evasions []string) stealth.Config {
	if len(evasions) == 0 {
		return stealth.DefaultConfig()
	}
	cfg := stealth.Config{Baseline: true}
	for _, name := range evasions {
		switch strings.ToLower(name) {
		case "webdriver":
			cfg.Webdriver = true
		case "plugins":
			cfg.Plugins = true
		case "webgl":
			cfg.WebGLVendor = true
		case "permissions":
			cfg.Permissions = true
		case "fingerprint":
			cfg.FingerprintNoise = true
		}
	}
	return cfg
}

// setCookies installs request cookies before navigation. Cookies without
// a domain cannot be scoped and are skipped.
func setCookies(page *rod.Page, cookies []models.Cookie) {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c.Domain == "" {
			slog.Warn("cookie without domain skipped", "name", c.Name)
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   path,
		})
	}
	if len(params) == 0 {
		return
	}
	if err := page.SetCookies(params); err != nil {
		slog.Warn("setting cookies failed", "error", err)
	}
}

// setReferer installs a plausible Referer before navigation.
func setReferer(p *rod.Page, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: proto.NetworkHeaders{
			"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
		},
	}.Call(p)
}

// settle waits for the DOM to stop mutating; a non-converging page is
// scraped as-is.
func settle(p *rod.Page) {
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("DOM did not stabilize, proceeding with current state", "error", err)
	}
}

// waitLoadingIndicatorsGone polls until common spinner/skeleton elements
// disappear or the bounded wait expires. Timeout is ignored: a stuck
// spinner should not fail the page.
func waitLoadingIndicatorsGone(p *rod.Page) {
	const js = `() => {
		const sels = ['.loading', '.spinner', '.loader', '[class*="skeleton"]', '[aria-busy="true"]'];
		for (const sel of sels) {
			for (const el of document.querySelectorAll(sel)) {
				const style = window.getComputedStyle(el);
				if (style.display !== 'none' && style.visibility !== 'hidden') return false;
			}
		}
		return true;
	}`
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, err := p.Eval(js)
		if err != nil || res.Value.Bool() {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// removeOverlays strips cookie banners and full-viewport modal overlays so
// they don't end up in the extracted content.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		const sels = [
			'[id*="cookie-banner"]', '[class*="cookie-banner"]',
			'[id*="cookie-consent"]', '[class*="cookie-consent"]',
			'#onetrust-consent-sdk', '#CybotCookiebotDialog', '.cc-window',
			'[class*="newsletter-popup"]', '[class*="modal-backdrop"]',
		];
		for (const sel of sels) {
			for (const el of document.querySelectorAll(sel)) el.remove();
		}
		for (const el of document.querySelectorAll('body > *')) {
			const style = window.getComputedStyle(el);
			if (style.position !== 'fixed' && style.position !== 'sticky') continue;
			const r = el.getBoundingClientRect();
			if (r.width >= window.innerWidth * 0.9 && r.height >= window.innerHeight * 0.9) {
				el.remove();
			}
		}
	}`
	if _, err := p.Eval(js); err != nil {
		slog.Debug("overlay removal failed", "error", err)
	}
}

// markHidden tags CSS-hidden elements with the hidden attribute, so the
// snapshot extractor drops them along with statically hidden nodes.
// Elements with computed display:none are already out of the render tree,
// so the tag changes nothing on screen.
func markHidden(p *rod.Page) {
	const js = `() => {
		if (!document.body) return;
		for (const el of document.body.querySelectorAll('*')) {
			if (el.hidden) continue;
			if (window.getComputedStyle(el).display === 'none') {
				el.setAttribute('hidden', '');
			}
		}
	}`
	if _, err := p.Eval(js); err != nil {
		slog.Debug("hidden-node marking failed", "error", err)
	}
}

// autoScroll steps through the page viewport by viewport to trigger lazy
// loading, bounded to a handful of screens.
func autoScroll(ctx context.Context, p *rod.Page) {
	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return
	}
	viewportHeight := res.Value.Int()

	const maxScreens = 8
	for i := 0; i < maxScreens; i++ {
		if err := p.Mouse.Scroll(0, float64(viewportHeight), 1); err != nil {
			return
		}
		if sleepCtx(ctx, 150*time.Millisecond) != nil {
			return
		}
		atBottom, err := p.Eval(`() => window.innerHeight + window.scrollY >= document.body.scrollHeight - 2`)
		if err == nil && atBottom.Value.Bool() {
			break
		}
	}
	// Back to the top so fixed headers render in their resting state.
	_, _ = p.Eval(`() => window.scrollTo(0, 0)`)
}

// navStatusCode reads the HTTP status from the navigation performance
// entry, avoiding CDP network listeners that conflict with hijacking.
func navStatusCode(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func evalString(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// capturePage renders screenshot and PDF output formats when requested.
// Both are best-effort.
func capturePage(p *rod.Page, req *models.ScrapeRequest, result *models.ScrapingResult) {
	if req.WantsFormat(models.FormatScreenshot) {
		shot, err := p.Screenshot(false, nil)
		if err != nil {
			slog.Warn("screenshot capture failed", "url", result.URL, "error", err)
		} else {
			result.Screenshot = shot
		}
	}
	if req.WantsFormat(models.FormatPDF) {
		stream, err := p.PDF(&proto.PagePrintToPDF{})
		if err != nil {
			slog.Warn("pdf capture failed", "url", result.URL, "error", err)
			return
		}
		data, err := io.ReadAll(stream)
		if err != nil {
			slog.Warn("pdf read failed", "url", result.URL, "error", err)
			return
		}
		result.PDF = data
	}
}
