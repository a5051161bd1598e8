package strategy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/sitegrazer/sitegrazer/browser"
	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/extract"
	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/simhash"
	"github.com/sitegrazer/sitegrazer/stealth"
)

// SPA handles single-page applications: sites whose navigation happens
// client-side via the history API. It renders the entry route, waits for
// the framework to mount, then samples a few internal routes without full
// page reloads.
type SPA struct {
	req  *models.ScrapeRequest
	md   *extract.MarkdownConverter
	det  *detector.Detector
	pool *browser.Pool
}

func NewSPA(req *models.ScrapeRequest, det *detector.Detector, pool *browser.Pool) *SPA {
	return &SPA{
		req:  req,
		md:   extract.NewMarkdownConverter(),
		det:  det,
		pool: pool,
	}
}

func (s *SPA) Name() string { return models.StrategySPA }
func (s *SPA) Cost() int    { return CostSPA }

// Framework presence is the strongest signal and carries the largest
// single weight.
const (
	weightFramework    = 0.4
	weightVirtualDOM   = 0.2
	weightSPARouter    = 0.15
	weightDominantRoot = 0.15
)

var (
	virtualDOMMarkers = []string{
		"data-reactroot", "data-react-helmet", "__next_data__", "data-v-",
		"ng-version", "data-server-rendered", "__nuxt", "data-svelte",
	}
	spaRouterMarkers = []string{
		"react-router", "vue-router", "@angular/router", "next/router",
		"history.pushstate",
	}
	spaRootIDs = []string{"root", "app", "__next", "__nuxt", "___gatsby"}
)

// DetectConfidence scores purely from the preview. Without one it returns
// zero: committing the heaviest strategy needs real evidence.
func (s *SPA) DetectConfidence(ctx context.Context, probe *Probe) float64 {
	if probe.HTML == "" {
		return 0
	}
	lower := strings.ToLower(probe.HTML)
	score := 0.0

	if s.topSignatureIsHeavySPA(probe) {
		score += weightFramework
	}
	if containsAny(lower, virtualDOMMarkers) {
		score += weightVirtualDOM
	}
	if containsAny(lower, spaRouterMarkers) {
		score += weightSPARouter
	}
	if hasDominantRoot(lower) {
		score += weightDominantRoot
	}
	return clamp(score)
}

func (s *SPA) topSignatureIsHeavySPA(probe *Probe) bool {
	analysis := s.det.Analyze(probe.URL, probe.HTML, probe.Headers)
	return analysis.RecommendedScraper == detector.RecommendBrowserStealth
}

// hasDominantRoot checks for a single SPA mount point directly under body
// with almost no server-rendered siblings.
func hasDominantRoot(lower string) bool {
	for _, id := range spaRootIDs {
		if strings.Contains(lower, `id="`+id+`"`) {
			return true
		}
	}
	return false
}

const (
	// spaMaxRoutes bounds client-side route sampling per page.
	spaMaxRoutes = 5
	// appReadyPolls bounds the framework mount wait.
	appReadyPolls = 20
	appReadyDelay = 250 * time.Millisecond
)

// Execute renders the entry route, waits for the app to mount, then
// replays discovered internal routes through the history API and merges
// links found on distinct views. Never returns an error past its boundary.
func (s *SPA) Execute(ctx context.Context, rawURL string) *models.ScrapingResult {
	start := time.Now()

	pageCtx, cancel := context.WithTimeout(ctx, s.req.PageTimeout)
	defer cancel()

	page, release, err := openPage(pageCtx, s.pool, s.req)
	if err != nil {
		r := failed(rawURL, s.Name(), err)
		r.LoadTime = time.Since(start)
		return r
	}
	defer release()

	result := s.scrapeApp(pageCtx, page, rawURL)
	result.Strategy = s.Name()
	result.LoadTime = time.Since(start)
	return result
}

func (s *SPA) scrapeApp(ctx context.Context, page *rod.Page, rawURL string) *models.ScrapingResult {
	p := page.Context(ctx)

	// Install the route observer before navigation so the first
	// client-side transition is already captured.
	if _, err := p.EvalOnNewDocument(routeObserverJS); err != nil {
		return failed(rawURL, s.Name(), err)
	}

	if err := p.Navigate(rawURL); err != nil {
		return failed(rawURL, s.Name(), err)
	}
	s.waitAppReady(ctx, p)
	if s.req.Stealth {
		stealth.SimulateHuman(ctx, p)
	}
	markHidden(p)

	rawHTML, err := p.HTML()
	if err != nil {
		return failed(rawURL, s.Name(), err)
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
	appHTML := strippedAppHTML(p)
	if appHTML == "" {
		appHTML = rawHTML
	}
	assemble(s.req, s.md, result, appHTML, finalURL)
	capturePage(p, s.req, result)

	s.sampleRoutes(ctx, p, finalURL, result)
	return result
}

// waitAppReady polls until the framework has rendered something into its
// root container, or the bounded poll expires.
func (s *SPA) waitAppReady(ctx context.Context, p *rod.Page) {
	const js = `() => {
		const roots = ['#root', '#app', '#__next', '#__nuxt', '#___gatsby'];
		for (const sel of roots) {
			const el = document.querySelector(sel);
			if (el && el.innerText && el.innerText.trim().length > 50) return true;
		}
		return document.body && document.body.innerText.trim().length > 200;
	}`
	for i := 0; i < appReadyPolls; i++ {
		res, err := p.Eval(js)
		if err == nil && res.Value.Bool() {
			return
		}
		if sleepCtx(ctx, appReadyDelay) != nil {
			return
		}
	}
}

// routeObserverJS records every history-API transition the app performs.
const routeObserverJS = `() => {
	window.__grazedRoutes = [];
	const record = (url) => {
		if (url) window.__grazedRoutes.push(String(url));
	};
	const origPush = history.pushState;
	history.pushState = function (state, title, url) {
		record(url);
		return origPush.apply(this, arguments);
	};
	const origReplace = history.replaceState;
	history.replaceState = function (state, title, url) {
		record(url);
		return origReplace.apply(this, arguments);
	};
}`

// strippedAppHTML returns the framework root's HTML with navigation and
// chrome elements removed, working on a detached clone so the live page
// is untouched.
func strippedAppHTML(p *rod.Page) string {
	const js = `() => {
		const roots = ['#root', '#app', '#__next', '#__nuxt', '#___gatsby'];
		let root = null;
		for (const sel of roots) {
			const el = document.querySelector(sel);
			if (el) { root = el; break; }
		}
		if (!root) return '';
		const clone = root.cloneNode(true);
		const chrome = ['nav', 'header', 'footer', '[role="navigation"]', '[class*="sidebar"]', '[class*="cookie"]'];
		for (const sel of chrome) {
			clone.querySelectorAll(sel).forEach(el => el.remove());
		}
		return clone.innerHTML;
	}`
	return evalString(p, js)
}

// sampleRoutes replays up to spaMaxRoutes internal routes via the history
// API, skips views whose content fingerprints as a near-duplicate, and
// merges links from distinct views into the result.
func (s *SPA) sampleRoutes(ctx context.Context, p *rod.Page, base string, result *models.ScrapingResult) {
	baseU, err := url.Parse(base)
	if err != nil {
		return
	}

	dedupe := simhash.NewDedupe(simhash.DefaultThreshold)
	dedupe.Seen(pageText(p))

	seen := map[string]bool{normalizePath(baseU.Path): true}
	known := make(map[string]bool)
	for _, l := range result.Links {
		known[l.Href] = true
	}

	for _, route := range s.candidateRoutes(p, baseU) {
		if len(seen) > spaMaxRoutes {
			break
		}
		if ctx.Err() != nil {
			return
		}
		path := normalizePath(route)
		if seen[path] {
			continue
		}
		seen[path] = true

		if err := replayRoute(p, route); err != nil {
			continue
		}
		s.waitAppReady(ctx, p)

		if dedupe.Seen(pageText(p)) {
			continue
		}
		viewHTML, htmlErr := p.HTML()
		if htmlErr != nil {
			continue
		}
		viewURL := baseU.ResolveReference(&url.URL{Path: route}).String()
		for _, l := range extract.Links(viewHTML, viewURL) {
			if !known[l.Href] {
				known[l.Href] = true
				result.Links = append(result.Links, l)
			}
		}
	}
}

// candidateRoutes collects internal paths from recorded history
// transitions and same-origin anchors.
func (s *SPA) candidateRoutes(p *rod.Page, base *url.URL) []string {
	var routes []string
	push := func(raw string) {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Path == "" || u.Path == "/" {
			return
		}
		if u.Host != "" && u.Host != base.Host {
			return
		}
		routes = append(routes, u.Path)
	}

	if res, err := p.Eval(`() => (window.__grazedRoutes || []).slice(0, 20)`); err == nil {
		for _, v := range res.Value.Arr() {
			push(v.Str())
		}
	}
	if res, err := p.Eval(`() => Array.from(document.querySelectorAll('a[href^="/"]')).map(a => a.getAttribute('href')).slice(0, 40)`); err == nil {
		for _, v := range res.Value.Arr() {
			push(v.Str())
		}
	}
	return routes
}

// replayRoute drives the app to an internal path via pushState plus a
// synthetic popstate, the transition most client routers listen for.
func replayRoute(p *rod.Page, path string) error {
	_, err := p.Eval(fmt.Sprintf(`() => {
		history.pushState({}, '', %q);
		window.dispatchEvent(new PopStateEvent('popstate', {state: {}}));
	}`, path))
	return err
}

func pageText(p *rod.Page) string {
	return evalString(p, `() => document.body ? document.body.innerText : ''`)
}

func normalizePath(path string) string {
	return strings.TrimSuffix(strings.ToLower(path), "/")
}
