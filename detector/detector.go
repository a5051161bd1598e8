// Package detector scores which web frameworks a fetched page uses and
// recommends a scraping strategy from static HTML and response headers.
// Detection is best-effort and never fails a scrape: when nothing matches,
// it recommends the browser path because a static fetch can silently return
// too little content for JS-heavy sites.
package detector

import (
	"net/http"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Recommended scraper paths.
const (
	RecommendHTTP           = "http"
	RecommendBrowser        = "browser"
	RecommendBrowserStealth = "browser-stealth"
)

// Signature is one framework match with its normalized confidence.
type Signature struct {
	Framework  string   `json:"framework"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators,omitempty"`
}

// Analysis aggregates signatures with derived page traits and a single
// recommended strategy.
type Analysis struct {
	URL                string      `json:"url"`
	Signatures         []Signature `json:"signatures"`
	IsStatic           bool        `json:"is_static"`
	RequiresJavaScript bool        `json:"requires_javascript"`
	HasForms           bool        `json:"has_forms"`
	HasInfiniteScroll  bool        `json:"has_infinite_scroll"`
	RecommendedScraper string      `json:"recommended_scraper"`
}

// Config tunes detection. The weight table and divisor are heuristic
// calibration constants, not load-tested optima.
type Config struct {
	// Divisor normalizes summed indicator weights; 0 means the default (10).
	Divisor float64

	// MinSPAConfidence is the top-signature confidence above which a
	// heavy-SPA framework escalates the recommendation to browser-stealth.
	MinSPAConfidence float64
}

// Detector evaluates the framework check table against pages.
type Detector struct {
	cfg    Config
	checks []frameworkCheck
}

// New creates a Detector with the built-in framework table.
func New(cfg Config) *Detector {
	if cfg.Divisor <= 0 {
		cfg.Divisor = confidenceDivisor
	}
	if cfg.MinSPAConfidence <= 0 {
		cfg.MinSPAConfidence = 0.6
	}
	return &Detector{cfg: cfg, checks: frameworkChecks}
}

// Detect scores every known framework against the page. Signatures are
// sorted by confidence descending; equal scores keep the declaration order
// of the framework table. Frameworks with no matched indicator are omitted.
func (d *Detector) Detect(html string, headers http.Header) []Signature {
	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))
	lower := strings.ToLower(html)
	inline := inlineScripts(doc, docErr == nil)

	var sigs []Signature
	for _, check := range d.checks {
		var sum float64
		var matched []string
		for _, ind := range check.indicators {
			if d.matches(ind, doc, docErr == nil, lower, inline, headers) {
				sum += ind.weight
				matched = append(matched, indicatorLabel(ind))
			}
		}
		if sum == 0 {
			continue
		}
		conf := sum / d.cfg.Divisor
		if conf > 1 {
			conf = 1
		}
		sigs = append(sigs, Signature{
			Framework:  check.name,
			Confidence: conf,
			Indicators: matched,
		})
	}

	// Stable sort keeps declaration order on ties.
	sort.SliceStable(sigs, func(i, j int) bool {
		return sigs[i].Confidence > sigs[j].Confidence
	})
	return sigs
}

// Analyze runs Detect and derives page traits plus a strategy
// recommendation. It never returns an error: an unparseable page falls
// through to the browser recommendation.
func (d *Detector) Analyze(url, html string, headers http.Header) *Analysis {
	a := &Analysis{
		URL:        url,
		Signatures: d.Detect(html, headers),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.RequiresJavaScript = true
		a.RecommendedScraper = RecommendBrowser
		return a
	}

	lower := strings.ToLower(html)

	a.HasForms = doc.Find("form").Length() > 0
	a.HasInfiniteScroll = strings.Contains(lower, "intersectionobserver") ||
		strings.Contains(lower, "loadmore") ||
		strings.Contains(lower, "load-more") ||
		strings.Contains(lower, "infinite-scroll")

	a.RequiresJavaScript = d.requiresJS(doc, lower)
	a.IsStatic = !a.RequiresJavaScript && !a.HasInfiniteScroll

	switch {
	case len(a.Signatures) == 0:
		// Nothing matched, so nothing rules out client-side rendering.
		// The browser path is the safe default.
		a.RecommendedScraper = RecommendBrowser
	case a.topIsHeavySPA(d) && a.Signatures[0].Confidence >= d.cfg.MinSPAConfidence:
		a.RecommendedScraper = RecommendBrowserStealth
	case a.RequiresJavaScript:
		a.RecommendedScraper = RecommendBrowser
	default:
		a.RecommendedScraper = RecommendHTTP
	}
	return a
}

// topIsHeavySPA reports whether the highest-confidence signature belongs to
// a framework classed as a heavy SPA.
func (a *Analysis) topIsHeavySPA(d *Detector) bool {
	if len(a.Signatures) == 0 {
		return false
	}
	for _, check := range d.checks {
		if check.name == a.Signatures[0].Framework {
			return check.heavySPA
		}
	}
	return false
}

// requiresJS inspects SPA root markers and body text volume.
func (d *Detector) requiresJS(doc *goquery.Document, lower string) bool {
	// Empty SPA root containers mean the server shipped a shell.
	for _, root := range []string{"#root", "#app", "#__next", "#__nuxt", "#___gatsby"} {
		sel := doc.Find(root)
		if sel.Length() > 0 && len(strings.TrimSpace(sel.Text())) < 50 {
			return true
		}
	}
	if strings.Contains(lower, "<noscript") &&
		(strings.Contains(lower, "enable javascript") || strings.Contains(lower, "requires javascript")) {
		return true
	}
	// Many scripts plus little visible text is a JS-heavy page.
	bodyText := strings.TrimSpace(doc.Find("body").Text())
	scriptCount := doc.Find("script").Length()
	return scriptCount > 10 && len(bodyText) < 500
}

// matches evaluates one indicator.
func (d *Detector) matches(ind indicator, doc *goquery.Document, parsed bool, lower string, inline string, headers http.Header) bool {
	switch ind.kind {
	case kindSelector:
		return parsed && doc.Find(ind.selector).Length() > 0
	case kindHeader:
		v := headers.Get(ind.selector)
		if v == "" {
			return false
		}
		if ind.value == "" {
			return true
		}
		return strings.Contains(strings.ToLower(v), strings.ToLower(ind.value))
	case kindHTML:
		return strings.Contains(lower, strings.ToLower(ind.value))
	case kindScript:
		return strings.Contains(inline, ind.value)
	case kindMeta:
		if !parsed {
			return false
		}
		found := false
		doc.Find(ind.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if content, ok := s.Attr("content"); ok &&
				strings.Contains(strings.ToLower(content), strings.ToLower(ind.value)) {
				found = true
				return false
			}
			return true
		})
		return found
	}
	return false
}

// inlineScripts concatenates all inline <script> bodies for marker lookup.
func inlineScripts(doc *goquery.Document, parsed bool) string {
	if !parsed {
		return ""
	}
	var b strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); !external {
			b.WriteString(s.Text())
			b.WriteByte('\n')
		}
	})
	return b.String()
}

// indicatorLabel renders a human-readable name for a matched indicator.
func indicatorLabel(ind indicator) string {
	switch ind.kind {
	case kindSelector:
		return "selector:" + ind.selector
	case kindHeader:
		return "header:" + ind.selector
	case kindHTML:
		return "html:" + ind.value
	case kindScript:
		return "script:" + ind.value
	case kindMeta:
		return "meta:" + ind.value
	}
	return "unknown"
}
