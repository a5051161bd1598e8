// Package extract turns raw HTML into the structured records the engine
// returns: page content, metadata blocks, and social-media accounts.
// Everything here is a pure function over an HTML snapshot; nothing touches
// a live browser page.
package extract

import (
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"

	"github.com/sitegrazer/sitegrazer/models"
)

const (
	// minMainContentLength is the text length a candidate container must
	// exceed to win the main-content selection.
	minMainContentLength = 100

	// minParagraphLength filters out UI chrome masquerading as paragraphs.
	minParagraphLength = 20

	// defaultMaxContentLength caps the body-text fallback.
	defaultMaxContentLength = 20000
)

// mainContentSelectors is the candidate priority list for the main content
// block, compiled once. The first candidate whose text exceeds
// minMainContentLength wins.
var mainContentSelectors = []cascadia.Selector{
	mustCompile("main"),
	mustCompile("article"),
	mustCompile(`[role="main"]`),
	mustCompile("#content"),
	mustCompile(".content"),
	mustCompile("#main-content"),
	mustCompile(".main-content"),
	mustCompile(".post-content"),
	mustCompile(".entry-content"),
}

func mustCompile(sel string) cascadia.Selector {
	m, err := cascadia.Compile(sel)
	if err != nil {
		panic("extract: bad selector " + sel)
	}
	return m
}

// ContentOptions tunes content extraction.
type ContentOptions struct {
	// MaxContentLength caps the fallback body text; 0 means the default.
	MaxContentLength int
}

// Content extracts structured page content from rawHTML. baseURL resolves
// relative link and image URLs. Extraction is best-effort: an unparseable
// document yields an empty PageContent, never an error.
func Content(rawHTML, baseURL string, opts ...ContentOptions) *models.PageContent {
	content := &models.PageContent{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		slog.Warn("extract: unparseable HTML", "url", baseURL, "error", err)
		return content
	}

	maxLen := defaultMaxContentLength
	if len(opts) > 0 && opts[0].MaxContentLength > 0 {
		maxLen = opts[0].MaxContentLength
	}

	// Text extraction must not pick up script bodies, styles or elements
	// hidden from rendering. CSS-hidden nodes are only visible to the live
	// browser strategies, which tag them with the hidden attribute before
	// snapshotting; the inline-style check covers the static path.
	doc.Find(`script, style, noscript, template, [hidden], [style*="display:none"], [style*="display: none"]`).Remove()

	content.Title = extractTitle(doc)
	content.Description = extractDescription(doc)
	content.H1 = headingTexts(doc, "h1")
	content.H2 = headingTexts(doc, "h2")
	content.H3 = headingTexts(doc, "h3")
	content.MainText = mainContent(doc, rawHTML, baseURL, maxLen)
	content.Paragraphs = paragraphs(doc)
	content.Lists = lists(doc)
	content.Tables = tables(doc)

	return content
}

// Links extracts deduplicated absolute links, flagged external by hostname
// comparison against baseURL.
func Links(rawHTML, baseURL string) []models.Link {
	var links []models.Link

	base, err := url.Parse(baseURL)
	if err != nil {
		return links
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return links
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}

		links = append(links, models.Link{
			Href:     abs,
			Text:     strings.TrimSpace(s.Text()),
			External: !strings.EqualFold(resolved.Hostname(), base.Hostname()),
		})
	})
	return links
}

// Images extracts deduplicated absolute image references.
func Images(rawHTML, baseURL string) []models.Image {
	var images []models.Image

	base, err := url.Parse(baseURL)
	if err != nil {
		return images
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return images
	}

	seen := make(map[string]struct{})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		resolved, err := base.Parse(strings.TrimSpace(src))
		if err != nil || resolved.Scheme == "data" {
			return
		}
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}

		alt, _ := s.Attr("alt")
		title, _ := s.Attr("title")
		images = append(images, models.Image{
			Src:   abs,
			Alt:   strings.TrimSpace(alt),
			Title: strings.TrimSpace(title),
		})
	})
	return images
}

// extractTitle picks the first of <title>, og:title, twitter:title, <h1>.
func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	if t, ok := doc.Find(`meta[name="twitter:title"]`).Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// extractDescription picks the first of meta description, og:description,
// twitter:description.
func extractDescription(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[name="description"]`,
		`meta[property="og:description"]`,
		`meta[name="twitter:description"]`,
	} {
		if d, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(d) != "" {
			return strings.TrimSpace(d)
		}
	}
	return ""
}

func headingTexts(doc *goquery.Document, tag string) []string {
	var out []string
	doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// mainContent walks the selector priority list and returns the first
// candidate with enough text. When no candidate qualifies, it tries the
// readability algorithm, then falls back to truncated body text.
func mainContent(doc *goquery.Document, rawHTML, baseURL string, maxLen int) string {
	for _, matcher := range mainContentSelectors {
		text := strings.TrimSpace(doc.FindMatcher(matcher).First().Text())
		if len(text) > minMainContentLength {
			return collapseWhitespace(text)
		}
	}

	// Readability handles layouts the selector list misses.
	if parsed, err := url.Parse(baseURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(rawHTML), parsed); err == nil {
			if text := strings.TrimSpace(article.TextContent); len(text) > minMainContentLength {
				return truncate(collapseWhitespace(text), maxLen)
			}
		}
	}

	body := strings.TrimSpace(doc.Find("body").Text())
	return truncate(collapseWhitespace(body), maxLen)
}

func paragraphs(doc *goquery.Document) []string {
	var out []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > minParagraphLength {
			out = append(out, collapseWhitespace(text))
		}
	})
	return out
}

func lists(doc *goquery.Document) [][]string {
	var out [][]string
	doc.Find("ul, ol").Each(func(_ int, s *goquery.Selection) {
		// Skip nested lists; the parent list already carries their items.
		if s.ParentsFiltered("ul, ol").Length() > 0 {
			return
		}
		var items []string
		s.Find("li").Each(func(_ int, li *goquery.Selection) {
			if t := strings.TrimSpace(li.Text()); t != "" {
				items = append(items, collapseWhitespace(t))
			}
		})
		if len(items) > 0 {
			out = append(out, items)
		}
	})
	return out
}

// tables parses header and data rows, tolerating a missing <thead>: when a
// table has no thead but its first row uses <th>, that row becomes the
// header.
func tables(doc *goquery.Document) []models.Table {
	var out []models.Table
	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		var table models.Table

		t.Find("thead th").Each(func(_ int, th *goquery.Selection) {
			table.Headers = append(table.Headers, strings.TrimSpace(th.Text()))
		})

		rows := t.Find("tbody tr")
		if rows.Length() == 0 {
			rows = t.Find("tr")
		}
		rows.Each(func(i int, tr *goquery.Selection) {
			if tr.ParentsFiltered("thead").Length() > 0 {
				return
			}
			// First row of th cells doubles as the header when thead is absent.
			if len(table.Headers) == 0 && i == 0 && tr.Find("th").Length() > 0 && tr.Find("td").Length() == 0 {
				tr.Find("th").Each(func(_ int, th *goquery.Selection) {
					table.Headers = append(table.Headers, strings.TrimSpace(th.Text()))
				})
				return
			}
			var row []string
			tr.Find("td, th").Each(func(_ int, td *goquery.Selection) {
				row = append(row, strings.TrimSpace(td.Text()))
			})
			if len(row) > 0 {
				table.Rows = append(table.Rows, row)
			}
		})

		if len(table.Headers) > 0 || len(table.Rows) > 0 {
			out = append(out, table)
		}
	})
	return out
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary so the cut never leaves a torn rune.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
