package extract

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitegrazer/sitegrazer/models"
)

// basicMetaNames are the meta tags reported in the Basic block. Anything
// else that is neither OG, Twitter nor Dublin Core lands in Custom.
var basicMetaNames = map[string]struct{}{
	"description": {},
	"keywords":    {},
	"author":      {},
	"viewport":    {},
	"robots":      {},
	"generator":   {},
	"theme-color": {},
	"language":    {},
}

// Meta extracts every machine-readable metadata block from rawHTML.
// Parse failures in individual JSON-LD blocks are skipped, never fatal.
func Meta(rawHTML string) *models.PageMetadata {
	meta := &models.PageMetadata{
		Basic:      map[string]string{},
		OpenGraph:  map[string]string{},
		Twitter:    map[string]string{},
		DublinCore: map[string]string{},
		Custom:     map[string]string{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		slog.Warn("extract: metadata parse failed", "error", err)
		return meta
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok || content == "" {
			return
		}
		content = strings.TrimSpace(content)

		if prop, ok := s.Attr("property"); ok && prop != "" {
			switch {
			case strings.HasPrefix(prop, "og:"):
				meta.OpenGraph[strings.TrimPrefix(prop, "og:")] = content
			case strings.HasPrefix(prop, "article:"), strings.HasPrefix(prop, "profile:"):
				meta.OpenGraph[prop] = content
			case strings.HasPrefix(prop, "twitter:"):
				meta.Twitter[strings.TrimPrefix(prop, "twitter:")] = content
			default:
				meta.Custom[prop] = content
			}
			return
		}

		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, "twitter:"):
			meta.Twitter[strings.TrimPrefix(lower, "twitter:")] = content
		case strings.HasPrefix(lower, "dc.") || strings.HasPrefix(lower, "dcterms."):
			key := strings.TrimPrefix(strings.TrimPrefix(lower, "dcterms."), "dc.")
			meta.DublinCore[key] = content
		default:
			if _, known := basicMetaNames[lower]; known {
				meta.Basic[lower] = content
			} else {
				meta.Custom[name] = content
			}
		}
	})

	meta.JSONLD = jsonLD(doc)
	meta.Microdata = microdata(doc)
	return meta
}

// jsonLD parses every <script type="application/ld+json"> block. Blocks
// that fail to parse are dropped.
func jsonLD(doc *goquery.Document) []any {
	var blocks []any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			slog.Debug("extract: skipping malformed JSON-LD block", "error", err)
			return
		}
		blocks = append(blocks, parsed)
	})
	return blocks
}

// microdata walks itemscope elements collecting their itemprop values.
// A repeated property collapses into multiple array entries.
func microdata(doc *goquery.Document) []models.MicrodataItem {
	var items []models.MicrodataItem

	doc.Find("[itemscope]").Each(func(_ int, scope *goquery.Selection) {
		// Nested scopes are reported as their own items; their props do not
		// leak into the parent.
		if scope.ParentsFiltered("[itemscope]").Length() > 0 {
			return
		}
		item := models.MicrodataItem{Properties: map[string][]string{}}
		if t, ok := scope.Attr("itemtype"); ok {
			item.Type = strings.TrimSpace(t)
		}

		scope.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
			if prop.ParentsFiltered("[itemscope]").First().IsSelection(scope) || prop.ParentsFiltered("[itemscope]").Length() == 0 {
				name, _ := prop.Attr("itemprop")
				name = strings.TrimSpace(name)
				if name == "" {
					return
				}
				item.Properties[name] = append(item.Properties[name], microdataValue(prop))
			}
		})

		if item.Type != "" || len(item.Properties) > 0 {
			items = append(items, item)
		}
	})
	return items
}

// microdataValue reads a property value the way the microdata spec does:
// content attribute, then tag-specific attributes, then text.
func microdataValue(s *goquery.Selection) string {
	if v, ok := s.Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	if goquery.NodeName(s) == "a" || goquery.NodeName(s) == "link" {
		if v, ok := s.Attr("href"); ok {
			return strings.TrimSpace(v)
		}
	}
	if goquery.NodeName(s) == "img" {
		if v, ok := s.Attr("src"); ok {
			return strings.TrimSpace(v)
		}
	}
	if goquery.NodeName(s) == "time" {
		if v, ok := s.Attr("datetime"); ok {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(s.Text())
}
