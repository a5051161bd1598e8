package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitegrazer/sitegrazer/models"
)

// platformPattern describes how to recognize one social platform's profile
// URLs and which URL shapes to reject as share/intent/widget links.
type platformPattern struct {
	name string
	// hosts are hostname suffixes that belong to the platform.
	hosts []string
	// negative path substrings mark non-profile URLs (share buttons, embeds).
	negative []string
	// usernamePrefixes are path prefixes that precede the username,
	// e.g. "company" for LinkedIn company pages.
	usernamePrefixes []string
}

var platformPatterns = []platformPattern{
	{
		name:  "facebook",
		hosts: []string{"facebook.com", "fb.com"},
		negative: []string{
			"sharer", "share.php", "dialog/", "plugins/", "tr?", "/events/", "/groups/", "login",
		},
	},
	{
		name:  "twitter",
		hosts: []string{"twitter.com", "x.com"},
		negative: []string{
			"intent/", "share?", "/search", "/hashtag/", "/home", "widgets",
		},
	},
	{
		name:  "instagram",
		hosts: []string{"instagram.com"},
		negative: []string{
			"/p/", "/explore/", "/reel/", "/stories/", "share",
		},
	},
	{
		name:  "linkedin",
		hosts: []string{"linkedin.com"},
		negative: []string{
			"sharearticle", "share-offsite", "/shareArticle", "/feed/", "login",
		},
		usernamePrefixes: []string{"in", "company", "school"},
	},
	{
		name:  "youtube",
		hosts: []string{"youtube.com", "youtu.be"},
		negative: []string{
			"/watch", "/embed/", "/playlist", "/shorts/", "share",
		},
		usernamePrefixes: []string{"c", "channel", "user"},
	},
	{
		name:  "tiktok",
		hosts: []string{"tiktok.com"},
		negative: []string{
			"/video/", "/embed/", "share",
		},
	},
	{
		name:  "github",
		hosts: []string{"github.com"},
		negative: []string{
			"/sponsors/", "/login", "/features", "/topics/", "/search",
		},
	},
	{
		name:  "pinterest",
		hosts: []string{"pinterest.com"},
		negative: []string{
			"/pin/create", "/pin/", "share",
		},
	},
}

// Social scans anchors and author meta tags for social-media profile links.
// Share/intent/widget URLs are excluded by platform-specific negative
// patterns; results are deduplicated by (platform, normalized URL). A
// second pass over header, nav and footer regions marks the links found
// there as high-confidence, since sites concentrate their own profiles in
// page chrome.
func Social(rawHTML, baseURL string) []models.SocialAccount {
	var accounts []models.SocialAccount

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return accounts
	}

	base, _ := url.Parse(baseURL)
	seen := make(map[string]int) // dedupe key -> index into accounts

	collect := func(raw string, highConfidence bool) {
		account, ok := classify(raw, base)
		if !ok {
			return
		}
		key := account.Platform + "|" + account.URL
		if idx, dup := seen[key]; dup {
			if highConfidence {
				accounts[idx].HighConfidence = true
			}
			return
		}
		account.HighConfidence = highConfidence
		seen[key] = len(accounts)
		accounts = append(accounts, account)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		collect(href, false)
	})

	// Author meta tags often carry profile URLs or @handles.
	for _, sel := range []string{`meta[name="twitter:creator"]`, `meta[name="twitter:site"]`} {
		if v, ok := doc.Find(sel).Attr("content"); ok {
			if handle := strings.TrimPrefix(strings.TrimSpace(v), "@"); handle != "" && !strings.Contains(handle, "/") {
				collect("https://twitter.com/"+handle, false)
			} else {
				collect(v, false)
			}
		}
	}
	if v, ok := doc.Find(`meta[property="article:author"]`).Attr("content"); ok {
		collect(v, false)
	}

	// High-confidence pass: page chrome regions.
	doc.Find("header a[href], nav a[href], footer a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		collect(href, true)
	})

	return accounts
}

// classify matches a single href against the platform table.
func classify(raw string, base *url.URL) (models.SocialAccount, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.SocialAccount{}, false
	}

	var u *url.URL
	var err error
	if base != nil {
		u, err = base.Parse(raw)
	} else {
		u, err = url.Parse(raw)
	}
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return models.SocialAccount{}, false
	}

	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for _, p := range platformPatterns {
		if !hostMatches(host, p.hosts) {
			continue
		}
		lowerPath := strings.ToLower(u.Path)
		for _, neg := range p.negative {
			if strings.Contains(lowerPath+"?"+strings.ToLower(u.RawQuery), strings.ToLower(neg)) {
				return models.SocialAccount{}, false
			}
		}
		username := extractUsername(u.Path, p)
		if username == "" {
			return models.SocialAccount{}, false
		}
		return models.SocialAccount{
			Platform: p.name,
			URL:      normalizeProfileURL(u),
			Username: username,
		}, true
	}
	return models.SocialAccount{}, false
}

func hostMatches(host string, candidates []string) bool {
	for _, c := range candidates {
		if host == c || strings.HasSuffix(host, "."+c) {
			return true
		}
	}
	return false
}

// extractUsername reads the username from the URL path shape: the first
// segment, or the second when the first is a known prefix like "company".
func extractUsername(path string, p platformPattern) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ""
	}
	first := segments[0]
	for _, prefix := range p.usernamePrefixes {
		if strings.EqualFold(first, prefix) {
			if len(segments) > 1 && segments[1] != "" {
				return segments[1]
			}
			return ""
		}
	}
	// @handle style paths (YouTube, TikTok).
	return strings.TrimPrefix(first, "@")
}

// normalizeProfileURL strips query, fragment and trailing slash so the same
// profile linked twice deduplicates.
func normalizeProfileURL(u *url.URL) string {
	clean := url.URL{
		Scheme: "https",
		Host:   strings.TrimPrefix(strings.ToLower(u.Host), "www."),
		Path:   strings.TrimRight(u.Path, "/"),
	}
	return clean.String()
}
