package extract

import "testing"

func TestSocialExcludesShareLinks(t *testing.T) {
	html := `<html><body>
		<a href="https://www.facebook.com/sharer/sharer.php?u=https://example.com">Share</a>
		<a href="https://twitter.com/intent/tweet?text=hi">Tweet</a>
		<a href="https://www.facebook.com/examplecompany">Follow us</a>
	</body></html>`

	accounts := Social(html, "https://example.com")
	if len(accounts) != 1 {
		t.Fatalf("accounts = %v, want only the profile link", accounts)
	}
	a := accounts[0]
	if a.Platform != "facebook" || a.Username != "examplecompany" {
		t.Errorf("account = %+v", a)
	}
	if a.URL != "https://facebook.com/examplecompany" {
		t.Errorf("URL = %q, want normalized without www", a.URL)
	}
}

func TestSocialFooterLinksAreHighConfidence(t *testing.T) {
	html := `<html><body>
		<article>
			<a href="https://github.com/somerandomuser">a commenter</a>
		</article>
		<footer>
			<a href="https://github.com/examplecompany">GitHub</a>
		</footer>
	</body></html>`

	accounts := Social(html, "https://example.com")
	byUser := map[string]bool{}
	for _, a := range accounts {
		byUser[a.Username] = a.HighConfidence
	}
	if hc, ok := byUser["examplecompany"]; !ok || !hc {
		t.Errorf("footer profile should be high-confidence: %v", accounts)
	}
	if hc := byUser["somerandomuser"]; hc {
		t.Errorf("in-article profile should not be high-confidence: %v", accounts)
	}
}

func TestSocialDeduplicationUpgradesConfidence(t *testing.T) {
	// Same profile in body and footer: one entry, marked high-confidence.
	html := `<html><body>
		<a href="https://twitter.com/grazerhq">Follow</a>
		<footer><a href="https://twitter.com/grazerhq/">Twitter</a></footer>
	</body></html>`

	accounts := Social(html, "https://example.com")
	if len(accounts) != 1 {
		t.Fatalf("accounts = %v, want 1 after dedupe", accounts)
	}
	if !accounts[0].HighConfidence {
		t.Error("duplicate found in footer should upgrade to high-confidence")
	}
}

func TestSocialTwitterCreatorMeta(t *testing.T) {
	html := `<html><head>
		<meta name="twitter:creator" content="@grazerhq">
	</head><body></body></html>`

	accounts := Social(html, "https://example.com")
	if len(accounts) != 1 {
		t.Fatalf("accounts = %v, want 1", accounts)
	}
	if accounts[0].Platform != "twitter" || accounts[0].Username != "grazerhq" {
		t.Errorf("account = %+v", accounts[0])
	}
}

func TestSocialUsernamePrefixes(t *testing.T) {
	html := `<html><body>
		<a href="https://www.linkedin.com/company/example-inc">LinkedIn</a>
		<a href="https://www.youtube.com/channel/UCabc123">YouTube</a>
		<a href="https://www.tiktok.com/@grazerhq">TikTok</a>
	</body></html>`

	accounts := Social(html, "https://example.com")
	want := map[string]string{
		"linkedin": "example-inc",
		"youtube":  "UCabc123",
		"tiktok":   "grazerhq",
	}
	if len(accounts) != len(want) {
		t.Fatalf("accounts = %v, want %d", accounts, len(want))
	}
	for _, a := range accounts {
		if want[a.Platform] != a.Username {
			t.Errorf("%s username = %q, want %q", a.Platform, a.Username, want[a.Platform])
		}
	}
}

func TestSocialIgnoresContentURLs(t *testing.T) {
	html := `<html><body>
		<a href="https://www.youtube.com/watch?v=abc123">A video</a>
		<a href="https://www.instagram.com/p/xyz/">A post</a>
	</body></html>`

	if accounts := Social(html, "https://example.com"); len(accounts) != 0 {
		t.Fatalf("accounts = %v, want none for content URLs", accounts)
	}
}
