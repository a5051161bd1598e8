package detector

import (
	"net/http"
	"strings"
	"testing"
)

func TestDetectWordPressClampsConfidence(t *testing.T) {
	d := New(Config{})
	html := `<html><head>
		<link rel="stylesheet" href="/wp-content/themes/twentytwenty/style.css">
		<script src="/wp-includes/js/jquery/jquery.min.js"></script>
		<meta name="generator" content="WordPress 6.4">
	</head><body><p>hello</p></body></html>`

	sigs := d.Detect(html, http.Header{})
	wp := findSignature(t, sigs, "wordpress")
	// 8 + 6 + 8 exceeds the divisor; confidence must clamp at 1.
	if wp.Confidence != 1.0 {
		t.Fatalf("wordpress confidence = %v, want 1.0", wp.Confidence)
	}
}

func TestDetectConfidenceStaysInRange(t *testing.T) {
	d := New(Config{})
	html := `<html><body>
		<div id="root"></div>
		<script src="https://cdn.shopify.com/s/files/theme.js"></script>
		<script src="/wp-content/plugins/x.js"></script>
		<script src="jquery.min.js"></script>
	</body></html>`

	for _, sig := range d.Detect(html, http.Header{}) {
		if sig.Confidence < 0 || sig.Confidence > 1 {
			t.Errorf("%s confidence %v out of [0,1]", sig.Framework, sig.Confidence)
		}
		if len(sig.Indicators) == 0 {
			t.Errorf("%s reported with no matched indicators", sig.Framework)
		}
	}
}

func TestDetectSortsByConfidence(t *testing.T) {
	d := New(Config{})
	// react scores 4 (#root alone), nextjs scores 8 (#__next).
	html := `<html><body><div id="__next"></div><div id="root"></div></body></html>`

	sigs := d.Detect(html, http.Header{})
	if len(sigs) < 2 {
		t.Fatalf("expected at least 2 signatures, got %d", len(sigs))
	}
	if sigs[0].Framework != "nextjs" {
		t.Fatalf("top signature = %s, want nextjs", sigs[0].Framework)
	}
	for i := 1; i < len(sigs); i++ {
		if sigs[i].Confidence > sigs[i-1].Confidence {
			t.Fatalf("signatures not sorted: %v before %v", sigs[i-1], sigs[i])
		}
	}
}

func TestDetectTieKeepsTableOrder(t *testing.T) {
	d := New(Config{})
	// Both match exactly one weight-8 indicator; nextjs is declared first.
	html := `<html><body>
		<div id="__next"></div>
		<img src="/wp-content/uploads/logo.png">
	</body></html>`

	sigs := d.Detect(html, http.Header{})
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d: %v", len(sigs), sigs)
	}
	if sigs[0].Confidence != sigs[1].Confidence {
		t.Fatalf("expected a tie, got %v vs %v", sigs[0].Confidence, sigs[1].Confidence)
	}
	if sigs[0].Framework != "nextjs" || sigs[1].Framework != "wordpress" {
		t.Fatalf("tie order = %s, %s; want nextjs, wordpress", sigs[0].Framework, sigs[1].Framework)
	}
}

func TestDetectHeaderIndicator(t *testing.T) {
	d := New(Config{})
	headers := http.Header{}
	headers.Set("X-Shopid", "12345")

	sigs := d.Detect("<html><body>store</body></html>", headers)
	sig := findSignature(t, sigs, "shopify")
	if sig.Confidence != 0.6 {
		t.Fatalf("shopify confidence = %v, want 0.6", sig.Confidence)
	}
}

func TestDetectNoMatchesOmitted(t *testing.T) {
	d := New(Config{})
	sigs := d.Detect("<html><body><p>plain page</p></body></html>", http.Header{})
	if len(sigs) != 0 {
		t.Fatalf("expected no signatures for a plain page, got %v", sigs)
	}
}

func TestAnalyzeStaticPageRecommendsHTTP(t *testing.T) {
	d := New(Config{})
	html := `<html><head><link rel="stylesheet" href="/wp-content/themes/plain/style.css"></head>` +
		`<body><article>` +
		strings.Repeat("<p>A long paragraph of real server-rendered prose. </p>", 30) +
		`</article></body></html>`

	a := d.Analyze("https://example.com", html, http.Header{})
	if !a.IsStatic {
		t.Error("expected IsStatic")
	}
	if a.RequiresJavaScript {
		t.Error("did not expect RequiresJavaScript")
	}
	if len(a.Signatures) == 0 {
		t.Fatal("expected a wordpress signature")
	}
	if a.RecommendedScraper != RecommendHTTP {
		t.Fatalf("recommendation = %s, want %s", a.RecommendedScraper, RecommendHTTP)
	}
}

func TestAnalyzeUnrecognizedPageRecommendsBrowser(t *testing.T) {
	d := New(Config{})
	// Static-looking prose but no framework indicators at all: with
	// nothing to rule out client-side rendering, the browser wins.
	html := `<html><body><article>` +
		strings.Repeat("<p>A long paragraph of real server-rendered prose. </p>", 30) +
		`</article></body></html>`

	a := d.Analyze("https://example.com", html, http.Header{})
	if len(a.Signatures) != 0 {
		t.Fatalf("expected no signatures, got %d", len(a.Signatures))
	}
	if a.RecommendedScraper != RecommendBrowser {
		t.Fatalf("recommendation = %s, want %s", a.RecommendedScraper, RecommendBrowser)
	}
}

func TestAnalyzeEmptySPAShellRecommendsStealth(t *testing.T) {
	d := New(Config{})
	// Empty #root plus react-dom pushes react to confidence 1.0.
	html := `<html><head>
		<script src="/static/react-dom.production.min.js"></script>
	</head><body><div id="root"></div></body></html>`

	a := d.Analyze("https://app.example.com", html, http.Header{})
	if !a.RequiresJavaScript {
		t.Error("empty SPA root should require JavaScript")
	}
	if a.RecommendedScraper != RecommendBrowserStealth {
		t.Fatalf("recommendation = %s, want %s", a.RecommendedScraper, RecommendBrowserStealth)
	}
}

func TestAnalyzeNoscriptWarningRecommendsBrowser(t *testing.T) {
	d := New(Config{})
	html := `<html><body>
		<noscript>Please enable JavaScript to view this site.</noscript>
		<div id="content"></div>
	</body></html>`

	a := d.Analyze("https://example.com", html, http.Header{})
	if !a.RequiresJavaScript {
		t.Error("noscript warning should require JavaScript")
	}
	if a.RecommendedScraper != RecommendBrowser {
		t.Fatalf("recommendation = %s, want %s", a.RecommendedScraper, RecommendBrowser)
	}
}

func TestAnalyzePageTraits(t *testing.T) {
	d := New(Config{})
	html := `<html><body>
		<form action="/search"><input name="q"></form>
		<div class="load-more">Load more</div>` +
		strings.Repeat("<p>content </p>", 60) +
		`</body></html>`

	a := d.Analyze("https://example.com", html, http.Header{})
	if !a.HasForms {
		t.Error("expected HasForms")
	}
	if !a.HasInfiniteScroll {
		t.Error("expected HasInfiniteScroll")
	}
	if a.IsStatic {
		t.Error("infinite scroll should not count as static")
	}
}

func findSignature(t *testing.T, sigs []Signature, framework string) Signature {
	t.Helper()
	for _, s := range sigs {
		if s.Framework == framework {
			return s
		}
	}
	t.Fatalf("framework %s not detected in %v", framework, sigs)
	return Signature{}
}
