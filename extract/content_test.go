package extract

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestContentPrefersNonEmptyContainer(t *testing.T) {
	long := strings.Repeat("Server-rendered article prose. ", 20)
	html := `<html><head><title>Post</title></head><body>
		<main></main>
		<article>` + long + `</article>
	</body></html>`

	c := Content(html, "https://example.com/post")
	if c.Title != "Post" {
		t.Errorf("Title = %q, want Post", c.Title)
	}
	if !strings.HasPrefix(c.MainText, "Server-rendered article prose.") {
		t.Errorf("MainText = %q, want the article text, not the empty <main>", c.MainText)
	}
}

func TestContentTitleFallsBackToOpenGraph(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="OG Title">
	</head><body><p>x</p></body></html>`

	c := Content(html, "https://example.com")
	if c.Title != "OG Title" {
		t.Errorf("Title = %q, want OG Title", c.Title)
	}
}

func TestContentHeadingsAndParagraphs(t *testing.T) {
	html := `<html><body>
		<h1>Main Heading</h1>
		<h2>Sub One</h2><h2>Sub Two</h2>
		<p>short</p>
		<p>A paragraph that is clearly long enough to keep.</p>
	</body></html>`

	c := Content(html, "https://example.com")
	if len(c.H1) != 1 || c.H1[0] != "Main Heading" {
		t.Errorf("H1 = %v", c.H1)
	}
	if len(c.H2) != 2 {
		t.Errorf("H2 = %v, want 2 entries", c.H2)
	}
	if len(c.Paragraphs) != 1 {
		t.Fatalf("Paragraphs = %v, want the short one filtered", c.Paragraphs)
	}
}

func TestContentTableWithoutThead(t *testing.T) {
	html := `<html><body><table>
		<tr><th>Name</th><th>Role</th></tr>
		<tr><td>Ada</td><td>Engineer</td></tr>
		<tr><td>Grace</td><td>Admiral</td></tr>
	</table></body></html>`

	c := Content(html, "https://example.com")
	if len(c.Tables) != 1 {
		t.Fatalf("Tables = %v, want 1", c.Tables)
	}
	tab := c.Tables[0]
	if len(tab.Headers) != 2 || tab.Headers[0] != "Name" {
		t.Errorf("Headers = %v, want the th row promoted", tab.Headers)
	}
	if len(tab.Rows) != 2 || tab.Rows[0][0] != "Ada" {
		t.Errorf("Rows = %v", tab.Rows)
	}
}

func TestContentSkipsNestedLists(t *testing.T) {
	html := `<html><body><ul>
		<li>top one</li>
		<li>top two<ul><li>nested</li></ul></li>
	</ul></body></html>`

	c := Content(html, "https://example.com")
	if len(c.Lists) != 1 {
		t.Fatalf("Lists = %v, want only the outer list", c.Lists)
	}
}

func TestContentSkipsHiddenNodes(t *testing.T) {
	long := strings.Repeat("Visible article prose. ", 20)
	html := `<html><body><article>` + long +
		`<div hidden>tagged hidden text</div>` +
		`<div style="display:none">inline hidden text</div>` +
		`<div style="display: none">spaced hidden text</div>` +
		`<script>var leaked = "script body text";</script>` +
		`</article></body></html>`

	c := Content(html, "https://example.com/post")
	for _, banned := range []string{"tagged hidden", "inline hidden", "spaced hidden", "script body"} {
		if strings.Contains(c.MainText, banned) {
			t.Errorf("MainText contains hidden text %q", banned)
		}
	}
	if !strings.Contains(c.MainText, "Visible article prose.") {
		t.Error("visible prose should survive hidden-node stripping")
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	s := strings.Repeat("é", 10) // two bytes per rune
	got := truncate(s, 9)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is not valid UTF-8: %q", got)
	}
	if len(got) != 8 {
		t.Errorf("expected the cut to back up to a rune boundary (8 bytes), got %d", len(got))
	}
	if truncate("plain", 10) != "plain" {
		t.Error("strings under the cap must pass through unchanged")
	}
}

func TestLinksResolveAndDeduplicate(t *testing.T) {
	html := `<html><body>
		<a href="/about">About</a>
		<a href="/about">About again</a>
		<a href="https://other.example.org/page">Elsewhere</a>
		<a href="mailto:hi@example.com">Mail</a>
	</body></html>`

	links := Links(html, "https://example.com/home")
	if len(links) != 2 {
		t.Fatalf("links = %v, want 2", links)
	}
	if links[0].Href != "https://example.com/about" || links[0].External {
		t.Errorf("first link = %+v, want resolved internal URL", links[0])
	}
	if !links[1].External {
		t.Errorf("second link = %+v, want external", links[1])
	}
}

func TestImagesSkipDataURIs(t *testing.T) {
	html := `<html><body>
		<img src="/logo.png" alt="Logo">
		<img src="data:image/png;base64,AAAA">
		<img src="/logo.png">
	</body></html>`

	images := Images(html, "https://example.com")
	if len(images) != 1 {
		t.Fatalf("images = %v, want 1", images)
	}
	if images[0].Src != "https://example.com/logo.png" || images[0].Alt != "Logo" {
		t.Errorf("image = %+v", images[0])
	}
}
