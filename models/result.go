package models

import "time"

// Link is a hyperlink found on a page, resolved to an absolute URL.
type Link struct {
	Href     string `json:"href"`
	Text     string `json:"text,omitempty"`
	External bool   `json:"external"`
}

// Image is an image reference found on a page, resolved to an absolute URL.
type Image struct {
	Src   string `json:"src"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// Table is a parsed HTML table. Headers may come from thead or from the
// first row when no thead exists.
type Table struct {
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// PageContent is the structured content extracted from one page.
type PageContent struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	H1          []string   `json:"h1,omitempty"`
	H2          []string   `json:"h2,omitempty"`
	H3          []string   `json:"h3,omitempty"`
	MainText    string     `json:"main_text,omitempty"`
	Paragraphs  []string   `json:"paragraphs,omitempty"`
	Lists       [][]string `json:"lists,omitempty"`
	Tables      []Table    `json:"tables,omitempty"`
}

// MicrodataItem is one itemscope element with its collected properties.
// A property that repeats collapses into multiple slice entries.
type MicrodataItem struct {
	Type       string              `json:"type,omitempty"`
	Properties map[string][]string `json:"properties,omitempty"`
}

// PageMetadata groups the page's machine-readable metadata blocks.
type PageMetadata struct {
	Basic      map[string]string `json:"basic,omitempty"`
	OpenGraph  map[string]string `json:"open_graph,omitempty"`
	Twitter    map[string]string `json:"twitter,omitempty"`
	DublinCore map[string]string `json:"dublin_core,omitempty"`
	JSONLD     []any             `json:"json_ld,omitempty"`
	Microdata  []MicrodataItem   `json:"microdata,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
}

// SocialAccount is a social-media profile link discovered on a page.
type SocialAccount struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	// HighConfidence marks links found inside header, nav or footer regions.
	HighConfidence bool `json:"high_confidence,omitempty"`
}

// ScrapingResult is the immutable outcome of scraping one URL. A failed page
// produces a result with Error set and no content; results are never mutated
// or retried in place after creation.
type ScrapingResult struct {
	URL           string          `json:"url"`
	FinalURL      string          `json:"final_url,omitempty"`
	RedirectCount int             `json:"redirect_count"`
	StatusCode    int             `json:"status_code,omitempty"`
	Content       *PageContent    `json:"content,omitempty"`
	Metadata      *PageMetadata   `json:"metadata,omitempty"`
	Links         []Link          `json:"links,omitempty"`
	Images        []Image         `json:"images,omitempty"`
	Social        []SocialAccount `json:"social,omitempty"`
	HTML          string          `json:"html,omitempty"`
	Markdown      string          `json:"markdown,omitempty"`
	Screenshot    []byte          `json:"screenshot,omitempty"`
	PDF           []byte          `json:"pdf,omitempty"`

	// Strategy names the strategy that produced this result.
	Strategy string `json:"strategy"`

	// Error is set instead of content when the page failed.
	Error string `json:"error,omitempty"`

	LoadTime time.Duration `json:"load_time"`
	DOMSize  int           `json:"dom_size,omitempty"`
}

// Failed reports whether this result records a page-level failure.
func (r *ScrapingResult) Failed() bool { return r.Error != "" }

// ScrapingMetrics summarizes one scrape job.
// PagesScraped + PagesFailed never exceeds the number of attempted URLs.
type ScrapingMetrics struct {
	PagesScraped    int           `json:"pages_scraped"`
	PagesFailed     int           `json:"pages_failed"`
	Duration        time.Duration `json:"duration"`
	NetworkRequests int           `json:"network_requests"`
	// CreditsUsed stays zero for self-hosted strategies; the field exists so
	// metered upstream providers can report cost through the same shape.
	CreditsUsed  float64   `json:"credits_used"`
	BytesScraped int64     `json:"bytes_scraped"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// BulkScrapingResult aggregates a whole job.
type BulkScrapingResult struct {
	Results   []*ScrapingResult `json:"results"`
	Metrics   ScrapingMetrics   `json:"metrics"`
	Cancelled bool              `json:"cancelled,omitempty"`
}
