package detector

// indicatorKind selects how a single indicator is evaluated against a page.
type indicatorKind int

const (
	// kindSelector matches when the CSS selector finds at least one element.
	kindSelector indicatorKind = iota
	// kindHeader matches when the response header contains the value
	// (case-insensitive substring; empty value means presence).
	kindHeader
	// kindHTML matches when the raw HTML contains the substring.
	kindHTML
	// kindScript matches when any inline <script> body contains the substring.
	kindScript
	// kindMeta matches when a meta tag's content contains the value; the
	// selector field names the meta tag.
	kindMeta
)

// indicator is one weighted signal for a framework.
type indicator struct {
	kind     indicatorKind
	selector string // CSS selector, header name, or meta selector
	value    string // substring to look for (kindHeader/kindHTML/kindScript/kindMeta)
	weight   float64
}

// frameworkCheck is a named framework with its indicator list.
// heavySPA marks frameworks whose rendering depends entirely on client-side
// JavaScript; a confident top match escalates the recommendation to the
// stealth browser path.
type frameworkCheck struct {
	name       string
	heavySPA   bool
	indicators []indicator
}

// confidenceDivisor normalizes summed indicator weights into [0,1].
// The indicator weights below are heuristic calibration, not a contract;
// both are overridable through Config.
const confidenceDivisor = 10.0

// frameworkChecks is evaluated in declaration order; that order is also the
// tie-break for equal confidence scores.
var frameworkChecks = []frameworkCheck{
	{
		name: "nextjs", heavySPA: true,
		indicators: []indicator{
			{kind: kindSelector, selector: "#__next", weight: 8},
			{kind: kindScript, value: "__NEXT_DATA__", weight: 8},
			{kind: kindHTML, value: "/_next/static/", weight: 6},
			{kind: kindHeader, selector: "X-Powered-By", value: "Next.js", weight: 6},
		},
	},
	{
		name: "nuxt", heavySPA: true,
		indicators: []indicator{
			{kind: kindSelector, selector: "#__nuxt", weight: 8},
			{kind: kindScript, value: "__NUXT__", weight: 8},
			{kind: kindHTML, value: "/_nuxt/", weight: 6},
		},
	},
	{
		name: "react", heavySPA: true,
		indicators: []indicator{
			{kind: kindSelector, selector: "[data-reactroot]", weight: 8},
			{kind: kindSelector, selector: "#root", weight: 4},
			{kind: kindHTML, value: "react-dom", weight: 6},
			{kind: kindHTML, value: "react.production.min.js", weight: 6},
		},
	},
	{
		name: "angular", heavySPA: true,
		indicators: []indicator{
			{kind: kindSelector, selector: "app-root", weight: 8},
			{kind: kindSelector, selector: "[ng-version]", weight: 8},
			{kind: kindHTML, value: "ng-app", weight: 5},
		},
	},
	{
		name: "vue", heavySPA: true,
		indicators: []indicator{
			{kind: kindSelector, selector: "#app[data-v-app]", weight: 8},
			{kind: kindScript, value: "__VUE__", weight: 6},
			{kind: kindHTML, value: "vue.runtime", weight: 6},
			{kind: kindSelector, selector: "#app", weight: 3},
		},
	},
	{
		name: "gatsby", heavySPA: true,
		indicators: []indicator{
			{kind: kindSelector, selector: "#___gatsby", weight: 8},
			{kind: kindHTML, value: "/page-data/", weight: 5},
		},
	},
	{
		name: "svelte", heavySPA: true,
		indicators: []indicator{
			{kind: kindHTML, value: "svelte-", weight: 6},
			{kind: kindScript, value: "__sveltekit", weight: 8},
		},
	},
	{
		name: "wordpress",
		indicators: []indicator{
			{kind: kindHTML, value: "/wp-content/", weight: 8},
			{kind: kindHTML, value: "/wp-includes/", weight: 6},
			{kind: kindMeta, selector: `meta[name="generator"]`, value: "WordPress", weight: 8},
			{kind: kindHeader, selector: "Link", value: "wp-json", weight: 5},
		},
	},
	{
		name: "shopify",
		indicators: []indicator{
			{kind: kindHTML, value: "cdn.shopify.com", weight: 8},
			{kind: kindScript, value: "Shopify.theme", weight: 8},
			{kind: kindHeader, selector: "X-Shopid", value: "", weight: 6},
		},
	},
	{
		name: "wix",
		indicators: []indicator{
			{kind: kindHTML, value: "static.wixstatic.com", weight: 8},
			{kind: kindMeta, selector: `meta[name="generator"]`, value: "Wix.com", weight: 8},
		},
	},
	{
		name: "squarespace",
		indicators: []indicator{
			{kind: kindHTML, value: "static1.squarespace.com", weight: 8},
			{kind: kindScript, value: "Static.SQUARESPACE_CONTEXT", weight: 8},
		},
	},
	{
		name: "drupal",
		indicators: []indicator{
			{kind: kindMeta, selector: `meta[name="generator"]`, value: "Drupal", weight: 8},
			{kind: kindHTML, value: "/sites/default/files/", weight: 6},
			{kind: kindHeader, selector: "X-Generator", value: "Drupal", weight: 8},
		},
	},
	{
		name: "jquery",
		indicators: []indicator{
			{kind: kindHTML, value: "jquery.min.js", weight: 5},
			{kind: kindHTML, value: "jquery-", weight: 3},
		},
	},
}
