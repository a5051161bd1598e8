// sitegrazer-mcp exposes a running sitegrazer server to MCP clients over
// stdio. It is a thin HTTP client: every tool call becomes an API request
// against SITEGRAZER_API_URL.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sitegrazer/sitegrazer/models"
)

func main() {
	apiURL := os.Getenv("SITEGRAZER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SITEGRAZER_API_KEY")

	s := server.NewMCPServer(
		"sitegrazer",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	scrapeSiteTool := mcp.NewTool("scrape_site",
		mcp.WithDescription("Crawl a domain and scrape its pages. Each page is fetched with the cheapest strategy that works: plain HTTP, a headless browser, or full SPA rendering with route sampling."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("The domain to crawl, e.g. example.com"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum pages to discover and scrape (default: 20)"),
		),
		mcp.WithString("strategy",
			mcp.Description("Force a strategy instead of automatic detection"),
			mcp.Enum("auto", "static", "dynamic", "spa"),
		),
		mcp.WithArray("formats",
			mcp.Description("Output formats per page: text, html, markdown, links (default: text, links)"),
		),
	)
	s.AddTool(scrapeSiteTool, handleScrapeSite(apiURL, apiKey))

	scrapeURLTool := mcp.NewTool("scrape_url",
		mcp.WithDescription("Scrape one or more explicit URLs without crawling. Returns structured content, metadata and links for each page."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of page URLs to scrape"),
		),
		mcp.WithString("strategy",
			mcp.Description("Force a strategy instead of automatic detection"),
			mcp.Enum("auto", "static", "dynamic", "spa"),
		),
		mcp.WithArray("formats",
			mcp.Description("Output formats per page: text, html, markdown, links (default: text, links)"),
		),
	)
	s.AddTool(scrapeURLTool, handleScrapeURL(apiURL, apiKey))

	analyzeSiteTool := mcp.NewTool("analyze_site",
		mcp.WithDescription("Probe a URL without scraping it: classify the site (static HTML, JS-heavy, SPA framework, anti-bot protection) and report which scraping strategy would be used."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to analyze"),
		),
	)
	s.AddTool(analyzeSiteTool, handleAnalyzeSite(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a JSON POST to the sitegrazer API and returns the body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func runScrape(ctx context.Context, client *http.Client, apiURL, apiKey string, payload map[string]any) (*mcp.CallToolResult, error) {
	respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scrape", payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scrape request failed: %v", err)), nil
	}

	var scrapeResp models.ScrapeResponse
	if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}

	if !scrapeResp.Success {
		errMsg := "scrape failed"
		if scrapeResp.Error != nil {
			errMsg = fmt.Sprintf("[%s] %s", scrapeResp.Error.Code, scrapeResp.Error.Message)
		}
		return mcp.NewToolResultError(errMsg), nil
	}

	return mcp.NewToolResultText(formatResults(&scrapeResp)), nil
}

// formatResults renders a scrape response as readable text, one section per
// page, so MCP clients get content rather than a wall of JSON.
func formatResults(resp *models.ScrapeResponse) string {
	var sb strings.Builder

	if m := resp.Metrics; m != nil {
		sb.WriteString(fmt.Sprintf("Job %s: %d scraped, %d failed in %s\n",
			resp.JobID, m.PagesScraped, m.PagesFailed, m.Duration.Round(time.Millisecond)))
	}
	if resp.Cancelled {
		sb.WriteString("(job was cancelled; results are partial)\n")
	}
	sb.WriteString("\n")

	for i, r := range resp.Results {
		if r.Failed() {
			sb.WriteString(fmt.Sprintf("--- [%d] %s FAILED: %s ---\n\n", i+1, r.URL, r.Error))
			continue
		}

		title := ""
		if r.Content != nil {
			title = r.Content.Title
		}
		sb.WriteString(fmt.Sprintf("--- [%d] %s (%s, via %s) ---\n", i+1, title, r.URL, r.Strategy))

		switch {
		case r.Markdown != "":
			sb.WriteString(r.Markdown)
		case r.Content != nil && r.Content.MainText != "":
			sb.WriteString(r.Content.MainText)
		}
		sb.WriteString("\n")

		if len(r.Links) > 0 {
			sb.WriteString(fmt.Sprintf("Links: %d found\n", len(r.Links)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func handleScrapeSite(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		payload := map[string]any{"domain": domain}

		args := request.GetArguments()
		if maxPages, ok := args["max_pages"]; ok {
			payload["max_pages"] = maxPages
		}
		if strat := request.GetString("strategy", ""); strat != "" {
			payload["strategy"] = strat
		}
		if formats, ok := args["formats"]; ok {
			payload["output_formats"] = formats
		}

		return runScrape(ctx, client, apiURL, apiKey, payload)
	}
}

func handleScrapeURL(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 300 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		payload := map[string]any{"urls": urls}

		if strat := request.GetString("strategy", ""); strat != "" {
			payload["strategy"] = strat
		}
		if formats, ok := request.GetArguments()["formats"]; ok {
			payload["output_formats"] = formats
		}

		return runScrape(ctx, client, apiURL, apiKey, payload)
	}
}

func handleAnalyzeSite(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/analyze", map[string]string{"url": url})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analyze request failed: %v", err)), nil
		}

		var analyzeResp models.AnalyzeResponse
		if err := json.Unmarshal(respBody, &analyzeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !analyzeResp.Success {
			errMsg := "analysis failed"
			if analyzeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", analyzeResp.Error.Code, analyzeResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		pretty, err := json.MarshalIndent(analyzeResp.Analysis, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to format analysis: %v", err)), nil
		}
		return mcp.NewToolResultText(string(pretty)), nil
	}
}
