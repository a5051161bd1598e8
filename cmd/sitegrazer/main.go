package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sitegrazer/sitegrazer/browser"
	"github.com/sitegrazer/sitegrazer/config"
	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/engine"
	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/progress"
	"github.com/sitegrazer/sitegrazer/strategy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitegrazer [domain]",
		Short: "Scrape a website with automatic strategy selection",
		Long: `sitegrazer crawls a domain (or scrapes an explicit URL list), picks the
cheapest strategy that fits each page (plain HTTP, headless browser, or
SPA rendering) and writes structured results as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScrape,
	}

	flags := cmd.Flags()
	flags.StringSlice("url", nil, "explicit URL(s) to scrape; skips discovery")
	flags.Int("max-pages", 20, "maximum pages to discover and scrape")
	flags.String("strategy", "auto", "force a strategy: auto, static, dynamic, spa")
	flags.StringSlice("format", []string{"text", "links"}, "output formats: text, html, markdown, links, screenshot, pdf")
	flags.Bool("stealth", true, "apply anti-bot evasions on browser strategies")
	flags.Int("concurrency", 1, "concurrent page workers")
	flags.Duration("delay", time.Second, "politeness delay between pages")
	flags.Duration("timeout", 30*time.Second, "per-page timeout")
	flags.StringP("output", "o", "", "write results to file instead of stdout")
	flags.Bool("quiet", false, "suppress the progress bar")
	flags.Bool("verbose", false, "debug logging to stderr")

	// Every flag is also settable via SITEGRAZER_CLI_* env vars.
	viper.SetEnvPrefix("SITEGRAZER_CLI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	urls := viper.GetStringSlice("url")
	if len(args) == 0 && len(urls) == 0 {
		return fmt.Errorf("needs a domain argument or at least one --url")
	}

	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	req := &models.ScrapeRequest{
		URLs:          urls,
		MaxPages:      viper.GetInt("max-pages"),
		Strategy:      viper.GetString("strategy"),
		OutputFormats: viper.GetStringSlice("format"),
		Stealth:       viper.GetBool("stealth"),
		Concurrency:   viper.GetInt("concurrency"),
		RequestDelay:  viper.GetDuration("delay"),
		PageTimeout:   viper.GetDuration("timeout"),
	}
	if len(args) > 0 {
		req.Domain = args[0]
	}

	cfg := config.Load()
	pool := browser.NewPool(browser.Config{
		Headless:      cfg.Browser.Headless,
		NoSandbox:     cfg.Browser.NoSandbox,
		Bin:           cfg.Browser.Bin,
		Proxy:         cfg.Browser.Proxy,
		MaxContexts:   cfg.Browser.MaxContexts,
		LaunchTimeout: cfg.Browser.LaunchTimeout,
		IdleTimeout:   cfg.Browser.IdleTimeout,
	})
	defer pool.Close()

	memory := strategy.NewMemory(cfg.Scrape.MemoryTTL)
	defer memory.Stop()
	eng := engine.New(pool, detector.New(detector.Config{}), memory)

	// Ctrl-C cancels the job; partial results still print.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink progress.Sink
	if !viper.GetBool("quiet") {
		sink = progress.NewBarSink()
	}

	results, metrics, err := eng.Scrape(ctx, req, sink)
	if err != nil {
		return err
	}

	resp := models.ScrapeResponse{
		Success:   true,
		JobID:     req.ID,
		Results:   results,
		Metrics:   metrics,
		Cancelled: ctx.Err() != nil,
	}
	out, marshalErr := json.MarshalIndent(resp, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("encode results: %w", marshalErr)
	}

	if path := viper.GetString("output"); path != "" {
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %d results to %s\n", len(results), path)
		return nil
	}
	fmt.Println(string(out))
	return nil
}
