package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sitegrazer/sitegrazer/api"
	"github.com/sitegrazer/sitegrazer/browser"
	"github.com/sitegrazer/sitegrazer/cache"
	"github.com/sitegrazer/sitegrazer/config"
	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/engine"
	"github.com/sitegrazer/sitegrazer/strategy"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("sitegrazer starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxContexts", cfg.Browser.MaxContexts,
	)

	// ── 3. Build the browser pool (lazy: no launch until first use) ──
	pool := browser.NewPool(browser.Config{
		Headless:      cfg.Browser.Headless,
		NoSandbox:     cfg.Browser.NoSandbox,
		Bin:           cfg.Browser.Bin,
		Proxy:         cfg.Browser.Proxy,
		MaxContexts:   cfg.Browser.MaxContexts,
		LaunchTimeout: cfg.Browser.LaunchTimeout,
		IdleTimeout:   cfg.Browser.IdleTimeout,
	}, browser.WithResourceMonitor(browser.NewResourceMonitor()))
	defer pool.Close()

	// ── 4. Wire the engine ──────────────────────────────────────────
	det := detector.New(detector.Config{})
	memory := strategy.NewMemory(cfg.Scrape.MemoryTTL)
	defer memory.Stop()
	eng := engine.New(pool, det, memory)

	// ── 5. Cache + router ───────────────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	startTime := time.Now()
	router := api.NewRouter(eng, pool, det, cfg, cc, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// pool.Close() runs via defer — kills the shared browser.
	slog.Info("sitegrazer stopped")
}

// initLogger configures slog based on the LogConfig. When a log file is
// configured, output rotates via lumberjack.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
}
