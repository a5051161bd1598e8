// Package browser owns the lifecycle of the shared headless-browser
// process. One Pool holds at most one live browser; all scrape workers
// share it and the pool is the mutual-exclusion boundary for launches.
package browser

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/telemetry"
)

// Config controls the pooled browser.
type Config struct {
	// Headless controls whether the browser runs headless.
	Headless bool

	// NoSandbox disables Chrome's sandbox (needed in containers).
	NoSandbox bool

	// Bin overrides the Chromium binary path.
	Bin string

	// Proxy is an optional proxy URL for all browser traffic.
	Proxy string

	// MaxContexts is the open-context ceiling above which the browser is
	// considered unhealthy and relaunched. Default: 10.
	MaxContexts int

	// LaunchTimeout bounds a single browser launch. Default: 15s.
	LaunchTimeout time.Duration

	// IdleTimeout is how long the browser may sit unused before the
	// deferred teardown fires. Default: 60s.
	IdleTimeout time.Duration
}

func (c *Config) defaults() {
	if c.MaxContexts <= 0 {
		c.MaxContexts = 10
	}
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// LaunchFunc starts a browser and returns it with a kill function.
// Injectable so tests can count launches without a real Chromium.
type LaunchFunc func(ctx context.Context, cfg Config) (*rod.Browser, func(), error)

// HealthFunc probes a browser handle: open-context count and connectivity.
type HealthFunc func(b *rod.Browser) (contexts int, connected bool)

// Stats is a snapshot of the pool's state.
type Stats struct {
	Active       bool          `json:"active"`
	ContextCount int           `json:"context_count"`
	IdleTime     time.Duration `json:"idle_time"`
	Launches     int64         `json:"launches"`
}

// Pool manages the single shared browser. Safe for concurrent use.
type Pool struct {
	cfg     Config
	launch  LaunchFunc
	health  HealthFunc
	monitor *ResourceMonitor

	mu        sync.Mutex
	browser   *rod.Browser
	kill      func()
	closing   bool
	idleTimer *time.Timer
	lastUsed  time.Time

	launches    atomic.Int64
	signalsOnce sync.Once
}

// Option customizes a Pool.
type Option func(*Pool)

// WithLaunchFunc replaces the default rod launcher.
func WithLaunchFunc(f LaunchFunc) Option { return func(p *Pool) { p.launch = f } }

// WithHealthFunc replaces the default health probe.
func WithHealthFunc(f HealthFunc) Option { return func(p *Pool) { p.health = f } }

// WithResourceMonitor lowers the context ceiling under memory pressure.
func WithResourceMonitor(m *ResourceMonitor) Option { return func(p *Pool) { p.monitor = m } }

// NewPool creates a Pool. The browser is launched lazily on first Acquire.
func NewPool(cfg Config, opts ...Option) *Pool {
	cfg.defaults()
	p := &Pool{
		cfg:    cfg,
		launch: defaultLaunch,
		health: defaultHealth,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.registerExitHandlers()
	return p
}

// Acquire returns the shared browser handle, launching or relaunching as
// needed. There is no per-call release; the pool is long-lived and the
// idle timer handles teardown. Acquire fails fast once Close has begun.
// Because teardown holds the pool mutex, an acquisition that arrives during
// an idle teardown waits for it rather than racing it.
func (p *Pool) Acquire(ctx context.Context) (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closing {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "browser pool is closed", nil)
	}

	if p.browser != nil {
		contexts, connected := p.health(p.browser)
		if connected && contexts <= p.contextCeiling() {
			p.touchLocked()
			return p.browser, nil
		}
		slog.Warn("browser unhealthy, relaunching",
			"connected", connected,
			"contexts", contexts,
			"ceiling", p.contextCeiling(),
		)
		p.cleanupLocked()
	}

	launchCtx, cancel := context.WithTimeout(ctx, p.cfg.LaunchTimeout)
	defer cancel()

	b, kill, err := p.launchWithDeadline(launchCtx)
	if err != nil {
		// Launch failure is surfaced to the caller, not silently retried.
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "browser launch failed", err)
	}
	p.browser = b
	p.kill = kill
	p.launches.Add(1)
	telemetry.BrowserLaunches.Inc()
	slog.Info("browser launched", "launches", p.launches.Load())

	p.touchLocked()
	return p.browser, nil
}

// Cleanup tears down the current browser. Idempotent and safe to call
// concurrently; the pool stays usable and relaunches on the next Acquire.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanupLocked()
}

// Close permanently shuts the pool down. Subsequent Acquire calls fail.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closing = true
	p.cleanupLocked()
}

// Stats reports the pool's current state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{Launches: p.launches.Load()}
	if p.browser != nil {
		contexts, connected := p.health(p.browser)
		s.Active = connected
		s.ContextCount = contexts
		s.IdleTime = time.Since(p.lastUsed)
	}
	return s
}

// launchWithDeadline runs the launch function and enforces the launch
// timeout even when the underlying launcher ignores the context. A browser
// that finishes launching after the deadline is killed, not leaked.
func (p *Pool) launchWithDeadline(ctx context.Context) (*rod.Browser, func(), error) {
	type launched struct {
		b    *rod.Browser
		kill func()
		err  error
	}
	done := make(chan launched, 1)

	go func() {
		b, kill, err := p.launch(ctx, p.cfg)
		done <- launched{b, kill, err}
	}()

	select {
	case l := <-done:
		return l.b, l.kill, l.err
	case <-ctx.Done():
		go func() {
			if l := <-done; l.err == nil {
				_ = l.b.Close()
				if l.kill != nil {
					l.kill()
				}
			}
		}()
		return nil, nil, ctx.Err()
	}
}

// touchLocked resets the idle teardown timer; a fresh acquisition replaces
// the pending timer rather than stacking another one. Caller holds p.mu.
func (p *Pool) touchLocked() {
	p.lastUsed = time.Now()
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.cfg.IdleTimeout, func() {
		slog.Info("browser idle timeout, tearing down", "idleTimeout", p.cfg.IdleTimeout)
		p.Cleanup()
	})
}

// cleanupLocked closes the browser and kills its process. Caller holds p.mu.
func (p *Pool) cleanupLocked() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
	if p.browser == nil {
		return
	}
	if err := p.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	if p.kill != nil {
		p.kill()
		p.kill = nil
	}
	p.browser = nil
}

// contextCeiling is the effective open-context limit, lowered by the
// resource monitor under memory pressure.
func (p *Pool) contextCeiling() int {
	if p.monitor != nil {
		return p.monitor.ContextCeiling(p.cfg.MaxContexts)
	}
	return p.cfg.MaxContexts
}

// registerExitHandlers installs SIGINT/SIGTERM cleanup exactly once so an
// interrupted process never leaves a zombie Chromium behind.
func (p *Pool) registerExitHandlers() {
	p.signalsOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-ch
			slog.Info("signal received, cleaning up browser", "signal", sig.String())
			p.Cleanup()
		}()
	})
}

// defaultLaunch starts a hardened headless Chromium via the rod launcher.
func defaultLaunch(ctx context.Context, cfg Config) (*rod.Browser, func(), error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// Hardened flag set for containerized execution: GPU off, automation
	// banner suppressed, background throttling disabled.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, err
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, nil, err
	}
	return b, l.Kill, nil
}

// defaultHealth counts open pages and treats a failed listing as a lost
// browser connection.
func defaultHealth(b *rod.Browser) (int, bool) {
	pages, err := b.Pages()
	if err != nil {
		return 0, false
	}
	return len(pages), true
}
