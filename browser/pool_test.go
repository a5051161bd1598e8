package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"

	"github.com/sitegrazer/sitegrazer/models"
)

// fakeCDP lets tests build rod.Browser handles whose Close is a no-op,
// so pool teardown paths run without a real Chromium.
type fakeCDP struct{}

func (fakeCDP) Event() <-chan *cdp.Event { return nil }

func (fakeCDP) Call(_ context.Context, _, _ string, _ interface{}) ([]byte, error) {
	return nil, nil
}

func fakeBrowser() *rod.Browser { return rod.New().Client(fakeCDP{}) }

func countingLaunch(n *atomic.Int64) LaunchFunc {
	return func(_ context.Context, _ Config) (*rod.Browser, func(), error) {
		n.Add(1)
		return fakeBrowser(), func() {}, nil
	}
}

func healthyFunc(contexts int) HealthFunc {
	return func(*rod.Browser) (int, bool) { return contexts, true }
}

func TestConcurrentAcquireLaunchesOnce(t *testing.T) {
	var launches atomic.Int64
	p := NewPool(Config{IdleTimeout: time.Hour},
		WithLaunchFunc(countingLaunch(&launches)),
		WithHealthFunc(healthyFunc(1)),
	)

	const workers = 8
	handles := make([]*rod.Browser, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := p.Acquire(context.Background())
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			handles[i] = b
		}(i)
	}
	wg.Wait()

	if got := launches.Load(); got != 1 {
		t.Fatalf("launches = %d, want 1", got)
	}
	for i := 1; i < workers; i++ {
		if handles[i] != handles[0] {
			t.Fatal("workers got different browser handles")
		}
	}
}

func TestAcquireRelaunchesDisconnectedBrowser(t *testing.T) {
	var launches atomic.Int64
	connected := atomic.Bool{}
	connected.Store(true)

	p := NewPool(Config{IdleTimeout: time.Hour},
		WithLaunchFunc(countingLaunch(&launches)),
		WithHealthFunc(func(*rod.Browser) (int, bool) { return 1, connected.Load() }),
	)

	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	connected.Store(false)
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := launches.Load(); got != 2 {
		t.Fatalf("launches = %d, want 2 after disconnect", got)
	}
}

func TestAcquireRelaunchesOverContextCeiling(t *testing.T) {
	var launches atomic.Int64
	contexts := atomic.Int64{}
	contexts.Store(1)

	p := NewPool(Config{MaxContexts: 10, IdleTimeout: time.Hour},
		WithLaunchFunc(countingLaunch(&launches)),
		WithHealthFunc(func(*rod.Browser) (int, bool) { return int(contexts.Load()), true }),
	)

	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	contexts.Store(11)
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := launches.Load(); got != 2 {
		t.Fatalf("launches = %d, want 2 after exceeding context ceiling", got)
	}
}

func TestLaunchTimeout(t *testing.T) {
	p := NewPool(Config{LaunchTimeout: 30 * time.Millisecond, IdleTimeout: time.Hour},
		WithLaunchFunc(func(ctx context.Context, _ Config) (*rod.Browser, func(), error) {
			<-ctx.Done()
			return nil, nil, ctx.Err()
		}),
	)

	start := time.Now()
	_, err := p.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected launch timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("Acquire did not respect the launch timeout")
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeBrowserCrash {
		t.Fatalf("error = %v, want code %s", err, models.ErrCodeBrowserCrash)
	}
}

func TestIdleTeardownAndRelaunch(t *testing.T) {
	var launches atomic.Int64
	p := NewPool(Config{IdleTimeout: 20 * time.Millisecond},
		WithLaunchFunc(countingLaunch(&launches)),
		WithHealthFunc(healthyFunc(1)),
	)

	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().Active {
		if time.Now().After(deadline) {
			t.Fatal("browser still active after idle timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The pool stays usable: the next acquisition launches a fresh browser.
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := launches.Load(); got != 2 {
		t.Fatalf("launches = %d, want 2 after idle teardown", got)
	}
	p.Close()
}

func TestStats(t *testing.T) {
	var launches atomic.Int64
	p := NewPool(Config{IdleTimeout: time.Hour},
		WithLaunchFunc(countingLaunch(&launches)),
		WithHealthFunc(healthyFunc(3)),
	)

	s := p.Stats()
	if s.Active || s.Launches != 0 {
		t.Fatalf("fresh pool stats = %+v, want inactive with zero launches", s)
	}

	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	s = p.Stats()
	if !s.Active {
		t.Error("expected active after acquire")
	}
	if s.ContextCount != 3 {
		t.Errorf("ContextCount = %d, want 3", s.ContextCount)
	}
	if s.Launches != 1 {
		t.Errorf("Launches = %d, want 1", s.Launches)
	}
}

func TestCloseStopsAcquire(t *testing.T) {
	var launches atomic.Int64
	p := NewPool(Config{IdleTimeout: time.Hour},
		WithLaunchFunc(countingLaunch(&launches)),
		WithHealthFunc(healthyFunc(1)),
	)

	p.Close()
	_, err := p.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected error from closed pool")
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeBrowserCrash {
		t.Fatalf("error = %v, want code %s", err, models.ErrCodeBrowserCrash)
	}
	if launches.Load() != 0 {
		t.Fatal("closed pool must not launch")
	}
}
