package strategy

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sitegrazer/sitegrazer/models"
)

type fakeStrategy struct {
	name     string
	cost     int
	score    float64
	fail     bool
	executed int
}

func (f *fakeStrategy) Name() string { return f.name }
func (f *fakeStrategy) Cost() int    { return f.cost }

func (f *fakeStrategy) DetectConfidence(ctx context.Context, probe *Probe) float64 {
	return f.score
}

func (f *fakeStrategy) Execute(ctx context.Context, url string) *models.ScrapingResult {
	f.executed++
	r := &models.ScrapingResult{URL: url, FinalURL: url, Strategy: f.name}
	if f.fail {
		r.Error = "simulated failure"
	}
	return r
}

type noProbe struct{}

func (noProbe) FetchPreview(ctx context.Context, url string) (string, http.Header) {
	return "", nil
}

func newTestRequest() *models.ScrapeRequest {
	req := &models.ScrapeRequest{Domain: "example.com"}
	req.Defaults()
	return req
}

func TestManagerPicksHighestConfidence(t *testing.T) {
	static := &fakeStrategy{name: models.StrategyStatic, cost: CostStatic, score: 0.4}
	dynamic := &fakeStrategy{name: models.StrategyDynamic, cost: CostDynamic, score: 0.4}
	spa := &fakeStrategy{name: models.StrategySPA, cost: CostSPA, score: 0.9}

	m := NewManager(newTestRequest(), []Strategy{static, dynamic, spa}, noProbe{}, nil)
	result := m.ScrapeOne(context.Background(), "https://example.com/")

	if result.Strategy != models.StrategySPA {
		t.Errorf("expected spa to win with score 0.9, got %s", result.Strategy)
	}
	if spa.executed != 1 {
		t.Errorf("spa should have executed once, got %d", spa.executed)
	}
	if static.executed != 0 || dynamic.executed != 0 {
		t.Error("losing strategies should not execute")
	}
}

func TestManagerTieBreaksCheapestFirst(t *testing.T) {
	static := &fakeStrategy{name: models.StrategyStatic, cost: CostStatic, score: 0.5}
	dynamic := &fakeStrategy{name: models.StrategyDynamic, cost: CostDynamic, score: 0.5}

	m := NewManager(newTestRequest(), []Strategy{dynamic, static}, noProbe{}, nil)
	result := m.ScrapeOne(context.Background(), "https://example.com/")

	if result.Strategy != models.StrategyStatic {
		t.Errorf("tie should go to static, got %s", result.Strategy)
	}
}

func TestManagerFallsBackOnceOnFailure(t *testing.T) {
	static := &fakeStrategy{name: models.StrategyStatic, cost: CostStatic, score: 0.8, fail: true}
	dynamic := &fakeStrategy{name: models.StrategyDynamic, cost: CostDynamic, score: 0.5}
	spa := &fakeStrategy{name: models.StrategySPA, cost: CostSPA, score: 0.3}

	m := NewManager(newTestRequest(), []Strategy{static, dynamic, spa}, noProbe{}, nil)
	result := m.ScrapeOne(context.Background(), "https://example.com/")

	if result.Strategy != models.StrategyDynamic {
		t.Errorf("expected fallback to dynamic, got %s", result.Strategy)
	}
	if static.executed != 1 || dynamic.executed != 1 {
		t.Errorf("expected one attempt each for static and dynamic, got %d and %d",
			static.executed, dynamic.executed)
	}
	if spa.executed != 0 {
		t.Error("fallback must stop after one retry")
	}
}

func TestManagerNoFallbackWhenDisabled(t *testing.T) {
	static := &fakeStrategy{name: models.StrategyStatic, cost: CostStatic, score: 0.8, fail: true}
	dynamic := &fakeStrategy{name: models.StrategyDynamic, cost: CostDynamic, score: 0.5}

	req := newTestRequest()
	off := false
	req.Fallback = &off

	m := NewManager(req, []Strategy{static, dynamic}, noProbe{}, nil)
	result := m.ScrapeOne(context.Background(), "https://example.com/")

	if !result.Failed() {
		t.Error("result should carry the failure when fallback is disabled")
	}
	if dynamic.executed != 0 {
		t.Error("fallback strategy must not run when disabled")
	}
}

func TestManagerForcedStrategy(t *testing.T) {
	static := &fakeStrategy{name: models.StrategyStatic, cost: CostStatic, score: 0.1}
	dynamic := &fakeStrategy{name: models.StrategyDynamic, cost: CostDynamic, score: 0.9}

	req := newTestRequest()
	req.Strategy = models.StrategyStatic

	m := NewManager(req, []Strategy{static, dynamic}, noProbe{}, nil)
	result := m.ScrapeOne(context.Background(), "https://example.com/")

	if result.Strategy != models.StrategyStatic {
		t.Errorf("forced strategy should win regardless of score, got %s", result.Strategy)
	}
}

func TestManagerRemembersSuccessfulStrategy(t *testing.T) {
	static := &fakeStrategy{name: models.StrategyStatic, cost: CostStatic, score: 0.2}
	dynamic := &fakeStrategy{name: models.StrategyDynamic, cost: CostDynamic, score: 0.9}

	memory := NewMemory(time.Hour)
	defer memory.Stop()

	m := NewManager(newTestRequest(), []Strategy{static, dynamic}, noProbe{}, memory)

	m.ScrapeOne(context.Background(), "https://example.com/a")
	m.ScrapeOne(context.Background(), "https://example.com/b")

	if dynamic.executed != 2 {
		t.Errorf("remembered strategy should be reused, got %d executions", dynamic.executed)
	}
	if got := memory.Get("example.com"); got != models.StrategyDynamic {
		t.Errorf("memory should record dynamic, got %q", got)
	}
}
