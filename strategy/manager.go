package strategy

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/sitegrazer/sitegrazer/browser"
	"github.com/sitegrazer/sitegrazer/detector"
	"github.com/sitegrazer/sitegrazer/models"
)

// Prober fetches a cheap HTML preview for detection scoring. The static
// strategy satisfies it; tests substitute a stub.
type Prober interface {
	FetchPreview(ctx context.Context, url string) (string, http.Header)
}

// Manager scores the registered strategies per URL, runs the winner, and
// falls back once to the next-best when the winner fails.
type Manager struct {
	req        *models.ScrapeRequest
	strategies []Strategy
	prober     Prober
	memory     *Memory
}

// NewManager builds a Manager for one request. strategies should come in
// any order; the manager sorts them by Cost so confidence ties resolve
// cheapest-first. memory may be nil to disable per-domain strategy reuse.
func NewManager(req *models.ScrapeRequest, strategies []Strategy, prober Prober, memory *Memory) *Manager {
	sorted := make([]Strategy, len(strategies))
	copy(sorted, strategies)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Cost() < sorted[j].Cost() })
	return &Manager{
		req:        req,
		strategies: sorted,
		prober:     prober,
		memory:     memory,
	}
}

// NewDefaultManager wires the three built-in strategies for a request.
func NewDefaultManager(req *models.ScrapeRequest, det *detector.Detector, pool *browser.Pool, memory *Memory) *Manager {
	static := NewStatic(req, det)
	strategies := []Strategy{
		static,
		NewDynamic(req, det, pool),
		NewSPA(req, det, pool),
	}
	return NewManager(req, strategies, static, memory)
}

// ScrapeOne resolves the strategy for a URL and executes it. The returned
// result always carries the strategy name; failures are on the result,
// never as a panic or error.
func (m *Manager) ScrapeOne(ctx context.Context, url string) *models.ScrapingResult {
	if forced := m.forcedStrategy(); forced != nil {
		return forced.Execute(ctx, url)
	}

	domain := Domain(url)
	if remembered := m.rememberedStrategy(domain); remembered != nil {
		result := remembered.Execute(ctx, url)
		if !result.Failed() {
			return result
		}
		slog.Info("remembered strategy failed, re-running detection",
			"domain", domain, "strategy", remembered.Name(), "error", result.Error)
		m.memory.Delete(domain)
	}

	ranked := m.rank(ctx, url)
	if len(ranked) == 0 {
		return failed(url, "", models.NewScrapeError(
			models.ErrCodeInternal, "no strategies registered", nil))
	}

	result := ranked[0].Execute(ctx, url)
	if result.Failed() && *m.req.Fallback && len(ranked) > 1 && ctx.Err() == nil {
		slog.Info("strategy failed, falling back",
			"url", url,
			"failed_strategy", ranked[0].Name(),
			"fallback_strategy", ranked[1].Name(),
			"error", result.Error)
		retry := ranked[1].Execute(ctx, url)
		if !retry.Failed() {
			result = retry
		}
	}

	if !result.Failed() && m.memory != nil {
		m.memory.Set(domain, result.Strategy)
	}
	return result
}

// forcedStrategy honors an explicit strategy in the request.
func (m *Manager) forcedStrategy() Strategy {
	if m.req.Strategy == "" || m.req.Strategy == models.StrategyAuto {
		return nil
	}
	for _, s := range m.strategies {
		if s.Name() == m.req.Strategy {
			return s
		}
	}
	slog.Warn("unknown forced strategy, falling back to detection", "strategy", m.req.Strategy)
	return nil
}

func (m *Manager) rememberedStrategy(domain string) Strategy {
	if m.memory == nil {
		return nil
	}
	name := m.memory.Get(domain)
	if name == "" {
		return nil
	}
	for _, s := range m.strategies {
		if s.Name() == name {
			slog.Debug("strategy memory hit", "domain", domain, "strategy", name)
			return s
		}
	}
	return nil
}

// rank orders strategies by detection confidence descending. The slice is
// pre-sorted by Cost and the sort is stable, so equal confidence resolves
// to the cheaper strategy.
func (m *Manager) rank(ctx context.Context, url string) []Strategy {
	probe := &Probe{URL: url}
	if m.prober != nil {
		probe.HTML, probe.Headers = m.prober.FetchPreview(ctx, url)
	}

	type scored struct {
		s     Strategy
		score float64
	}
	scores := make([]scored, 0, len(m.strategies))
	for _, s := range m.strategies {
		score := s.DetectConfidence(ctx, probe)
		slog.Debug("strategy confidence", "url", url, "strategy", s.Name(), "score", score)
		scores = append(scores, scored{s: s, score: score})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	ranked := make([]Strategy, len(scores))
	for i, sc := range scores {
		ranked[i] = sc.s
	}
	return ranked
}
