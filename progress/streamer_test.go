package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sitegrazer/sitegrazer/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recordingSink) Deliver(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) snapshot() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestStreamerDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	s := NewStreamer("job-1", sink, 16)

	s.Progress(TypePageStarted, 0, 4, "starting page 1", "static")
	s.Progress(TypePageCompleted, 1, 4, "page 1 done", "static")
	s.Complete(&models.ScrapingMetrics{PagesScraped: 1}, "done")
	s.Close()

	events := sink.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != TypePageStarted || events[2].Type != TypeJobCompleted {
		t.Error("events should arrive in send order")
	}
	if events[0].JobID != "job-1" {
		t.Errorf("job id not stamped, got %q", events[0].JobID)
	}
}

func TestStreamerPercentageMonotonic(t *testing.T) {
	sink := &recordingSink{}
	s := NewStreamer("job-2", sink, 16)

	s.Send(&Event{Phase: PhaseScraping, Type: TypePageCompleted, Percentage: 50})
	s.Send(&Event{Phase: PhaseScraping, Type: TypePageCompleted, Percentage: 30})
	s.Send(&Event{Phase: PhaseScraping, Type: TypePageCompleted, Percentage: 70})
	s.Complete(nil, "done")
	s.Close()

	events := sink.snapshot()
	var last float64 = -1
	for _, e := range events {
		if e.Phase != PhaseScraping {
			continue
		}
		if e.Percentage < last {
			t.Errorf("percentage decreased: %f after %f", e.Percentage, last)
		}
		last = e.Percentage
	}
	if last != 70 {
		t.Errorf("expected final scraping percentage 70, got %f", last)
	}
}

func TestPercentageRoundsToWholePercent(t *testing.T) {
	cases := []struct {
		current, total int
		want           float64
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{5, 3, 100},
		{1, 0, 0},
	}
	for _, tc := range cases {
		if got := percentage(tc.current, tc.total); got != tc.want {
			t.Errorf("percentage(%d, %d) = %v, want %v", tc.current, tc.total, got, tc.want)
		}
	}
}

func TestStreamerExactlyOneTerminal(t *testing.T) {
	sink := &recordingSink{}
	s := NewStreamer("job-3", sink, 16)

	s.Complete(&models.ScrapingMetrics{PagesScraped: 5}, "done")
	s.Fail(nil, "late failure should be ignored")
	s.Cancel(nil, "late cancel should be ignored")
	s.Close()

	var terminals int
	for _, e := range sink.snapshot() {
		if e.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("expected exactly one terminal event, got %d", terminals)
	}
}

func TestStreamerTerminalCarriesMetrics(t *testing.T) {
	sink := &recordingSink{}
	s := NewStreamer("job-4", sink, 16)

	metrics := &models.ScrapingMetrics{PagesScraped: 3, PagesFailed: 1}
	s.Cancel(metrics, "cancelled by caller")
	s.Close()

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Phase != PhaseCancelled {
		t.Errorf("expected cancelled phase, got %s", e.Phase)
	}
	if e.Metrics == nil || e.Metrics.PagesScraped != 3 || e.Metrics.PagesFailed != 1 {
		t.Error("terminal event should carry the final metrics")
	}
}

func TestStreamerFullBufferDropsInsteadOfBlocking(t *testing.T) {
	block := make(chan struct{})
	slow := sinkFunc(func(ctx context.Context, e *Event) error {
		<-block
		return nil
	})
	s := NewStreamer("job-5", slow, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			s.Progress(TypePageCompleted, i, 50, "page", "static")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a stuck sink")
	}
	close(block)
	s.Close()
}

type sinkFunc func(ctx context.Context, e *Event) error

func (f sinkFunc) Deliver(ctx context.Context, e *Event) error { return f(ctx, e) }
