package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sitegrazer/sitegrazer/models"
	"github.com/sitegrazer/sitegrazer/telemetry"
)

// Sink receives delivered events. Implementations must tolerate being
// called from a single delivery goroutine; Deliver errors are logged and
// swallowed by the streamer.
type Sink interface {
	Deliver(ctx context.Context, e *Event) error
}

const (
	defaultBuffer   = 64
	deliveryTimeout = 10 * time.Second
	terminalWait    = 5 * time.Second
)

// Streamer decouples the scrape loop from event delivery with a bounded
// queue and a single consumer goroutine. A full queue drops the event
// with a warning instead of blocking. Percentage is clamped to be
// monotonically non-decreasing within each phase, and exactly one
// terminal event is ever emitted.
type Streamer struct {
	jobID string
	sink  Sink

	ch   chan *Event
	done chan struct{}

	mu     sync.Mutex
	maxPct map[Phase]float64

	terminal sync.Once
}

// NewStreamer starts the delivery goroutine. A nil sink yields a streamer
// that counts and discards, which keeps call sites unconditional.
func NewStreamer(jobID string, sink Sink, buffer int) *Streamer {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &Streamer{
		jobID:  jobID,
		sink:   sink,
		ch:     make(chan *Event, buffer),
		done:   make(chan struct{}),
		maxPct: make(map[Phase]float64),
	}
	go s.deliverLoop()
	return s
}

// Send queues an event, stamping it with the job ID and timestamp. It
// never blocks: when the buffer is full the event is dropped and logged.
// Events sent after the terminal event are dropped silently.
func (s *Streamer) Send(e *Event) {
	e.JobID = s.jobID
	e.Timestamp = time.Now()
	e.Percentage = s.clampPct(e.Phase, e.Percentage)

	select {
	case s.ch <- e:
	default:
		telemetry.ProgressEventsDropped.Inc()
		slog.Warn("progress buffer full, dropping event",
			"job_id", s.jobID, "type", e.Type)
	}
}

// Progress emits a scraping-phase event with a computed percentage.
func (s *Streamer) Progress(eventType string, current, total int, message, strategy string) {
	s.Send(&Event{
		Phase:      PhaseScraping,
		Type:       eventType,
		Current:    current,
		Total:      total,
		Percentage: percentage(current, total),
		Message:    message,
		Strategy:   strategy,
	})
}

// Complete emits the single terminal success event.
func (s *Streamer) Complete(metrics *models.ScrapingMetrics, message string) {
	s.sendTerminal(PhaseComplete, TypeJobCompleted, message, metrics)
}

// Fail emits the single terminal error event.
func (s *Streamer) Fail(metrics *models.ScrapingMetrics, message string) {
	s.sendTerminal(PhaseError, TypeJobFailed, message, metrics)
}

// Cancel emits the single terminal cancellation event.
func (s *Streamer) Cancel(metrics *models.ScrapingMetrics, message string) {
	s.sendTerminal(PhaseCancelled, TypeJobCancelled, message, metrics)
}

// sendTerminal queues the terminal event at most once. Unlike Send it
// waits briefly for buffer space: the terminal event is the one the
// consumer must not miss.
func (s *Streamer) sendTerminal(phase Phase, eventType, message string, metrics *models.ScrapingMetrics) {
	s.terminal.Do(func() {
		e := &Event{
			JobID:      s.jobID,
			Phase:      phase,
			Type:       eventType,
			Percentage: 100,
			Message:    message,
			Metrics:    metrics,
			Timestamp:  time.Now(),
		}
		select {
		case s.ch <- e:
		case <-time.After(terminalWait):
			telemetry.ProgressEventsDropped.Inc()
			slog.Error("terminal progress event dropped, buffer stuck",
				"job_id", s.jobID, "phase", phase)
		}
	})
}

// Close drains the queue and stops the delivery goroutine. Call after the
// terminal event.
func (s *Streamer) Close() {
	close(s.ch)
	<-s.done
}

// clampPct enforces non-decreasing percentage within a phase.
func (s *Streamer) clampPct(phase Phase, pct float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.maxPct[phase]; ok && pct < prev {
		return prev
	}
	s.maxPct[phase] = pct
	return pct
}

func (s *Streamer) deliverLoop() {
	defer close(s.done)
	for e := range s.ch {
		if s.sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := s.sink.Deliver(ctx, e); err != nil {
			telemetry.ProgressEventsDropped.Inc()
			slog.Warn("progress delivery failed",
				"job_id", s.jobID, "type", e.Type, "error", err)
		}
		cancel()
	}
}
