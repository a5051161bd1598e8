package telemetry

import "time"

// Stopwatch measures elapsed time for a single operation.
type Stopwatch struct {
	start time.Time
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{start: time.Now()}
}

func (s *Stopwatch) Elapsed() time.Duration {
	return time.Since(s.start)
}

// ObservePage records the elapsed time into PageDuration for the given
// strategy and returns the duration.
func (s *Stopwatch) ObservePage(strategy string) time.Duration {
	d := time.Since(s.start)
	PageDuration.WithLabelValues(strategy).Observe(d.Seconds())
	return d
}
