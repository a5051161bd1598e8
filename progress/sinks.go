package progress

import (
	"context"
	"log/slog"
)

// SlogSink logs every event through the structured logger. The default
// sink for server-side jobs without a subscribed consumer.
type SlogSink struct{}

func (SlogSink) Deliver(_ context.Context, e *Event) error {
	slog.Info("progress",
		"job_id", e.JobID,
		"phase", e.Phase,
		"type", e.Type,
		"current", e.Current,
		"total", e.Total,
		"percentage", e.Percentage,
		"message", e.Message,
	)
	return nil
}

// ChannelSink forwards events into a caller-owned channel, used by the
// SSE endpoint. A full channel is reported as an error so the streamer
// logs and drops rather than blocking delivery.
type ChannelSink struct {
	C chan *Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &ChannelSink{C: make(chan *Event, buffer)}
}

func (c *ChannelSink) Deliver(ctx context.Context, e *Event) error {
	select {
	case c.C <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MultiSink fans one event out to several sinks. Each sink's failure is
// independent; the first error is returned for logging.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, e *Event) error {
	var first error
	for _, s := range m {
		if err := s.Deliver(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
