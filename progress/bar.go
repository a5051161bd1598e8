package progress

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
)

// BarSink renders scraping progress as a terminal progress bar. Used by
// the CLI; not suitable for server jobs.
type BarSink struct {
	bar *progressbar.ProgressBar
}

func NewBarSink() *BarSink {
	return &BarSink{}
}

func (b *BarSink) Deliver(_ context.Context, e *Event) error {
	switch e.Type {
	case TypeDiscoveryCompleted:
		b.bar = progressbar.NewOptions(e.Total,
			progressbar.OptionSetDescription("scraping"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
		)
	case TypePageCompleted, TypePageFailed:
		if b.bar != nil {
			_ = b.bar.Set(e.Current)
			if e.Strategy != "" {
				b.bar.Describe(fmt.Sprintf("scraping [%s]", e.Strategy))
			}
		}
	}
	if e.Terminal() && b.bar != nil {
		_ = b.bar.Finish()
		fmt.Println()
	}
	return nil
}
