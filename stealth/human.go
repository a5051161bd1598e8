package stealth

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// SimulateHuman performs a short burst of mouse movement and scroll jitter
// so the session's input timeline is not perfectly empty. It is decoration
// only; lazy-load scrolling is the scraping strategy's job. Errors are
// swallowed: a failed wiggle must never fail a scrape.
func SimulateHuman(ctx context.Context, page *rod.Page) {
	p := page.Context(ctx)

	moves := 2 + rand.Intn(3)
	for i := 0; i < moves; i++ {
		x := float64(100 + rand.Intn(800))
		y := float64(100 + rand.Intn(500))
		if err := p.Mouse.MoveLinear(proto.Point{X: x, Y: y}, 3); err != nil {
			return
		}
		select {
		case <-time.After(time.Duration(50+rand.Intn(150)) * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}

	// Small down-then-up scroll; net displacement stays near zero.
	delta := float64(80 + rand.Intn(120))
	if err := p.Mouse.Scroll(0, delta, 2); err != nil {
		return
	}
	select {
	case <-time.After(time.Duration(100+rand.Intn(200)) * time.Millisecond):
	case <-ctx.Done():
		return
	}
	_ = p.Mouse.Scroll(0, -delta, 2)
}
