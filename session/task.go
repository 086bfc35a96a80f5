package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// runEvery runs fn on a fixed cadence until ctx is cancelled. The clock is
// injected so tests drive ticks by advancing a fake clock instead of
// sleeping.
func runEvery(ctx context.Context, clk clockwork.Clock, interval time.Duration, fn func()) {
	go func() {
		ticker := clk.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				fn()
			}
		}
	}()
}
