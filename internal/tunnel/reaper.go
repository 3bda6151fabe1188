package tunnel

import (
	"context"
	"time"
)

// DefaultReapInterval is how often the reaper drains completed bridge
// outcomes.
const DefaultReapInterval = 5 * time.Second

// ReaperTask returns the housekeeping task body: on every tick it drains
// already-completed contained outcomes from sup so a long session with many
// short-lived connections does not grow the registry without bound. The
// reaper has no other side effects, exits only on cancellation, and always
// succeeds.
func ReaperTask(sup *Supervisor, interval time.Duration) TaskFunc {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return func(ctx context.Context) Outcome {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				sup.DrainContained()
				return Succeeded()
			case <-ticker.C:
				sup.DrainContained()
			}
		}
	}
}
