package strava

import (
	"context"
	"time"
)

// Sleeper abstracts blocking pauses so the 15-minute rate-limit cooldown
// (and the sub-second politeness delays) can be tested without real waiting.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps on the wall clock, waking early if the context is
// cancelled. Ctrl-C during a cooldown aborts the run instead of hanging.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
