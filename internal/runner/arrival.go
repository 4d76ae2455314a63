package runner

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// cadence spaces the tasks of one user. The limiter is shared by every user
// of a run and caps the global task rate; the think time between two tasks of
// the same user is drawn uniformly from [lo, hi].
type cadence struct {
	limiter *rate.Limiter
	rnd     *rand.Rand
	lo, hi  time.Duration
}

// admit blocks until the shared limiter lets one more task start.
func (c cadence) admit(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	return c.limiter.Wait(ctx)
}

func (c cadence) think() time.Duration {
	if c.hi <= c.lo || c.rnd == nil {
		return c.lo
	}
	return c.lo + time.Duration(c.rnd.Int63n(int64(c.hi-c.lo)+1))
}

// rest sleeps for one think time.
func (c cadence) rest(ctx context.Context) error {
	return pause(ctx, c.think())
}

// pause returns early with ctx's error when ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
