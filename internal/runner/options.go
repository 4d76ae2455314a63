package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Task is one weighted action a user can pick.
type Task struct {
	Name   string
	Weight int // relative pick weight; values below 1 count as 1
	Run    func(ctx context.Context) error
}

// User is one simulated client. OnStart runs once before any task; an error
// from it stops the whole run. OnStop runs once after the user's last task.
type User interface {
	OnStart(ctx context.Context) error
	Tasks() []Task
	OnStop(ctx context.Context)
}

// Options configure the Runner.
type Options struct {
	Users          int                         // number of simulated users
	SpawnRate      float64                     // users started per second (<=0 starts all at once)
	Duration       time.Duration               // overall time limit (0 means until ctx is cancelled)
	WaitMin        time.Duration               // lower bound of the pause between tasks
	WaitMax        time.Duration               // upper bound of the pause between tasks
	RatePerSecond  int                         // global task pacing across users (0 means unlimited)
	NewUser        func(id int) User           // user constructor (required); ids start at 1
	RandomSeed     int64                       // seed for task picks and waits (0 uses the clock)
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Users < 0 {
		o.Users = 0
	}
	if o.SpawnRate < 0 {
		o.SpawnRate = 0
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.WaitMin < 0 {
		o.WaitMin = 0
	}
	if o.WaitMax < o.WaitMin {
		o.WaitMax = o.WaitMin
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// spawnInterval is the gap between two user starts.
func (o Options) spawnInterval() time.Duration {
	if o.SpawnRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / o.SpawnRate)
}
