package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/xrayload/internal/runner"
)

// fakeUser counts lifecycle calls and runs a single task with fixed latency.
type fakeUser struct {
	id       int
	latency  time.Duration
	startErr error
	tasks    *int64
	started  *int64
	stopped  *int64
	fail     bool
}

func (u *fakeUser) OnStart(ctx context.Context) error {
	if u.started != nil {
		atomic.AddInt64(u.started, 1)
	}
	return u.startErr
}

func (u *fakeUser) Tasks() []runner.Task {
	return []runner.Task{{
		Name:   "work",
		Weight: 1,
		Run: func(ctx context.Context) error {
			if u.tasks != nil {
				atomic.AddInt64(u.tasks, 1)
			}
			select {
			case <-time.After(u.latency):
			case <-ctx.Done():
				return ctx.Err()
			}
			if u.fail {
				return errors.New("task failed")
			}
			return nil
		},
	}}
}

func (u *fakeUser) OnStop(ctx context.Context) {
	if u.stopped != nil {
		atomic.AddInt64(u.stopped, 1)
	}
}

// TestRunnerHonorsDuration ensures the duration cap stops every user.
func TestRunnerHonorsDuration(t *testing.T) {
	var tasks, started, stopped int64
	r := runner.New(runner.Options{
		Users:    4,
		Duration: 60 * time.Millisecond,
		NewUser: func(id int) runner.User {
			return &fakeUser{id: id, latency: 2 * time.Millisecond, tasks: &tasks, started: &started, stopped: &stopped}
		},
	})
	start := time.Now()
	res := r.Run(context.Background())
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("runner exceeded duration: %v", elapsed)
	}
	if res.Users != 4 || started != 4 {
		t.Fatalf("expected 4 users started, got result %d / calls %d", res.Users, started)
	}
	if stopped != 4 {
		t.Fatalf("expected OnStop for every user, got %d", stopped)
	}
	if res.Total == 0 || res.Total != tasks {
		t.Fatalf("expected Total to match task calls, got %d vs %d", res.Total, tasks)
	}
	if res.SetupErr != nil {
		t.Fatalf("unexpected setup error: %v", res.SetupErr)
	}
}

// TestRunnerSpawnRate ensures users are started one interval apart.
func TestRunnerSpawnRate(t *testing.T) {
	var mu sync.Mutex
	var starts []time.Time
	r := runner.New(runner.Options{
		Users:     3,
		SpawnRate: 20, // 50ms apart
		Duration:  300 * time.Millisecond,
		NewUser: func(id int) runner.User {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			return &fakeUser{id: id, latency: time.Millisecond}
		},
	})
	r.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(starts) != 3 {
		t.Fatalf("expected 3 users, got %d", len(starts))
	}
	if gap := starts[2].Sub(starts[0]); gap < 90*time.Millisecond {
		t.Fatalf("users spawned too fast: first to last %v", gap)
	}
}

// TestRunnerSpawnStopsOnDuration ensures spawning halts when the run ends.
func TestRunnerSpawnStopsOnDuration(t *testing.T) {
	r := runner.New(runner.Options{
		Users:     100,
		SpawnRate: 10,
		Duration:  150 * time.Millisecond,
		NewUser:   func(id int) runner.User { return &fakeUser{id: id, latency: time.Millisecond} },
	})
	res := r.Run(context.Background())
	if res.Users >= 100 || res.Users == 0 {
		t.Fatalf("expected a partial spawn, got %d users", res.Users)
	}
}

// TestRunnerSetupFailureStopsRun ensures one failing OnStart cancels everyone.
func TestRunnerSetupFailureStopsRun(t *testing.T) {
	boom := errors.New("docker login failed")
	var stopped int64
	r := runner.New(runner.Options{
		Users:     3,
		SpawnRate: 50,
		NewUser: func(id int) runner.User {
			u := &fakeUser{id: id, latency: time.Millisecond, stopped: &stopped}
			if id == 2 {
				u.startErr = boom
			}
			return u
		},
	})

	done := make(chan runner.Result, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case res := <-done:
		if !errors.Is(res.SetupErr, boom) {
			t.Fatalf("SetupErr = %v, want %v", res.SetupErr, boom)
		}
		if res.Users > 2 {
			t.Fatalf("expected spawning to stop after the failure, got %d users", res.Users)
		}
		if stopped != 1 {
			t.Fatalf("expected OnStop only for the healthy user, got %d", stopped)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after setup failure")
	}
}

// TestRunnerCountsErrors ensures failing tasks are tallied.
func TestRunnerCountsErrors(t *testing.T) {
	r := runner.New(runner.Options{
		Users:    2,
		Duration: 40 * time.Millisecond,
		NewUser: func(id int) runner.User {
			return &fakeUser{id: id, latency: time.Millisecond, fail: true}
		},
	})
	res := r.Run(context.Background())
	if res.Errors == 0 || res.Errors != res.Total {
		t.Fatalf("expected every task to fail, got %d/%d", res.Errors, res.Total)
	}
}

// TestRunnerWaitsBetweenTasks ensures think time paces each user.
func TestRunnerWaitsBetweenTasks(t *testing.T) {
	var tasks int64
	r := runner.New(runner.Options{
		Users:    1,
		Duration: 100 * time.Millisecond,
		WaitMin:  40 * time.Millisecond,
		WaitMax:  40 * time.Millisecond,
		NewUser:  func(id int) runner.User { return &fakeUser{id: id, tasks: &tasks} },
	})
	r.Run(context.Background())
	if tasks < 2 || tasks > 3 {
		t.Fatalf("expected 2-3 tasks with a 40ms wait over 100ms, got %d", tasks)
	}
}

// TestRunnerRateLimit ensures the shared limiter caps throughput.
func TestRunnerRateLimit(t *testing.T) {
	var tasks int64
	r := runner.New(runner.Options{
		Users:         5,
		Duration:      200 * time.Millisecond,
		RatePerSecond: 20,
		LimiterFactory: func(rps int) *rate.Limiter {
			return rate.NewLimiter(rate.Limit(rps), 1)
		},
		NewUser: func(id int) runner.User { return &fakeUser{id: id, tasks: &tasks} },
	})
	r.Run(context.Background())
	// 20 rps over 200ms is about 4 tasks plus the initial token.
	if tasks > 7 {
		t.Fatalf("rate limit not applied, got %d tasks", tasks)
	}
	if tasks == 0 {
		t.Fatal("expected at least one task")
	}
}

// TestRunnerCancelledContext ensures an interrupt stops the run.
func TestRunnerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := runner.New(runner.Options{
		Users:   2,
		NewUser: func(id int) runner.User { return &fakeUser{id: id, latency: time.Millisecond} },
	})
	time.AfterFunc(30*time.Millisecond, cancel)

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

// TestRunnerNoUsers ensures a zero-user run returns immediately.
func TestRunnerNoUsers(t *testing.T) {
	r := runner.New(runner.Options{
		Users:   0,
		NewUser: func(id int) runner.User { t.Fatal("no user should be created"); return nil },
	})
	res := r.Run(context.Background())
	if res.Users != 0 || res.Total != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
