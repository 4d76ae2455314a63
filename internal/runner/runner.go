package runner

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Result captures execution summary.
type Result struct {
	Users    int64 // users whose OnStart was invoked
	Total    int64 // tasks executed
	Errors   int64 // tasks that returned an error
	Duration time.Duration
	SetupErr error // first OnStart failure, which stopped the run
}

// Runner spawns users and drives their tasks until the duration elapses, the
// context is cancelled or a user fails its setup.
type Runner struct {
	opt     Options
	limiter *rate.Limiter
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{
		opt:     opt,
		limiter: opt.LimiterFactory(opt.RatePerSecond),
	}
}

func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		defer deadlineCancel()
	}

	var (
		users, total, errs int64
		setupOnce          sync.Once
		setupErr           error
		wg                 sync.WaitGroup
	)
	failSetup := func(err error) {
		setupOnce.Do(func() { setupErr = err })
		cancel()
	}

	interval := r.opt.spawnInterval()
	for id := 1; id <= r.opt.Users && r.opt.NewUser != nil; id++ {
		if id > 1 && interval > 0 {
			if err := pause(ctx, interval); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			user := r.opt.NewUser(id)
			if user == nil {
				return
			}
			atomic.AddInt64(&users, 1)
			if err := user.OnStart(ctx); err != nil {
				failSetup(err)
				return
			}
			defer user.OnStop(context.WithoutCancel(ctx))

			rnd := rand.New(rand.NewSource(r.opt.RandomSeed + int64(id)))
			pace := cadence{limiter: r.limiter, rnd: rnd, lo: r.opt.WaitMin, hi: r.opt.WaitMax}
			sel := newTaskSelector(user.Tasks(), rnd)
			if sel.empty() {
				return
			}
			for ctx.Err() == nil {
				if err := pace.admit(ctx); err != nil {
					return
				}
				task := sel.pick()
				atomic.AddInt64(&total, 1)
				if err := task.Run(ctx); err != nil {
					atomic.AddInt64(&errs, 1)
				}
				if err := pace.rest(ctx); err != nil {
					return
				}
			}
		}(id)
	}
	wg.Wait()

	return Result{
		Users:    atomic.LoadInt64(&users),
		Total:    atomic.LoadInt64(&total),
		Errors:   atomic.LoadInt64(&errs),
		Duration: time.Since(start),
		SetupErr: setupErr,
	}
}
