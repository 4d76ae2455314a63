// Package runner is the load execution engine of xrayload.
//
// A run spawns a number of simulated users at a fixed spawn rate. Each user
// runs its setup once, then repeatedly picks one of its weighted tasks, runs
// it and pauses for a uniformly random think time before the next pick:
//
//	r := runner.New(runner.Options{
//		Users:     10,
//		SpawnRate: 2,
//		Duration:  5 * time.Minute,
//		WaitMin:   time.Second,
//		WaitMax:   5 * time.Second,
//		NewUser:   func(id int) runner.User { return newUser(id) },
//	})
//	result := r.Run(ctx)
//
// The run ends when the duration elapses, ctx is cancelled or any user's
// OnStart fails; in the last case [Result.SetupErr] holds the first failure.
// Every user whose setup succeeded gets its OnStop call on the way out.
//
// RatePerSecond optionally caps the task rate across all users with a shared
// golang.org/x/time/rate limiter.
package runner
