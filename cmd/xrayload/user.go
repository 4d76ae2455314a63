package main

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/torosent/xrayload/internal/config"
	"github.com/torosent/xrayload/internal/metrics"
	"github.com/torosent/xrayload/internal/registry"
	"github.com/torosent/xrayload/internal/runner"
	"github.com/torosent/xrayload/internal/tracing"
	"github.com/torosent/xrayload/internal/xray"
)

const (
	errNoRepositoryKey = "No repository key set"
	errNoPolicyName    = "No policy name set"
)

type apiClient interface {
	CreateRepository(ctx context.Context, key string) (*xray.Response, error)
	CreatePolicy(ctx context.Context, name string) (*xray.Response, error)
	CreateWatch(ctx context.Context, name, repoKey, policyName string) (*xray.Response, error)
	CheckScanStatus(ctx context.Context, repoKey string) (*xray.Response, error)
	GetViolations(ctx context.Context, watchName, repoKey string) (*xray.Response, error)
}

type imageRegistry interface {
	Login(ctx context.Context, username, password string) error
	Push(ctx context.Context, repoKey, image, tag string) registry.PushResult
}

// userDeps is shared by every simulated user of a run.
type userDeps struct {
	cfg      *config.Config
	api      apiClient
	registry imageRegistry
	sink     metrics.Sink
	tracer   trace.Tracer
	log      *zap.Logger
	now      func() time.Time
}

// jfrogUser walks the registry and security scanning workflow. Its state is
// only touched from the runner goroutine that owns it.
type jfrogUser struct {
	userDeps
	id         int
	repoKey    string
	policyName string
	watchName  string
}

func newJFrogUser(deps userDeps, id int) *jfrogUser {
	if deps.now == nil {
		deps.now = time.Now
	}
	if deps.log == nil {
		deps.log = zap.NewNop()
	}
	if deps.tracer == nil {
		deps.tracer = noop.NewTracerProvider().Tracer(tracing.InstrumentationName)
	}
	deps.log = deps.log.With(zap.Int("user", id))
	return &jfrogUser{userDeps: deps, id: id}
}

// OnStart logs the docker daemon into the registry, then provisions the
// repository and policy the later tasks work against. Only a failed login
// aborts the run; API failures are recorded like any other task.
func (u *jfrogUser) OnStart(ctx context.Context) error {
	secret := u.cfg.Password
	if secret == "" {
		secret = u.cfg.AccessToken
	}
	if err := u.registry.Login(ctx, u.cfg.Username, secret); err != nil {
		u.log.Error("setup failed", zap.Error(err))
		return err
	}
	_ = u.createRepository(ctx)
	_ = u.createPolicy(ctx)
	return nil
}

func (u *jfrogUser) Tasks() []runner.Task {
	return []runner.Task{
		{Name: string(metrics.OpCreateRepository), Weight: 1, Run: u.createRepository},
		{Name: string(metrics.OpPushImage), Weight: 2, Run: u.pushImage},
		{Name: string(metrics.OpCreatePolicy), Weight: 3, Run: u.createPolicy},
		{Name: string(metrics.OpCreateWatch), Weight: 4, Run: u.createWatch},
		{Name: string(metrics.OpCheckScanStatus), Weight: 5, Run: u.checkScanStatus},
		{Name: string(metrics.OpGetViolations), Weight: 6, Run: u.getViolations},
	}
}

func (u *jfrogUser) OnStop(ctx context.Context) {
	u.log.Debug("user stopped",
		zap.String("repo_key", u.repoKey),
		zap.String("policy", u.policyName),
		zap.String("watch", u.watchName))
}

func (u *jfrogUser) createRepository(ctx context.Context) error {
	key := xray.RepositoryKey(u.cfg.RepoName, u.now(), u.id)
	_, err := u.call(ctx, metrics.OpCreateRepository, func(ctx context.Context) (*xray.Response, error) {
		return u.api.CreateRepository(ctx, key)
	})
	if err == nil {
		u.repoKey = key
	}
	return err
}

func (u *jfrogUser) pushImage(ctx context.Context) error {
	if u.repoKey == "" {
		u.log.Error("repository key not set, create_repository has not succeeded yet")
		u.sink.Record(metrics.NewUntimedSample(metrics.OpPushImage, metrics.StatusFailed, errNoRepositoryKey))
		return errors.New(errNoRepositoryKey)
	}

	ctx, span := tracing.StartOperationSpan(ctx, u.tracer, string(metrics.OpPushImage), u.id)
	res := u.registry.Push(ctx, u.repoKey, u.cfg.ImageName, u.cfg.CustomTag)

	status := metrics.StatusSuccess
	var err error
	if !res.OK() {
		status = metrics.StatusFailed
		err = errors.New(res.Errors[0])
		// A killed docker process reports its own error, not the context's.
		if ctx.Err() != nil {
			tracing.EndSpan(span, ctx.Err())
			return ctx.Err()
		}
		u.log.Error("failed to push image",
			zap.String("reference", res.Reference), zap.Strings("errors", res.Errors))
	}
	u.sink.Record(metrics.NewSample(metrics.OpPushImage, status, res.Elapsed).WithErrors(res.Errors...))
	tracing.EndSpan(span, err, tracing.StatusAttribute(string(status)))
	return err
}

func (u *jfrogUser) createPolicy(ctx context.Context) error {
	name := xray.PolicyName()
	_, err := u.call(ctx, metrics.OpCreatePolicy, func(ctx context.Context) (*xray.Response, error) {
		return u.api.CreatePolicy(ctx, name)
	})
	if err == nil {
		u.policyName = name
		u.log.Debug("policy created", zap.String("policy", name))
	}
	return err
}

func (u *jfrogUser) createWatch(ctx context.Context) error {
	if u.policyName == "" {
		u.log.Error("policy name not set, create_policy has not succeeded yet")
		u.sink.Record(metrics.NewUntimedSample(metrics.OpCreateWatch, metrics.StatusFailed, errNoPolicyName))
		return errors.New(errNoPolicyName)
	}
	name := xray.WatchName()
	_, err := u.call(ctx, metrics.OpCreateWatch, func(ctx context.Context) (*xray.Response, error) {
		return u.api.CreateWatch(ctx, name, u.repoKey, u.policyName)
	})
	if err == nil {
		u.watchName = name
		u.log.Debug("watch created", zap.String("watch", name))
	}
	return err
}

func (u *jfrogUser) checkScanStatus(ctx context.Context) error {
	resp, err := u.call(ctx, metrics.OpCheckScanStatus, func(ctx context.Context) (*xray.Response, error) {
		return u.api.CheckScanStatus(ctx, u.repoKey)
	})
	if err == nil {
		u.log.Debug("scan status", zap.String("status", resp.ScanStatus()))
	}
	return err
}

func (u *jfrogUser) getViolations(ctx context.Context) error {
	resp, err := u.call(ctx, metrics.OpGetViolations, func(ctx context.Context) (*xray.Response, error) {
		return u.api.GetViolations(ctx, u.watchName, u.repoKey)
	})
	if err == nil {
		u.log.Debug("violations", zap.Int64("total", resp.ViolationCount()))
	}
	return err
}

// call runs one API operation inside a span and records its sample.
func (u *jfrogUser) call(ctx context.Context, op metrics.Operation, fn func(context.Context) (*xray.Response, error)) (*xray.Response, error) {
	ctx, span := tracing.StartOperationSpan(ctx, u.tracer, string(op), u.id)
	resp, err := fn(ctx)
	if interrupted(ctx, err) {
		tracing.EndSpan(span, err)
		return resp, err
	}

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusFailed
		u.log.Warn("operation failed", zap.String("operation", string(op)), zap.Error(err))
	}

	var sample metrics.Sample
	if resp != nil {
		sample = metrics.NewSample(op, status, resp.Elapsed)
	} else {
		sample = metrics.NewUntimedSample(op, status)
	}
	if err != nil {
		sample = sample.WithErrors(err.Error())
	}
	u.sink.Record(sample)
	tracing.EndSpan(span, err, tracing.StatusAttribute(string(status)))
	return resp, err
}

// interrupted reports whether err comes from the run ending mid-call. Such
// calls are not samples of the target's behavior.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
