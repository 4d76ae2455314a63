package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/xrayload/internal/config"
	"github.com/torosent/xrayload/internal/metrics"
	"github.com/torosent/xrayload/internal/registry"
	"github.com/torosent/xrayload/internal/xray"
)

type fakeAPI struct {
	mu      sync.Mutex
	fail    map[metrics.Operation]bool
	block   map[metrics.Operation]bool
	calls   []metrics.Operation
	watches []string
}

func (f *fakeAPI) respond(ctx context.Context, op metrics.Operation, ok int) (*xray.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	block := f.block[op]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return &xray.Response{Elapsed: 9 * time.Millisecond}, fmt.Errorf("%s: %w", op, ctx.Err())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[op] {
		resp := &xray.Response{StatusCode: http.StatusInternalServerError, Elapsed: 7 * time.Millisecond}
		return resp, &xray.StatusError{Operation: string(op), StatusCode: resp.StatusCode, Message: "boom"}
	}
	return &xray.Response{StatusCode: ok, Elapsed: 5 * time.Millisecond, Body: []byte(`{"total_violations":2}`)}, nil
}

func (f *fakeAPI) CreateRepository(ctx context.Context, key string) (*xray.Response, error) {
	return f.respond(ctx, metrics.OpCreateRepository, http.StatusOK)
}

func (f *fakeAPI) CreatePolicy(ctx context.Context, name string) (*xray.Response, error) {
	return f.respond(ctx, metrics.OpCreatePolicy, http.StatusCreated)
}

func (f *fakeAPI) CreateWatch(ctx context.Context, name, repoKey, policyName string) (*xray.Response, error) {
	f.mu.Lock()
	f.watches = append(f.watches, repoKey+"|"+policyName)
	f.mu.Unlock()
	return f.respond(ctx, metrics.OpCreateWatch, http.StatusOK)
}

func (f *fakeAPI) CheckScanStatus(ctx context.Context, repoKey string) (*xray.Response, error) {
	return f.respond(ctx, metrics.OpCheckScanStatus, http.StatusOK)
}

func (f *fakeAPI) GetViolations(ctx context.Context, watchName, repoKey string) (*xray.Response, error) {
	return f.respond(ctx, metrics.OpGetViolations, http.StatusOK)
}

type fakeRegistry struct {
	mu        sync.Mutex
	loginErr  error
	blockPush bool
	pushErrs  []string
	logins    int
	pushedTo  []string
	loginUser string
	loginPass string
}

func (f *fakeRegistry) Login(ctx context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	f.loginUser, f.loginPass = username, password
	return f.loginErr
}

func (f *fakeRegistry) Push(ctx context.Context, repoKey, image, tag string) registry.PushResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushedTo = append(f.pushedTo, repoKey)
	if f.blockPush {
		<-ctx.Done()
		return registry.PushResult{Elapsed: 30 * time.Millisecond, Errors: []string{"signal: killed"}}
	}
	return registry.PushResult{
		Reference: "registry.example.com/" + repoKey + "/alpine:" + tag,
		Elapsed:   20 * time.Millisecond,
		Errors:    f.pushErrs,
	}
}

func newTestUser(t *testing.T, api *fakeAPI, reg *fakeRegistry) (*jfrogUser, *metrics.Recorder) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Password = "pw"
	rec := metrics.NewRecorder()
	now := func() time.Time { return time.Unix(1700000000, 0) }
	u := newJFrogUser(userDeps{cfg: cfg, api: api, registry: reg, sink: rec, now: now}, 3)
	return u, rec
}

func TestUserOnStartProvisions(t *testing.T) {
	api := &fakeAPI{}
	reg := &fakeRegistry{}
	u, rec := newTestUser(t, api, reg)

	if err := u.OnStart(context.Background()); err != nil {
		t.Fatalf("OnStart() error = %v", err)
	}
	if reg.logins != 1 || reg.loginUser != "perftest" || reg.loginPass != "pw" {
		t.Errorf("login = %d calls as %q/%q", reg.logins, reg.loginUser, reg.loginPass)
	}
	if u.repoKey != "docker-local-1700000000-3" {
		t.Errorf("repoKey = %q", u.repoKey)
	}
	if !strings.HasPrefix(u.policyName, "sec_policy_") {
		t.Errorf("policyName = %q", u.policyName)
	}

	samples := rec.Drain()
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Operation != metrics.OpCreateRepository || samples[1].Operation != metrics.OpCreatePolicy {
		t.Errorf("operations = %s, %s", samples[0].Operation, samples[1].Operation)
	}
	for _, s := range samples {
		if s.Status != metrics.StatusSuccess {
			t.Errorf("%s status = %s, want success", s.Operation, s.Status)
		}
		if d, ok := s.Latency(); !ok || d != 5*time.Millisecond {
			t.Errorf("%s latency = %v (%v), want 5ms", s.Operation, d, ok)
		}
	}
}

func TestUserOnStartUsesAccessTokenForLogin(t *testing.T) {
	reg := &fakeRegistry{}
	u, _ := newTestUser(t, &fakeAPI{}, reg)
	u.cfg.Password = ""
	u.cfg.AccessToken = "tok"

	if err := u.OnStart(context.Background()); err != nil {
		t.Fatalf("OnStart() error = %v", err)
	}
	if reg.loginPass != "tok" {
		t.Errorf("login secret = %q, want access token", reg.loginPass)
	}
}

func TestUserOnStartLoginFailure(t *testing.T) {
	boom := errors.New("unauthorized")
	api := &fakeAPI{}
	u, rec := newTestUser(t, api, &fakeRegistry{loginErr: boom})

	if err := u.OnStart(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("OnStart() error = %v, want %v", err, boom)
	}
	if rec.Len() != 0 || len(api.calls) != 0 {
		t.Errorf("expected no API calls after failed login, got %d samples %d calls", rec.Len(), len(api.calls))
	}
}

func TestUserOnStartKeepsGoingOnAPIFailure(t *testing.T) {
	api := &fakeAPI{fail: map[metrics.Operation]bool{metrics.OpCreateRepository: true}}
	u, rec := newTestUser(t, api, &fakeRegistry{})

	if err := u.OnStart(context.Background()); err != nil {
		t.Fatalf("OnStart() error = %v", err)
	}
	if u.repoKey != "" {
		t.Errorf("repoKey = %q, want empty after failure", u.repoKey)
	}
	samples := rec.Drain()
	if len(samples) != 2 || samples[0].Status != metrics.StatusFailed {
		t.Fatalf("unexpected samples %+v", samples)
	}
	if d, ok := samples[0].Latency(); !ok || d != 7*time.Millisecond {
		t.Errorf("failed sample latency = %v (%v), want 7ms", d, ok)
	}
	if len(samples[0].Errors) != 1 || !strings.Contains(samples[0].Errors[0], "boom") {
		t.Errorf("failed sample errors = %v", samples[0].Errors)
	}
}

func TestUserPushWithoutRepositoryKey(t *testing.T) {
	reg := &fakeRegistry{}
	u, rec := newTestUser(t, &fakeAPI{}, reg)

	if err := u.pushImage(context.Background()); err == nil {
		t.Fatal("expected error without repository key")
	}
	if len(reg.pushedTo) != 0 {
		t.Errorf("registry should not be touched, got %v", reg.pushedTo)
	}
	samples := rec.Drain()
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	s := samples[0]
	if s.Operation != metrics.OpPushImage || s.Status != metrics.StatusFailed {
		t.Errorf("sample = %s/%s", s.Operation, s.Status)
	}
	if _, ok := s.Latency(); ok {
		t.Error("early exit sample should carry no response time")
	}
	if len(s.Errors) != 1 || s.Errors[0] != "No repository key set" {
		t.Errorf("Errors = %v", s.Errors)
	}
}

func TestUserPushImage(t *testing.T) {
	tests := []struct {
		name       string
		pushErrs   []string
		wantStatus metrics.Status
	}{
		{"success", nil, metrics.StatusSuccess},
		{"collected errors", []string{"denied: forbidden", "retry failed"}, metrics.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistry{pushErrs: tt.pushErrs}
			u, rec := newTestUser(t, &fakeAPI{}, reg)
			u.repoKey = "repo-1"

			err := u.pushImage(context.Background())
			if (err != nil) != (tt.wantStatus == metrics.StatusFailed) {
				t.Fatalf("pushImage() error = %v", err)
			}
			samples := rec.Drain()
			if len(samples) != 1 {
				t.Fatalf("expected 1 sample, got %d", len(samples))
			}
			if samples[0].Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", samples[0].Status, tt.wantStatus)
			}
			if strings.Join(samples[0].Errors, "|") != strings.Join(tt.pushErrs, "|") {
				t.Errorf("errors = %v, want %v", samples[0].Errors, tt.pushErrs)
			}
			if d, ok := samples[0].Latency(); !ok || d != 20*time.Millisecond {
				t.Errorf("latency = %v (%v), want 20ms", d, ok)
			}
			if len(reg.pushedTo) != 1 || reg.pushedTo[0] != "repo-1" {
				t.Errorf("pushedTo = %v", reg.pushedTo)
			}
		})
	}
}

func TestUserCreateWatchRequiresPolicy(t *testing.T) {
	api := &fakeAPI{}
	u, rec := newTestUser(t, api, &fakeRegistry{})

	if err := u.createWatch(context.Background()); err == nil {
		t.Fatal("expected error without policy")
	}
	samples := rec.Drain()
	if len(samples) != 1 || samples[0].Status != metrics.StatusFailed {
		t.Fatalf("unexpected samples %+v", samples)
	}
	if _, ok := samples[0].Latency(); ok {
		t.Error("early exit sample should carry no response time")
	}
	if len(api.calls) != 0 {
		t.Errorf("API called without policy: %v", api.calls)
	}

	u.repoKey, u.policyName = "repo-1", "sec_policy_x"
	if err := u.createWatch(context.Background()); err != nil {
		t.Fatalf("createWatch() error = %v", err)
	}
	if !strings.HasPrefix(u.watchName, "watch_") {
		t.Errorf("watchName = %q", u.watchName)
	}
	if len(api.watches) != 1 || api.watches[0] != "repo-1|sec_policy_x" {
		t.Errorf("watch request = %v", api.watches)
	}
}

func TestUserQueries(t *testing.T) {
	api := &fakeAPI{fail: map[metrics.Operation]bool{metrics.OpGetViolations: true}}
	u, rec := newTestUser(t, api, &fakeRegistry{})

	if err := u.checkScanStatus(context.Background()); err != nil {
		t.Fatalf("checkScanStatus() error = %v", err)
	}
	if err := u.getViolations(context.Background()); err == nil {
		t.Fatal("expected getViolations failure")
	}
	samples := rec.Drain()
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Operation != metrics.OpCheckScanStatus || samples[0].Status != metrics.StatusSuccess {
		t.Errorf("scan sample = %s/%s", samples[0].Operation, samples[0].Status)
	}
	if samples[1].Operation != metrics.OpGetViolations || samples[1].Status != metrics.StatusFailed {
		t.Errorf("violations sample = %s/%s", samples[1].Operation, samples[1].Status)
	}
}

func TestUserTaskWeights(t *testing.T) {
	u, _ := newTestUser(t, &fakeAPI{}, &fakeRegistry{})
	tasks := u.Tasks()
	if len(tasks) != len(metrics.Operations) {
		t.Fatalf("expected %d tasks, got %d", len(metrics.Operations), len(tasks))
	}
	for i, task := range tasks {
		if task.Name != string(metrics.Operations[i]) {
			t.Errorf("task %d = %q, want %q", i, task.Name, metrics.Operations[i])
		}
		if task.Weight != i+1 {
			t.Errorf("task %s weight = %d, want %d", task.Name, task.Weight, i+1)
		}
		if task.Run == nil {
			t.Errorf("task %s has no Run", task.Name)
		}
	}
}

func TestUserDropsCallsInterruptedByRunEnd(t *testing.T) {
	api := &fakeAPI{block: map[metrics.Operation]bool{metrics.OpGetViolations: true}}
	reg := &fakeRegistry{blockPush: true}
	u, rec := newTestUser(t, api, reg)
	if err := u.OnStart(context.Background()); err != nil {
		t.Fatalf("OnStart() error = %v", err)
	}
	rec.Drain()

	tests := []struct {
		name string
		run  func(context.Context) error
	}{
		{"get_violations", u.getViolations},
		{"push_image", u.pushImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := tt.run(ctx)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("%s error = %v, want deadline exceeded", tt.name, err)
			}
			if n := rec.Len(); n != 0 {
				t.Errorf("recorded %d samples for a call cut off by the run ending, want 0", n)
			}
		})
	}
}

func TestInterrupted(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want bool
	}{
		{"run ended", canceled, fmt.Errorf("get: %w", context.Canceled), true},
		{"run ended with other error", canceled, errors.New("500"), false},
		{"client timeout during run", context.Background(), fmt.Errorf("get: %w", context.DeadlineExceeded), false},
		{"no error", canceled, nil, false},
	}
	for _, tt := range tests {
		if got := interrupted(tt.ctx, tt.err); got != tt.want {
			t.Errorf("%s: interrupted() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
