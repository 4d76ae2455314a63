package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/xrayload/internal/auth"
	"github.com/torosent/xrayload/internal/cluster"
	"github.com/torosent/xrayload/internal/config"
	"github.com/torosent/xrayload/internal/httpclient"
	"github.com/torosent/xrayload/internal/logging"
	"github.com/torosent/xrayload/internal/metrics"
	"github.com/torosent/xrayload/internal/output"
	"github.com/torosent/xrayload/internal/registry"
	"github.com/torosent/xrayload/internal/report"
	"github.com/torosent/xrayload/internal/runner"
	"github.com/torosent/xrayload/internal/tracing"
	"github.com/torosent/xrayload/internal/xray"
)

const (
	progressInterval = time.Second
	helloTimeout     = 10 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if cfg.PrintConfig {
		if err := cfg.Print(stdout); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	role := cfg.ClusterRole()
	log = log.With(zap.String("run_id", ulid.Make().String()), zap.String("role", role.String()))

	h := &harness{cfg: cfg, role: role, tracing: tp, log: log, stdout: stdout}
	return h.execute(ctx)
}

// harness runs one load test in the configured role.
type harness struct {
	cfg     *config.Config
	role    cluster.Role
	tracing *tracing.Provider
	log     *zap.Logger
	stdout  io.Writer

	// newRegistry and newAPI are swapped in tests.
	newRegistry func() imageRegistry
	newAPI      func() (apiClient, error)
}

func (h *harness) execute(ctx context.Context) error {
	var coord *cluster.Coordinator
	var ln net.Listener
	if h.role == cluster.RoleCoordinator {
		var err error
		ln, err = net.Listen("tcp", h.cfg.Bind)
		if err != nil {
			return fmt.Errorf("coordinator listen %s: %w", h.cfg.Bind, err)
		}
		coord = cluster.NewCoordinator(cluster.NewAggregator(), h.log)
	}

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()

	if coord != nil {
		g.Go(func() error {
			return coord.Serve(serveCtx, ln)
		})
	}

	var result runner.Result
	g.Go(func() error {
		defer stopServer()
		var err error
		result, err = h.load(gctx, coord)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if result.SetupErr != nil {
		return fmt.Errorf("setup failed: %w", result.SetupErr)
	}
	return nil
}

// load runs the users, prints the console report and hands the samples to
// the role's reporting path.
func (h *harness) load(ctx context.Context, coord *cluster.Coordinator) (runner.Result, error) {
	recorder := metrics.NewRecorder()
	collector := metrics.NewCollector()

	deps, err := h.userDeps(metrics.Tee(recorder, collector))
	if err != nil {
		return runner.Result{}, err
	}

	r := runner.New(runner.Options{
		Users:         h.cfg.Users,
		SpawnRate:     h.cfg.SpawnRate,
		Duration:      h.cfg.Duration,
		WaitMin:       h.cfg.WaitMin,
		WaitMax:       h.cfg.WaitMax,
		RatePerSecond: h.cfg.Rate,
		NewUser: func(id int) runner.User {
			return newJFrogUser(deps, id)
		},
	})

	var progress *output.ProgressReporter
	if !h.cfg.JSONOutput && h.cfg.Users > 0 {
		progress = output.NewProgressReporter(collector, progressInterval, h.stdout)
		progress.Start()
	}

	start := time.Now()
	collector.Start()
	h.log.Info("starting load", zap.Int("users", h.cfg.Users), zap.Float64("spawn_rate", h.cfg.SpawnRate))
	result := r.Run(ctx)
	if progress != nil {
		progress.Stop()
	}
	if result.SetupErr != nil {
		h.log.Error("stopping run after setup failure", zap.Error(result.SetupErr))
	}

	stats := collector.Stats(result.Duration)
	if h.cfg.JSONOutput {
		if err := output.PrintJSONReport(h.stdout, stats); err != nil {
			return result, err
		}
	} else if h.cfg.Users > 0 {
		output.PrintReport(h.stdout, stats)
	}

	h.deliver(ctx, coord, recorder, start, result.Duration)
	return result, nil
}

// deliver routes the recorded samples: written locally when standalone, sent
// to the coordinator from a worker, merged and written by the coordinator.
func (h *harness) deliver(ctx context.Context, coord *cluster.Coordinator, recorder *metrics.Recorder, start time.Time, elapsed time.Duration) {
	switch h.role {
	case cluster.RoleWorker:
		transport, err := cluster.NewTransport(cluster.TransportConfig{Address: h.cfg.Coordinator})
		if err != nil {
			h.log.Error("invalid coordinator address, batch lost", zap.Error(err))
			return
		}
		defer transport.Close()
		cluster.NewReporter(h.role, h.register(ctx, transport), recorder, transport, h.log).Report(ctx)
		st := transport.Stats()
		h.log.Debug("coordinator link",
			zap.Int64("dials", st.Dials),
			zap.Int64("frames", st.FramesSent),
			zap.Int64("bytes", st.BytesSent),
			zap.Int64("failures", st.Failures))

	case cluster.RoleCoordinator:
		if own := recorder.Drain(); len(own) > 0 {
			coord.Aggregator().Store(cluster.Batch{WorkerID: cluster.CoordinatorWorkerID, Metrics: own})
		}
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.CollectTimeout)
		defer cancel()
		got := coord.WaitForBatches(waitCtx, h.cfg.ExpectWorkers)
		h.log.Info("collected worker batches", zap.Int("workers", got), zap.Int("expected", h.cfg.ExpectWorkers))
		h.writer(report.ModeDistributed, start, elapsed).Flush(coord.Aggregator().Flatten())

	default:
		h.writer(report.ModeLocal, start, elapsed).Flush(recorder.Drain())
	}
}

func (h *harness) writer(mode report.Mode, start time.Time, elapsed time.Duration) *report.Writer {
	opts := report.Options{
		Dir:         h.cfg.OutputDir,
		FallbackDir: h.cfg.FallbackDir,
		Mode:        mode,
		Start:       start,
	}
	if h.cfg.ReportConfig {
		opts.Preamble = h.cfg.ReportEntries(start, elapsed)
	}
	return report.NewWriter(opts, h.log)
}

// register asks the coordinator for a worker index. The configured id is only
// a request; when the coordinator cannot be reached the local id is used and
// the coordinator falls back to the id carried in the batch.
func (h *harness) register(ctx context.Context, transport *cluster.Transport) int {
	helloCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), helloTimeout)
	defer cancel()
	id, err := transport.Hello(helloCtx, h.cfg.WorkerID)
	if err != nil {
		h.log.Warn("coordinator handshake failed, using local worker id",
			zap.Int("worker_id", h.workerID()), zap.Error(err))
		return h.workerID()
	}
	if h.cfg.WorkerID > 0 && id != h.cfg.WorkerID {
		h.log.Warn("requested worker id taken, coordinator assigned another",
			zap.Int("requested", h.cfg.WorkerID), zap.Int("worker_id", id))
	}
	return id
}

func (h *harness) workerID() int {
	if h.cfg.WorkerID > 0 {
		return h.cfg.WorkerID
	}
	return os.Getpid()
}

func (h *harness) userDeps(sink metrics.Sink) (userDeps, error) {
	deps := userDeps{
		cfg:    h.cfg,
		sink:   sink,
		tracer: h.tracing.Tracer(),
		log:    h.log,
	}
	if h.cfg.Users <= 0 {
		return deps, nil
	}

	newAPI := h.newAPI
	if newAPI == nil {
		newAPI = h.defaultAPI
	}
	api, err := newAPI()
	if err != nil {
		return deps, err
	}
	deps.api = api

	if h.newRegistry != nil {
		deps.registry = h.newRegistry()
	} else {
		deps.registry = registry.New(registry.Options{
			Binary: h.cfg.DockerBin,
			Host:   h.cfg.RegistryHost(),
			Logger: h.log,
		})
	}
	return deps, nil
}

func (h *harness) defaultAPI() (apiClient, error) {
	provider, err := auth.New(h.cfg.Username, h.cfg.Password, h.cfg.AccessToken)
	if err != nil {
		return nil, err
	}
	return xray.New(xray.Options{
		BaseURL:    h.cfg.JFrogURL,
		HTTPClient: httpclient.NewClient(h.cfg.Timeout, h.cfg.Users),
		Auth:       provider,
		Propagate:  h.tracing.ShouldPropagate(),
	})
}
