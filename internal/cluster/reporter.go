package cluster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/xrayload/internal/logging"
	"github.com/torosent/xrayload/internal/metrics"
)

// Drainer hands over buffered samples exactly once.
type Drainer interface {
	Drain() []metrics.Sample
}

// Reporter ships a worker's samples to the coordinator at shutdown.
type Reporter struct {
	role     Role
	workerID int
	source   Drainer
	sender   Sender
	timeout  time.Duration
	log      *zap.Logger
}

// NewReporter creates a Reporter. Only RoleWorker reporters send anything;
// for other roles Report leaves the samples in place for the local writer.
func NewReporter(role Role, workerID int, source Drainer, sender Sender, log *zap.Logger) *Reporter {
	return &Reporter{
		role:     role,
		workerID: workerID,
		source:   source,
		sender:   sender,
		timeout:  30 * time.Second,
		log:      logging.OrNop(log).Named("reporter"),
	}
}

// Report drains the recorder and sends the batch. It never returns an error
// and never panics past its boundary: failures are logged and the batch is lost.
func (r *Reporter) Report(ctx context.Context) {
	if r == nil || r.role != RoleWorker {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("reporting panicked", zap.String("panic", fmt.Sprint(p)))
		}
	}()

	if r.source == nil {
		r.log.Warn("no sample source configured")
		return
	}
	samples := r.source.Drain()
	if r.sender == nil {
		r.log.Warn("no coordinator transport, dropping samples", zap.Int("entries", len(samples)))
		return
	}

	// The run context is usually already canceled by the time we report.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	r.log.Info("sending metrics to coordinator",
		zap.Int("worker_id", r.workerID), zap.Int("entries", len(samples)))
	batch := Batch{WorkerID: r.workerID, Metrics: samples}
	if batch.Metrics == nil {
		batch.Metrics = []metrics.Sample{}
	}
	if err := r.sender.Send(sendCtx, MessageMetricsReport, batch); err != nil {
		r.log.Warn("failed to send metrics to coordinator, batch lost",
			zap.Int("worker_id", r.workerID), zap.Int("entries", len(samples)), zap.Error(err))
	}
}
