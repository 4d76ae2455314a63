package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/torosent/xrayload/internal/metrics"
)

// ProgressReporter redraws a single status line from a Collector while a run
// is in flight.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	out       io.Writer

	mu      sync.Mutex
	started time.Time
	stop    chan struct{}
	stopped chan struct{}
}

// NewProgressReporter returns a reporter that redraws every interval. A nil
// writer discards output.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{collector: collector, interval: interval, out: writer}
}

// Start begins redrawing. Calling it on a running reporter does nothing.
func (p *ProgressReporter) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.started = time.Now()
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})
	go p.loop(p.stop, p.stopped)
}

// Stop ends redrawing and moves the cursor past the status line. It is safe
// to call before Start or more than once.
func (p *ProgressReporter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.stopped
	p.stop = nil
	fmt.Fprintln(p.out)
}

func (p *ProgressReporter) loop(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	tick := time.NewTicker(p.interval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			io.WriteString(p.out, ProgressLine(p.collector.Stats(time.Since(p.started))))
		}
	}
}

// ProgressLine formats stats as a carriage-return-prefixed line, naming the
// operation with the most samples so far.
func ProgressLine(stats metrics.Stats) string {
	line := fmt.Sprintf("\rRequests: %d | Successes: %d | Failures: %d | RPS: %.1f",
		stats.Total, stats.Successes, stats.Failures, stats.RequestsPerSec)
	if stats.Total == 0 {
		return line
	}
	var top *metrics.OperationStats
	for i := range stats.Operations {
		if top == nil || stats.Operations[i].Total > top.Total {
			top = &stats.Operations[i]
		}
	}
	if top == nil {
		return line
	}
	share := 100 * float64(top.Total) / float64(stats.Total)
	return line + fmt.Sprintf(" | Top: %s (%.0f%%, P99 %.1fms)", top.Operation, share, top.P99LatencyMs)
}
