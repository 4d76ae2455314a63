package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector keeps running per-operation latency histograms and outcome
// counters in a thread-safe manner.
type Collector struct {
	mu    sync.Mutex
	ops   map[Operation]*opBucket
	order []Operation
	start time.Time
}

type opBucket struct {
	hist       *hdrhistogram.Histogram
	successes  int64
	failures   int64
	invalid    int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
	timed      int64
}

// OperationStats represents aggregated metrics for one operation.
type OperationStats struct {
	Operation   Operation     `json:"operation"`
	Total       int64         `json:"total"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	Invalid     int64         `json:"invalid_status,omitempty"`
	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P50Latency  time.Duration `json:"-"`
	P90Latency  time.Duration `json:"-"`
	P99Latency  time.Duration `json:"-"`

	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
}

// Stats represents aggregated metrics across all operations.
type Stats struct {
	Total          int64            `json:"total"`
	Successes      int64            `json:"successes"`
	Failures       int64            `json:"failures"`
	Duration       time.Duration    `json:"-"`
	DurationMs     float64          `json:"duration_ms"`
	RequestsPerSec float64          `json:"requests_per_sec"`
	Operations     []OperationStats `json:"operations"`
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		ops:   make(map[Operation]*opBucket),
		start: time.Now(),
	}
}

// Start resets the reference time used for the requests-per-second rate.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Record implements Sink.
func (c *Collector) Record(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.ops[s.Operation]
	if !ok {
		// Track latencies from 1µs up to 10min with 3 significant figures.
		b = &opBucket{hist: hdrhistogram.New(1, 600_000_000, 3)}
		c.ops[s.Operation] = b
		c.order = append(c.order, s.Operation)
	}

	switch s.Status {
	case StatusSuccess:
		b.successes++
	case StatusFailed:
		b.failures++
	default:
		b.invalid++
	}

	latency, timed := s.Latency()
	if !timed {
		return
	}
	if latency > 0 {
		us := latency.Microseconds()
		if us < b.hist.LowestTrackableValue() {
			us = b.hist.LowestTrackableValue()
		}
		if us > b.hist.HighestTrackableValue() {
			us = b.hist.HighestTrackableValue()
		}
		_ = b.hist.RecordValue(us)
	}
	b.timed++
	b.sumLatency += latency
	if b.timed == 1 || latency < b.minLatency {
		b.minLatency = latency
	}
	if latency > b.maxLatency {
		b.maxLatency = latency
	}
}

// Stats computes current aggregated statistics. Operations appear in the order
// they were first recorded.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Duration:   elapsed,
		DurationMs: toMs(elapsed),
		Operations: make([]OperationStats, 0, len(c.order)),
	}
	for _, op := range c.order {
		b := c.ops[op]
		st := OperationStats{
			Operation:  op,
			Total:      b.successes + b.failures + b.invalid,
			Successes:  b.successes,
			Failures:   b.failures,
			Invalid:    b.invalid,
			MinLatency: b.minLatency,
			MaxLatency: b.maxLatency,
		}
		if b.timed > 0 {
			st.MeanLatency = time.Duration(int64(b.sumLatency) / b.timed)
		}
		if b.hist.TotalCount() > 0 {
			st.P50Latency = time.Duration(b.hist.ValueAtQuantile(50)) * time.Microsecond
			st.P90Latency = time.Duration(b.hist.ValueAtQuantile(90)) * time.Microsecond
			st.P99Latency = time.Duration(b.hist.ValueAtQuantile(99)) * time.Microsecond
		}
		st.MinLatencyMs = toMs(st.MinLatency)
		st.MaxLatencyMs = toMs(st.MaxLatency)
		st.MeanLatencyMs = toMs(st.MeanLatency)
		st.P50LatencyMs = toMs(st.P50Latency)
		st.P90LatencyMs = toMs(st.P90Latency)
		st.P99LatencyMs = toMs(st.P99Latency)

		stats.Total += st.Total
		stats.Successes += st.Successes
		stats.Failures += st.Failures
		stats.Operations = append(stats.Operations, st)
	}

	if elapsed > 0 && stats.Total > 0 {
		stats.RequestsPerSec = float64(stats.Total) / elapsed.Seconds()
	}
	return stats
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
