package metrics_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/torosent/xrayload/internal/metrics"
)

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	// Record deterministic latencies.
	for _, ms := range []int{10, 20, 30, 40, 50} {
		c.Record(metrics.NewSample(metrics.OpCreateRepository, metrics.StatusSuccess, time.Duration(ms)*time.Millisecond))
	}

	stats := c.Stats(0)
	if stats.Total != 5 {
		t.Fatalf("expected total 5, got %d", stats.Total)
	}
	if len(stats.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(stats.Operations))
	}
	op := stats.Operations[0]
	if op.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", op.MinLatency)
	}
	if op.MaxLatency != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", op.MaxLatency)
	}
	if op.MeanLatency != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", op.MeanLatency)
	}
}

func TestCollectorPercentiles(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.Record(metrics.NewSample(metrics.OpGetViolations, metrics.StatusSuccess, time.Duration(i)*time.Millisecond))
	}

	op := c.Stats(0).Operations[0]
	if op.P50Latency < 49*time.Millisecond || op.P50Latency > 51*time.Millisecond {
		t.Errorf("expected P50 ~50ms, got %s", op.P50Latency)
	}
	if op.P90Latency < 89*time.Millisecond || op.P90Latency > 91*time.Millisecond {
		t.Errorf("expected P90 ~90ms, got %s", op.P90Latency)
	}
	if op.P99Latency < 98*time.Millisecond || op.P99Latency > 101*time.Millisecond {
		t.Errorf("expected P99 ~99ms, got %s", op.P99Latency)
	}
}

func TestCollectorOutcomesAndOrder(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(metrics.NewSample(metrics.OpCreatePolicy, metrics.StatusSuccess, time.Millisecond))
	c.Record(metrics.NewUntimedSample(metrics.OpPushImage, metrics.StatusFailed, "boom"))
	c.Record(metrics.NewSample(metrics.OpCreatePolicy, metrics.StatusFailed, 2*time.Millisecond))
	c.Record(metrics.Sample{Operation: metrics.OpCreatePolicy, Status: "weird"})

	stats := c.Stats(time.Second)
	if stats.Total != 4 || stats.Successes != 1 || stats.Failures != 2 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.RequestsPerSec != 4 {
		t.Errorf("expected 4 rps, got %.2f", stats.RequestsPerSec)
	}
	if stats.Operations[0].Operation != metrics.OpCreatePolicy || stats.Operations[1].Operation != metrics.OpPushImage {
		t.Fatalf("operations not in first-seen order: %+v", stats.Operations)
	}
	if stats.Operations[0].Invalid != 1 {
		t.Errorf("expected 1 invalid status, got %d", stats.Operations[0].Invalid)
	}
	if stats.Operations[1].MeanLatency != 0 {
		t.Errorf("untimed samples must not contribute latency, got %s", stats.Operations[1].MeanLatency)
	}
}

func TestCollectorConcurrentRecord(t *testing.T) {
	c := metrics.NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				c.Record(metrics.NewSample(metrics.OpCheckScanStatus, metrics.StatusSuccess, time.Millisecond))
			}
		}()
	}
	wg.Wait()
	if got := c.Stats(0).Total; got != 4000 {
		t.Fatalf("expected 4000 samples, got %d", got)
	}
}

func TestStatsJSONSchema(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(metrics.NewSample(metrics.OpCreateWatch, metrics.StatusSuccess, 15*time.Millisecond))
	c.Record(metrics.NewSample(metrics.OpCreateWatch, metrics.StatusSuccess, 25*time.Millisecond))

	data, err := json.Marshal(c.Stats(100 * time.Millisecond))
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal stats: %v", err)
	}
	for _, key := range []string{"total", "successes", "failures", "duration_ms", "requests_per_sec", "operations"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected key %q in JSON output", key)
		}
	}
}

func TestTeeFansOut(t *testing.T) {
	rec := metrics.NewRecorder()
	col := metrics.NewCollector()
	sink := metrics.Tee(rec, col, nil)
	sink.Record(metrics.NewSample(metrics.OpCreateRepository, metrics.StatusSuccess, time.Millisecond))

	if rec.Len() != 1 {
		t.Errorf("recorder got %d samples, want 1", rec.Len())
	}
	if col.Stats(0).Total != 1 {
		t.Errorf("collector got %d samples, want 1", col.Stats(0).Total)
	}
}
