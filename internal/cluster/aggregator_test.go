package cluster

import (
	"sync"
	"testing"
	"time"

	"github.com/torosent/xrayload/internal/metrics"
)

func sample(op metrics.Operation, tag string) metrics.Sample {
	s := metrics.NewSample(op, metrics.StatusSuccess, time.Millisecond)
	s.Errors = []string{tag}
	return s
}

func tags(samples []metrics.Sample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.Errors[0]
	}
	return out
}

func TestAggregatorLastBatchWins(t *testing.T) {
	agg := NewAggregator()
	agg.Store(Batch{WorkerID: 1, Metrics: []metrics.Sample{sample(metrics.OpCreateRepository, "A")}})
	agg.Store(Batch{WorkerID: 2, Metrics: []metrics.Sample{sample(metrics.OpPushImage, "B")}})
	if replaced := agg.Store(Batch{WorkerID: 1, Metrics: []metrics.Sample{sample(metrics.OpCreatePolicy, "C")}}); !replaced {
		t.Fatal("second batch from worker 1 should report replaced")
	}

	got := tags(agg.Flatten())
	want := []string{"C", "B"}
	if len(got) != len(want) {
		t.Fatalf("Flatten() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Flatten() = %v, want %v", got, want)
		}
	}
	if agg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", agg.Len())
	}
}

func TestAggregatorEmptyIsValid(t *testing.T) {
	agg := NewAggregator()
	if got := agg.Flatten(); len(got) != 0 {
		t.Fatalf("Flatten() on empty table = %v, want empty", got)
	}
	agg.Store(Batch{WorkerID: 7})
	if agg.Len() != 1 {
		t.Fatalf("an empty batch still registers its worker, Len() = %d", agg.Len())
	}
	if got := agg.Flatten(); len(got) != 0 {
		t.Fatalf("Flatten() = %v, want empty", got)
	}
}

func TestAggregatorKeepsBatchOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Store(Batch{WorkerID: 3, Metrics: []metrics.Sample{
		sample(metrics.OpCreateRepository, "3a"),
		sample(metrics.OpCreateRepository, "3b"),
	}})
	agg.Store(Batch{WorkerID: 1, Metrics: []metrics.Sample{sample(metrics.OpGetViolations, "1a")}})

	got := tags(agg.Flatten())
	want := []string{"3a", "3b", "1a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Flatten() = %v, want %v", got, want)
		}
	}
	workers := agg.Workers()
	if len(workers) != 2 || workers[0] != 3 || workers[1] != 1 {
		t.Fatalf("Workers() = %v, want [3 1]", workers)
	}
}

func TestAggregatorDoesNotAliasBatch(t *testing.T) {
	agg := NewAggregator()
	batch := []metrics.Sample{sample(metrics.OpCreateWatch, "orig")}
	agg.Store(Batch{WorkerID: 1, Metrics: batch})
	batch[0].Errors = []string{"mutated"}

	if got := tags(agg.Flatten()); got[0] != "orig" {
		t.Fatalf("stored batch changed after caller mutation: %v", got)
	}
}

func TestAggregatorConcurrentStore(t *testing.T) {
	agg := NewAggregator()
	var wg sync.WaitGroup
	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				agg.Store(Batch{WorkerID: w, Metrics: []metrics.Sample{sample(metrics.OpPushImage, "x")}})
			}
		}(w)
	}
	wg.Wait()
	if agg.Len() != 20 {
		t.Fatalf("Len() = %d, want 20", agg.Len())
	}
	if got := len(agg.Flatten()); got != 20 {
		t.Fatalf("Flatten() returned %d samples, want one per worker (20)", got)
	}
}
