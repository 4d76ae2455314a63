package cluster

import (
	"sync"

	"github.com/torosent/xrayload/internal/metrics"
)

// Aggregator is the coordinator's table of worker batches. A later batch from
// the same worker replaces the earlier one and keeps its original position.
type Aggregator struct {
	mu      sync.Mutex
	order   []int
	batches map[int][]metrics.Sample
}

// NewAggregator creates an empty table.
func NewAggregator() *Aggregator {
	return &Aggregator{batches: make(map[int][]metrics.Sample)}
}

// Store records b and reports whether it replaced an earlier batch.
func (a *Aggregator) Store(b Batch) (replaced bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, replaced = a.batches[b.WorkerID]; !replaced {
		a.order = append(a.order, b.WorkerID)
	}
	a.batches[b.WorkerID] = append([]metrics.Sample(nil), b.Metrics...)
	return replaced
}

// Flatten concatenates all batches in table order. Samples within a batch keep
// the order the worker recorded them in.
func (a *Aggregator) Flatten() []metrics.Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, s := range a.batches {
		total += len(s)
	}
	out := make([]metrics.Sample, 0, total)
	for _, id := range a.order {
		out = append(out, a.batches[id]...)
	}
	return out
}

// Len returns the number of workers that reported.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}

// Workers returns the reporting worker ids in table order.
func (a *Aggregator) Workers() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.order...)
}
