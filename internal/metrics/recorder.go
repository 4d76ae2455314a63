package metrics

import "sync"

// Sink accepts samples.
type Sink interface {
	Record(s Sample)
}

// Recorder is an append-only, concurrency-safe list of samples owned by one
// process. Drain hands the accumulated samples to exactly one caller.
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends s.
func (r *Recorder) Record(s Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

// Drain returns every sample recorded since the previous drain, in append
// order, and leaves the recorder empty.
func (r *Recorder) Drain() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.samples
	r.samples = nil
	return out
}

// Len returns the number of buffered samples.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

type teeSink []Sink

func (t teeSink) Record(s Sample) {
	for _, sink := range t {
		sink.Record(s)
	}
}

// Tee fans a sample out to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	out := make(teeSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
