// Package metrics records per-operation outcomes produced by virtual users.
//
// Two consumers share the same [Sample] stream:
//
//   - [Recorder] keeps every sample in append order until it is drained. It is
//     the source of the CSV performance report and of worker batches sent to
//     the coordinator.
//   - [Collector] keeps running HDR histograms per operation so that progress
//     lines and the end-of-run console summary can show percentiles without
//     holding on to individual samples.
//
// Both are safe for concurrent use by many virtual users in one process:
//
//	rec := metrics.NewRecorder()
//	col := metrics.NewCollector()
//	sink := metrics.Tee(rec, col)
//	sink.Record(metrics.NewSample(metrics.OpCreateRepository, metrics.StatusSuccess, 120*time.Millisecond))
//
//	batch := rec.Drain() // rec is now empty
package metrics
