// Package cluster moves worker samples to the coordinating process.
//
// A distributed run has one coordinator and any number of workers. Each worker
// owns a [metrics.Recorder]; on shutdown its [Reporter] drains the recorder and
// sends one metrics_report message over a websocket to the coordinator. The
// coordinator's [Aggregator] keeps the latest batch per worker id until the
// report is written.
//
// Delivery is best effort: workers never wait for an acknowledgment and never
// retry, so a batch either arrives once or not at all.
package cluster
