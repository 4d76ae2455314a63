package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type coordinatorMetrics struct {
	batches    prometheus.Counter
	replaced   prometheus.Counter
	samples    *prometheus.CounterVec
	invalid    prometheus.Counter
	connected  prometheus.Gauge
	decodeErrs prometheus.Counter
}

func newCoordinatorMetrics(reg prometheus.Registerer) *coordinatorMetrics {
	f := promauto.With(reg)
	return &coordinatorMetrics{
		batches: f.NewCounter(prometheus.CounterOpts{
			Name: "xrayload_coordinator_batches_received_total",
			Help: "Worker batches received by the coordinator.",
		}),
		replaced: f.NewCounter(prometheus.CounterOpts{
			Name: "xrayload_coordinator_batches_replaced_total",
			Help: "Worker batches that replaced an earlier batch from the same worker.",
		}),
		samples: f.NewCounterVec(prometheus.CounterOpts{
			Name: "xrayload_coordinator_samples_received_total",
			Help: "Samples received from workers by operation and status.",
		}, []string{"operation", "status"}),
		invalid: f.NewCounter(prometheus.CounterOpts{
			Name: "xrayload_coordinator_invalid_samples_total",
			Help: "Received samples whose status is neither success nor failed.",
		}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "xrayload_coordinator_connected_workers",
			Help: "Workers currently connected to the coordinator.",
		}),
		decodeErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "xrayload_coordinator_decode_errors_total",
			Help: "Frames that could not be decoded.",
		}),
	}
}
