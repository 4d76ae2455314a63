package metrics

import (
	"strconv"
	"time"
)

// Operation names one of the simulated API calls.
type Operation string

const (
	OpCreateRepository Operation = "create_repository"
	OpPushImage        Operation = "push_image"
	OpCreatePolicy     Operation = "create_policy"
	OpCreateWatch      Operation = "create_watch"
	OpCheckScanStatus  Operation = "check_scan_status"
	OpGetViolations    Operation = "get_violations"
)

// Operations lists every known operation in task-weight order.
var Operations = []Operation{
	OpCreateRepository,
	OpPushImage,
	OpCreatePolicy,
	OpCreateWatch,
	OpCheckScanStatus,
	OpGetViolations,
}

// Valid reports whether o is one of the known operations.
func (o Operation) Valid() bool {
	for _, known := range Operations {
		if o == known {
			return true
		}
	}
	return false
}

// Status is the outcome of one operation call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is success or failed.
func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusFailed
}

// TimestampLayout is the ISO-8601 layout used for sample timestamps in reports.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Sample is one observed operation outcome. Samples are values and are never
// mutated after creation.
type Sample struct {
	Timestamp    time.Time `json:"timestamp"`
	Operation    Operation `json:"operation"`
	ResponseTime *float64  `json:"response_time,omitempty"` // milliseconds; nil when no round trip was timed
	Status       Status    `json:"status"`
	Errors       []string  `json:"errors,omitempty"`
}

// NewSample builds a timed sample stamped with the current time.
func NewSample(op Operation, status Status, elapsed time.Duration) Sample {
	ms := float64(elapsed) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	return Sample{
		Timestamp:    time.Now(),
		Operation:    op,
		ResponseTime: &ms,
		Status:       status,
	}
}

// NewUntimedSample builds a sample without a response time, used for
// operations whose outcome is not an HTTP round trip.
func NewUntimedSample(op Operation, status Status, errs ...string) Sample {
	s := Sample{
		Timestamp: time.Now(),
		Operation: op,
		Status:    status,
	}
	if len(errs) > 0 {
		s.Errors = append([]string(nil), errs...)
	}
	return s
}

// WithErrors returns a copy of s carrying the given error messages.
func (s Sample) WithErrors(errs ...string) Sample {
	if len(errs) == 0 {
		return s
	}
	s.Errors = append(append([]string(nil), s.Errors...), errs...)
	return s
}

// Latency returns the response time as a duration and whether one was recorded.
func (s Sample) Latency() (time.Duration, bool) {
	if s.ResponseTime == nil {
		return 0, false
	}
	return time.Duration(*s.ResponseTime * float64(time.Millisecond)), true
}

// Row renders the sample in report column order:
// timestamp, operation, response_time, status.
func (s Sample) Row() []string {
	rt := ""
	if s.ResponseTime != nil {
		rt = strconv.FormatFloat(*s.ResponseTime, 'f', -1, 64)
	}
	ts := ""
	if !s.Timestamp.IsZero() {
		ts = s.Timestamp.Format(TimestampLayout)
	}
	return []string{ts, string(s.Operation), rt, string(s.Status)}
}

// ReportColumns is the fixed header of the performance report.
var ReportColumns = []string{"timestamp", "operation", "response_time", "status"}
