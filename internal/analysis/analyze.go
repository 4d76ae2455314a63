package analysis

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/torosent/xrayload/internal/logging"
	"github.com/torosent/xrayload/internal/metrics"
	"github.com/torosent/xrayload/internal/report"
)

// DefaultConfig is the configuration assumed when a report has no
// configuration block, or for keys the block does not set.
func DefaultConfig() []report.Entry {
	return []report.Entry{
		{Key: "jfrog_url", Value: "https://trialvq0712.jfrog.io"},
		{Key: "username", Value: "unknown"},
		{Key: "num_users", Value: "unknown"},
		{Key: "spawn_rate", Value: "unknown"},
		{Key: "test_start_time", Value: "2025-06-22T05:16:48"},
		{Key: "test_duration", Value: "11 seconds (estimated)"},
		{Key: "repo_name_pattern", Value: "docker-local-<timestamp>-<uuid>"},
		{Key: "image_name", Value: "alpine:3.9"},
		{Key: "custom_tag", Value: "test"},
	}
}

// OperationValue pairs an operation with a statistic.
type OperationValue struct {
	Operation string
	Value     float64
}

// OperationCount pairs an operation with a row count.
type OperationCount struct {
	Operation string
	Count     int
}

// Metrics is the summary computed from a report. Every list is in order of
// first appearance in the table.
type Metrics struct {
	TotalRequests int
	Operations    []string
	// SuccessRate and FailureRate are percentages of all rows. Rows with any
	// other status count toward neither.
	SuccessRate float64
	FailureRate float64
	// AvgResponseTime and MaxResponseTime are NaN for an operation with no
	// numeric response time.
	AvgResponseTime []OperationValue
	MaxResponseTime []OperationValue
	// FailureCounts lists only operations with at least one failed row.
	FailureCounts   []OperationCount
	InvalidStatuses int
	Config          []report.Entry
}

// Result is a parsed report.
type Result struct {
	Table   Table
	Metrics Metrics
	// ConfigFromFile is false when the configuration block was missing and
	// the defaults were used.
	ConfigFromFile bool
}

// Analyzer parses reports.
type Analyzer struct {
	log *zap.Logger
}

// New creates an Analyzer.
func New(log *zap.Logger) *Analyzer {
	return &Analyzer{log: logging.OrNop(log).Named("analysis")}
}

// Analyze parses the report at path with a no-op logger.
func Analyze(path string) (*Result, error) {
	return New(nil).Analyze(path)
}

// Analyze reads and parses the report at path.
func (a *Analyzer) Analyze(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return a.Parse(data)
}

// Parse parses report content. It has no side effects besides logging.
func (a *Analyzer) Parse(data []byte) (*Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := splitLines(data)
	config := DefaultConfig()
	body := data
	fromFile := false

	if mi := indexOf(lines, report.MetricsMarker); mi >= 0 {
		if ci := indexOf(lines[:mi], report.ConfigMarker); ci >= 0 {
			fromFile = true
			config = mergeConfig(config, lines[ci+1:mi])
			a.log.Debug("parsed configuration block", zap.Int("entries", len(config)))
		} else {
			a.log.Warn("configuration marker not found, using default configuration",
				zap.String("marker", report.ConfigMarker))
		}
		body = []byte(strings.Join(lines[mi+1:], "\n"))
	} else {
		a.log.Warn("metrics marker not found, reading entire file as metrics with default configuration",
			zap.String("marker", report.MetricsMarker))
	}

	table, err := readTable(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	m := compute(table)
	m.Config = config
	if m.InvalidStatuses > 0 {
		a.log.Warn("rows with unrecognized status",
			zap.Int("count", m.InvalidStatuses), zap.Int("total", m.TotalRequests))
	}
	return &Result{Table: table, Metrics: m, ConfigFromFile: fromFile}, nil
}

func splitLines(data []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines
}

func indexOf(lines []string, marker string) int {
	for i, l := range lines {
		if strings.TrimSpace(l) == marker {
			return i
		}
	}
	return -1
}

// mergeConfig overlays key,value lines onto base. Known keys keep their
// position; new keys are appended in file order.
func mergeConfig(base []report.Entry, lines []string) []report.Entry {
	out := append([]report.Entry(nil), base...)
	pos := make(map[string]int, len(out))
	for i, e := range out {
		pos[e.Key] = i
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ",")
		if line == "" || !ok {
			continue
		}
		if i, seen := pos[key]; seen {
			out[i].Value = value
			continue
		}
		pos[key] = len(out)
		out = append(out, report.Entry{Key: key, Value: value})
	}
	return out
}

func compute(t Table) Metrics {
	m := Metrics{TotalRequests: len(t.Rows)}

	timed := make(map[string][]float64)
	failed := make(map[string]int)
	var failOrder []string
	successes, failures := 0, 0

	for _, r := range t.Rows {
		if _, seen := timed[r.Operation]; !seen {
			m.Operations = append(m.Operations, r.Operation)
			timed[r.Operation] = nil
		}
		if r.Timed() {
			timed[r.Operation] = append(timed[r.Operation], r.ResponseTime)
		}
		switch metrics.Status(r.Status) {
		case metrics.StatusSuccess:
			successes++
		case metrics.StatusFailed:
			failures++
			if failed[r.Operation] == 0 {
				failOrder = append(failOrder, r.Operation)
			}
			failed[r.Operation]++
		default:
			m.InvalidStatuses++
		}
	}

	total := float64(m.TotalRequests)
	m.SuccessRate = 100 * float64(successes) / total
	m.FailureRate = 100 * float64(failures) / total

	for _, op := range m.Operations {
		avg, peak := math.NaN(), math.NaN()
		if vals := timed[op]; len(vals) > 0 {
			avg = stat.Mean(vals, nil)
			peak = floats.Max(vals)
		}
		m.AvgResponseTime = append(m.AvgResponseTime, OperationValue{Operation: op, Value: avg})
		m.MaxResponseTime = append(m.MaxResponseTime, OperationValue{Operation: op, Value: peak})
	}
	for _, op := range failOrder {
		m.FailureCounts = append(m.FailureCounts, OperationCount{Operation: op, Count: failed[op]})
	}
	return m
}
