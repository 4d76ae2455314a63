package output

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/torosent/xrayload/internal/analysis"
)

// WriteSummary renders the plain-text metrics summary. Every section keeps
// the order of m, nothing is sorted.
func WriteSummary(w io.Writer, m analysis.Metrics) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Performance Metrics Summary")
	fmt.Fprintf(bw, "Total Requests: %d\n", m.TotalRequests)
	fmt.Fprintf(bw, "Operations: %s\n", strings.Join(m.Operations, ", "))
	fmt.Fprintf(bw, "Success Rate: %s%%\n", formatFloat(m.SuccessRate))
	fmt.Fprintf(bw, "Failure Rate: %s%%\n", formatFloat(m.FailureRate))

	fmt.Fprintln(bw, "Configuration:")
	for _, e := range m.Config {
		fmt.Fprintf(bw, "  %s: %s\n", e.Key, e.Value)
	}
	fmt.Fprintln(bw, "Average Response Time (ms):")
	for _, v := range m.AvgResponseTime {
		fmt.Fprintf(bw, "  %s: %s\n", v.Operation, formatFloat(v.Value))
	}
	fmt.Fprintln(bw, "Maximum Response Time (ms):")
	for _, v := range m.MaxResponseTime {
		fmt.Fprintf(bw, "  %s: %s\n", v.Operation, formatFloat(v.Value))
	}
	fmt.Fprintln(bw, "Failure Counts:")
	for _, c := range m.FailureCounts {
		fmt.Fprintf(bw, "  %s: %d\n", c.Operation, c.Count)
	}
	return bw.Flush()
}

// WriteSummaryFile writes the summary to path, replacing any previous file.
func WriteSummaryFile(path string, m analysis.Metrics) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteSummary(f, m)
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.2f", v)
}
