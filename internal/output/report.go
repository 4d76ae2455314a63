package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/torosent/xrayload/internal/metrics"
)

// PrintReport writes the end-of-run console summary: run totals followed by
// one table row per operation. Latency columns show "-" for operations that
// only recorded untimed failures.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintf(w, "\n--- Xray Load Results ---\n"+
		"Total Requests:    %d\n"+
		"Successful:        %d\n"+
		"Failed:            %d\n"+
		"Duration:          %s\n"+
		"Requests/sec:      %.2f\n",
		stats.Total, stats.Successes, stats.Failures, stats.Duration, stats.RequestsPerSec)
	if len(stats.Operations) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tTOTAL\tSHARE\tOK\tFAILED\tINVALID\tMEAN\tP50\tP90\tP99\tMAX")
	for _, op := range stats.Operations {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			op.Operation, op.Total, percentOf(op.Total, stats.Total),
			op.Successes, op.Failures, op.Invalid,
			latency(op, op.MeanLatency), latency(op, op.P50Latency), latency(op, op.P90Latency),
			latency(op, op.P99Latency), latency(op, op.MaxLatency))
	}
	tw.Flush()
}

func percentOf(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

func latency(op metrics.OperationStats, d time.Duration) string {
	if op.MaxLatency <= 0 {
		return "-"
	}
	return d.Round(time.Microsecond).String()
}

// PrintJSONReport writes stats as indented JSON.
func PrintJSONReport(w io.Writer, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
