package output

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/torosent/xrayload/internal/analysis"
	"github.com/torosent/xrayload/internal/logging"
)

// Artifact file names written by Emit.
const (
	ResponseTimeChartFile = "response_time.png"
	FailureCountChartFile = "failure_counts.png"
	SummaryFile           = "metrics_summary.txt"
)

// Artifacts are the paths Emit wrote.
type Artifacts struct {
	ResponseTimeChart string
	FailureCountChart string
	Summary           string
}

// Emit writes both charts and the summary for res into dir, overwriting
// earlier outputs.
func Emit(dir string, res *analysis.Result, themeName string, log *zap.Logger) (Artifacts, error) {
	log = logging.OrNop(log).Named("output")
	if res == nil {
		return Artifacts{}, fmt.Errorf("no analysis result to emit")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create output directory: %w", err)
	}

	theme := ResolveTheme(themeName, log)
	log.Debug("using chart theme", zap.String("theme", theme.Name))

	out := Artifacts{
		ResponseTimeChart: filepath.Join(dir, ResponseTimeChartFile),
		FailureCountChart: filepath.Join(dir, FailureCountChartFile),
		Summary:           filepath.Join(dir, SummaryFile),
	}
	if err := WriteResponseTimeChart(out.ResponseTimeChart, res.Table, res.Metrics.Operations, theme); err != nil {
		return Artifacts{}, err
	}
	if err := WriteFailureCountChart(out.FailureCountChart, res.Table, theme); err != nil {
		return Artifacts{}, err
	}
	if err := WriteSummaryFile(out.Summary, res.Metrics); err != nil {
		return Artifacts{}, err
	}
	log.Info("generated analysis outputs",
		zap.String("response_time", out.ResponseTimeChart),
		zap.String("failure_counts", out.FailureCountChart),
		zap.String("summary", out.Summary))
	return out, nil
}
