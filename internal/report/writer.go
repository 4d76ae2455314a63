package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/torosent/xrayload/internal/logging"
	"github.com/torosent/xrayload/internal/metrics"
)

const (
	// ConfigMarker opens the optional configuration block.
	ConfigMarker = "### Test Configuration ###"
	// MetricsMarker separates the configuration block from the table.
	MetricsMarker = "### Performance Metrics ###"

	fileNameLayout = "20060102_150405"
)

// Mode selects the empty-report behavior.
type Mode int

const (
	// ModeLocal writes a header-only file when there are no samples.
	ModeLocal Mode = iota
	// ModeDistributed skips writing when no worker reported anything.
	ModeDistributed
)

func (m Mode) String() string {
	if m == ModeDistributed {
		return "distributed"
	}
	return "local"
}

// Entry is one key/value line of the configuration block.
type Entry struct {
	Key   string
	Value string
}

// Options configures a Writer.
type Options struct {
	// Dir is the primary output directory. Empty means the working directory.
	Dir string
	// FallbackDir receives the report when Dir cannot be written. Empty means
	// os.TempDir().
	FallbackDir string
	Mode        Mode
	// Start names the file. Zero means the time the Writer was created.
	Start time.Time
	// Preamble, when non-empty, is written as the configuration block.
	Preamble []Entry
}

// Writer serializes samples into a timestamped report file.
type Writer struct {
	opts Options
	log  *zap.Logger
}

// NewWriter creates a Writer.
func NewWriter(opts Options, log *zap.Logger) *Writer {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.FallbackDir == "" {
		opts.FallbackDir = os.TempDir()
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}
	return &Writer{opts: opts, log: logging.OrNop(log).Named("report")}
}

// FileName returns the report file name for a run started at start.
func FileName(start time.Time, empty bool) string {
	name := "performance_report_" + start.Format(fileNameLayout)
	if empty {
		name += "_empty"
	}
	return name + ".csv"
}

// Write serializes samples and returns the path written. In distributed mode
// an empty input writes nothing and returns an empty path. When the primary
// directory fails, exactly one attempt is made in the fallback directory.
func (w *Writer) Write(samples []metrics.Sample) (string, error) {
	if len(samples) == 0 && w.opts.Mode == ModeDistributed {
		w.log.Info("no metrics received from workers, skipping report")
		return "", nil
	}

	name := FileName(w.opts.Start, len(samples) == 0)
	primary := filepath.Join(w.opts.Dir, name)
	err := w.writeFile(primary, samples)
	if err == nil {
		return primary, nil
	}

	fallback := filepath.Join(w.opts.FallbackDir, name)
	w.log.Warn("could not write report, trying fallback location",
		zap.String("path", primary), zap.String("fallback", fallback), zap.Error(err))
	if ferr := w.writeFile(fallback, samples); ferr != nil {
		return "", fmt.Errorf("write report: %w", errors.Join(err, ferr))
	}
	return fallback, nil
}

// Flush is Write for shutdown paths: failures are logged, never returned.
func (w *Writer) Flush(samples []metrics.Sample) string {
	path, err := w.Write(samples)
	if err != nil {
		w.log.Error("failed to write performance report", zap.Error(err))
		return ""
	}
	if path != "" {
		w.log.Info("performance report written",
			zap.String("path", path),
			zap.Int("entries", len(samples)),
			zap.Stringer("mode", w.opts.Mode))
	}
	return path
}

func (w *Writer) writeFile(path string, samples []metrics.Sample) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	buf := bufio.NewWriter(f)
	if len(w.opts.Preamble) > 0 {
		fmt.Fprintln(buf, ConfigMarker)
		for _, e := range w.opts.Preamble {
			fmt.Fprintf(buf, "%s,%s\n", e.Key, e.Value)
		}
		fmt.Fprintln(buf, MetricsMarker)
		fmt.Fprintln(buf)
	}

	cw := csv.NewWriter(buf)
	if err := cw.Write(metrics.ReportColumns); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write(s.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return buf.Flush()
}
