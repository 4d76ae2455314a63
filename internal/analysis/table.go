package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/xrayload/internal/metrics"
)

// Column names understood by the parser.
const (
	ColumnTimestamp    = "timestamp"
	ColumnOperation    = "operation"
	ColumnResponseTime = "response_time"
	ColumnStatus       = "status"
	ColumnErrors       = "errors"
	ColumnUserID       = "user_id"
	ColumnRepoKey      = "repo_key"
)

var requiredColumns = []string{ColumnOperation, ColumnStatus, ColumnResponseTime}

// Optional columns and the value used when the report lacks them.
var optionalDefaults = map[string]string{
	ColumnErrors:  "",
	ColumnUserID:  "unknown",
	ColumnRepoKey: "unknown",
}

var (
	// ErrEmptyFile is returned for a report with no content at all.
	ErrEmptyFile = errors.New("report file is empty")
	// ErrNoData is returned when the table has a header but no rows.
	ErrNoData = errors.New("no metrics data in report")
)

// ColumnError reports a required column missing from the table header.
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("required column %q not found in report", e.Column)
}

// Row is one parsed report line.
type Row struct {
	Timestamp string
	Operation string
	// ResponseTime is in milliseconds, NaN when absent or not numeric. An
	// "inf" cell parses to an infinity and counts as timed.
	ResponseTime float64
	Status       string
	Errors       string
	UserID       string
	RepoKey      string
}

// Timed reports whether the row carries a response time.
func (r Row) Timed() bool {
	return !math.IsNaN(r.ResponseTime)
}

// Time parses the timestamp column.
func (r Row) Time() (time.Time, bool) {
	ts := strings.TrimSpace(r.Timestamp)
	for _, layout := range []string{metrics.TimestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Table is the metrics section of a report.
type Table struct {
	Columns []string
	Rows    []Row
}

func readTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, ErrNoData
	}
	if err != nil {
		return Table{}, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	columns := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		columns = append(columns, h)
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return Table{}, &ColumnError{Column: col}
		}
	}

	field := func(rec []string, col string) string {
		i, ok := index[col]
		if !ok {
			return optionalDefaults[col]
		}
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row %d: %w", line, err)
		}
		rows = append(rows, Row{
			Timestamp:    field(rec, ColumnTimestamp),
			Operation:    field(rec, ColumnOperation),
			ResponseTime: parseMillis(field(rec, ColumnResponseTime)),
			Status:       field(rec, ColumnStatus),
			Errors:       field(rec, ColumnErrors),
			UserID:       field(rec, ColumnUserID),
			RepoKey:      field(rec, ColumnRepoKey),
		})
	}
	if len(rows) == 0 {
		return Table{}, ErrNoData
	}
	return Table{Columns: columns, Rows: rows}, nil
}

func parseMillis(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
