package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/torosent/xrayload/internal/metrics"
)

func collectorWith(t *testing.T) *metrics.Collector {
	t.Helper()
	c := metrics.NewCollector()
	for i := 0; i < 4; i++ {
		c.Record(metrics.NewSample(metrics.OpCheckScanStatus, metrics.StatusSuccess, 40*time.Millisecond))
	}
	c.Record(metrics.NewSample(metrics.OpCreatePolicy, metrics.StatusFailed, 10*time.Millisecond))
	c.Record(metrics.NewUntimedSample(metrics.OpPushImage, metrics.StatusFailed, "No repository key set"))
	return c
}

func TestPrintReportBasic(t *testing.T) {
	stats := collectorWith(t).Stats(2 * time.Second)

	var buf bytes.Buffer
	PrintReport(&buf, stats)

	output := buf.String()
	for _, want := range []string{
		"--- Xray Load Results ---",
		"Total Requests:    6",
		"Successful:        4",
		"Failed:            2",
		"Requests/sec:      3.00",
		"OPERATION",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}

	rows := map[string][]string{}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 11 {
			rows[fields[0]] = fields
		}
	}
	scan := rows["check_scan_status"]
	if scan == nil || scan[1] != "4" || scan[2] != "66.7%" || scan[3] != "4" || scan[4] != "0" {
		t.Errorf("check_scan_status row = %v", scan)
	}
	if scan != nil && scan[10] != "40ms" {
		t.Errorf("check_scan_status max = %q, want 40ms", scan[10])
	}
	push := rows["push_image"]
	if push == nil || push[4] != "1" || push[6] != "-" || push[10] != "-" {
		t.Errorf("untimed push_image row = %v, want failure count with no latency", push)
	}
}

func TestPrintReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, metrics.Stats{})
	if strings.Contains(buf.String(), "OPERATION") {
		t.Errorf("empty stats should not print a breakdown")
	}
}

func TestPrintJSONReport(t *testing.T) {
	stats := collectorWith(t).Stats(time.Second)

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, stats); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["total"] != float64(6) {
		t.Errorf("total = %v, want 6", decoded["total"])
	}
	ops, ok := decoded["operations"].([]interface{})
	if !ok || len(ops) != 3 {
		t.Fatalf("operations = %v, want 3 entries", decoded["operations"])
	}
}
