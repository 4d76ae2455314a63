package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torosent/xrayload/internal/analysis"
)

const sampleReport = `timestamp,operation,response_time,status
2025-06-22T05:16:48.100000,create_repository,100,success
2025-06-22T05:16:49.100000,create_repository,140,success
2025-06-22T05:16:50.100000,push_image,,failed
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestAnalyzeWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "performance_report_20250622_051648.csv")
	if err := os.WriteFile(path, []byte(sampleReport), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}
	outDir := filepath.Join(dir, "out")

	stdout, _, err := execute(t, path, "--output-dir", outDir, "--log-level", "warn")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(stdout) != completionMessage {
		t.Errorf("stdout = %q, want %q", stdout, completionMessage)
	}
	for _, name := range []string{"response_time.png", "failure_counts.png", "metrics_summary.txt"} {
		info, err := os.Stat(filepath.Join(outDir, name))
		if err != nil || info.Size() == 0 {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	summary, err := os.ReadFile(filepath.Join(outDir, "metrics_summary.txt"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	for _, want := range []string{
		"Total Requests: 3\n",
		"Operations: create_repository, push_image\n",
		"Success Rate: 66.67%\n",
		"  create_repository: 120.00\n",
		"  push_image: 1\n",
	} {
		if !strings.Contains(string(summary), want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestUnknownThemeFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")
	if err := os.WriteFile(path, []byte(sampleReport), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}

	_, stderr, err := execute(t, path, "--output-dir", dir, "--theme", "seaborn-dark")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(stderr, "chart theme not available") {
		t.Errorf("expected fallback warning, got:\n%s", stderr)
	}
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"two arguments", []string{"a.csv", "b.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := execute(t, tt.args...); err == nil {
				t.Error("expected usage error")
			}
		})
	}
}

func TestStructuralErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	outDir := filepath.Join(dir, "out")

	_, stderr, err := execute(t, empty, "--output-dir", outDir)
	if err == nil || !strings.Contains(err.Error(), analysis.ErrEmptyFile.Error()) {
		t.Fatalf("Execute() error = %v, want empty file error", err)
	}
	if n := strings.Count(stderr, "failed to analyze report"); n != 1 {
		t.Errorf("analysis failure logged %d times, want once:\n%s", n, stderr)
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "metrics_summary.txt")); !os.IsNotExist(statErr) {
		t.Error("no outputs should be written for a structural error")
	}

	if _, _, err := execute(t, filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for a missing file")
	}
}
