package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/truevine-insights/spectrum/pkg/types"
)

func TestNewCreatesLogDirectory(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "spectrum.log")

	logger, err := New(logPath, true, false)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(filepath.Dir(logPath)); err != nil {
		t.Errorf("log directory was not created: %v", err)
	}
}

func TestLogOutcomeJSON(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "spectrum.log")

	logger, err := New(logPath, true, false)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	logger.console = &bytes.Buffer{}

	logger.LogOutcome(types.ConversionOutcome{
		Src:     "/photos/DSC001.ARW",
		Dst:     "/photos/converted/DSC001.jpg",
		Success: true,
	})
	logger.LogOutcome(types.ConversionOutcome{
		Src:   "/photos/DSC002.ARW",
		Error: "decode failed",
	})
	logger.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var first LogEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first.Level != "INFO" {
		t.Errorf("first entry level = %q, want INFO", first.Level)
	}
	if first.Source != "/photos/DSC001.ARW" {
		t.Errorf("first entry source = %q", first.Source)
	}

	var second LogEntry
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("second line is not valid JSON: %v", err)
	}
	if second.Level != "ERROR" {
		t.Errorf("second entry level = %q, want ERROR", second.Level)
	}
	if second.Error != "decode failed" {
		t.Errorf("second entry error = %q", second.Error)
	}
}

func TestLogOutcomeText(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "spectrum.log")

	logger, err := New(logPath, false, true)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	logger.console = &bytes.Buffer{}

	logger.LogOutcome(types.ConversionOutcome{
		Src:     "/photos/DSC001.ARW",
		Dst:     "/photos/converted/DSC001.jpg",
		Skipped: true,
		Success: true,
	})
	logger.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	line := string(data)
	if !strings.Contains(line, "skipped: DSC001.ARW") {
		t.Errorf("text log missing skip message: %q", line)
	}
	if !strings.Contains(line, "INFO") {
		t.Errorf("text log missing level: %q", line)
	}
}

func TestErrorEntry(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "spectrum.log")

	logger, err := New(logPath, false, true)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	logger.console = &bytes.Buffer{}

	logger.Error("scan failed", errors.New("permission denied"))
	logger.Close()

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), "Error: permission denied") {
		t.Errorf("error entry missing error text: %q", string(data))
	}
}

func TestSummaryOutput(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(filepath.Join(dir, "spectrum.log"), false, false)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer logger.Close()

	var buf bytes.Buffer
	logger.console = &buf

	logger.Summary(types.BatchResult{
		Total:      5,
		Successful: 3,
		Failed:     1,
		Skipped:    1,
		Outcomes: []types.ConversionOutcome{
			{Success: true, SizeBytes: 2 * 1024 * 1024},
		},
	}, 90*time.Second)

	out := buf.String()
	for _, want := range []string{"Total files:    5", "Converted:      3", "Skipped:        1", "Failed:         1", "1m30s", "2.00 MB"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q in:\n%s", want, out)
		}
	}
}
