package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/truevine-insights/spectrum/pkg/types"
)

type Logger struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
	logJSON bool
	logText bool
}

func New(logFilePath string, logJSON, logText bool) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		console: os.Stdout,
		file:    file,
		logJSON: logJSON,
		logText: logText,
	}, nil
}

func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	Dest      string    `json:"dest,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// LogOutcome records one conversion outcome.
func (l *Logger) LogOutcome(outcome types.ConversionOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	action := "converted"
	if outcome.Skipped {
		action = "skipped"
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Message:   fmt.Sprintf("%s: %s -> %s", action, filepath.Base(outcome.Src), outcome.Dst),
		Source:    outcome.Src,
		Dest:      outcome.Dst,
	}

	if !outcome.Success {
		entry.Level = "ERROR"
		entry.Error = outcome.Error
		entry.Message = fmt.Sprintf("failed: %s", filepath.Base(outcome.Src))
	}

	l.writeEntry(entry)
}

func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeEntry(LogEntry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Message:   msg,
	})
}

func (l *Logger) Error(msg string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeEntry(LogEntry{
		Timestamp: time.Now(),
		Level:     "ERROR",
		Message:   msg,
		Error:     err.Error(),
	})
}

func (l *Logger) writeEntry(entry LogEntry) {
	if l.logJSON && l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(data)
		l.file.Write([]byte("\n"))
	}

	if l.logText && l.file != nil {
		line := fmt.Sprintf("[%s] %s %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.Level,
			entry.Message,
		)
		if entry.Error != "" {
			line = fmt.Sprintf("[%s] %s %s - Error: %s\n",
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.Level,
				entry.Message,
				entry.Error,
			)
		}
		l.file.WriteString(line)
	}
}

// Summary prints the end-of-batch report to the console.
func (l *Logger) Summary(result types.BatchResult, duration time.Duration) {
	fmt.Fprintln(l.console, "\n=== Spectrum Summary ===")
	fmt.Fprintf(l.console, "Total files:    %d\n", result.Total)
	fmt.Fprintf(l.console, "Converted:      %d\n", result.Successful)
	fmt.Fprintf(l.console, "Skipped:        %d\n", result.Skipped)
	fmt.Fprintf(l.console, "Failed:         %d\n", result.Failed)
	fmt.Fprintf(l.console, "Duration:       %s\n", duration.Round(time.Second))

	var bytes int64
	for _, o := range result.Outcomes {
		bytes += o.SizeBytes
	}
	if bytes > 0 {
		fmt.Fprintf(l.console, "Bytes written:  %.2f MB\n", float64(bytes)/1024/1024)
	}
	fmt.Fprintln(l.console, "========================")
}

func (l *Logger) Progress(current, total int, filename string) {
	fmt.Fprintf(l.console, "\r[%d/%d] %s", current, total, filename)
}
