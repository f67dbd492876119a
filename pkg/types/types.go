// Package types defines core data structures shared across Spectrum modules.
package types

import (
	"time"
)

// FileRecord represents a discovered RAW file with its conversion status.
type FileRecord struct {
	// Path is the absolute path to the source file.
	Path string `json:"path"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// ModTime is the file modification time.
	ModTime time.Time `json:"modified_time"`
	// AlreadyConverted is true when a sibling output artifact exists.
	// Existence alone means converted; timestamps are deliberately not compared.
	AlreadyConverted bool `json:"already_converted"`
}

// MetadataResult captures the outcome of a metadata copy attempt.
// A metadata failure never fails the conversion it belongs to.
type MetadataResult struct {
	Copied bool   `json:"copied"`
	Error  string `json:"error,omitempty"`
}

// ConversionOutcome is the per-file unit of progress reporting.
// It is never mutated after creation.
type ConversionOutcome struct {
	// Src is the source RAW file path.
	Src string `json:"src"`
	// Dst is the destination output path.
	Dst string `json:"dst"`
	// Success indicates the conversion (or skip) completed without error.
	Success bool `json:"success"`
	// Skipped is true when skip-existing policy short-circuited the conversion.
	Skipped bool `json:"skipped"`
	// Error holds the failure text when Success is false.
	Error string `json:"error,omitempty"`
	// SizeBytes is the output file size, when an output was written.
	SizeBytes int64 `json:"size_bytes,omitempty"`
	// Metadata reports the metadata propagation attempt, when requested.
	Metadata *MetadataResult `json:"metadata,omitempty"`
}

// BatchResult aggregates a batch run. Counts are computed by summation
// over Outcomes, never tracked independently.
type BatchResult struct {
	Total      int                 `json:"total"`
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Skipped    int                 `json:"skipped"`
	Outcomes   []ConversionOutcome `json:"results"`
}

// Tally recomputes the aggregate counts from the outcome list.
func (r *BatchResult) Tally() {
	r.Total = len(r.Outcomes)
	r.Successful = 0
	r.Failed = 0
	r.Skipped = 0
	for _, o := range r.Outcomes {
		switch {
		case o.Skipped:
			r.Skipped++
		case o.Success:
			r.Successful++
		default:
			r.Failed++
		}
	}
}

// ScanSummary contains statistics for a completed scan.
type ScanSummary struct {
	TotalFiles        int     `json:"total_files"`
	AlreadyConverted  int     `json:"already_converted"`
	PendingConversion int     `json:"pending_conversion"`
	TotalSizeBytes    int64   `json:"total_size_bytes"`
	TotalSizeMB       float64 `json:"total_size_mb"`
}

// ReviewPair links a source RAW file with its converted output for
// side-by-side review.
type ReviewPair struct {
	Source    string `json:"source"`
	Converted string `json:"converted"`
}
