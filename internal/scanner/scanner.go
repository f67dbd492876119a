// Package scanner enumerates RAW source files under a root, classifying
// each as pending or already converted.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/truevine-insights/spectrum/pkg/types"
)

var (
	ErrNotFound      = errors.New("directory not found")
	ErrNotADirectory = errors.New("path is not a directory")
)

type Scanner struct {
	rawExt    map[string]bool
	outputExt string
}

func New(rawExtensions []string, outputExt string) *Scanner {
	extMap := make(map[string]bool, len(rawExtensions))
	for _, ext := range rawExtensions {
		extMap[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Scanner{rawExt: extMap, outputExt: outputExt}
}

// Scan walks root for RAW files. Extension matching is case-insensitive
// and each file is reported once regardless of extension casing.
// Already-converted status is output-path existence under
// <root>/<outputSubdir>/<relative path with output extension>; no
// timestamp or checksum comparison is performed.
func (s *Scanner) Scan(root string, recursive bool, outputSubdir string) ([]types.FileRecord, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, root)
	}

	seen := make(map[string]bool)
	var records []types.FileRecord

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive && path != root {
				return fs.SkipDir
			}
			// Never descend into the output tree itself.
			if outputSubdir != "" && d.Name() == outputSubdir {
				return fs.SkipDir
			}
			return nil
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if !s.rawExt[ext] {
			return nil
		}

		// Case-fold so upper/lowercase extension variants of the same
		// image never produce two records.
		key := strings.ToLower(path)
		if seen[key] {
			return nil
		}
		seen[key] = true

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = d.Name()
		}
		outputPath := filepath.Join(root, outputSubdir, replaceExt(rel, s.outputExt))
		_, statErr := os.Stat(outputPath)

		records = append(records, types.FileRecord{
			Path:             path,
			Size:             fi.Size(),
			ModTime:          fi.ModTime(),
			AlreadyConverted: statErr == nil,
		})
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

// Summarize computes aggregate statistics; pending byte totals count
// only files that still need conversion.
func Summarize(records []types.FileRecord) types.ScanSummary {
	summary := types.ScanSummary{TotalFiles: len(records)}
	for _, r := range records {
		if r.AlreadyConverted {
			summary.AlreadyConverted++
			continue
		}
		summary.PendingConversion++
		summary.TotalSizeBytes += r.Size
	}
	summary.TotalSizeMB = float64(summary.TotalSizeBytes) / (1024 * 1024)
	summary.TotalSizeMB = float64(int(summary.TotalSizeMB*100+0.5)) / 100
	return summary
}

func replaceExt(path, newExt string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + newExt
}
