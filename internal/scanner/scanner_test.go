package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScan_FindsRawFilesCaseInsensitive(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "photo1.ARW"), 100)
	writeFile(t, filepath.Join(tmpDir, "photo2.arw"), 200)
	writeFile(t, filepath.Join(tmpDir, "document.pdf"), 50)

	s := New([]string{"arw"}, ".jpg")
	records, err := s.Scan(tmpDir, false, "converted")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.AlreadyConverted {
			t.Errorf("%s should not be marked converted", r.Path)
		}
		if r.Size == 0 {
			t.Errorf("%s should carry its byte size", r.Path)
		}
	}
}

func TestScan_RecursiveToggle(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "top.arw"), 10)
	writeFile(t, filepath.Join(tmpDir, "sub", "nested.arw"), 10)

	s := New([]string{"arw"}, ".jpg")

	flat, err := s.Scan(tmpDir, false, "converted")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(flat) != 1 {
		t.Errorf("non-recursive scan expected 1 record, got %d", len(flat))
	}

	deep, err := s.Scan(tmpDir, true, "converted")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(deep) != 2 {
		t.Errorf("recursive scan expected 2 records, got %d", len(deep))
	}
}

func TestScan_AlreadyConvertedByOutputExistence(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "done.arw"), 10)
	writeFile(t, filepath.Join(tmpDir, "pending.arw"), 10)
	writeFile(t, filepath.Join(tmpDir, "converted", "done.jpg"), 5)

	s := New([]string{"arw"}, ".jpg")
	records, err := s.Scan(tmpDir, false, "converted")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	byName := map[string]bool{}
	for _, r := range records {
		byName[filepath.Base(r.Path)] = r.AlreadyConverted
	}
	if !byName["done.arw"] {
		t.Error("done.arw should be marked already converted")
	}
	if byName["pending.arw"] {
		t.Error("pending.arw should not be marked converted")
	}
}

func TestScan_NestedOutputPathMirrorsSourceTree(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "day1", "shot.arw"), 10)
	writeFile(t, filepath.Join(tmpDir, "converted", "day1", "shot.jpg"), 5)

	s := New([]string{"arw"}, ".jpg")
	records, err := s.Scan(tmpDir, true, "converted")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !records[0].AlreadyConverted {
		t.Error("nested source should match its mirrored output path")
	}
}

func TestScan_DoesNotDescendIntoOutputSubdir(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.arw"), 10)
	// A stray RAW inside the output tree must not be scanned.
	writeFile(t, filepath.Join(tmpDir, "converted", "stray.arw"), 10)

	s := New([]string{"arw"}, ".jpg")
	records, err := s.Scan(tmpDir, true, "converted")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestScan_MissingRoot(t *testing.T) {
	s := New([]string{"arw"}, ".jpg")

	_, err := s.Scan(filepath.Join(t.TempDir(), "nope"), false, "converted")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScan_RootIsFile(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file.txt")
	writeFile(t, file, 1)

	s := New([]string{"arw"}, ".jpg")
	_, err := s.Scan(file, false, "converted")
	if !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("expected ErrNotADirectory, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.arw"), 1024*1024)
	writeFile(t, filepath.Join(tmpDir, "b.arw"), 1024*1024)
	writeFile(t, filepath.Join(tmpDir, "converted", "b.jpg"), 10)

	s := New([]string{"arw"}, ".jpg")
	records, err := s.Scan(tmpDir, false, "converted")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	summary := Summarize(records)
	if summary.TotalFiles != 2 {
		t.Errorf("expected 2 total, got %d", summary.TotalFiles)
	}
	if summary.AlreadyConverted != 1 {
		t.Errorf("expected 1 converted, got %d", summary.AlreadyConverted)
	}
	if summary.PendingConversion != 1 {
		t.Errorf("expected 1 pending, got %d", summary.PendingConversion)
	}
	// Pending bytes only.
	if summary.TotalSizeBytes != 1024*1024 {
		t.Errorf("expected 1 MiB pending, got %d", summary.TotalSizeBytes)
	}
	if summary.TotalSizeMB != 1.0 {
		t.Errorf("expected 1.00 MB, got %v", summary.TotalSizeMB)
	}
}
