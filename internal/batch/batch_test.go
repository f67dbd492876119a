package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/truevine-insights/spectrum/internal/paths"
	"github.com/truevine-insights/spectrum/pkg/types"
)

// fakeConverter pretends every conversion succeeds and writes a marker
// file so skip-existing can observe the destination on a later run.
type fakeConverter struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]string
}

func (f *fakeConverter) Convert(ctx context.Context, src, dst string, quality int, presetName string) types.ConversionOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, src)
	f.mu.Unlock()

	if f.fail != nil {
		if msg, ok := f.fail[filepath.Base(src)]; ok {
			return types.ConversionOutcome{Src: src, Dst: dst, Error: msg}
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return types.ConversionOutcome{Src: src, Dst: dst, Error: err.Error()}
	}
	if err := os.WriteFile(dst, []byte("jpeg:"+filepath.Base(src)), 0644); err != nil {
		return types.ConversionOutcome{Src: src, Dst: dst, Error: err.Error()}
	}
	return types.ConversionOutcome{Src: src, Dst: dst, Success: true, SizeBytes: 5}
}

type fakeMetadata struct {
	mu     sync.Mutex
	copies []string
	result types.MetadataResult
}

func (f *fakeMetadata) Copy(ctx context.Context, src, dst string) types.MetadataResult {
	f.mu.Lock()
	f.copies = append(f.copies, src)
	f.mu.Unlock()
	return f.result
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("raw-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestOrchestrator(conv FileConverter, meta MetadataCopier, skipExisting bool) *Orchestrator {
	return New(paths.NewResolver(""), conv, meta, Options{
		OutputExtension: ".jpg",
		SkipExisting:    skipExisting,
		Workers:         2,
	})
}

func TestRun_MissingInputsEmittedFirstInRequestOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ARW")
	c := writeSource(t, dir, "c.ARW")
	missing := filepath.Join(dir, "b.ARW")

	conv := &fakeConverter{}
	orch := newTestOrchestrator(conv, nil, false)

	var emitted []types.ConversionOutcome
	result, err := orch.Run(context.Background(), Request{
		Files:     []string{a, missing, c},
		OutputDir: filepath.Join(dir, "out"),
		Quality:   95,
		Preset:    "standard",
	}, func(o types.ConversionOutcome) {
		emitted = append(emitted, o)
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if len(result.Outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(result.Outcomes))
	}
	if result.Outcomes[0].Src != missing || result.Outcomes[0].Success {
		t.Errorf("first outcome should be the failed missing input, got %+v", result.Outcomes[0])
	}
	if result.Outcomes[1].Src != a || result.Outcomes[2].Src != c {
		t.Errorf("existing inputs out of order: %s, %s", result.Outcomes[1].Src, result.Outcomes[2].Src)
	}

	if result.Total != 3 || result.Successful != 2 || result.Failed != 1 || result.Skipped != 0 {
		t.Errorf("counts = %d/%d/%d/%d, want total 3, ok 2, failed 1, skipped 0",
			result.Total, result.Successful, result.Failed, result.Skipped)
	}

	if len(emitted) != len(result.Outcomes) {
		t.Errorf("callback saw %d outcomes, result holds %d", len(emitted), len(result.Outcomes))
	}
	for i := range emitted {
		if emitted[i].Src != result.Outcomes[i].Src {
			t.Errorf("callback order diverges at %d: %s vs %s", i, emitted[i].Src, result.Outcomes[i].Src)
		}
	}
}

func TestRun_UNCInputGetsMappingGuidance(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ARW")
	unc := `\\NAS\Share\photos\b.ARW`

	orch := newTestOrchestrator(&fakeConverter{}, nil, false)
	result, err := orch.Run(context.Background(), Request{
		Files:     []string{a, unc},
		OutputDir: filepath.Join(dir, "out"),
	}, nil)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	first := result.Outcomes[0]
	if first.Src != unc || first.Success {
		t.Fatalf("first outcome should be the failed UNC input, got %+v", first)
	}
	if !strings.Contains(first.Error, "drive letter") {
		t.Errorf("UNC failure should suggest mapping a drive letter: %q", first.Error)
	}
}

func TestRun_NoAccessibleInputsFailsFast(t *testing.T) {
	dir := t.TempDir()
	conv := &fakeConverter{}
	orch := newTestOrchestrator(conv, nil, false)

	_, err := orch.Run(context.Background(), Request{
		Files:     []string{filepath.Join(dir, "nope.ARW")},
		OutputDir: filepath.Join(dir, "out"),
	}, nil)

	if !errors.Is(err, ErrNoInputs) {
		t.Fatalf("err = %v, want ErrNoInputs", err)
	}
	if len(conv.calls) != 0 {
		t.Errorf("converter should never run, got %d calls", len(conv.calls))
	}
}

func TestRun_SkipExistingIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ARW")
	b := writeSource(t, dir, "b.ARW")

	conv := &fakeConverter{}
	orch := newTestOrchestrator(conv, nil, true)
	req := Request{
		Files:     []string{a, b},
		OutputDir: filepath.Join(dir, "converted"),
		Quality:   95,
	}

	first, err := orch.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Successful != 2 || first.Skipped != 0 {
		t.Fatalf("first run counts: %+v", first)
	}

	before, err := os.ReadFile(first.Outcomes[0].Dst)
	if err != nil {
		t.Fatal(err)
	}

	second, err := orch.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	for _, o := range second.Outcomes {
		if !o.Skipped || !o.Success {
			t.Errorf("second run outcome not skipped-success: %+v", o)
		}
	}
	if second.Skipped != 2 || second.Successful != 0 {
		t.Errorf("second run counts: skipped %d, successful %d", second.Skipped, second.Successful)
	}

	after, err := os.ReadFile(first.Outcomes[0].Dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("destination content changed on a skipped re-run")
	}
	if got := len(conv.calls); got != 2 {
		t.Errorf("converter ran %d times, want 2 (first run only)", got)
	}
}

func TestRun_MetadataRefreshOnSkippedFile(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ARW")

	meta := &fakeMetadata{result: types.MetadataResult{Copied: true}}
	conv := &fakeConverter{}
	orch := newTestOrchestrator(conv, meta, true)
	req := Request{
		Files:            []string{a},
		OutputDir:        filepath.Join(dir, "converted"),
		PreserveMetadata: true,
	}

	if _, err := orch.Run(context.Background(), req, nil); err != nil {
		t.Fatal(err)
	}
	second, err := orch.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !second.Outcomes[0].Skipped {
		t.Fatal("second run should skip")
	}
	if second.Outcomes[0].Metadata == nil || !second.Outcomes[0].Metadata.Copied {
		t.Error("metadata should be refreshed on a skipped file")
	}
	if len(meta.copies) != 2 {
		t.Errorf("metadata copied %d times, want 2", len(meta.copies))
	}
}

func TestRun_MetadataFailureDoesNotFailConversion(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ARW")

	meta := &fakeMetadata{result: types.MetadataResult{Error: "exiftool exploded"}}
	orch := newTestOrchestrator(&fakeConverter{}, meta, false)

	result, err := orch.Run(context.Background(), Request{
		Files:            []string{a},
		OutputDir:        filepath.Join(dir, "converted"),
		PreserveMetadata: true,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	o := result.Outcomes[0]
	if !o.Success {
		t.Error("conversion success must be independent of metadata failure")
	}
	if o.Metadata == nil || o.Metadata.Error != "exiftool exploded" {
		t.Errorf("metadata error not captured: %+v", o.Metadata)
	}
}

func TestRun_OutputFallbackToCommonAncestor(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, filepath.Join("photos", "trip", "a.ARW"))
	b := writeSource(t, dir, filepath.Join("photos", "b.ARW"))

	orch := newTestOrchestrator(&fakeConverter{}, nil, false)

	// Neither the output dir nor its parent exists.
	result, err := orch.Run(context.Background(), Request{
		Files:     []string{a, b},
		OutputDir: filepath.Join(dir, "gone", "deeper", "out"),
	}, nil)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	wantDir := filepath.Join(dir, "photos", "converted")
	for _, o := range result.Outcomes {
		if !strings.HasPrefix(o.Dst, wantDir+string(filepath.Separator)) {
			t.Errorf("outcome dst %s not under fallback dir %s", o.Dst, wantDir)
		}
	}
}

func TestRun_PerFileFailureDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ARW")
	b := writeSource(t, dir, "b.ARW")

	conv := &fakeConverter{fail: map[string]string{"a.ARW": "decode failed"}}
	orch := newTestOrchestrator(conv, nil, false)

	result, err := orch.Run(context.Background(), Request{
		Files:     []string{a, b},
		OutputDir: filepath.Join(dir, "out"),
	}, nil)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Failed != 1 || result.Successful != 1 {
		t.Errorf("counts: failed %d, successful %d", result.Failed, result.Successful)
	}
}

func TestRun_CountInvariantUnderParallelism(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 20; i++ {
		files = append(files, writeSource(t, dir, fmt.Sprintf("f%02d.ARW", i)))
	}

	orch := New(paths.NewResolver(""), &fakeConverter{}, nil, Options{
		OutputExtension: ".jpg",
		Workers:         4,
	})

	result, err := orch.Run(context.Background(), Request{
		Files:     files,
		OutputDir: filepath.Join(dir, "out"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Total != len(result.Outcomes) {
		t.Errorf("total %d != outcomes %d", result.Total, len(result.Outcomes))
	}
	if result.Successful+result.Failed+result.Skipped != result.Total {
		t.Errorf("counts do not sum to total: %+v", result)
	}
	for i, o := range result.Outcomes {
		if o.Src != files[i] {
			t.Errorf("outcome %d out of order: %s", i, o.Src)
		}
	}
}

func TestDestinationFor(t *testing.T) {
	orch := newTestOrchestrator(&fakeConverter{}, nil, false)

	tests := []struct {
		src, outDir, want string
	}{
		{"/photos/a.ARW", "/photos/converted", "/photos/converted/a.jpg"},
		{"/photos/trip/a.ARW", "/photos/converted", "/photos/converted/trip/a.jpg"},
		{"/elsewhere/a.ARW", "/photos/converted", "/photos/converted/a.jpg"},
	}
	for _, tt := range tests {
		if got := orch.destinationFor(tt.src, tt.outDir); got != tt.want {
			t.Errorf("destinationFor(%s, %s) = %s, want %s", tt.src, tt.outDir, got, tt.want)
		}
	}
}

func TestCommonAncestor(t *testing.T) {
	tests := []struct {
		dirs []string
		want string
	}{
		{[]string{"/a/b/c", "/a/b/d"}, "/a/b"},
		{[]string{"/a/b", "/a/b"}, "/a/b"},
		{[]string{"/a/b", "/x/y"}, "/"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := commonAncestor(tt.dirs); got != tt.want {
			t.Errorf("commonAncestor(%v) = %q, want %q", tt.dirs, got, tt.want)
		}
	}
}
