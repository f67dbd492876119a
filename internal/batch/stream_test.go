package batch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/truevine-insights/spectrum/internal/paths"
)

func TestStreamer_EventSequence(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ARW")
	b := writeSource(t, dir, "b.ARW")

	orch := newTestOrchestrator(&fakeConverter{}, nil, false)
	streamer := NewStreamer(orch)

	var events []Event
	for ev := range streamer.Events(context.Background(), Request{
		Files:     []string{a, b},
		OutputDir: filepath.Join(dir, "out"),
	}) {
		events = append(events, ev)
	}

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4 (start, 2 progress, complete)", len(events))
	}
	if events[0].Type != EventStart || events[0].Total != 2 {
		t.Errorf("first event = %+v, want start with total 2", events[0])
	}
	for i := 1; i <= 2; i++ {
		if events[i].Type != EventProgress {
			t.Errorf("event %d type = %s, want progress", i, events[i].Type)
		}
		if events[i].Processed != i {
			t.Errorf("event %d processed = %d, want %d", i, events[i].Processed, i)
		}
		if events[i].Result == nil {
			t.Errorf("progress event %d carries no result", i)
		}
	}
	last := events[3]
	if last.Type != EventComplete {
		t.Fatalf("terminal event = %s, want complete", last.Type)
	}
	if last.Successful != 2 || last.Failed != 0 || last.Processed != 2 {
		t.Errorf("completion counters wrong: %+v", last)
	}
}

func TestStreamer_ErrorEventOnBatchFailure(t *testing.T) {
	dir := t.TempDir()
	orch := newTestOrchestrator(&fakeConverter{}, nil, false)
	streamer := NewStreamer(orch)

	var events []Event
	for ev := range streamer.Events(context.Background(), Request{
		Files:     []string{filepath.Join(dir, "ghost.ARW")},
		OutputDir: filepath.Join(dir, "out"),
	}) {
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want start + error", len(events))
	}
	if events[0].Type != EventStart {
		t.Errorf("first event = %s, want start", events[0].Type)
	}
	if events[1].Type != EventError || events[1].Message == "" {
		t.Errorf("terminal event = %+v, want error with message", events[1])
	}
}

func TestStreamer_CancellationEndsStream(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 8; i++ {
		files = append(files, writeSource(t, dir, filepath.Join("src", "f"+string(rune('a'+i))+".ARW")))
	}

	orch := New(paths.NewResolver(""), &fakeConverter{}, nil, Options{
		OutputExtension: ".jpg",
		Workers:         1,
	})
	streamer := NewStreamer(orch)

	ctx, cancel := context.WithCancel(context.Background())
	ch := streamer.Events(ctx, Request{
		Files:     files,
		OutputDir: filepath.Join(dir, "out"),
	})

	// Read the start event, then walk away.
	<-ch
	cancel()

	for range ch {
	}
	// Reaching here means the channel closed after cancellation.
}
