package batch

import (
	"context"

	"github.com/truevine-insights/spectrum/pkg/types"
)

// Event is one frame of a streaming batch run. Exactly one "start" opens
// the stream and exactly one of "complete" or "error" closes it; every
// frame in between is a "progress" carrying a single outcome.
type Event struct {
	Type       string                   `json:"type"`
	Total      int                      `json:"total,omitempty"`
	Processed  int                      `json:"processed,omitempty"`
	Successful int                      `json:"successful,omitempty"`
	Failed     int                      `json:"failed,omitempty"`
	Skipped    int                      `json:"skipped,omitempty"`
	Result     *types.ConversionOutcome `json:"result,omitempty"`
	Message    string                   `json:"message,omitempty"`
}

const (
	EventStart    = "start"
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// Streamer exposes an orchestrator run as an incremental event channel.
type Streamer struct {
	orch *Orchestrator
}

func NewStreamer(orch *Orchestrator) *Streamer {
	return &Streamer{orch: orch}
}

// Events starts the batch in the background and returns a channel of
// events. The channel is closed after the terminal event. Cancelling ctx
// abandons queued work and ends the stream with an "error" event.
func (s *Streamer) Events(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event)

	go func() {
		defer close(ch)

		send := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(Event{Type: EventStart, Total: len(req.Files)}) {
			return
		}

		var processed, successful, failed, skipped int
		_, err := s.orch.Run(ctx, req, func(outcome types.ConversionOutcome) {
			processed++
			switch {
			case outcome.Skipped:
				skipped++
			case outcome.Success:
				successful++
			default:
				failed++
			}
			oc := outcome
			send(Event{
				Type:       EventProgress,
				Processed:  processed,
				Successful: successful,
				Failed:     failed,
				Skipped:    skipped,
				Result:     &oc,
			})
		})

		if err != nil {
			send(Event{Type: EventError, Message: err.Error()})
			return
		}

		send(Event{
			Type:       EventComplete,
			Total:      len(req.Files),
			Processed:  processed,
			Successful: successful,
			Failed:     failed,
			Skipped:    skipped,
		})
	}()

	return ch
}
