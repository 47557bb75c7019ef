package timeline

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/zurustar/tunesync/pkg/event"
)

// memSource is an in-memory event stream.
type memSource struct {
	path   string
	events []event.Event
}

func (m memSource) Path() string          { return m.path }
func (m memSource) Events() []event.Event { return m.events }

// header returns time signature and tempo meta events.
func header(num, denom uint8, microsPerQuarter uint32) []event.Event {
	return []event.Event{
		event.TimeSignature(0, num, denom),
		event.Tempo(0, microsPerQuarter),
	}
}

// notes appends consecutive notes, each lasting seconds, to events.
func notes(events []event.Event, seconds float64, pitches ...uint8) []event.Event {
	for _, p := range pitches {
		events = append(events, event.NoteOn(0, 0, p, 100), event.NoteOff(seconds, 0, p))
	}
	return events
}

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Measures = nil
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func mustBuild(t testing.TB, src Source, opts Options) *Tune {
	t.Helper()
	tune, err := Build(src, opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tune
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
