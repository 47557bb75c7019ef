// Package timeline turns a decoded MIDI event stream into an immutable,
// annotated performance timeline.
//
// Building a Tune expands repeats, extracts the key, meter and tempo (the
// first occurrence of each wins), derives quarter, beat and bar durations,
// resolves the pickup bar and splices sync markers into the stream. A Tune
// is read-only once built; each performer walks it with its own Clock.
package timeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/zurustar/tunesync/pkg/event"
	"github.com/zurustar/tunesync/pkg/logger"
	"github.com/zurustar/tunesync/pkg/source"
	"github.com/zurustar/tunesync/pkg/structure"
)

// Source is a decoded event stream, typically a *source.File.
type Source interface {
	Path() string
	Events() []event.Event
}

// Load reads the MIDI file at path and builds its timeline.
func Load(path string, opts Options) (*Tune, error) {
	f, err := source.Load(path)
	if err != nil {
		return nil, err
	}
	t, err := Build(f, opts)
	if err != nil {
		return nil, err
	}
	t.length = f.Length()
	t.size = f.Size()
	return t, nil
}

// Build constructs the timeline of src. No Tune is returned on error.
func Build(src Source, opts Options) (*Tune, error) {
	if opts.Repeats < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRepeats, opts.Repeats)
	}
	if !(opts.SyncTolerance > 0) {
		return nil, fmt.Errorf("%w: sync tolerance must be positive, got %g", ErrInvalidOptions, opts.SyncTolerance)
	}
	if !(opts.TriggerDelta > 0) {
		return nil, fmt.Errorf("%w: trigger delta must be positive, got %g", ErrInvalidOptions, opts.TriggerDelta)
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	path := src.Path()
	raw := src.Events()

	t := &Tune{
		path:         path,
		repeats:      opts.Repeats,
		triggerDelta: opts.TriggerDelta,
	}

	low, high, ok := ambitus(raw)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyAmbitus)
	}
	t.lowest, t.highest = low, high

	if ev, ok := first(raw, event.KindKeySignature); ok {
		t.key = &KeySignature{Name: ev.Key, Fifths: int(ev.Fifths), Minor: ev.Minor}
	}

	ts, ok := first(raw, event.KindTimeSignature)
	if !ok || ts.Numerator == 0 || ts.Denominator == 0 {
		return nil, &StructuralError{Path: path, Element: "time signature"}
	}
	t.meter = Meter{Numerator: int(ts.Numerator), Denominator: int(ts.Denominator)}

	microsPerQuarter := source.DefaultMicrosPerQuarter
	if ev, ok := first(raw, event.KindTempo); ok && ev.MicrosPerQuarter > 0 {
		t.tempo = int(ev.MicrosPerQuarter)
		t.hasTempo = true
		microsPerQuarter = t.tempo
	} else {
		log.Warn("No tempo found, assuming the MIDI default", "file", path, "tempo", microsPerQuarter)
	}

	// bar and beat duration in seconds
	t.quarter = float64(microsPerQuarter) / 1e6
	t.bar = t.meter.QuartersPerBar() * t.quarter
	t.beat = t.bar / float64(t.meter.BeatCount())

	t.offset = resolvePickup(path, opts.Measures, t.quarter, t.bar, log)

	t.events, t.sync = buildSyncIndex(expand(raw, opts.Repeats), syncParams{
		beat:      t.beat,
		tolerance: t.quarter * opts.SyncTolerance,
		offset:    t.offset,
	}, log)

	log.Info("Tune loaded",
		"file", path,
		"meter", t.meter.String(),
		"key", t.KeyName(),
		"repeats", opts.Repeats,
		"sync_every_quarters", t.meter.QuartersPerBar()/float64(t.meter.BeatCount()))
	log.Debug("Timeline built",
		"events", len(t.events),
		"markers", t.sync.Len(),
		"pickup_offset", t.offset,
		"beat_duration", t.beat)

	return t, nil
}

// expand concatenates repeats copies of raw, each preceded by a repeat
// boundary carrying its zero-based index.
func expand(raw []event.Event, repeats int) []event.Event {
	out := make([]event.Event, 0, repeats*(len(raw)+1))
	for i := range repeats {
		out = append(out, event.RepeatBoundary(i))
		out = append(out, raw...)
	}
	return out
}

// first returns the first event of the given kind.
func first(events []event.Event, kind event.Kind) (event.Event, bool) {
	for _, ev := range events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return event.Event{}, false
}

// ambitus returns the lowest and highest pitch among note events.
func ambitus(events []event.Event) (low, high int, ok bool) {
	low, high = math.MaxInt, math.MinInt
	for _, ev := range events {
		if !ev.IsNote() {
			continue
		}
		p := int(ev.Pitch)
		low = min(low, p)
		high = max(high, p)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return low, high, true
}

// resolvePickup returns the length in seconds of the tune's pickup bar, in
// [0, bar). A tune without measure information has no pickup.
func resolvePickup(path string, measures structure.Analyzer, quarter, bar float64, log *slog.Logger) float64 {
	if measures == nil {
		return 0
	}
	quarters, err := measures.FirstMeasure(path)
	if err != nil {
		if errors.Is(err, structure.ErrNoMeasures) {
			log.Debug("No measure structure, pickup offset is 0", "file", path)
		} else {
			log.Warn("Measure analysis unavailable, pickup offset is 0", "file", path, "error", err)
		}
		return 0
	}
	return pickupOffset(quarters, quarter, bar)
}

// pickupOffset converts a first measure of quarters quarter notes to seconds,
// reduced modulo the bar duration.
func pickupOffset(quarters, quarter, bar float64) float64 {
	if bar <= 0 || math.IsNaN(quarters) || math.IsInf(quarters, 0) {
		return 0
	}
	offset := floorMod(quarters*quarter, bar)
	if offset < 0 || offset >= bar {
		return 0
	}
	return offset
}
