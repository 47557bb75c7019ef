package timeline

import (
	"log/slog"
	"math"
	"sort"

	"github.com/zurustar/tunesync/pkg/event"
)

// Position locates a sync marker in a tune.
type Position struct {
	// StreamIndex is the index, in the tune's event stream, of the note-on
	// the marker precedes.
	StreamIndex int
	// ContourIndex is the number of note-ons before the marker.
	ContourIndex int
}

// SyncIndex maps sync marker ids to their anchor times and positions.
// Marker ids run from 0 to MaxMarkerID without gaps.
type SyncIndex struct {
	anchors   []float64
	elapsed   []float64
	positions []Position
}

// Len returns the number of markers.
func (s *SyncIndex) Len() int {
	return len(s.anchors)
}

// MaxMarkerID returns the largest marker id, or -1 if there are no markers.
func (s *SyncIndex) MaxMarkerID() int {
	return len(s.anchors) - 1
}

// AnchorTime returns the performance time, in seconds, at which marker id
// was placed. Times are measured like Clock.Elapsed, so the first full bar
// starts at 0.
func (s *SyncIndex) AnchorTime(id int) (float64, bool) {
	if id < 0 || id >= len(s.anchors) {
		return 0, false
	}
	return s.anchors[id], true
}

// ElapsedAt returns the clock time right after marker id, that is the
// Elapsed value of a clock that walked up to Position(id).StreamIndex. It
// differs from AnchorTime when events other than notes carry time.
func (s *SyncIndex) ElapsedAt(id int) (float64, bool) {
	if id < 0 || id >= len(s.elapsed) {
		return 0, false
	}
	return s.elapsed[id], true
}

// Position returns where marker id sits in the event stream and in the
// melodic contour.
func (s *SyncIndex) Position(id int) (Position, bool) {
	if id < 0 || id >= len(s.positions) {
		return Position{}, false
	}
	return s.positions[id], true
}

// MarkerAtOrBefore returns the last marker whose anchor time is not after t.
func (s *SyncIndex) MarkerAtOrBefore(t float64) (int, bool) {
	i := sort.Search(len(s.anchors), func(i int) bool { return s.anchors[i] > t })
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

type syncParams struct {
	beat      float64 // seconds between markers
	tolerance float64 // placement window, seconds
	offset    float64 // pickup offset, seconds
}

// buildSyncIndex splices sync markers into stream and indexes them.
//
// Only note events advance the running duration used for placement, while
// the elapsed time recorded for Clock.Seek counts every delta. A
// marker goes before a note-on whose running duration lies within the
// tolerance of a beat multiple, at most one per beat multiple: the first
// note-on of a chord gets it.
func buildSyncIndex(stream []event.Event, p syncParams, log *slog.Logger) ([]event.Event, *SyncIndex) {
	out := make([]event.Event, 0, len(stream)+len(stream)/4)
	idx := &SyncIndex{}

	var (
		cumulative float64
		total      float64
		lastBeat   int64 = math.MinInt64
		capped     bool
	)
	for _, ev := range stream {
		if !ev.IsNote() {
			total += ev.Delta
			out = append(out, ev)
			continue
		}
		if ev.IsNoteOn() && beatDistance(cumulative, p.beat) <= p.tolerance {
			n := int64(math.Round(cumulative / p.beat))
			switch {
			case n == lastBeat:
			case len(idx.anchors) > event.MaxSongPosition:
				if !capped {
					log.Warn("Song position range exhausted, no further sync markers", "markers", len(idx.anchors))
					capped = true
				}
			default:
				out = append(out, event.SyncMarker(len(idx.anchors)))
				idx.anchors = append(idx.anchors, cumulative-p.offset)
				idx.elapsed = append(idx.elapsed, total-p.offset)
				lastBeat = n
			}
		}
		cumulative += ev.Delta
		total += ev.Delta
		out = append(out, ev)
	}

	idx.positions = make([]Position, len(idx.anchors))
	contour := 0
	for i, ev := range out {
		switch {
		case ev.Kind == event.KindSyncMarker:
			idx.positions[ev.Index] = Position{StreamIndex: i + 1, ContourIndex: contour}
		case ev.IsNoteOn():
			contour++
		}
	}

	return out, idx
}

// beatDistance returns how far t is from the nearest multiple of beat.
func beatDistance(t, beat float64) float64 {
	return math.Abs(floorMod(t-beat/2, beat) - beat/2)
}

// floorMod returns x modulo y with the sign of y.
func floorMod(x, y float64) float64 {
	m := math.Mod(x, y)
	if m != 0 && (m < 0) != (y < 0) {
		m += y
	}
	return m
}

func floorModInt(x, y int) int {
	m := x % y
	if m != 0 && (m < 0) != (y < 0) {
		m += y
	}
	return m
}
