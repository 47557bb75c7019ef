package timeline

import (
	"fmt"
	"iter"
	"math"

	"github.com/zurustar/tunesync/pkg/event"
)

// Clock walks a Tune's event stream and keeps the elapsed performance time.
//
// Elapsed time starts at minus the pickup offset, so 0 is the downbeat of
// the first full bar. A Clock must be driven by a single goroutine; give
// every performer its own Clock over the shared Tune.
type Clock struct {
	tune    *Tune
	pos     int
	elapsed float64
}

// Reset rewinds the clock to the start of the tune.
func (c *Clock) Reset() {
	c.pos = 0
	c.elapsed = -c.tune.offset
}

// Next returns the next event and adds its delta to the elapsed time.
// Past the end of the tune it returns ErrClockExhausted.
func (c *Clock) Next() (event.Event, error) {
	if c.pos >= len(c.tune.events) {
		return event.Event{}, ErrClockExhausted
	}
	ev := c.tune.events[c.pos]
	c.pos++
	c.elapsed += ev.Delta
	return ev, nil
}

// Events returns an iterator over the remaining events. Each step advances
// the clock exactly like Next.
func (c *Clock) Events() iter.Seq[event.Event] {
	return func(yield func(event.Event) bool) {
		for c.pos < len(c.tune.events) {
			ev, _ := c.Next()
			if !yield(ev) {
				return
			}
		}
	}
}

// Remaining returns the number of events not yet emitted.
func (c *Clock) Remaining() int {
	return len(c.tune.events) - c.pos
}

// Position returns the stream index of the next event.
func (c *Clock) Position() int {
	return c.pos
}

// Elapsed returns the current performance time in seconds.
func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// Tune returns the tune the clock walks.
func (c *Clock) Tune() *Tune {
	return c.tune
}

// OnBeat reports whether the elapsed time is within the tune's trigger
// delta of a beat, measured in beats.
func (c *Clock) OnBeat() bool {
	t := c.tune
	beatPosition := floorMod(c.elapsed, t.bar) / t.beat
	diff := math.Abs(beatPosition - math.Round(beatPosition))
	return diff <= t.triggerDelta
}

// Seek moves the clock to sync marker id. The clock ends up exactly where
// walking it from the start would: the next event is the note-on the marker
// precedes.
func (c *Clock) Seek(id int) error {
	pos, ok := c.tune.sync.Position(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMarker, id)
	}
	elapsed, _ := c.tune.sync.ElapsedAt(id)
	c.pos = pos.StreamIndex
	c.elapsed = elapsed
	return nil
}
