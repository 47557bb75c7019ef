package timeline

import (
	"time"

	"github.com/zurustar/tunesync/pkg/event"
)

// Tune is a built timeline. It is immutable and safe for concurrent reads.
type Tune struct {
	path    string
	repeats int
	events  []event.Event
	sync    *SyncIndex

	key      *KeySignature
	meter    Meter
	tempo    int
	hasTempo bool

	quarter float64
	beat    float64
	bar     float64
	offset  float64

	lowest  int
	highest int

	triggerDelta float64
	length       time.Duration
	size         int64
}

// Path returns the file the tune was built from.
func (t *Tune) Path() string { return t.path }

// Repeats returns how many times the source was repeated.
func (t *Tune) Repeats() int { return t.repeats }

// Len returns the number of elements in the event stream, markers and
// repeat boundaries included.
func (t *Tune) Len() int { return len(t.events) }

// At returns element i of the event stream.
func (t *Tune) At(i int) event.Event { return t.events[i] }

// Events returns a copy of the event stream.
func (t *Tune) Events() []event.Event {
	out := make([]event.Event, len(t.events))
	copy(out, t.events)
	return out
}

// Filter returns, in order, the events for which keep returns true.
func (t *Tune) Filter(keep func(event.Event) bool) []event.Event {
	var out []event.Event
	for _, ev := range t.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Sync returns the tune's sync index.
func (t *Tune) Sync() *SyncIndex { return t.sync }

// KeySignature returns the first key signature of the source, if any.
func (t *Tune) KeySignature() (KeySignature, bool) {
	if t.key == nil {
		return KeySignature{}, false
	}
	return *t.key, true
}

// KeyName returns the key name, or "" when the key is unknown.
func (t *Tune) KeyName() string {
	if t.key == nil {
		return ""
	}
	return t.key.Name
}

// Root returns the tonic pitch class of the tune's key.
func (t *Tune) Root() (int, bool) {
	if t.key == nil {
		return 0, false
	}
	return t.key.Root(), true
}

// SemitonesFromTonic returns the distance in semitones between note and the
// tonic, or false when the key is unknown.
func (t *Tune) SemitonesFromTonic(note int) (int, bool) {
	if t.key == nil {
		return 0, false
	}
	return t.key.SemitonesFromTonic(note), true
}

// TimeSignature returns the first time signature of the source.
func (t *Tune) TimeSignature() Meter { return t.meter }

// BeatCount returns the number of beats in a bar.
func (t *Tune) BeatCount() int { return t.meter.BeatCount() }

// Tempo returns the first tempo of the source in microseconds per quarter
// note, if the source has one.
func (t *Tune) Tempo() (int, bool) { return t.tempo, t.hasTempo }

// BPM returns the tempo in beats per minute of the meter's denominator, or
// false when the tempo is unknown.
func (t *Tune) BPM() (float64, bool) {
	if !t.hasTempo {
		return 0, false
	}
	return 60e6 / float64(t.tempo) * float64(t.meter.Denominator) / 4, true
}

// QuarterDuration returns the length of a quarter note in seconds.
func (t *Tune) QuarterDuration() float64 { return t.quarter }

// BeatDuration returns the length of a beat in seconds.
func (t *Tune) BeatDuration() float64 { return t.beat }

// BarDuration returns the length of a bar in seconds.
func (t *Tune) BarDuration() float64 { return t.bar }

// Offset returns the length of the pickup bar in seconds, in [0, BarDuration).
func (t *Tune) Offset() float64 { return t.offset }

// Ambitus returns the lowest and highest pitch of the tune.
func (t *Tune) Ambitus() (low, high int) { return t.lowest, t.highest }

// TriggerDelta returns the beat window used by clocks over this tune.
func (t *Tune) TriggerDelta() float64 { return t.triggerDelta }

// Length returns the playback length of one repetition of the source file,
// or 0 when the tune was not built from a file.
func (t *Tune) Length() time.Duration { return t.length }

// Size returns the size of the source file in bytes, or 0 when the tune was
// not built from a file.
func (t *Tune) Size() int64 { return t.size }

// Summary describes a tune for display.
type Summary struct {
	Path     string
	Meter    string
	Key      string
	BPM      float64
	HasTempo bool
	Low      int
	High     int
	Events   int
	Markers  int
	Offset   float64
	Length   time.Duration
	Size     int64
}

// Summary returns a description of the tune.
func (t *Tune) Summary() Summary {
	s := Summary{
		Path:    t.path,
		Meter:   t.meter.String(),
		Low:     t.lowest,
		High:    t.highest,
		Events:  len(t.events),
		Markers: t.sync.Len(),
		Offset:  t.offset,
		Length:  t.length * time.Duration(t.repeats),
		Size:    t.size,
	}
	if t.key != nil {
		s.Key = t.key.Display()
	}
	s.BPM, s.HasTempo = t.BPM()
	return s
}

// NewClock returns a performance clock positioned at the start of the tune.
func (t *Tune) NewClock() *Clock {
	c := &Clock{tune: t}
	c.Reset()
	return c
}
