// Package event defines the elements of a tune's event stream.
//
// A stream mixes what the file contained (notes, meta events, anything else)
// with elements the timeline injects itself: repeat boundaries and sync
// markers. Every element is an Event tagged by its Kind, so the two injected
// variants can never be confused with each other or with file content.
package event

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Kind identifies the variant carried by an Event.
type Kind uint8

const (
	// KindOther is any file event the timeline does not interpret
	// (control change, program change, text meta, sysex...).
	KindOther Kind = iota
	KindNoteOn
	KindNoteOff
	KindKeySignature
	KindTimeSignature
	KindTempo
	// KindRepeatBoundary precedes each repetition of the source stream.
	KindRepeatBoundary
	// KindSyncMarker is a resynchronization point inserted before a note-on.
	KindSyncMarker
)

// MaxSongPosition is the largest value a MIDI song position pointer can carry.
// Sync marker ids share this range.
const MaxSongPosition = 16383

var kindNames = [...]string{
	KindOther:          "other",
	KindNoteOn:         "note_on",
	KindNoteOff:        "note_off",
	KindKeySignature:   "key_signature",
	KindTimeSignature:  "time_signature",
	KindTempo:          "set_tempo",
	KindRepeatBoundary: "repeat",
	KindSyncMarker:     "songpos",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is one element of a tune's event stream.
//
// Only the fields belonging to the event's Kind are meaningful:
//   - notes: Channel, Pitch, Velocity
//   - key signature: Key, Fifths, Minor
//   - time signature: Numerator, Denominator
//   - tempo: MicrosPerQuarter
//   - repeat boundary and sync marker: Index (repeat index or marker id)
//   - other: Raw
type Event struct {
	Kind Kind

	// Delta is the time in seconds since the previous event of the source
	// stream. Injected elements always have a zero delta.
	Delta float64

	Channel  uint8
	Pitch    uint8
	Velocity uint8

	Key    string
	Fifths int8
	Minor  bool

	Numerator   uint8
	Denominator uint8

	MicrosPerQuarter uint32

	Index int

	Raw []byte
}

// NoteOn returns a note-on event.
func NoteOn(delta float64, channel, pitch, velocity uint8) Event {
	return Event{Kind: KindNoteOn, Delta: delta, Channel: channel, Pitch: pitch, Velocity: velocity}
}

// NoteOff returns a note-off event.
func NoteOff(delta float64, channel, pitch uint8) Event {
	return Event{Kind: KindNoteOff, Delta: delta, Channel: channel, Pitch: pitch}
}

// TimeSignature returns a time signature meta event.
func TimeSignature(delta float64, numerator, denominator uint8) Event {
	return Event{Kind: KindTimeSignature, Delta: delta, Numerator: numerator, Denominator: denominator}
}

// Tempo returns a tempo meta event.
func Tempo(delta float64, microsPerQuarter uint32) Event {
	return Event{Kind: KindTempo, Delta: delta, MicrosPerQuarter: microsPerQuarter}
}

// KeySignature returns a key signature meta event. fifths is the number of
// sharps (positive) or flats (negative).
func KeySignature(delta float64, fifths int8, minor bool) Event {
	return Event{Kind: KindKeySignature, Delta: delta, Key: KeyName(fifths, minor), Fifths: fifths, Minor: minor}
}

// RepeatBoundary returns the element marking the start of repetition index.
func RepeatBoundary(index int) Event {
	return Event{Kind: KindRepeatBoundary, Index: index}
}

// SyncMarker returns a sync marker element with the given id.
func SyncMarker(id int) Event {
	return Event{Kind: KindSyncMarker, Index: id}
}

// IsNote reports whether e is a note-on or a note-off.
func (e Event) IsNote() bool {
	return e.Kind == KindNoteOn || e.Kind == KindNoteOff
}

// IsNoteOn reports whether e is a note-on.
func (e Event) IsNoteOn() bool {
	return e.Kind == KindNoteOn
}

// IsMeta reports whether e carries structural metadata only.
func (e Event) IsMeta() bool {
	switch e.Kind {
	case KindKeySignature, KindTimeSignature, KindTempo:
		return true
	}
	return false
}

// Bytes renders e as a MIDI wire message. Meta events and repeat boundaries
// have no wire form and return nil. Sync markers become a song position
// pointer carrying the marker id.
func (e Event) Bytes() []byte {
	switch e.Kind {
	case KindNoteOn:
		return midi.NoteOn(e.Channel, e.Pitch, e.Velocity)
	case KindNoteOff:
		return midi.NoteOff(e.Channel, e.Pitch)
	case KindSyncMarker:
		return SongPosition(e.Index)
	case KindOther:
		if len(e.Raw) == 0 || e.Raw[0] == 0xFF {
			return nil
		}
		return e.Raw
	}
	return nil
}

// SongPosition encodes pos as a song position pointer message (0xF2, LSB, MSB).
// pos is clamped to [0, MaxSongPosition].
func SongPosition(pos int) []byte {
	if pos < 0 {
		pos = 0
	}
	if pos > MaxSongPosition {
		pos = MaxSongPosition
	}
	return []byte{0xF2, byte(pos & 0x7F), byte((pos >> 7) & 0x7F)}
}

// String returns a short mido-like description of e.
func (e Event) String() string {
	switch e.Kind {
	case KindNoteOn:
		return fmt.Sprintf("note_on channel=%d note=%d velocity=%d time=%g", e.Channel, e.Pitch, e.Velocity, e.Delta)
	case KindNoteOff:
		return fmt.Sprintf("note_off channel=%d note=%d time=%g", e.Channel, e.Pitch, e.Delta)
	case KindKeySignature:
		return fmt.Sprintf("key_signature key=%s time=%g", e.Key, e.Delta)
	case KindTimeSignature:
		return fmt.Sprintf("time_signature numerator=%d denominator=%d time=%g", e.Numerator, e.Denominator, e.Delta)
	case KindTempo:
		return fmt.Sprintf("set_tempo tempo=%d time=%g", e.MicrosPerQuarter, e.Delta)
	case KindRepeatBoundary:
		return fmt.Sprintf("repeat index=%d", e.Index)
	case KindSyncMarker:
		return fmt.Sprintf("songpos pos=%d", e.Index)
	}
	return fmt.Sprintf("other data=% X time=%g", e.Raw, e.Delta)
}
