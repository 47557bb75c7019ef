package source

import (
	"iter"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/zurustar/tunesync/pkg/event"
)

// trackCursor is a read position inside one track.
type trackCursor struct {
	events smf.Track
	next   int   // index of the next unread event
	tick   int64 // absolute tick of the last read event
}

// pending returns the absolute tick of the next unread event.
func (c *trackCursor) pending() (int64, bool) {
	if c.next >= len(c.events) {
		return 0, false
	}
	return c.tick + int64(c.events[c.next].Delta), true
}

// merged yields the messages of all tracks of mid with their absolute tick,
// earliest first. On a tie the lower track goes first. End-of-track metas
// are dropped.
func merged(mid *smf.SMF) iter.Seq2[int64, smf.Message] {
	return func(yield func(int64, smf.Message) bool) {
		cursors := make([]trackCursor, len(mid.Tracks))
		for i, tr := range mid.Tracks {
			cursors[i].events = tr
		}

		for {
			var (
				c    *trackCursor
				tick int64
			)
			for i := range cursors {
				at, ok := cursors[i].pending()
				if ok && (c == nil || at < tick) {
					c, tick = &cursors[i], at
				}
			}
			if c == nil {
				return
			}

			msg := c.events[c.next].Message
			c.next++
			c.tick = tick
			if msg.Is(smf.MetaEndOfTrackMsg) {
				continue
			}
			if !yield(tick, msg) {
				return
			}
		}
	}
}

// decodeMessage converts msg into an event without timing.
func decodeMessage(msg smf.Message) event.Event {
	var ch, key, vel uint8

	m := midi.Message(msg)
	switch {
	case m.GetNoteStart(&ch, &key, &vel):
		return event.NoteOn(0, ch, key, vel)
	case m.GetNoteEnd(&ch, &key):
		ev := event.NoteOff(0, ch, key)
		if m.GetNoteOff(&ch, &key, &vel) {
			ev.Velocity = vel
		}
		return ev
	}

	var num, denom, clocks, demisemis uint8
	if msg.GetMetaTimeSig(&num, &denom, &clocks, &demisemis) {
		return event.TimeSignature(0, num, denom)
	}

	var bpm float64
	if msg.GetMetaTempo(&bpm) {
		return event.Tempo(0, microsPerQuarter(bpm))
	}

	var accidentals uint8
	var major, flat bool
	if msg.GetMetaKeySig(nil, &accidentals, &major, &flat) {
		fifths := int8(accidentals)
		if flat {
			fifths = -fifths
		}
		return event.KeySignature(0, fifths, !major)
	}

	raw := make([]byte, len(msg))
	copy(raw, msg)
	return event.Event{Kind: event.KindOther, Raw: raw}
}

// microsPerQuarter turns the BPM smf reports back into the tempo stored in
// the file. The file value is a 24 bit integer, so rounding restores it.
func microsPerQuarter(bpm float64) uint32 {
	if bpm <= 0 || math.IsInf(bpm, 0) || math.IsNaN(bpm) {
		return 0
	}
	return uint32(math.Round(60e6 / bpm))
}
