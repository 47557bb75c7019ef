// Package smftest writes small Standard MIDI Files for tests.
package smftest

import (
	"bytes"
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Resolution is the ticks per quarter note used by every fixture.
const Resolution = 480

// Tempo returns a set-tempo meta message for microsPerQuarter.
func Tempo(microsPerQuarter uint32) smf.Message {
	return smf.MetaTempo(60e6 / float64(microsPerQuarter))
}

// Key returns a key signature meta message with fifths sharps (or flats when
// negative).
func Key(fifths int8, minor bool) smf.Message {
	count := fifths
	if count < 0 {
		count = -count
	}
	return smf.MetaKey(0, !minor, uint8(count), fifths < 0)
}

// Meter returns a time signature meta message.
func Meter(num, denom uint8) smf.Message {
	return smf.MetaMeter(num, denom)
}

// Melody returns a track playing pitches as consecutive notes of quarters
// quarter notes each, starting at tick 0.
func Melody(quarters float64, pitches ...uint8) smf.Track {
	var tr smf.Track
	length := uint32(quarters * Resolution)
	for _, p := range pitches {
		tr.Add(0, midi.NoteOn(0, p, 100))
		tr.Add(length, midi.NoteOff(0, p))
	}
	return tr
}

func build(t testing.TB, tracks []smf.Track) *smf.SMF {
	t.Helper()

	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(Resolution)
	for _, tr := range tracks {
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			t.Fatalf("failed to add track: %v", err)
		}
	}
	return s
}

// Write stores the given tracks as a format 1 file named name inside a
// temporary directory and returns its path. Each track is closed before writing.
func Write(t testing.TB, name string, tracks ...smf.Track) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := build(t, tracks).WriteFile(path); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// Bytes returns the given tracks encoded as a format 1 file.
func Bytes(t testing.TB, tracks ...smf.Track) []byte {
	t.Helper()

	var buf bytes.Buffer
	if _, err := build(t, tracks).WriteTo(&buf); err != nil {
		t.Fatalf("failed to encode tracks: %v", err)
	}
	return buf.Bytes()
}
