package source

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/zurustar/tunesync/pkg/event"
	"github.com/zurustar/tunesync/pkg/fileutil"
	"github.com/zurustar/tunesync/pkg/smftest"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLoad(t *testing.T) {
	var meta smf.Track
	meta.Add(0, smftest.Meter(6, 8))
	meta.Add(0, smftest.Key(2, false))
	meta.Add(0, smftest.Tempo(400000))

	path := smftest.Write(t, "jig.mid", meta, smftest.Melody(0.5, 62, 66, 69))

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if f.Path() != path {
		t.Errorf("Path() = %q, want %q", f.Path(), path)
	}
	if f.Resolution() != smftest.Resolution {
		t.Errorf("Resolution() = %d, want %d", f.Resolution(), smftest.Resolution)
	}
	if f.Tracks() != 2 {
		t.Errorf("Tracks() = %d, want 2", f.Tracks())
	}
	if f.Size() <= 0 {
		t.Error("Size() should be positive")
	}
	if f.Length() <= 0 {
		t.Error("Length() should be positive")
	}

	events := f.Events()
	if len(events) != 9 {
		t.Fatalf("got %d events, want 9: %v", len(events), events)
	}

	// meta track comes first at tick 0
	if events[0].Kind != event.KindTimeSignature || events[0].Numerator != 6 || events[0].Denominator != 8 {
		t.Errorf("events[0] = %v, want 6/8 time signature", events[0])
	}
	if events[1].Kind != event.KindKeySignature || events[1].Key != "D" {
		t.Errorf("events[1] = %v, want key D", events[1])
	}
	if events[2].Kind != event.KindTempo || events[2].MicrosPerQuarter != 400000 {
		t.Errorf("events[2] = %v, want tempo 400000", events[2])
	}

	// eighth notes at 0.4s per quarter
	wantKinds := []event.Kind{event.KindNoteOn, event.KindNoteOff, event.KindNoteOn, event.KindNoteOff, event.KindNoteOn, event.KindNoteOff}
	wantDeltas := []float64{0, 0.2, 0, 0.2, 0, 0.2}
	for i, ev := range events[3:] {
		if ev.Kind != wantKinds[i] {
			t.Errorf("event %d kind = %v, want %v", i+3, ev.Kind, wantKinds[i])
		}
		if !approx(ev.Delta, wantDeltas[i]) {
			t.Errorf("event %d delta = %g, want %g", i+3, ev.Delta, wantDeltas[i])
		}
	}
	if events[3].Pitch != 62 || events[3].Velocity != 100 {
		t.Errorf("first note = %v", events[3])
	}
}

func TestLoadTempoChangeAffectsLaterDeltas(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smftest.Meter(4, 4))
	tr.Add(0, midi.NoteOn(0, 60, 90))
	tr.Add(smftest.Resolution, midi.NoteOff(0, 60))
	tr.Add(0, smftest.Tempo(1000000))
	tr.Add(0, midi.NoteOn(0, 62, 90))
	tr.Add(smftest.Resolution, midi.NoteOff(0, 62))

	f, err := Load(smftest.Write(t, "tempo.mid", tr))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var deltas []float64
	for _, ev := range f.Events() {
		if ev.Kind == event.KindNoteOff {
			deltas = append(deltas, ev.Delta)
		}
	}
	if len(deltas) != 2 || !approx(deltas[0], 0.5) || !approx(deltas[1], 1.0) {
		t.Errorf("note-off deltas = %v, want [0.5 1]", deltas)
	}
}

func TestLoadMergesTracksByTime(t *testing.T) {
	var a, b smf.Track
	a.Add(0, midi.NoteOn(0, 60, 90))
	a.Add(2*smftest.Resolution, midi.NoteOff(0, 60))
	b.Add(smftest.Resolution, midi.NoteOn(1, 72, 90))
	b.Add(smftest.Resolution/2, midi.NoteOff(1, 72))

	f, err := Load(smftest.Write(t, "merge.mid", a, b))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var got []uint8
	var total float64
	for _, ev := range f.Events() {
		if ev.IsNote() {
			got = append(got, ev.Pitch)
		}
		total += ev.Delta
	}
	want := []uint8{60, 72, 72, 60}
	if len(got) != len(want) {
		t.Fatalf("pitches = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pitches = %v, want %v", got, want)
		}
	}
	if !approx(total, 1.0) {
		t.Errorf("total time = %g, want 1", total)
	}
}

func TestLoadCaseInsensitive(t *testing.T) {
	path := smftest.Write(t, "Reel.MID", smftest.Melody(1, 60))
	alt := filepath.Join(filepath.Dir(path), "reel.mid")

	f, err := Load(alt)
	if err != nil {
		t.Fatalf("Load(%q) failed: %v", alt, err)
	}
	if f.Path() != path {
		t.Errorf("Path() = %q, want %q", f.Path(), path)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.mid")
	if err := os.WriteFile(garbage, []byte("definitely not a midi file"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", filepath.Join(dir, "missing.mid"), ErrFileNotFound},
		{"not a midi file", garbage, ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Load(tt.path)
			if err == nil {
				t.Fatalf("expected error, got file with %d events", len(f.Events()))
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("error should be a *LoadError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.path) {
				t.Errorf("error %q should name the file", err)
			}
		})
	}
}

func TestDecodeOtherEvents(t *testing.T) {
	var tr smf.Track
	tr.Add(0, midi.ProgramChange(0, 40))
	tr.Add(0, midi.NoteOn(0, 60, 0))

	f, err := Load(smftest.Write(t, "other.mid", tr))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	events := f.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != event.KindOther || len(events[0].Raw) != 2 {
		t.Errorf("program change decoded as %v", events[0])
	}
	// a zero-velocity note-on ends a note
	if events[1].Kind != event.KindNoteOff || events[1].Pitch != 60 {
		t.Errorf("zero velocity note-on decoded as %v", events[1])
	}
}

func TestDecodeMetaEvents(t *testing.T) {
	tests := []struct {
		name   string
		msg    smf.Message
		tempo  uint32
		fifths int8
		minor  bool
		kind   event.Kind
	}{
		{"tempo 120 bpm", smf.Message{0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20}, 500000, 0, false, event.KindTempo},
		{"tempo 150 bpm", smf.Message{0xFF, 0x51, 0x03, 0x06, 0x1A, 0x80}, 400000, 0, false, event.KindTempo},
		{"tempo with no round bpm", smf.Message{0xFF, 0x51, 0x03, 0x05, 0x16, 0x15}, 333333, 0, false, event.KindTempo},
		{"three flats minor", smf.Message{0xFF, 0x59, 0x02, 0xFD, 0x01}, 0, -3, true, event.KindKeySignature},
		{"four sharps major", smf.Message{0xFF, 0x59, 0x02, 0x04, 0x00}, 0, 4, false, event.KindKeySignature},
		{"no accidentals", smf.Message{0xFF, 0x59, 0x02, 0x00, 0x00}, 0, 0, false, event.KindKeySignature},
		{"track name", smf.Message{0xFF, 0x03, 0x01, 'A'}, 0, 0, false, event.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := decodeMessage(tt.msg)
			if ev.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", ev.Kind, tt.kind)
			}
			switch tt.kind {
			case event.KindTempo:
				if ev.MicrosPerQuarter != tt.tempo {
					t.Errorf("MicrosPerQuarter = %d, want %d", ev.MicrosPerQuarter, tt.tempo)
				}
			case event.KindKeySignature:
				if ev.Fifths != tt.fifths || ev.Minor != tt.minor {
					t.Errorf("key = %d minor=%v, want %d minor=%v", ev.Fifths, ev.Minor, tt.fifths, tt.minor)
				}
			}
		})
	}
}

func TestMergedStopsEarly(t *testing.T) {
	mid := smf.NewSMF1()
	mid.TimeFormat = smf.MetricTicks(smftest.Resolution)
	for _, tr := range []smf.Track{smftest.Melody(1, 60, 62), smftest.Melody(1, 64, 65)} {
		tr.Close(0)
		if err := mid.Add(tr); err != nil {
			t.Fatal(err)
		}
	}

	var ticks []int64
	for tick := range merged(mid) {
		ticks = append(ticks, tick)
		if len(ticks) == 3 {
			break
		}
	}
	want := []int64{0, 0, smftest.Resolution}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("ticks = %v, want %v", ticks, want)
			break
		}
	}
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"tunes/Polka.mid": {Data: smftest.Bytes(t, smftest.Melody(1, 64, 67))},
		"tunes/bad.mid":   {Data: []byte("MThd")},
	}

	f, err := LoadFS(fileutil.NewIOFS(fsys, "tunes"), "polka.mid")
	if err != nil {
		t.Fatalf("LoadFS failed: %v", err)
	}
	if f.Path() != "tunes/Polka.mid" {
		t.Errorf("Path() = %q, want tunes/Polka.mid", f.Path())
	}
	if f.Resolution() != smftest.Resolution || f.Tracks() != 1 {
		t.Errorf("Resolution() = %d, Tracks() = %d", f.Resolution(), f.Tracks())
	}
	if f.Size() != int64(len(fsys["tunes/Polka.mid"].Data)) {
		t.Errorf("Size() = %d, want %d", f.Size(), len(fsys["tunes/Polka.mid"].Data))
	}

	if _, err := LoadFS(fileutil.NewIOFS(fsys, "tunes"), "waltz.mid"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing file error = %v, want ErrFileNotFound", err)
	}
	if _, err := LoadFS(fileutil.NewIOFS(fsys, "tunes"), "bad.mid"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("truncated file error = %v, want ErrInvalidFormat", err)
	}
}

// lockedFS fails every lookup with a permission error.
type lockedFS struct{}

func (lockedFS) ReadFile(name string) ([]byte, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
}

func (lockedFS) FindFile(name string) (string, error) {
	return "", &fs.PathError{Op: "readdir", Path: ".", Err: fs.ErrPermission}
}

func (lockedFS) BasePath() string { return "" }

func TestLoadFSLookupFailure(t *testing.T) {
	_, err := LoadFS(lockedFS{}, "reel.mid")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrFileNotFound) {
		t.Errorf("permission error reported as missing file: %v", err)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("error %v should wrap fs.ErrPermission", err)
	}
	var le *LoadError
	if !errors.As(err, &le) || le.Path != "reel.mid" {
		t.Errorf("error should be a *LoadError for reel.mid, got %v", err)
	}
}
