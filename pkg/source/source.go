// Package source reads Standard MIDI Files into a flat, time-ordered event
// stream.
//
// All tracks are merged by absolute tick. Each event's delta time is
// converted to seconds with the tempo in force at that point of the file,
// starting from the SMF default of 120 BPM.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/zurustar/tunesync/pkg/event"
	"github.com/zurustar/tunesync/pkg/fileutil"
)

// DefaultMicrosPerQuarter is the tempo a Standard MIDI File plays at until
// its first tempo event (120 BPM).
const DefaultMicrosPerQuarter = 500000

// ErrFileNotFound is returned when the MIDI file cannot be found.
var ErrFileNotFound = errors.New("MIDI file not found")

// ErrInvalidFormat is returned when the file is not a readable Standard MIDI File.
var ErrInvalidFormat = errors.New("invalid MIDI file format")

// ErrUnsupportedTimeFormat is returned for SMPTE-timed files.
var ErrUnsupportedTimeFormat = errors.New("unsupported MIDI time format")

// LoadError reports a file that could not be turned into an event stream.
type LoadError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// File is a decoded MIDI file.
type File struct {
	path       string
	events     []event.Event
	resolution uint16
	tracks     int
	size       int64
	length     time.Duration
}

// Path returns the path the file was loaded from.
func (f *File) Path() string { return f.path }

// Events returns the merged event stream. The slice is shared; callers must
// not modify it.
func (f *File) Events() []event.Event { return f.events }

// Resolution returns the number of ticks per quarter note.
func (f *File) Resolution() uint16 { return f.resolution }

// Tracks returns the number of tracks in the file.
func (f *File) Tracks() int { return f.tracks }

// Size returns the size of the file in bytes.
func (f *File) Size() int64 { return f.size }

// Length returns the playback length of the file as measured by the synthesizer's sequencer.
func (f *File) Length() time.Duration { return f.length }

// Load reads and decodes the MIDI file at path. If path does not exist, a
// file whose name differs only in case is used instead.
func Load(path string) (*File, error) {
	return LoadFS(fileutil.NewRealFS(""), path)
}

// LoadFS is Load over fsys.
func LoadFS(fsys fileutil.FileSystem, name string) (*File, error) {
	actualPath, err := fsys.FindFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: name, Err: fmt.Errorf("%w: %v", ErrFileNotFound, err)}
		}
		return nil, &LoadError{Path: name, Err: fmt.Errorf("failed to locate MIDI file: %w", err)}
	}

	data, err := fsys.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: name, Err: ErrFileNotFound}
		}
		return nil, &LoadError{Path: name, Err: fmt.Errorf("failed to read MIDI file: %w", err)}
	}

	return Parse(actualPath, data)
}

// Parse decodes MIDI data. path is only used for reporting.
func Parse(path string, data []byte) (*File, error) {
	mid, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrInvalidFormat, err)}
	}

	ticks, ok := mid.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrUnsupportedTimeFormat, mid.TimeFormat)}
	}

	// The sequencer's reader is stricter than smf; a file it rejects would
	// not play either.
	seq, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrInvalidFormat, err)}
	}

	return &File{
		path:       path,
		events:     Decode(mid),
		resolution: ticks.Resolution(),
		tracks:     len(mid.Tracks),
		size:       int64(len(data)),
		length:     seq.GetLength(),
	}, nil
}

// Decode merges the tracks of mid into a single stream of events whose
// delta times are expressed in seconds. mid must use metric ticks.
func Decode(mid *smf.SMF) []event.Event {
	resolution := float64(mid.TimeFormat.(smf.MetricTicks).Resolution())
	tempo := float64(DefaultMicrosPerQuarter)

	var (
		events   []event.Event
		lastTick int64
	)
	for tick, msg := range merged(mid) {
		delta := float64(tick-lastTick) * tempo / 1e6 / resolution
		lastTick = tick

		ev := decodeMessage(msg)
		ev.Delta = delta
		if ev.Kind == event.KindTempo && ev.MicrosPerQuarter > 0 {
			tempo = float64(ev.MicrosPerQuarter)
		}
		events = append(events, ev)
	}
	return events
}
