// Package structure answers questions about a tune's notated measure layout
// that a flat event stream cannot answer on its own.
package structure

import (
	"bytes"
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/zurustar/tunesync/pkg/fileutil"
)

// ErrNoMeasures is returned when a file has no discernible measure structure.
var ErrNoMeasures = errors.New("no measure structure")

// Analyzer reports the notated duration of the first measure of a tune.
type Analyzer interface {
	// FirstMeasure returns the duration of the first measure of the file at
	// path, in quarter notes.
	FirstMeasure(path string) (quarters float64, err error)
}

// Fixed is an Analyzer that always reports the same first measure duration.
// It is used when the length of the pickup bar is known in advance.
type Fixed float64

// FirstMeasure implements Analyzer.
func (f Fixed) FirstMeasure(string) (float64, error) {
	return float64(f), nil
}

// SMF derives measures from the time signature events of a Standard MIDI File.
type SMF struct {
	// FS is where paths are looked up. Nil means the local file system.
	FS fileutil.FileSystem
}

// FirstMeasure implements Analyzer.
func (s SMF) FirstMeasure(path string) (float64, error) {
	fsys := s.FS
	if fsys == nil {
		fsys = fileutil.NewRealFS("")
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return 0, err
	}
	mid, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return FirstMeasure(mid)
}

// FirstMeasure returns the length of the first bar of mid in quarter notes.
func FirstMeasure(mid *smf.SMF) (float64, error) {
	ticks, ok := mid.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return 0, fmt.Errorf("%w: unsupported time format %v", ErrNoMeasures, mid.TimeFormat)
	}
	b := findBars(mid, int64(ticks.Resolution()))
	if len(b) == 0 {
		return 0, ErrNoMeasures
	}
	return float64(b[0].Length) / float64(ticks.Resolution()), nil
}
