package timeline

import (
	"log/slog"

	"github.com/zurustar/tunesync/pkg/structure"
)

const (
	// DefaultSyncTolerance is the sync marker placement window, as a
	// fraction of a quarter note (a sixty-fourth note).
	DefaultSyncTolerance = 0.0625

	// DefaultTriggerDelta is the beat alignment window of Clock.OnBeat, as a
	// fraction of a beat.
	DefaultTriggerDelta = 0.1
)

// Options configures Build.
//
// SyncTolerance and TriggerDelta are independent: the first decides where
// sync markers go, the second how close a clock must be to a beat. Both
// must be positive.
type Options struct {
	// Repeats is how many times the source is played back to back.
	Repeats int

	// SyncTolerance is the marker placement window in quarter notes.
	SyncTolerance float64

	// TriggerDelta is the OnBeat window in beats.
	TriggerDelta float64

	// Measures supplies the first measure duration used for the pickup
	// offset. Nil means the tune has no pickup.
	Measures structure.Analyzer

	// Logger receives build progress. Nil means the package logger.
	Logger *slog.Logger
}

// DefaultOptions returns options for a single repetition with the default
// tolerances, analyzing the file's own measure structure.
func DefaultOptions() Options {
	return Options{
		Repeats:       1,
		SyncTolerance: DefaultSyncTolerance,
		TriggerDelta:  DefaultTriggerDelta,
		Measures:      structure.SMF{},
	}
}
