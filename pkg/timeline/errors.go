package timeline

import (
	"errors"
	"fmt"
)

var (
	// ErrStructuralDataMissing is returned when an element the timeline
	// cannot be computed without is absent from the source.
	ErrStructuralDataMissing = errors.New("structural data missing")

	// ErrEmptyAmbitus is returned when the source contains no notes.
	ErrEmptyAmbitus = errors.New("no note events, ambitus undefined")

	// ErrInvalidRepeats is returned for a repeat count below one.
	ErrInvalidRepeats = errors.New("repeat count must be at least 1")

	// ErrInvalidOptions is returned for a non-positive tolerance.
	ErrInvalidOptions = errors.New("invalid timeline options")

	// ErrClockExhausted is returned by Clock.Next past the end of the timeline.
	ErrClockExhausted = errors.New("performance clock exhausted")

	// ErrUnknownMarker is returned for a sync marker id that does not exist.
	ErrUnknownMarker = errors.New("unknown sync marker")
)

// StructuralError reports a required element missing from a source file.
type StructuralError struct {
	Path    string
	Element string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Element, ErrStructuralDataMissing)
}

// Unwrap returns ErrStructuralDataMissing.
func (e *StructuralError) Unwrap() error {
	return ErrStructuralDataMissing
}
