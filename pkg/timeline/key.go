package timeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var modeTitle = cases.Title(language.English)

// KeySignature is the key a tune is written in.
type KeySignature struct {
	// Name is the conventional key name, e.g. "G" or "Em".
	Name string
	// Fifths is the number of sharps (positive) or flats (negative).
	Fifths int
	Minor  bool
}

// Root returns the pitch class (0 = C) of the key's tonic.
func (k KeySignature) Root() int {
	root := floorModInt(7*k.Fifths, 12)
	if k.Minor {
		root = floorModInt(root+9, 12)
	}
	return root
}

// Mode returns "major" or "minor".
func (k KeySignature) Mode() string {
	if k.Minor {
		return "minor"
	}
	return "major"
}

// Display returns the key as shown to users: "D" for major keys and
// "E Minor" for minor ones.
func (k KeySignature) Display() string {
	tonic := strings.TrimSuffix(k.Name, "m")
	if !k.Minor {
		return tonic
	}
	return tonic + " " + modeTitle.String(k.Mode())
}

// SemitonesFromTonic returns the distance in semitones between note and the
// tonic of the relative major key, in [0, 12).
func (k KeySignature) SemitonesFromTonic(note int) int {
	return floorModInt(note-7*k.Fifths, 12)
}
