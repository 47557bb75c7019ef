package event

import "strconv"

// Key names indexed by fifths+7, i.e. from seven flats to seven sharps.
var (
	majorKeys = [15]string{"Cb", "Gb", "Db", "Ab", "Eb", "Bb", "F", "C", "G", "D", "A", "E", "B", "F#", "C#"}
	minorKeys = [15]string{"Abm", "Ebm", "Bbm", "Fm", "Cm", "Gm", "Dm", "Am", "Em", "Bm", "F#m", "C#m", "G#m", "D#m", "A#m"}
)

// KeyName returns the conventional name of the key with the given number of
// sharps (positive) or flats (negative), e.g. "D" or "F#m". Out of range
// values are clamped to seven sharps or flats.
func KeyName(fifths int8, minor bool) string {
	i := int(fifths) + 7
	if i < 0 {
		i = 0
	}
	if i > 14 {
		i = 14
	}
	if minor {
		return minorKeys[i]
	}
	return majorKeys[i]
}

// ParseKeyName is the inverse of KeyName.
func ParseKeyName(name string) (fifths int8, minor bool, ok bool) {
	for i := range majorKeys {
		if majorKeys[i] == name {
			return int8(i - 7), false, true
		}
		if minorKeys[i] == name {
			return int8(i - 7), true, true
		}
	}
	return 0, false, false
}

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns the scientific pitch name of a MIDI note number in
// [0, 127], with middle C (60) as "C4".
func NoteName(pitch int) string {
	return pitchClasses[pitch%12] + strconv.Itoa(pitch/12-1)
}
