package timeline

import "fmt"

// Meter is a tune's time signature.
type Meter struct {
	Numerator   int
	Denominator int
}

// String returns the meter as "n/d".
func (m Meter) String() string {
	return fmt.Sprintf("%d/%d", m.Numerator, m.Denominator)
}

// QuartersPerBar returns the length of one bar in quarter notes.
func (m Meter) QuartersPerBar() float64 {
	return 4 * float64(m.Numerator) / float64(m.Denominator)
}

// BeatCount returns the number of beats in a bar.
//
// Compound meters group their pulses in threes: 6/8 has two beats, 9/8
// three, 12/8 four, and 3/8 a single beat. 6/4 and 9/4 are treated the
// same way. Every other meter counts one beat per numerator unit.
func (m Meter) BeatCount() int {
	n := m.Numerator
	switch {
	case n <= 0:
		return 1
	case n%3 == 0 && m.Denominator >= 8:
		return n / 3
	case n%3 == 0 && n > 3:
		return n / 3
	}
	return n
}
