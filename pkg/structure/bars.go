package structure

import (
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type bar struct {
	// bar position, in ticks.
	Begin  int64
	Length int64
}

func (b bar) End() int64 {
	return b.Begin + b.Length
}

type timeSig struct {
	start  int64
	barLen int64
}

// findBars lays out the bars of mid from its time signature events.
// A bar cut short by the next time signature keeps its shortened length,
// which is how a notated pickup shows up in a MIDI file. Returns nil when
// the file has no time signature or no notes.
func findBars(mid *smf.SMF, ticksPerQuarter int64) []bar {
	var (
		sigs     []timeSig
		lastTime int64
		hasNotes bool
	)
	for _, t := range mid.Tracks {
		var time int64
		for _, ev := range t {
			time += int64(ev.Delta)
			var ch, key, vel uint8
			if m := midi.Message(ev.Message); m.GetNoteStart(&ch, &key, &vel) || m.GetNoteEnd(&ch, &key) {
				hasNotes = true
				if time > lastTime {
					lastTime = time
				}
			}
			var num, denom, cpt, dsqpq uint8
			if ev.Message.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq) && num > 0 && denom > 0 {
				whole := 4 * ticksPerQuarter
				sigs = append(sigs, timeSig{
					start:  time,
					barLen: whole * int64(num) / int64(denom),
				})
			}
		}
	}
	if len(sigs) == 0 || !hasNotes {
		return nil
	}

	slices.SortStableFunc(sigs, func(a, b timeSig) int {
		switch {
		case a.start < b.start:
			return -1
		case a.start > b.start:
			return 1
		}
		return 0
	})
	// Several signatures at one tick: the last one wins.
	deduped := sigs[:1]
	for _, sig := range sigs[1:] {
		if sig.start == deduped[len(deduped)-1].start {
			deduped[len(deduped)-1] = sig
			continue
		}
		deduped = append(deduped, sig)
	}
	sigs = deduped
	if sigs[0].start > 0 {
		sigs = append([]timeSig{{start: 0, barLen: 4 * ticksPerQuarter}}, sigs...)
	}

	var bars []bar
	for i, sig := range sigs {
		if sig.barLen <= 0 {
			continue
		}
		last := i == len(sigs)-1
		end := max(lastTime, sig.start+1)
		if !last {
			end = sigs[i+1].start
		}
		for t := sig.start; t < end; t += sig.barLen {
			length := sig.barLen
			if !last && t+length > end {
				length = end - t
			}
			bars = append(bars, bar{Begin: t, Length: length})
		}
	}
	return bars
}
