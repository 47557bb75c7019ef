// Package playback performs a tune in real time.
//
// A Driver walks a timeline.Clock, waits out each event's delta time and
// hands every event that has a wire form to a Sink. Sinks include a software
// synthesizer (Synth), a structured log (LogSink) and any combination of
// them (Tee).
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/time/rate"

	"github.com/zurustar/tunesync/pkg/event"
	"github.com/zurustar/tunesync/pkg/logger"
	"github.com/zurustar/tunesync/pkg/timeline"
)

// DefaultProgressInterval is how often a Driver logs playback progress.
const DefaultProgressInterval = time.Second

// ccAllNotesOff is the channel mode message that silences a channel.
const ccAllNotesOff = 123

// Sink receives the events of a performance.
type Sink interface {
	Send(ev event.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ev event.Event) error

// Send implements Sink.
func (f SinkFunc) Send(ev event.Event) error { return f(ev) }

// Tee returns a Sink that sends every event to each of sinks in order and
// stops at the first error.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ev event.Event) error {
		for _, s := range sinks {
			if err := s.Send(ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// Driver plays tunes into a Sink in real time.
type Driver struct {
	// Sink receives every event that has a MIDI wire form.
	Sink Sink

	// Logger receives progress. Nil means the package logger.
	Logger *slog.Logger

	// OnMarker, if set, is called when a sync marker is reached with the
	// marker id and the clock's elapsed time.
	OnMarker func(id int, elapsed float64)

	// OnBeat, if set, is called after each note-on that lands on a beat.
	OnBeat func(elapsed float64)

	// Sleep waits for d or until ctx is done. Nil means a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// ProgressInterval limits progress logging. Zero means DefaultProgressInterval.
	ProgressInterval time.Duration
}

type noteKey struct {
	channel uint8
	pitch   uint8
}

// Play performs the rest of clock's tune. It returns nil when the tune ends
// and ctx.Err() when ctx is cancelled first. Either way, no note is left
// sounding: pending note-offs and an all-notes-off message per channel are
// sent on cancellation or on a sink error.
func (d *Driver) Play(ctx context.Context, clock *timeline.Clock) error {
	log := d.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	interval := d.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	progress := rate.NewLimiter(rate.Every(interval), 1)

	active := make(map[noteKey]struct{})
	channels := make(map[uint8]struct{})

	log.Info("Playback started", "path", clock.Tune().Path(), "events", clock.Remaining())
	for clock.Remaining() > 0 {
		ev, err := clock.Next()
		if err != nil {
			return err
		}
		if ev.Delta > 0 {
			if err := sleep(ctx, seconds(ev.Delta)); err != nil {
				d.silence(log, active, channels)
				log.Info("Playback stopped", "elapsed", clock.Elapsed())
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			d.silence(log, active, channels)
			log.Info("Playback stopped", "elapsed", clock.Elapsed())
			return err
		}

		switch ev.Kind {
		case event.KindSyncMarker:
			if d.OnMarker != nil {
				d.OnMarker(ev.Index, clock.Elapsed())
			}
		case event.KindRepeatBoundary:
			log.Debug("Repetition", "index", ev.Index)
		}

		if ev.Bytes() == nil {
			continue
		}
		if err := d.Sink.Send(ev); err != nil {
			d.silence(log, active, channels)
			return fmt.Errorf("send %v: %w", ev, err)
		}

		switch ev.Kind {
		case event.KindNoteOn:
			active[noteKey{ev.Channel, ev.Pitch}] = struct{}{}
			channels[ev.Channel] = struct{}{}
			if d.OnBeat != nil && clock.OnBeat() {
				d.OnBeat(clock.Elapsed())
			}
		case event.KindNoteOff:
			delete(active, noteKey{ev.Channel, ev.Pitch})
		}

		if progress.Allow() {
			log.Debug("Playback progress", "elapsed", clock.Elapsed(), "remaining", clock.Remaining())
		}
	}
	log.Info("Playback finished", "elapsed", clock.Elapsed())
	return nil
}

// silence releases every sounding note and then sends all-notes-off on each
// channel that was played.
func (d *Driver) silence(log *slog.Logger, active map[noteKey]struct{}, channels map[uint8]struct{}) {
	keys := make([]noteKey, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b noteKey) int {
		if a.channel != b.channel {
			return int(a.channel) - int(b.channel)
		}
		return int(a.pitch) - int(b.pitch)
	})
	for _, k := range keys {
		if err := d.Sink.Send(event.NoteOff(0, k.channel, k.pitch)); err != nil {
			log.Warn("Failed to release note", "channel", k.channel, "note", k.pitch, "error", err)
		}
		delete(active, k)
	}

	chs := make([]uint8, 0, len(channels))
	for ch := range channels {
		chs = append(chs, ch)
	}
	slices.Sort(chs)
	for _, ch := range chs {
		ev := event.Event{Kind: event.KindOther, Channel: ch, Raw: midi.ControlChange(ch, ccAllNotesOff, 0)}
		if err := d.Sink.Send(ev); err != nil {
			log.Warn("Failed to send all notes off", "channel", ch, "error", err)
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
