package playback

import (
	"log/slog"

	"github.com/zurustar/tunesync/pkg/event"
)

// LogSink writes every event it receives to a logger at debug level.
type LogSink struct {
	Logger *slog.Logger
}

// Send implements Sink.
func (s LogSink) Send(ev event.Event) error {
	s.Logger.Debug("MIDI out", "kind", ev.Kind.String(), "event", ev.String(), "bytes", ev.Bytes())
	return nil
}
