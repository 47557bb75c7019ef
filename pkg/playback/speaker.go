package playback

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	audioCtxOnce sync.Once
	audioCtx     *audio.Context
)

// sharedContext returns the process-wide audio context. Ebitengine allows
// only one.
func sharedContext() *audio.Context {
	audioCtxOnce.Do(func() {
		audioCtx = audio.NewContext(SampleRate)
	})
	return audioCtx
}

// Speaker plays a Synth on the default audio device.
type Speaker struct {
	synth  *Synth
	player *audio.Player
}

// NewSpeaker starts streaming synth to the audio device.
func NewSpeaker(synth *Synth) (*Speaker, error) {
	player, err := sharedContext().NewPlayer(synth)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	player.Play()
	return &Speaker{synth: synth, player: player}, nil
}

// Close stops the synthesizer and releases the audio player.
func (sp *Speaker) Close() error {
	sp.synth.Stop()
	return sp.player.Close()
}
