package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/tunesync/pkg/event"
	"github.com/zurustar/tunesync/pkg/fileutil"
)

// SampleRate is the audio sample rate used for synthesis.
const SampleRate = 44100

// ErrNoSoundFont is returned when no SoundFont file is provided.
var ErrNoSoundFont = errors.New("SoundFont file is required for synthesis")

// ErrSoundFontNotFound is returned when the SoundFont file cannot be found.
var ErrSoundFontNotFound = errors.New("SoundFont file not found")

// synthesizer abstracts the subset of meltysynth.Synthesizer used by Synth.
type synthesizer interface {
	ProcessMidiMessage(channel int32, command int32, data1, data2 int32)
	Render(left, right []float32)
}

// newSynthesizer constructs a meltysynth synthesizer. Tests may override this
// to inject a mock implementation.
var newSynthesizer = func(sf *meltysynth.SoundFont, settings *meltysynth.SynthesizerSettings) (synthesizer, error) {
	return meltysynth.NewSynthesizer(sf, settings)
}

// LoadSoundFont reads and parses a SoundFont file from fsys.
//
// Parameters:
//   - fsys: The file system to read from (nil for the local file system)
//   - path: Path to the SoundFont (.sf2) file
//
// Returns:
//   - *meltysynth.SoundFont: The parsed SoundFont
//   - error: ErrNoSoundFont, ErrSoundFontNotFound or a parse error
func LoadSoundFont(fsys fileutil.FileSystem, path string) (*meltysynth.SoundFont, error) {
	if path == "" {
		return nil, ErrNoSoundFont
	}
	if fsys == nil {
		fsys = fileutil.NewRealFS("")
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
		}
		return nil, fmt.Errorf("failed to read SoundFont file: %w", err)
	}

	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}
	return soundFont, nil
}

// Synth is a Sink that drives a software synthesizer. It is also an
// io.Reader producing 16-bit little-endian interleaved stereo at
// SampleRate, suitable for an audio player.
type Synth struct {
	synth       synthesizer
	sampleCount int64
	stopped     bool
	mu          sync.Mutex
}

// NewSynth creates a synthesizer for the given SoundFont.
func NewSynth(sf *meltysynth.SoundFont) (*Synth, error) {
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	syn, err := newSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}
	return &Synth{synth: syn}, nil
}

// Send implements Sink. Channel voice and mode messages reach the
// synthesizer; system messages such as song position pointers are ignored.
func (s *Synth) Send(ev event.Event) error {
	msg := ev.Bytes()
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return nil
	}

	var data1, data2 int32
	if len(msg) > 1 {
		data1 = int32(msg[1])
	}
	if len(msg) > 2 {
		data2 = int32(msg[2])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.synth.ProcessMidiMessage(int32(msg[0]&0x0F), int32(msg[0]&0xF0), data1, data2)
	return nil
}

// Read implements io.Reader. It renders audio samples from the synthesizer
// and converts them to int16 format.
func (s *Synth) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		clear(p)
		return len(p), nil
	}

	// 16-bit stereo = 4 bytes per sample
	samples := len(p) / 4
	if samples == 0 {
		return 0, nil
	}

	left := make([]float32, samples)
	right := make([]float32, samples)
	s.synth.Render(left, right)
	s.sampleCount += int64(samples)

	for i := range samples {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return samples * 4, nil
}

// Stop makes the synthesizer ignore further events and Read return silence.
func (s *Synth) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// SampleCount returns the total number of samples rendered.
func (s *Synth) SampleCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleCount
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
