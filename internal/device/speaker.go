package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/core/audio"
	"github.com/lumina-press/lumina/pkg/core/live"
)

// Speaker plays scheduled chunks through one oto player. Its clock is the
// number of samples the player has pulled, so chunk start times are exact
// relative to each other.
type Speaker struct {
	player *oto.Player
	mix    *mixer
}

// NewSpeaker opens the default output device. oto allows one context per
// process, so a single Speaker is shared by every voice session.
func NewSpeaker(format audio.Format) (*Speaker, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		return nil, core.NewDeviceError("speaker unavailable", err)
	}
	<-ready

	m := newMixer(format.SampleRate)
	p := ctx.NewPlayer(m)
	p.Play()
	return &Speaker{player: p, mix: m}, nil
}

func (s *Speaker) Now() time.Duration { return s.mix.Now() }

func (s *Speaker) Play(buf *audio.Buffer, at time.Duration, onEnded func()) live.Voice {
	return s.mix.Play(buf, at, onEnded)
}

func (s *Speaker) Close() error {
	s.mix.close()
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("close speaker: %w", err)
	}
	return nil
}

// mixer is the io.Reader behind the player. It sums every voice active at
// the current read position and emits silence when none are.
type mixer struct {
	rate int

	mu     sync.Mutex
	pos    int64
	voices map[*mixVoice]struct{}
	closed bool
}

type mixVoice struct {
	m       *mixer
	samples []float32
	start   int64
	onEnded func()
}

func newMixer(rate int) *mixer {
	return &mixer{rate: rate, voices: make(map[*mixVoice]struct{})}
}

func (m *mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(m.pos) * time.Second / time.Duration(m.rate)
}

func (m *mixer) Play(buf *audio.Buffer, at time.Duration, onEnded func()) live.Voice {
	v := &mixVoice{
		m:       m,
		samples: buf.Channels[0],
		start:   int64(at) * int64(m.rate) / int64(time.Second),
		onEnded: onEnded,
	}
	m.mu.Lock()
	if !m.closed {
		m.voices[v] = struct{}{}
	}
	m.mu.Unlock()
	return v
}

func (v *mixVoice) Stop() {
	v.m.mu.Lock()
	delete(v.m.voices, v)
	v.m.mu.Unlock()
}

// Read fills p with mono PCM16.
func (m *mixer) Read(p []byte) (int, error) {
	n := len(p) / 2

	m.mu.Lock()
	var ended []func()
	for i := 0; i < n; i++ {
		t := m.pos + int64(i)
		var sum float32
		for v := range m.voices {
			if off := t - v.start; off >= 0 && off < int64(len(v.samples)) {
				sum += v.samples[off]
			}
		}
		s := uint16(audio.FloatToPCM16(sum))
		p[2*i] = byte(s)
		p[2*i+1] = byte(s >> 8)
	}
	m.pos += int64(n)
	for v := range m.voices {
		if v.start+int64(len(v.samples)) <= m.pos {
			delete(m.voices, v)
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
		}
	}
	m.mu.Unlock()

	for _, fn := range ended {
		fn()
	}
	return n * 2, nil
}

func (m *mixer) close() {
	m.mu.Lock()
	m.closed = true
	m.voices = make(map[*mixVoice]struct{})
	m.mu.Unlock()
}
