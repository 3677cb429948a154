// Package device binds the voice session to the local microphone and
// speakers.
package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/core/audio"
	"github.com/lumina-press/lumina/pkg/core/live"
)

// Microphone opens the default capture device through miniaudio.
type Microphone struct {
	// OnLevel, if set, receives the RMS level of every delivered frame.
	OnLevel func(level float64)
}

// Open acquires the default capture device at format's sample rate as mono
// 32-bit float. The device is not started until Start.
func (m *Microphone) Open(_ context.Context, format audio.Format, frameSamples int) (live.CaptureStream, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, core.NewDeviceError("audio context unavailable", err)
	}

	s := &micStream{
		mctx:     mctx,
		frames:   make(chan []float32, 16),
		assemble: newFrameAssembler(frameSamples),
		onLevel:  m.OnLevel,
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: s.onData})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, core.NewDeviceError("microphone unavailable", err)
	}
	s.dev = dev
	return s, nil
}

type micStream struct {
	mctx *malgo.AllocatedContext
	dev  *malgo.Device

	mu       sync.Mutex
	closed   bool
	frames   chan []float32
	assemble *frameAssembler
	onLevel  func(float64)
}

func (s *micStream) Start() error {
	if err := s.dev.Start(); err != nil {
		return core.NewDeviceError("start microphone", err)
	}
	return nil
}

func (s *micStream) Frames() <-chan []float32 { return s.frames }

// onData runs on the audio thread. Frames are dropped when the consumer is
// behind.
func (s *micStream) onData(_, input []byte, _ uint32) {
	samples := decodeF32(input)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, frame := range s.assemble.push(samples) {
		if s.onLevel != nil {
			s.onLevel(audio.RMS(frame))
		}
		select {
		case s.frames <- frame:
		default:
		}
	}
}

func (s *micStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Stop waits for the callback to return, so it must run without s.mu.
	var firstErr error
	if err := s.dev.Stop(); err != nil {
		firstErr = fmt.Errorf("stop microphone: %w", err)
	}
	s.dev.Uninit()
	if err := s.mctx.Uninit(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("release audio context: %w", err)
	}
	s.mctx.Free()

	s.mu.Lock()
	close(s.frames)
	s.mu.Unlock()
	return firstErr
}

func decodeF32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

// frameAssembler cuts a sample stream into fixed-size frames.
type frameAssembler struct {
	size    int
	pending []float32
}

func newFrameAssembler(size int) *frameAssembler {
	if size <= 0 {
		size = 4096
	}
	return &frameAssembler{size: size, pending: make([]float32, 0, size)}
}

// push appends samples and returns every completed frame. Returned frames
// are owned by the caller.
func (a *frameAssembler) push(samples []float32) [][]float32 {
	var out [][]float32
	for len(samples) > 0 {
		n := min(a.size-len(a.pending), len(samples))
		a.pending = append(a.pending, samples[:n]...)
		samples = samples[n:]
		if len(a.pending) == a.size {
			out = append(out, a.pending)
			a.pending = make([]float32, 0, a.size)
		}
	}
	return out
}
