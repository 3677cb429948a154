package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/lumina-press/lumina/pkg/core/audio"
	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/gateway/live/protocol"
)

// wsCapture is the microphone of one WebSocket client: frames arrive as
// "audio" messages and are handed to the session's capture pump.
type wsCapture struct {
	mu     sync.Mutex
	stream *wsCaptureStream
}

func (c *wsCapture) Open(_ context.Context, _ audio.Format, _ int) (live.CaptureStream, error) {
	s := &wsCaptureStream{frames: make(chan []float32, 32)}
	c.mu.Lock()
	c.stream = s
	c.mu.Unlock()
	return s, nil
}

// push forwards one frame. It reports false when the frame was dropped
// because capture has not started, has stopped, or the pump is behind.
func (c *wsCapture) push(frame []float32) bool {
	c.mu.Lock()
	s := c.stream
	c.mu.Unlock()
	if s == nil {
		return false
	}
	return s.push(frame)
}

type wsCaptureStream struct {
	mu      sync.Mutex
	started bool
	closed  bool
	frames  chan []float32
}

func (s *wsCaptureStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return live.ErrSessionClosed
	}
	s.started = true
	return nil
}

func (s *wsCaptureStream) Frames() <-chan []float32 { return s.frames }

func (s *wsCaptureStream) push(frame []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return false
	}
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

func (s *wsCaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

// wsSink plays chunks on the client: each chunk is re-encoded and sent with
// its start offset on a clock that begins when the sink is created. The
// client starts chunk playback at that offset relative to its own origin.
type wsSink struct {
	origin time.Time
	send   func(v any) bool
	onSent func(bytes int)
}

func newWSSink(send func(v any) bool, onSent func(bytes int)) *wsSink {
	return &wsSink{origin: time.Now(), send: send, onSent: onSent}
}

func (s *wsSink) Now() time.Duration { return time.Since(s.origin) }

func (s *wsSink) Play(buf *audio.Buffer, at time.Duration, onEnded func()) live.Voice {
	pcm := audio.EncodeFloatFrame(buf.Channels[0])
	dur := time.Duration(buf.Frames()) * time.Second / time.Duration(buf.SampleRate)
	if s.send(protocol.ServerAudio{
		Type:       protocol.TypeAudio,
		Data:       audio.PCM16ToBase64(pcm),
		StartAtMS:  at.Milliseconds(),
		DurationMS: dur.Milliseconds(),
	}) && s.onSent != nil {
		s.onSent(len(pcm))
	}

	wait := at + dur - s.Now()
	if wait < 0 {
		wait = 0
	}
	return &wsVoice{timer: time.AfterFunc(wait, onEnded)}
}

// Flush tells the client to drop everything scheduled. It shares the audio
// send path, so the clear frame precedes any chunk scheduled after it.
func (s *wsSink) Flush(discarded int) {
	s.send(protocol.ServerClear{Type: protocol.TypeClear, Discarded: discarded})
}

type wsVoice struct {
	timer *time.Timer
}

func (v *wsVoice) Stop() { v.timer.Stop() }
