package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lumina-press/lumina/pkg/core/audio"
)

type fakeRemote struct {
	mu      sync.Mutex
	frames  []Frame
	sendErr error
	closed  int
}

func (r *fakeRemote) Send(_ context.Context, f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *fakeRemote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeRemote) sent() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

func (r *fakeRemote) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type fakeConnector struct {
	mu       sync.Mutex
	err      error
	remotes  []*fakeRemote
	events   chan<- RemoteEvent
	connects int
}

func (c *fakeConnector) Connect(_ context.Context, _ Config, events chan<- RemoteEvent) (Remote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.err != nil {
		return nil, c.err
	}
	r := &fakeRemote{}
	c.remotes = append(c.remotes, r)
	c.events = events
	return r, nil
}

func (c *fakeConnector) push(ev RemoteEvent) {
	c.mu.Lock()
	ch := c.events
	c.mu.Unlock()
	ch <- ev
}

func (c *fakeConnector) lastRemote() *fakeRemote {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.remotes) == 0 {
		return nil
	}
	return c.remotes[len(c.remotes)-1]
}

func (c *fakeConnector) connectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

type fakeStream struct {
	frames chan []float32

	mu        sync.Mutex
	started   bool
	closed    int
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan []float32, 16)}
}

func (s *fakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *fakeStream) Frames() <-chan []float32 { return s.frames }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.frames) })
	return nil
}

func (s *fakeStream) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeCapture struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

func (c *fakeCapture) Open(_ context.Context, _ audio.Format, _ int) (CaptureStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s := newFakeStream()
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeCapture) lastStream() *fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.streams) == 0 {
		return nil
	}
	return c.streams[len(c.streams)-1]
}

type fakeVoice struct {
	at       time.Duration
	duration time.Duration
	onEnded  func()

	mu      sync.Mutex
	stopped bool
}

func (v *fakeVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
}

func (v *fakeVoice) isStopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

type fakeSink struct {
	mu      sync.Mutex
	now     time.Duration
	voices  []*fakeVoice
	ops     []string
	flushed []int
}

func (s *fakeSink) Flush(discarded int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "flush")
	s.flushed = append(s.flushed, discarded)
}

func (s *fakeSink) log() ([]string, []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...), append([]int(nil), s.flushed...)
}

func (s *fakeSink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeSink) setNow(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = d
}

func (s *fakeSink) Play(buf *audio.Buffer, at time.Duration, onEnded func()) Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &fakeVoice{
		at:       at,
		duration: time.Duration(buf.Frames()) * time.Second / time.Duration(buf.SampleRate),
		onEnded:  onEnded,
	}
	s.voices = append(s.voices, v)
	s.ops = append(s.ops, "play")
	return v
}

// finish ends voice i naturally unless it was stopped.
func (s *fakeSink) finish(i int) {
	s.mu.Lock()
	v := s.voices[i]
	s.mu.Unlock()
	if !v.isStopped() {
		v.onEnded()
	}
}

func (s *fakeSink) played() []*fakeVoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeVoice(nil), s.voices...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// pcmChunk returns a base64 PCM16 chunk of the given length at 24 kHz.
func pcmChunk(d time.Duration) []byte {
	samples := int(d * 24000 / time.Second)
	return make([]byte, samples*2)
}
