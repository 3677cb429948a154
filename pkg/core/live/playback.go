package live

import (
	"fmt"
	"sync"
	"time"

	"github.com/lumina-press/lumina/pkg/core/audio"
)

// Clock reports the output device's current playback position.
type Clock interface {
	Now() time.Duration
}

// Voice is one chunk handed to a Sink.
type Voice interface {
	// Stop silences the chunk immediately. It is safe to call more than once.
	Stop()
}

// Sink plays decoded chunks at positions on its own clock.
type Sink interface {
	Clock

	// Play schedules buf to start at the given clock position. onEnded is
	// called once the chunk finishes naturally; it must not be called from
	// within Play and is not called for stopped voices.
	Play(buf *audio.Buffer, at time.Duration, onEnded func()) Voice
}

// Flusher is implemented by sinks that must be told when scheduled playback
// is discarded. Flush is called under the scheduler lock, so it is ordered
// with respect to Play.
type Flusher interface {
	Flush(discarded int)
}

// Scheduled describes where a chunk landed on the playback clock.
type Scheduled struct {
	At       time.Duration
	Duration time.Duration
}

// Scheduler queues received chunks back to back. Chunk k starts at
// max(end of chunk k-1, device clock), so consecutive chunks play without gaps
// while a stalled stream resumes at the current position.
type Scheduler struct {
	sink   Sink
	format audio.Format

	mu     sync.Mutex
	next   time.Duration
	seq    uint64
	voices map[uint64]Voice
	closed bool
}

// NewScheduler creates a scheduler that plays format-encoded PCM on sink.
func NewScheduler(sink Sink, format audio.Format) *Scheduler {
	return &Scheduler{
		sink:   sink,
		format: format,
		voices: make(map[uint64]Voice),
	}
}

// Schedule decodes a PCM16 chunk and queues it for playback.
func (s *Scheduler) Schedule(pcm []byte) (Scheduled, error) {
	buf, err := audio.DecodeToAudioBuffer(pcm, s.format.SampleRate, s.format.Channels)
	if err != nil {
		return Scheduled{}, fmt.Errorf("decode playback chunk: %w", err)
	}
	dur := time.Duration(buf.Frames()) * time.Second / time.Duration(buf.SampleRate)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Scheduled{}, ErrSessionClosed
	}

	at := max(s.next, s.sink.Now())
	s.seq++
	id := s.seq
	s.voices[id] = s.sink.Play(buf, at, func() { s.ended(id) })
	s.next = at + dur
	return Scheduled{At: at, Duration: dur}, nil
}

func (s *Scheduler) ended(id uint64) {
	s.mu.Lock()
	delete(s.voices, id)
	s.mu.Unlock()
}

// Interrupt stops every scheduled chunk and rewinds the playback clock.
// It returns the number of chunks discarded. A Sink that implements Flusher
// is flushed before any later chunk is played.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.flushLocked()
	if f, ok := s.sink.(Flusher); ok {
		f.Flush(n)
	}
	return n
}

func (s *Scheduler) flushLocked() int {
	n := len(s.voices)
	for id, v := range s.voices {
		v.Stop()
		delete(s.voices, id)
	}
	s.next = 0
	return n
}

// Pending returns the number of scheduled chunks that have not finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}

// Next returns the playback clock: where the next chunk would start.
func (s *Scheduler) Next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Close discards all playback and rejects further chunks.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	s.closed = true
}
