package live

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumina-press/lumina/pkg/core/audio"
)

func TestScheduler_Gapless(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, audio.PlaybackFormat())

	durations := []time.Duration{100 * time.Millisecond, 250 * time.Millisecond, 40 * time.Millisecond}
	var prev Scheduled
	for i, d := range durations {
		got, err := s.Schedule(pcmChunk(d))
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		if got.Duration != d {
			t.Fatalf("chunk %d duration=%v want %v", i, got.Duration, d)
		}
		if i > 0 && got.At != prev.At+prev.Duration {
			t.Fatalf("chunk %d starts at %v, want %v", i, got.At, prev.At+prev.Duration)
		}
		prev = got
	}
	if s.Next() != 390*time.Millisecond {
		t.Fatalf("clock=%v", s.Next())
	}
}

func TestScheduler_ResumesAtDeviceClockAfterStall(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, audio.PlaybackFormat())

	if _, err := s.Schedule(pcmChunk(100 * time.Millisecond)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	sink.setNow(time.Second)
	got, err := s.Schedule(pcmChunk(100 * time.Millisecond))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got.At != time.Second {
		t.Fatalf("at=%v want 1s", got.At)
	}
}

func TestScheduler_EndedLeavesPendingSet(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, audio.PlaybackFormat())
	for i := 0; i < 2; i++ {
		if _, err := s.Schedule(pcmChunk(50 * time.Millisecond)); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	if s.Pending() != 2 {
		t.Fatalf("pending=%d", s.Pending())
	}
	sink.finish(0)
	if s.Pending() != 1 {
		t.Fatalf("pending=%d after first chunk ended", s.Pending())
	}
}

func TestScheduler_InterruptDiscardsEverything(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, audio.PlaybackFormat())
	for i := 0; i < 3; i++ {
		if _, err := s.Schedule(pcmChunk(100 * time.Millisecond)); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	sink.setNow(20 * time.Millisecond)

	if n := s.Interrupt(); n != 3 {
		t.Fatalf("discarded=%d want 3", n)
	}
	for i, v := range sink.played() {
		if !v.isStopped() {
			t.Fatalf("voice %d still playing after interrupt", i)
		}
	}
	if s.Pending() != 0 || s.Next() != 0 {
		t.Fatalf("pending=%d clock=%v after interrupt", s.Pending(), s.Next())
	}

	got, err := s.Schedule(pcmChunk(100 * time.Millisecond))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got.At != 20*time.Millisecond {
		t.Fatalf("post-interrupt chunk at %v, want device clock", got.At)
	}
}

func TestScheduler_InterruptFlushesSinkBeforeNextChunk(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, audio.PlaybackFormat())
	for i := 0; i < 2; i++ {
		if _, err := s.Schedule(pcmChunk(50 * time.Millisecond)); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	s.Interrupt()
	if _, err := s.Schedule(pcmChunk(50 * time.Millisecond)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	ops, flushed := sink.log()
	want := []string{"play", "play", "flush", "play"}
	if strings.Join(ops, ",") != strings.Join(want, ",") {
		t.Fatalf("ops=%v want %v", ops, want)
	}
	if len(flushed) != 1 || flushed[0] != 2 {
		t.Fatalf("flushed=%v", flushed)
	}
}

func TestScheduler_CloseRejects(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, audio.PlaybackFormat())
	if _, err := s.Schedule(pcmChunk(10 * time.Millisecond)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	s.Close()
	if !sink.played()[0].isStopped() {
		t.Fatalf("close should stop playback")
	}
	if _, err := s.Schedule(pcmChunk(10 * time.Millisecond)); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("err=%v want ErrSessionClosed", err)
	}
}
