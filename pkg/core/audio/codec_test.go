package audio

import (
	"bytes"
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestBase64RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pcm := rapid.SliceOf(rapid.Byte()).Draw(rt, "pcm")
		got, err := Base64ToPCM16(PCM16ToBase64(pcm))
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(got, pcm) {
			rt.Fatalf("round trip mismatch: got %v want %v", got, pcm)
		}
	})
}

func TestFloatScaling_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := float32(rapid.Float64Range(-1, 1).Draw(rt, "sample"))
		frame := EncodeFloatFrame([]float32{f})
		buf, err := DecodeToAudioBuffer(frame, 16000, 1)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		back := buf.Channels[0][0]
		if math.Abs(float64(back-f)) > 1.0/32768.0+1e-7 {
			rt.Fatalf("sample %v decoded to %v", f, back)
		}
	})
}

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{name: "zero", in: 0, want: 0},
		{name: "full scale positive clamps", in: 1, want: 32767},
		{name: "full scale negative", in: -1, want: -32768},
		{name: "over range", in: 1.5, want: 32767},
		{name: "under range", in: -2, want: -32768},
		{name: "half", in: 0.5, want: 16384},
		{name: "truncates toward zero", in: -0.00002, want: 0},
		{name: "nan", in: float32(math.NaN()), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FloatToPCM16(tt.in); got != tt.want {
				t.Fatalf("FloatToPCM16(%v)=%d want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeFloatFrame_LittleEndian(t *testing.T) {
	got := EncodeFloatFrame([]float32{0.5, -1})
	want := []byte{0x00, 0x40, 0x00, 0x80}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestDecodeToAudioBuffer_Stereo(t *testing.T) {
	// L=16384, R=-32768, L=0, R=32767, plus a trailing partial frame.
	pcm := []byte{0x00, 0x40, 0x00, 0x80, 0x00, 0x00, 0xff, 0x7f, 0x01}
	buf, err := DecodeToAudioBuffer(pcm, 24000, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Frames() != 2 {
		t.Fatalf("frames=%d want 2", buf.Frames())
	}
	if buf.Channels[0][0] != 0.5 || buf.Channels[1][0] != -1 {
		t.Fatalf("unexpected first frame: %v %v", buf.Channels[0][0], buf.Channels[1][0])
	}
	if buf.Channels[0][1] != 0 || buf.Channels[1][1] != 32767.0/32768.0 {
		t.Fatalf("unexpected second frame: %v %v", buf.Channels[0][1], buf.Channels[1][1])
	}
}

func TestDecodeToAudioBuffer_InvalidArgs(t *testing.T) {
	if _, err := DecodeToAudioBuffer(nil, 0, 1); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	if _, err := DecodeToAudioBuffer(nil, 24000, 0); err == nil {
		t.Fatalf("expected error for zero channels")
	}
}

func TestBufferDuration(t *testing.T) {
	pcm := make([]byte, 24000*2) // one second of mono audio
	buf, err := DecodeToAudioBuffer(pcm, 24000, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.DurationSeconds() != 1 {
		t.Fatalf("duration=%v want 1", buf.DurationSeconds())
	}
}

func TestBase64ToPCM16_Invalid(t *testing.T) {
	if _, err := Base64ToPCM16("not base64!"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFormat(t *testing.T) {
	capture := CaptureFormat()
	if capture.MIMEType() != "audio/pcm;rate=16000" {
		t.Fatalf("mime=%q", capture.MIMEType())
	}
	playback := PlaybackFormat()
	if playback.BytesPerSecond() != 48000 {
		t.Fatalf("bytes/s=%d", playback.BytesPerSecond())
	}
	if d := playback.Duration(4800); d != 100*time.Millisecond {
		t.Fatalf("duration=%v", d)
	}
	if n := playback.BytesForDuration(500 * time.Millisecond); n != 24000 {
		t.Fatalf("bytes=%d", n)
	}
}

func TestLevels(t *testing.T) {
	if RMS(nil) != 0 || Peak(nil) != 0 || PCM16RMS(nil) != 0 {
		t.Fatalf("empty input should be silent")
	}
	if got := RMS([]float32{0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("rms=%v", got)
	}
	if got := Peak([]float32{0.25, -0.75}); got != 0.75 {
		t.Fatalf("peak=%v", got)
	}
	if got := PCM16RMS(EncodeFloatFrame([]float32{0.5, -0.5})); math.Abs(got-0.5) > 1e-4 {
		t.Fatalf("pcm rms=%v", got)
	}
}
