// Package audio converts between the float sample frames produced by capture
// devices, the 16-bit little-endian PCM the live API speaks, and the base64
// framing used on the wire.
package audio

import (
	"encoding/base64"
	"fmt"
	"math"
)

const pcmScale = 32768.0

// PCM16ToBase64 encodes raw PCM bytes for transport.
func PCM16ToBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// Base64ToPCM16 decodes a transport payload back to raw PCM bytes.
func Base64ToPCM16(encoded string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode pcm payload: %w", err)
	}
	return pcm, nil
}

// Buffer is decoded audio in planar float form, one slice per channel.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of sample frames per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// DurationSeconds returns the playback length of the buffer.
func (b *Buffer) DurationSeconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// DecodeToAudioBuffer interprets pcm as interleaved signed 16-bit little-endian
// samples and de-interleaves them into planar floats scaled by 1/32768.
// A trailing partial frame is dropped.
func DecodeToAudioBuffer(pcm []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	frames := len(pcm) / (2 * channels)
	buf := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			sample := int16(uint16(pcm[off]) | uint16(pcm[off+1])<<8)
			buf.Channels[ch][i] = float32(sample) / pcmScale
		}
	}
	return buf, nil
}

// FloatToPCM16 scales f by 32768, clamps to the int16 range and truncates
// toward zero.
func FloatToPCM16(f float32) int16 {
	v := float64(f) * pcmScale
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// EncodeFloatFrame converts one capture frame to little-endian PCM16 bytes.
func EncodeFloatFrame(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := uint16(FloatToPCM16(s))
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
