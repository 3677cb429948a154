package audio

import (
	"fmt"
	"time"
)

// Format specifies PCM stream parameters.
type Format struct {
	// SampleRate in Hz. The live API captures at 16000 and plays back at 24000.
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`

	// Channels: 1 for mono.
	Channels int `json:"channels" yaml:"channels"`

	// BitsPerSample is always 16 for the live API.
	BitsPerSample int `json:"bits_per_sample" yaml:"bits_per_sample"`
}

// CaptureFormat is the microphone format sent to the live API.
func CaptureFormat() Format {
	return Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

// PlaybackFormat is the format of audio chunks received from the live API.
func PlaybackFormat() Format {
	return Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

// MIMEType returns the media type advertised for PCM payloads in this format.
func (f Format) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

// BytesPerSecond returns the audio byte rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * (f.BitsPerSample / 8)
}

// Duration returns the playback length of n bytes.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// BytesForDuration returns the byte count covering d.
func (f Format) BytesForDuration(d time.Duration) int {
	return int(int64(f.BytesPerSecond()) * int64(d) / int64(time.Second))
}
