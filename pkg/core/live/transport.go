package live

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lumina-press/lumina/pkg/core/audio"
)

// Transport moves audio between the local devices and the remote session.
type Transport struct {
	remote    Remote
	capture   audio.Format
	scheduler *Scheduler

	framesSent atomic.Int64
}

// NewTransport binds a remote session to a playback scheduler.
func NewTransport(remote Remote, capture audio.Format, scheduler *Scheduler) *Transport {
	return &Transport{remote: remote, capture: capture, scheduler: scheduler}
}

// Pump encodes capture frames and sends them upstream in arrival order. Each
// send completes before the next frame is encoded. Pump returns nil when ctx
// is cancelled or frames is closed, and the send error otherwise.
func (t *Transport) Pump(ctx context.Context, frames <-chan []float32) error {
	mime := t.capture.MIMEType()
	for {
		select {
		case <-ctx.Done():
			return nil
		case samples, ok := <-frames:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			frame := Frame{
				Data:     audio.PCM16ToBase64(audio.EncodeFloatFrame(samples)),
				MIMEType: mime,
			}
			if err := t.remote.Send(ctx, frame); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send capture frame: %w", err)
			}
			t.framesSent.Add(1)
		}
	}
}

// FramesSent returns the number of frames delivered upstream.
func (t *Transport) FramesSent() int64 {
	return t.framesSent.Load()
}

// Play decodes a base64 PCM16 chunk and schedules it.
func (t *Transport) Play(encoded string) (Scheduled, error) {
	pcm, err := audio.Base64ToPCM16(encoded)
	if err != nil {
		return Scheduled{}, err
	}
	return t.scheduler.Schedule(pcm)
}

// Interrupt discards all scheduled playback.
func (t *Transport) Interrupt() int {
	return t.scheduler.Interrupt()
}

// Close discards playback and closes the remote session.
func (t *Transport) Close() error {
	t.scheduler.Close()
	return t.remote.Close()
}
