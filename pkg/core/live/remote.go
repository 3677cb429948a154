package live

import (
	"context"

	"github.com/lumina-press/lumina/pkg/core/audio"
)

// Frame is one encoded capture frame sent upstream.
type Frame struct {
	// Data is base64-encoded little-endian PCM16.
	Data     string
	MIMEType string
}

// Remote is an open live session with the model.
type Remote interface {
	Send(ctx context.Context, frame Frame) error
	Close() error
}

// RemoteEventKind discriminates RemoteEvent.
type RemoteEventKind int

const (
	RemoteSetupComplete RemoteEventKind = iota
	RemoteInputTranscript
	RemoteOutputTranscript
	RemoteAudio
	RemoteInterrupted
	RemoteTurnComplete
	RemoteClosed
)

// RemoteEvent is one notification from the remote session.
type RemoteEvent struct {
	Kind RemoteEventKind

	// Text carries transcript fragments.
	Text string

	// Audio is a base64 PCM16 chunk in the playback format.
	Audio string

	// Err is set on RemoteClosed when the session ended abnormally.
	Err error
}

// Connector opens remote sessions. Implementations deliver events on events
// in arrival order until ctx is cancelled or the session ends; the final
// event is RemoteClosed unless ctx was cancelled first.
type Connector interface {
	Connect(ctx context.Context, cfg Config, events chan<- RemoteEvent) (Remote, error)
}

// CaptureDevice acquires the microphone.
type CaptureDevice interface {
	// Open acquires the device. It fails when permission is denied or no
	// device is available; nothing is left allocated in that case.
	Open(ctx context.Context, format audio.Format, frameSamples int) (CaptureStream, error)
}

// CaptureStream delivers fixed-size mono float frames.
type CaptureStream interface {
	// Start begins delivery on the Frames channel.
	Start() error

	// Frames is closed when the stream is closed.
	Frames() <-chan []float32

	Close() error
}
