package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/lumina-press/lumina/pkg/core/audio"
	"github.com/lumina-press/lumina/pkg/core/types"
)

func TestDecodeClientMessage(t *testing.T) {
	pcm := audio.PCM16ToBase64([]byte{0x00, 0x40, 0x00, 0xc0})

	tests := []struct {
		name    string
		raw     string
		want    any
		wantErr string
	}{
		{name: "start", raw: `{"type":"start"}`, want: ClientStart{Type: TypeStart}},
		{name: "stop", raw: `{"type":" stop "}`, want: ClientStop{Type: TypeStop}},
		{name: "audio data", raw: `{"type":"audio","data":"` + pcm + `"}`, want: ClientAudio{Type: TypeAudio, Data: pcm}},
		{name: "invalid json", raw: `{`, wantErr: "invalid json frame"},
		{name: "missing type", raw: `{}`, wantErr: "missing type"},
		{name: "unknown type", raw: `{"type":"hello"}`, wantErr: "unsupported message type"},
		{name: "empty audio", raw: `{"type":"audio"}`, wantErr: "is required"},
		{name: "both payloads", raw: `{"type":"audio","data":"AAA=","samples":[0.1]}`, wantErr: "exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tt.raw))
			if tt.wantErr != "" {
				var de *DecodeError
				if !errors.As(err, &de) || de.Code != CodeBadRequest || !strings.Contains(de.Message, tt.wantErr) {
					t.Fatalf("err=%v want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeClientMessage() error = %v", err)
			}
			switch want := tt.want.(type) {
			case ClientAudio:
				a, ok := got.(ClientAudio)
				if !ok || a.Data != want.Data {
					t.Fatalf("got %#v", got)
				}
			default:
				if got != tt.want {
					t.Fatalf("got %#v want %#v", got, tt.want)
				}
			}
		})
	}
}

func TestClientAudioFrame(t *testing.T) {
	// 0x4000 = 16384 -> 0.5, 0xc000 = -16384 -> -0.5
	a := ClientAudio{Type: TypeAudio, Data: audio.PCM16ToBase64([]byte{0x00, 0x40, 0x00, 0xc0})}
	frame, err := a.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(frame) != 2 || frame[0] != 0.5 || frame[1] != -0.5 {
		t.Fatalf("frame=%v", frame)
	}

	samples := []float32{0.25, -1}
	a = ClientAudio{Type: TypeAudio, Samples: samples}
	frame, err = a.Frame()
	if err != nil || len(frame) != 2 || frame[0] != 0.25 {
		t.Fatalf("frame=%v err=%v", frame, err)
	}
	frame[0] = 9
	if samples[0] != 0.25 {
		t.Fatalf("Frame must copy samples")
	}

	if _, err := (ClientAudio{Data: "%%%"}).Frame(); err == nil {
		t.Fatalf("expected base64 error")
	}
}

func TestServerFramesEncoding(t *testing.T) {
	turn := types.NewTurn(types.SpeakerAssistant, "Tell me more", nil)
	b, err := json.Marshal(ServerTurn{Type: TypeTurn, Turn: turn})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"type":"turn"`) || !strings.Contains(string(b), `"speaker":"assistant"`) {
		t.Fatalf("unexpected turn frame: %s", b)
	}

	b, _ = json.Marshal(ServerAudio{Type: TypeAudio, Data: "AAA=", StartAtMS: 120, DurationMS: 40})
	if string(b) != `{"type":"audio","data":"AAA=","start_at_ms":120,"duration_ms":40}` {
		t.Fatalf("unexpected audio frame: %s", b)
	}
}
