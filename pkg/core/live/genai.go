package live

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/lumina-press/lumina/pkg/core/assistant"
)

// GenAIConnector opens sessions against the Gemini live API.
type GenAIConnector struct {
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

// NewGenAIConnector returns a connector that authenticates with apiKey. The
// client is created on the first Connect.
func NewGenAIConnector(apiKey string) *GenAIConnector {
	return &GenAIConnector{apiKey: apiKey}
}

// Connect implements Connector.
func (c *GenAIConnector) Connect(ctx context.Context, cfg Config, events chan<- RemoteEvent) (Remote, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.Live.Connect(ctx, cfg.Model, liveConnectConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("gemini live connect: %w", err)
	}

	r := &genaiRemote{session: session}
	go r.receive(ctx, events)
	return r, nil
}

func (c *GenAIConnector) getClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := assistant.NewClient(ctx, c.apiKey)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func liveConnectConfig(cfg Config) *genai.LiveConnectConfig {
	return &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
		SystemInstruction:        genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
}

type genaiRemote struct {
	session   *genai.Session
	closeOnce sync.Once
	closeErr  error
}

func (r *genaiRemote) Send(_ context.Context, frame Frame) error {
	pcm, err := base64.StdEncoding.DecodeString(frame.Data)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return r.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: frame.MIMEType},
	})
}

func (r *genaiRemote) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.session.Close()
	})
	return r.closeErr
}

func (r *genaiRemote) receive(ctx context.Context, events chan<- RemoteEvent) {
	deliver := func(ev RemoteEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		msg, err := r.session.Receive()
		if err != nil {
			if ctx.Err() == nil {
				deliver(RemoteEvent{Kind: RemoteClosed, Err: fmt.Errorf("gemini live receive: %w", err)})
			}
			return
		}
		for _, ev := range translateMessage(msg) {
			if !deliver(ev) {
				return
			}
		}
	}
}

// translateMessage splits one server message into ordered remote events:
// setup, input then output transcript, turn completion, audio, then
// interruption.
func translateMessage(msg *genai.LiveServerMessage) []RemoteEvent {
	if msg == nil {
		return nil
	}
	var out []RemoteEvent
	if msg.SetupComplete != nil {
		out = append(out, RemoteEvent{Kind: RemoteSetupComplete})
	}
	sc := msg.ServerContent
	if sc == nil {
		return out
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		out = append(out, RemoteEvent{Kind: RemoteInputTranscript, Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		out = append(out, RemoteEvent{Kind: RemoteOutputTranscript, Text: sc.OutputTranscription.Text})
	}
	if sc.TurnComplete {
		out = append(out, RemoteEvent{Kind: RemoteTurnComplete})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			out = append(out, RemoteEvent{
				Kind:  RemoteAudio,
				Audio: base64.StdEncoding.EncodeToString(part.InlineData.Data),
			})
		}
	}
	if sc.Interrupted {
		out = append(out, RemoteEvent{Kind: RemoteInterrupted})
	}
	return out
}
