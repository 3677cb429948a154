package assistant

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"github.com/lumina-press/lumina/pkg/core"
)

// APIVersion is the Gemini API version used by both the text and live clients.
const APIVersion = "v1beta"

// NewClient constructs a Gemini API client. An empty key is a configuration
// error.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, core.NewConfigurationError("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: APIVersion},
	})
	if err != nil {
		return nil, &core.Error{Type: core.ErrConfiguration, Message: "create gemini client: " + err.Error(), Cause: err}
	}
	return client, nil
}

// GenAIGenerator is a Generator backed by the Gemini API. The client is
// created on first use so that a missing key surfaces on the first request
// rather than at startup.
type GenAIGenerator struct {
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

// NewGenAIGenerator returns a generator that authenticates with apiKey.
func NewGenAIGenerator(apiKey string) *GenAIGenerator {
	return &GenAIGenerator{apiKey: apiKey}
}

// Generate implements Generator.
func (g *GenAIGenerator) Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", mapError(err)
	}
	return resp.Text(), nil
}

func (g *GenAIGenerator) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := NewClient(ctx, g.apiKey)
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}
