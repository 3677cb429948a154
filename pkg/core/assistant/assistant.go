// Package assistant issues the one-shot requests of a consultation: chat
// turns, cover critiques and project gist extraction.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/lumina-press/lumina/pkg/core/types"
)

const tracerName = "github.com/lumina-press/lumina/pkg/core/assistant"

// Generator performs a single text generation request.
type Generator interface {
	Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)
}

// Gateway maps conversation state onto generation requests.
type Gateway struct {
	gen     Generator
	model   string
	prompts Prompts
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithModel overrides the text model.
func WithModel(model string) Option {
	return func(g *Gateway) {
		if model != "" {
			g.model = model
		}
	}
}

// WithPrompts overrides the persona and task prompts.
func WithPrompts(p Prompts) Option {
	return func(g *Gateway) {
		g.prompts = p.WithDefaults()
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Gateway over gen.
func New(gen Generator, opts ...Option) *Gateway {
	g := &Gateway{
		gen:     gen,
		model:   DefaultTextModel,
		prompts: DefaultPrompts(),
		tracer:  otel.Tracer(tracerName),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the text model in use.
func (g *Gateway) Model() string { return g.model }

// Prompts returns the effective prompts.
func (g *Gateway) Prompts() Prompts { return g.prompts }

// ChatTurn sends the prior history plus a new requester message and returns
// the assistant's reply. An empty reply is replaced by EmptyChatReply.
func (g *Gateway) ChatTurn(ctx context.Context, history []types.Turn, text string, image *types.Image) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, turnContent(turn))
	}
	contents = append(contents, turnContent(types.Turn{Speaker: types.SpeakerRequester, Text: text, Image: image}))

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.prompts.ChatPersona, genai.RoleUser),
	}
	reply, err := g.generate(ctx, "assistant.chat_turn", contents, cfg)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return EmptyChatReply, nil
	}
	return reply, nil
}

// AnalyzeImage asks for a book-cover critique of image.
func (g *Gateway) AnalyzeImage(ctx context.Context, image types.Image) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(image.Data, image.MIMEType),
		genai.NewPartFromText(g.prompts.Critique),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	reply, err := g.generate(ctx, "assistant.analyze_image", contents, nil)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return EmptyCritiqueReply, nil
	}
	return reply, nil
}

// ExtractGist summarizes history into a ProjectGist. Malformed model output
// yields the fallback gist; only the remote call itself can fail.
func (g *Gateway) ExtractGist(ctx context.Context, history []types.Turn) (types.ProjectGist, error) {
	prompt := g.prompts.Gist + RenderTranscript(history)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   gistSchema(),
	}

	raw, err := g.generate(ctx, "assistant.extract_gist", contents, cfg)
	if err != nil {
		return types.ProjectGist{}, err
	}
	gist := ParseGist(raw)
	if gist == types.FallbackGist() {
		g.logger.Warn("gist extraction returned unusable output", "bytes", len(raw))
	}
	return gist, nil
}

// ParseGist decodes model output into a ProjectGist. It never fails: output
// that does not decode, or decodes with any empty field, yields FallbackGist.
func ParseGist(raw string) types.ProjectGist {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var gist types.ProjectGist
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &gist); err != nil {
		return types.FallbackGist()
	}
	if !gist.Complete() {
		return types.FallbackGist()
	}
	return gist
}

// RenderTranscript formats history as "ROLE: text" lines.
func RenderTranscript(history []types.Turn) string {
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		role := "USER"
		if turn.Speaker == types.SpeakerAssistant {
			role = "ASSISTANT"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(turn.Text)
	}
	return b.String()
}

func (g *Gateway) generate(ctx context.Context, op string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	ctx, span := g.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("gen_ai.request.model", g.model),
		attribute.Int("lumina.contents", len(contents)),
	))
	defer span.End()

	reply, err := g.gen.Generate(ctx, g.model, contents, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%s: %w", op, err)
	}
	span.SetAttributes(attribute.Int("lumina.reply_bytes", len(reply)))
	return reply, nil
}

func turnContent(turn types.Turn) *genai.Content {
	role := genai.Role(genai.RoleUser)
	if turn.Speaker == types.SpeakerAssistant {
		role = genai.RoleModel
	}
	parts := []*genai.Part{genai.NewPartFromText(turn.Text)}
	if turn.Image != nil && len(turn.Image.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(turn.Image.Data, turn.Image.MIMEType))
	}
	return genai.NewContentFromParts(parts, role)
}

func gistSchema() *genai.Schema {
	field := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":          field("Working title of the project"),
			"genre":          field("Primary genre"),
			"summary":        field("One-paragraph summary of the project"),
			"targetAudience": field("Intended readership"),
			"wordCount":      field("Approximate length"),
			"authorNote":     field("Anything else the author emphasized"),
		},
		Required: []string{"title", "genre", "summary", "targetAudience", "wordCount", "authorNote"},
	}
}
