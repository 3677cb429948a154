package server

import (
	"context"

	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/types"
	"github.com/lumina-press/lumina/pkg/gateway/metrics"
)

// InstrumentAssistant counts every remote call made by a consultation.
func InstrumentAssistant(a consult.Assistant, m *metrics.Metrics) consult.Assistant {
	if m == nil {
		return a
	}
	return instrumentedAssistant{next: a, metrics: m}
}

type instrumentedAssistant struct {
	next    consult.Assistant
	metrics *metrics.Metrics
}

func (a instrumentedAssistant) ChatTurn(ctx context.Context, history []types.Turn, text string, image *types.Image) (string, error) {
	reply, err := a.next.ChatTurn(ctx, history, text, image)
	a.metrics.RecordAssistantCall("chat", err)
	return reply, err
}

func (a instrumentedAssistant) AnalyzeImage(ctx context.Context, image types.Image) (string, error) {
	critique, err := a.next.AnalyzeImage(ctx, image)
	a.metrics.RecordAssistantCall("critique", err)
	return critique, err
}

func (a instrumentedAssistant) ExtractGist(ctx context.Context, history []types.Turn) (types.ProjectGist, error) {
	gist, err := a.next.ExtractGist(ctx, history)
	a.metrics.RecordAssistantCall("gist", err)
	return gist, err
}
