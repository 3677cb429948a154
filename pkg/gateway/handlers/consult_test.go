package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/types"
	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/metrics"
)

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

type stubAssistant struct {
	mu       sync.Mutex
	reply    string
	critique string
	gist     types.ProjectGist
	err      error
	calls    int
}

func (s *stubAssistant) ChatTurn(_ context.Context, _ []types.Turn, _ string, _ *types.Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.reply, s.err
}

func (s *stubAssistant) AnalyzeImage(_ context.Context, _ types.Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.critique, s.err
}

func (s *stubAssistant) ExtractGist(_ context.Context, _ []types.Turn) (types.ProjectGist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.gist, s.err
}

func (s *stubAssistant) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newConsultHandlers(a *stubAssistant) ConsultHandlers {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ConsultHandlers{
		Config:       config.Config{MaxBodyBytes: 1 << 20},
		Consultation: consult.New(a, types.NewHistory(), logger),
		Metrics:      metrics.New(""),
	}
}

func doJSON(t *testing.T, h http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshal: %v body=%q", err, rr.Body.String())
	}
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Param   string `json:"param"`
		Code    string `json:"code"`
	} `json:"error"`
}

func TestChat_AppendsBothTurns(t *testing.T) {
	a := &stubAssistant{reply: "Tell me about your protagonist."}
	h := newConsultHandlers(a)

	rr := doJSON(t, h.Chat, http.MethodPost, "/v1/chat", `{"text":"I wrote a thriller.","image":"`+pngDataURL+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var resp chatResponse
	decodeBody(t, rr, &resp)
	if resp.Requester.Speaker != types.SpeakerRequester || resp.Requester.Image == nil {
		t.Fatalf("requester=%+v", resp.Requester)
	}
	if resp.Assistant == nil || resp.Assistant.Text != "Tell me about your protagonist." {
		t.Fatalf("assistant=%+v", resp.Assistant)
	}

	rr = doJSON(t, h.History, http.MethodGet, "/v1/history", "")
	var hist historyResponse
	decodeBody(t, rr, &hist)
	if len(hist.Turns) != 2 {
		t.Fatalf("turns=%d", len(hist.Turns))
	}
}

func TestChat_RemoteFailureKeepsRequesterTurn(t *testing.T) {
	a := &stubAssistant{err: errors.New("upstream 500")}
	h := newConsultHandlers(a)

	rr := doJSON(t, h.Chat, http.MethodPost, "/v1/chat", `{"text":"hello"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var body errorBody
	decodeBody(t, rr, &body)
	if body.Error.Type != "provider_error" || strings.Contains(body.Error.Message, "upstream 500") {
		t.Fatalf("error=%+v", body.Error)
	}
	if h.Consultation.History().Len() != 1 {
		t.Fatalf("history len=%d", h.Consultation.History().Len())
	}
}

func TestChat_InvalidRequests(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		body      string
		wantCode  int
		wantParam string
	}{
		{name: "empty text", method: http.MethodPost, body: `{"text":"   "}`, wantCode: http.StatusBadRequest, wantParam: "text"},
		{name: "bad image", method: http.MethodPost, body: `{"text":"hi","image":"data:text/plain;base64,aGk="}`, wantCode: http.StatusBadRequest, wantParam: "image"},
		{name: "unknown field", method: http.MethodPost, body: `{"text":"hi","extra":1}`, wantCode: http.StatusBadRequest},
		{name: "empty body", method: http.MethodPost, body: "", wantCode: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, body: "", wantCode: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAssistant{reply: "ok"}
			h := newConsultHandlers(a)
			rr := doJSON(t, h.Chat, tt.method, "/v1/chat", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
			}
			var body errorBody
			decodeBody(t, rr, &body)
			if body.Error.Param != tt.wantParam {
				t.Fatalf("param=%q want %q", body.Error.Param, tt.wantParam)
			}
			if a.callCount() != 0 {
				t.Fatalf("assistant should not be called")
			}
		})
	}
}

func TestChat_BodyLimit(t *testing.T) {
	h := newConsultHandlers(&stubAssistant{reply: "ok"})
	h.Config.MaxBodyBytes = 16

	rr := doJSON(t, h.Chat, http.MethodPost, "/v1/chat", `{"text":"this message is far too long"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "exceeds 16 bytes") {
		t.Fatalf("body=%q", rr.Body.String())
	}
}

func TestImageCritique(t *testing.T) {
	a := &stubAssistant{critique: "Strong typography."}
	h := newConsultHandlers(a)

	rr := doJSON(t, h.ImageCritique, http.MethodPost, "/v1/image-critique", `{"image":"`+pngDataURL+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var cr consult.Critique
	decodeBody(t, rr, &cr)
	if cr.Text != "Strong typography." || cr.Failed {
		t.Fatalf("critique=%+v", cr)
	}

	a.err = errors.New("boom")
	rr = doJSON(t, h.ImageCritique, http.MethodPost, "/v1/image-critique", `{"image":"`+pngDataURL+`"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	var body errorBody
	decodeBody(t, rr, &body)
	if body.Error.Message != consult.CritiqueFailedMessage {
		t.Fatalf("message=%q", body.Error.Message)
	}
	if snap := h.Consultation.Snapshot(); snap.Critique == nil || !snap.Critique.Failed {
		t.Fatalf("failed critique should be recorded: %+v", snap.Critique)
	}

	rr = doJSON(t, h.ImageCritique, http.MethodDelete, "/v1/image-critique", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if h.Consultation.Snapshot().Critique != nil {
		t.Fatalf("critique should be cleared")
	}
}

func TestImageCritique_RequiresImage(t *testing.T) {
	a := &stubAssistant{critique: "x"}
	h := newConsultHandlers(a)

	rr := doJSON(t, h.ImageCritique, http.MethodPost, "/v1/image-critique", `{"image":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	if a.callCount() != 0 {
		t.Fatalf("assistant should not be called")
	}
}

func TestGist_GatingAndGeneration(t *testing.T) {
	want := types.ProjectGist{
		Title:          "Night Train",
		Genre:          "Thriller",
		Summary:        "A courier is hunted.",
		TargetAudience: "Adults",
		WordCount:      "90k",
		AuthorNote:     "Debut.",
	}
	a := &stubAssistant{reply: "Interesting.", gist: want}
	h := newConsultHandlers(a)

	rr := doJSON(t, h.Gist, http.MethodPost, "/v1/gist", "")
	var resp gistResponse
	decodeBody(t, rr, &resp)
	if rr.Code != http.StatusOK || resp.Generated || resp.Gist != nil {
		t.Fatalf("status=%d resp=%+v", rr.Code, resp)
	}
	if a.callCount() != 0 {
		t.Fatalf("gist should not be requested below two turns")
	}

	doJSON(t, h.Chat, http.MethodPost, "/v1/chat", `{"text":"My novel is about a train."}`)

	rr = doJSON(t, h.Gist, http.MethodPost, "/v1/gist", "")
	resp = gistResponse{}
	decodeBody(t, rr, &resp)
	if !resp.Generated || resp.Gist == nil || *resp.Gist != want {
		t.Fatalf("resp=%+v", resp)
	}

	rr = doJSON(t, h.Gist, http.MethodGet, "/v1/gist", "")
	resp = gistResponse{}
	decodeBody(t, rr, &resp)
	if resp.Gist == nil || resp.Gist.Title != "Night Train" {
		t.Fatalf("current gist=%+v", resp.Gist)
	}
}

func TestSubmissionAndView(t *testing.T) {
	h := newConsultHandlers(&stubAssistant{})

	rr := doJSON(t, h.Submission, http.MethodGet, "/v1/submission", "")
	if !strings.Contains(rr.Body.String(), `"submitted":false`) {
		t.Fatalf("body=%q", rr.Body.String())
	}
	rr = doJSON(t, h.Submission, http.MethodPost, "/v1/submission", "")
	if !strings.Contains(rr.Body.String(), `"submitted":true`) {
		t.Fatalf("body=%q", rr.Body.String())
	}

	rr = doJSON(t, h.View, http.MethodPut, "/v1/view", `{"view":"image_critique"}`)
	var v viewResponse
	decodeBody(t, rr, &v)
	if v.View != consult.ViewImageCritique || v.Title != "Visual Feedback Engine" {
		t.Fatalf("view=%+v", v)
	}

	rr = doJSON(t, h.View, http.MethodPut, "/v1/view", `{"view":"settings"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}

	rr = doJSON(t, h.State, http.MethodGet, "/v1/consultation", "")
	var snap consult.Snapshot
	decodeBody(t, rr, &snap)
	if snap.View != consult.ViewImageCritique || !snap.Submitted {
		t.Fatalf("snapshot=%+v", snap)
	}
}
