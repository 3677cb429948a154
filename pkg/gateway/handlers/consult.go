package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/types"
	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/metrics"
	"github.com/lumina-press/lumina/pkg/gateway/mw"
)

// ConsultHandlers serves the one-shot consultation endpoints under /v1.
// Every handler shares one Consultation, so text chat, voice turns and the
// gist all see the same history.
type ConsultHandlers struct {
	Config       config.Config
	Consultation *consult.Consultation
	Metrics      *metrics.Metrics
}

type chatRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type chatResponse struct {
	Requester types.Turn  `json:"requester"`
	Assistant *types.Turn `json:"assistant,omitempty"`
}

type critiqueRequest struct {
	Image string `json:"image"`
}

type gistResponse struct {
	Generated bool               `json:"generated"`
	Gist      *types.ProjectGist `json:"gist,omitempty"`
}

type viewRequest struct {
	View consult.View `json:"view"`
}

type viewResponse struct {
	View  consult.View `json:"view"`
	Title string       `json:"title"`
}

type historyResponse struct {
	Turns []types.Turn `json:"turns"`
}

// State returns the full consultation snapshot.
func (h ConsultHandlers) State(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.Consultation.Snapshot())
}

func (h ConsultHandlers) History(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	turns := h.Consultation.History().Snapshot()
	if turns == nil {
		turns = []types.Turn{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Turns: turns})
}

// Chat appends the author's message and the assistant's reply. On a remote
// failure the author's turn stays in the history and 502 is returned.
func (h ConsultHandlers) Chat(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req chatRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, h.Metrics, err)
		return
	}
	var image *types.Image
	if strings.TrimSpace(req.Image) != "" {
		img, err := types.ParseDataURL(req.Image)
		if err != nil {
			writeError(w, r, h.Metrics, invalidParam(err.Error(), "image"))
			return
		}
		image = img
	}

	requester, reply, err := h.Consultation.SendMessage(r.Context(), req.Text, image)
	if err != nil {
		writeError(w, r, h.Metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Requester: requester, Assistant: reply})
}

// ImageCritique critiques a cover image. DELETE clears the current critique.
func (h ConsultHandlers) ImageCritique(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		h.Consultation.ClearCritique()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req critiqueRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, h.Metrics, err)
		return
	}
	img, err := types.ParseDataURL(req.Image)
	if err != nil {
		writeError(w, r, h.Metrics, invalidParam(err.Error(), "image"))
		return
	}

	critique, err := h.Consultation.AnalyzeImage(r.Context(), *img)
	if err != nil {
		if !critique.Failed {
			writeError(w, r, h.Metrics, err)
			return
		}
		reqID, _ := mw.RequestIDFrom(r.Context())
		h.Metrics.RecordError(string(core.ErrProvider))
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type:    core.ErrProvider,
			Message: consult.CritiqueFailedMessage,
		}, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, critique)
}

// Gist returns the current gist on GET and regenerates it on POST. Below
// two turns POST answers generated=false without calling the assistant.
func (h ConsultHandlers) Gist(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		resp := gistResponse{}
		if g, ok := h.Consultation.Gist(); ok {
			resp.Gist = &g
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	gist, generated, err := h.Consultation.GenerateGist(r.Context())
	if err != nil {
		writeError(w, r, h.Metrics, err)
		return
	}
	resp := gistResponse{Generated: generated}
	if generated {
		resp.Gist = &gist
	} else if g, ok := h.Consultation.Gist(); ok {
		resp.Gist = &g
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h ConsultHandlers) Submission(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodPost {
		h.Consultation.Submit()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"submitted": h.Consultation.Submitted()})
}

func (h ConsultHandlers) View(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	if r.Method == http.MethodPut {
		var req viewRequest
		if err := h.decode(w, r, &req); err != nil {
			writeError(w, r, h.Metrics, err)
			return
		}
		if err := h.Consultation.SetView(req.View); err != nil {
			writeError(w, r, h.Metrics, invalidParam(err.Error(), "view"))
			return
		}
	}
	v := h.Consultation.View()
	writeJSON(w, http.StatusOK, viewResponse{View: v, Title: v.Title()})
}

// decode reads one JSON object bounded by MaxBodyBytes.
func (h ConsultHandlers) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if h.Config.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return invalidParam(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "")
		case errors.Is(err, io.EOF):
			return invalidParam("request body is empty", "")
		default:
			return invalidParam("invalid JSON body: "+err.Error(), "")
		}
	}
	if dec.More() {
		return invalidParam("request body must be a single JSON object", "")
	}
	return nil
}

func invalidParam(message, param string) *core.Error {
	return core.NewInvalidRequestErrorWithParam(message, param)
}

// allowMethods writes 405 and reports false when r.Method is not listed.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	reqID, _ := mw.RequestIDFrom(r.Context())
	writeCoreErrorJSON(w, reqID, &core.Error{
		Type:    core.ErrInvalidRequest,
		Message: "method not allowed",
		Code:    "method_not_allowed",
	}, http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
