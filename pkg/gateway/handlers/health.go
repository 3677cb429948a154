package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler fails while the process drains or while configuration keeps
// the assistant from answering, such as a missing API key.
type ReadyHandler struct {
	Config     config.Config
	Lifecycle  *lifecycle.Lifecycle
	Controller *live.Controller
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK            bool     `json:"ok"`
		Draining      bool     `json:"draining"`
		TextModel     string   `json:"text_model"`
		LiveModel     string   `json:"live_model"`
		LiveState     string   `json:"live_state"`
		LimitsEnabled bool     `json:"limits_enabled"`
		Issues        []string `json:"issues,omitempty"`
	}

	issues := h.Config.Validate()
	draining := h.Lifecycle.IsDraining()
	if draining {
		issues = append(issues, "draining")
	}

	liveState := live.StateIdle
	if h.Controller != nil {
		liveState = h.Controller.State()
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:            ok,
		Draining:      draining,
		TextModel:     h.Config.TextModel,
		LiveModel:     h.Config.LiveModel,
		LiveState:     liveState.String(),
		LimitsEnabled: h.Config.LimitRPS > 0 && h.Config.LimitBurst > 0,
		Issues:        issues,
	})
}
