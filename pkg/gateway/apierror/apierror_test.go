package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/live"
)

func TestFromError_ContextCanceled_Is408Cancelled(t *testing.T) {
	ce, status := FromError(context.Canceled, "req_test")
	if status != 408 {
		t.Fatalf("status=%d", status)
	}
	if ce.Type != core.ErrAPI {
		t.Fatalf("type=%q", ce.Type)
	}
	if ce.Code != "cancelled" {
		t.Fatalf("code=%q", ce.Code)
	}
	if ce.RequestID != "req_test" {
		t.Fatalf("request_id=%q", ce.RequestID)
	}
}

func TestFromError_Overloaded_Is529(t *testing.T) {
	ce, status := FromError(&core.Error{Type: core.ErrOverloaded, Message: "overloaded"}, "req_test")
	if status != 529 {
		t.Fatalf("status=%d", status)
	}
	if ce.Type != core.ErrOverloaded {
		t.Fatalf("type=%q", ce.Type)
	}
}

func TestFromError_Table(t *testing.T) {
	remote := core.NewProviderError("gemini", errors.New("503"))
	tests := []struct {
		name     string
		err      error
		status   int
		wantType core.ErrorType
		wantCode string
	}{
		{name: "nil", err: nil, status: http.StatusOK},
		{name: "deadline", err: fmt.Errorf("chat: %w", context.DeadlineExceeded), status: http.StatusGatewayTimeout, wantType: core.ErrAPI},
		{name: "empty message", err: consult.ErrEmptyMessage, status: http.StatusBadRequest, wantType: core.ErrInvalidRequest},
		{name: "busy", err: consult.ErrBusy, status: http.StatusConflict, wantType: core.ErrInvalidRequest, wantCode: "busy"},
		{name: "session active", err: live.ErrSessionActive, status: http.StatusConflict, wantType: core.ErrInvalidRequest, wantCode: "session_active"},
		{name: "wrapped provider", err: fmt.Errorf("%w: %w", consult.ErrAssistantUnavailable, remote), status: http.StatusBadGateway, wantType: core.ErrProvider},
		{name: "wrapped rate limit", err: fmt.Errorf("%w: %w", consult.ErrAssistantUnavailable, core.NewRateLimitError("quota")), status: http.StatusTooManyRequests, wantType: core.ErrRateLimit},
		{name: "bare unavailable", err: consult.ErrAssistantUnavailable, status: http.StatusBadGateway, wantType: core.ErrProvider},
		{name: "missing key", err: core.NewConfigurationError("GEMINI_API_KEY is not set"), status: http.StatusServiceUnavailable, wantType: core.ErrConfiguration},
		{name: "device", err: core.NewDeviceError("microphone unavailable", errors.New("denied")), status: http.StatusServiceUnavailable, wantType: core.ErrDevice},
		{name: "unknown", err: errors.New("secret detail"), status: http.StatusInternalServerError, wantType: core.ErrAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, status := FromError(tt.err, "req_x")
			if status != tt.status {
				t.Fatalf("status=%d want %d", status, tt.status)
			}
			if tt.err == nil {
				if ce != nil {
					t.Fatalf("expected nil error body")
				}
				return
			}
			if ce.Type != tt.wantType {
				t.Fatalf("type=%q want %q", ce.Type, tt.wantType)
			}
			if ce.Code != tt.wantCode {
				t.Fatalf("code=%q want %q", ce.Code, tt.wantCode)
			}
			if ce.RequestID != "req_x" {
				t.Fatalf("request_id=%q", ce.RequestID)
			}
			if ce.Message == "secret detail" {
				t.Fatalf("unknown error leaked its message")
			}
		})
	}
}
