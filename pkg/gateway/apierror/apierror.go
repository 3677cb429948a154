package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/live"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

// FromError maps err to the canonical error body and its HTTP status.
// Remote failures keep their classified type. Unknown errors become a
// generic internal error so details are not leaked.
func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	switch {
	case errors.Is(err, consult.ErrEmptyMessage):
		return &core.Error{
			Type:      core.ErrInvalidRequest,
			Message:   "message text is required",
			Param:     "text",
			RequestID: requestID,
		}, http.StatusBadRequest
	case errors.Is(err, consult.ErrBusy):
		return &core.Error{
			Type:      core.ErrInvalidRequest,
			Message:   "a request of this kind is already in progress",
			Code:      "busy",
			RequestID: requestID,
		}, http.StatusConflict
	case errors.Is(err, live.ErrSessionActive):
		return &core.Error{
			Type:      core.ErrInvalidRequest,
			Message:   "a voice session is already active",
			Code:      "session_active",
			RequestID: requestID,
		}, http.StatusConflict
	}

	// Already canonical, possibly wrapped by the consultation.
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, statusFromType(coreErr.Type)
	}

	if errors.Is(err, consult.ErrAssistantUnavailable) {
		return &core.Error{
			Type:      core.ErrProvider,
			Message:   "the assistant could not be reached",
			RequestID: requestID,
		}, http.StatusBadGateway
	}

	return &core.Error{
		Type:      core.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

func statusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrOverloaded:
		return 529
	case core.ErrProvider, core.ErrAPI:
		return http.StatusBadGateway
	case core.ErrConfiguration, core.ErrDevice:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
