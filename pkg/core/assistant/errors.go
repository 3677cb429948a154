package assistant

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/lumina-press/lumina/pkg/core"
)

// mapError converts Gemini API failures into core errors. Errors that are not
// API errors are wrapped as provider errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return err
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return core.NewProviderError("gemini", err)
	}

	errType := core.ErrProvider
	switch {
	case strings.Contains(apiErr.Status, "INVALID_ARGUMENT"), strings.Contains(apiErr.Status, "FAILED_PRECONDITION"):
		errType = core.ErrInvalidRequest
	case strings.Contains(apiErr.Status, "UNAUTHENTICATED"):
		errType = core.ErrAuthentication
	case strings.Contains(apiErr.Status, "PERMISSION_DENIED"):
		errType = core.ErrPermission
	case strings.Contains(apiErr.Status, "NOT_FOUND"):
		errType = core.ErrNotFound
	case strings.Contains(apiErr.Status, "RESOURCE_EXHAUSTED"):
		errType = core.ErrRateLimit
	case strings.Contains(apiErr.Status, "INTERNAL"):
		errType = core.ErrAPI
	case strings.Contains(apiErr.Status, "UNAVAILABLE"):
		errType = core.ErrOverloaded
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		errType = core.ErrRateLimit
	case http.StatusServiceUnavailable:
		errType = core.ErrOverloaded
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = core.ErrAuthentication
	case http.StatusNotFound:
		errType = core.ErrNotFound
	case http.StatusBadRequest:
		if errType == core.ErrProvider {
			errType = core.ErrInvalidRequest
		}
	}

	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Error()
	}
	return &core.Error{
		Type:    errType,
		Message: msg,
		Code:    apiErr.Status,
		Cause:   err,
	}
}
