package handlers

import (
	"net/http"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/gateway/apierror"
	"github.com/lumina-press/lumina/pkg/gateway/metrics"
	"github.com/lumina-press/lumina/pkg/gateway/mw"
)

func writeCoreErrorJSON(w http.ResponseWriter, reqID string, err *core.Error, status int) {
	if err != nil && err.RequestID == "" {
		err.RequestID = reqID
	}
	mw.WriteJSONError(w, status, err)
}

// writeError maps err onto the error envelope and counts it.
func writeError(w http.ResponseWriter, r *http.Request, m *metrics.Metrics, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	coreErr, status := apierror.FromError(err, reqID)
	m.RecordError(string(coreErr.Type))
	mw.WriteJSONError(w, status, coreErr)
}
