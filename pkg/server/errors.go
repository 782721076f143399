package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
)

// errorResponse is the JSON body written for any failed request, matching
// the teacher's flat {"error": "..."} shape used across its own HTTP
// surfaces.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeAppError maps err to the HTTP status spec.md §6/§7 assigns its
// apperr.Kind (400/403/408/429/500/503), falling back to 500 for an
// unclassified error. 401 never reaches here — pkg/auth's HTTPMiddleware
// rejects unauthenticated requests before a handler runs.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	status := http.StatusInternalServerError
	kind := ""
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
		kind = string(appErr.Kind)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// writeBadRequest reports a request schema error (spec.md §6: "400
// (schema)") — malformed JSON, a missing required field, or an unparsable
// path parameter, none of which ever reach pkg/apperr since they fail before
// any component runs.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
