// Package handlers is the HTTP surface: route execution under /x/ and
// a minimal schema CRUD, both speaking the {"status", "message"} JSON
// envelope.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/contentforge/forge/pkg/apierror"
)

// envelope is the uniform response body. Message carries the payload
// on success and the human-readable error otherwise.
type envelope struct {
	Status  int `json:"status"`
	Message any `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, message any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: status, Message: message})
}

// writeError maps a tagged error onto its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apierror.StatusOf(err), err.Error())
}
