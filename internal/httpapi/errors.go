package httpapi

import (
	"encoding/json"
	"net/http"
)

// apiError is the wire shape of every non-2xx response: a stable machine
// code ("unauthorized", "email_taken", ...) plus a human-readable detail.
type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, apiError{Error: code, Detail: detail})
}
