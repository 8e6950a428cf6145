package server

import (
	"encoding/json"
	"net/http"

	"github.com/snowgate-dev/snowgate/oauth2"
)

const contentTypeJSON = "application/json; charset=utf-8"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError emits the OAuth2-style JSON error body. Descriptions must stay
// coarse; never include internal error detail or key material.
func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, oauth2.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
