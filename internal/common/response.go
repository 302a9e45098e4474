package common

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON encodes v to the response writer with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders the canonical {"error":{code,message,details}} envelope.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{"error": errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// WriteAppError renders err when it carries an AppError in its chain.
// It reports whether a response was written.
func WriteAppError(w http.ResponseWriter, err error) bool {
	ae, ok := AsAppError(err)
	if !ok {
		return false
	}
	JSONError(w, ae.Status(), ae.Code, ae.Message, ae.Details)
	return true
}
