// Package jsonutil writes JSON responses for admin actions and APIs.
//
// Admin actions answer with an envelope of the form
//
//	{"success": true,  "data": ...}
//	{"success": false, "data": ...}
//
// which the browser helpers in resources/assets/js understand.
package jsonutil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response body of an admin action.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// JSON writes data as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK writes a 200 JSON response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Success writes a 200 success envelope wrapping data.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Failure writes a 200 failure envelope wrapping data.
// Action failures are reported in the body, not the status line.
func Failure(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: false, Data: data})
}

// Error writes {"error": message} with the given status code.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Decode reads JSON from the request body into v.
func Decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
