// Package respond writes JSON bodies and errors for the API handlers.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} unless the response has already started.
func Error(w http.ResponseWriter, status int, msg string) {
	if t, ok := w.(*Tracker); ok && t.Written() {
		return
	}
	JSON(w, status, ErrorBody{Error: msg})
}

// NoStore marks a response as never cacheable.
func NoStore(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// Tracker records whether headers were sent through the wrapped writer.
type Tracker struct {
	http.ResponseWriter
	written bool
}

// Track wraps w so handlers streaming a body can tell whether an error response
// is still possible.
func Track(w http.ResponseWriter) *Tracker {
	if t, ok := w.(*Tracker); ok {
		return t
	}
	return &Tracker{ResponseWriter: w}
}

// WriteHeader implements http.ResponseWriter.
func (t *Tracker) WriteHeader(code int) {
	t.written = true
	t.ResponseWriter.WriteHeader(code)
}

// Write implements http.ResponseWriter.
func (t *Tracker) Write(b []byte) (int, error) {
	t.written = true
	return t.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer when it supports flushing.
func (t *Tracker) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		t.written = true
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (t *Tracker) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}

// Written reports whether the header has been sent.
func (t *Tracker) Written() bool {
	return t.written
}

// UpstreamError logs an upstream failure and answers 500 with its message.
func UpstreamError(w http.ResponseWriter, log zerolog.Logger, target string, err error) {
	log.Warn().Err(err).Str("target", target).Msg("Upstream request failed")
	Error(w, http.StatusInternalServerError, err.Error())
}
