package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
)

// MaxBodyBytes bounds request bodies decoded by Bind.
const MaxBodyBytes int64 = 1 << 20

// BindError reports why a request body could not be decoded.
type BindError struct {
	// Status is the HTTP status the failure maps to (400, 413 or 415).
	Status int
	Reason string
	Err    error
}

func (e *BindError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *BindError) Unwrap() error { return e.Err }

// DecodeJSON decodes a JSON body of r into v. Bind implementations delegate to it.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return &BindError{Status: http.StatusBadRequest, Reason: "request body is empty"}
	}
	defer r.Body.Close()

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return &BindError{
			Status: http.StatusUnsupportedMediaType,
			Reason: fmt.Sprintf("unsupported content type: %q", r.Header.Get("Content-Type")),
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &BindError{Status: http.StatusRequestEntityTooLarge, Reason: "request body too large", Err: err}
		case errors.Is(err, io.EOF):
			return &BindError{Status: http.StatusBadRequest, Reason: "request body is empty"}
		default:
			return &BindError{Status: http.StatusBadRequest, Reason: "invalid JSON body", Err: err}
		}
	}
	if dec.More() {
		return &BindError{Status: http.StatusBadRequest, Reason: "request body must contain a single JSON value"}
	}
	return nil
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, code int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// WriteString writes s as a plain text response.
func WriteString(w http.ResponseWriter, code int, s string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, err := io.WriteString(w, s)
	return err
}

// NotFound answers requests that match no route.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "route not found"})
}

// MethodNotAllowed answers requests whose path matches a route registered for other methods.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed", "message": "method not allowed"})
}

// HandleError answers a handler error when nothing was written yet.
func HandleError(w ResponseWriter, err error) {
	if err == nil || w.Written() {
		return
	}
	_ = WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "internal_server_error",
		"message": "an unexpected error occurred",
	})
}

// Store is a goroutine-safe key/value bag backing Context.Get and Context.Set.
type Store struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

func (s *Store) Get(key string) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

func (s *Store) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]interface{}{}
	}
	s.values[key] = value
}

// TrackingWriter is the ResponseWriter shared by the adapters.
type TrackingWriter struct {
	http.ResponseWriter
	mu      sync.RWMutex
	status  int
	written bool
}

// NewTrackingWriter wraps w.
func NewTrackingWriter(w http.ResponseWriter) *TrackingWriter {
	return &TrackingWriter{ResponseWriter: w}
}

func (w *TrackingWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written {
		return
	}
	w.status = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *TrackingWriter) Write(b []byte) (int, error) {
	if !w.Written() {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Status returns the written status, or 200 before anything was written.
func (w *TrackingWriter) Status() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *TrackingWriter) Written() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.written
}

func (w *TrackingWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *TrackingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
