// Package loggertest provides a logger.Logger that records entries for assertions.
package loggertest

import (
	"context"
	"sync"

	"github.com/nimburion/crudkit/pkg/observability/logger"
)

// Entry is a single recorded log call.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

// Recorder captures log entries. Children created by With and WithContext share the
// parent's entry list.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  map[string]interface{}
}

var _ logger.Logger = (*Recorder)(nil)

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}, fields: map[string]interface{}{}}
}

func (r *Recorder) Debug(msg string, args ...any) { r.record("debug", msg, args) }
func (r *Recorder) Info(msg string, args ...any)  { r.record("info", msg, args) }
func (r *Recorder) Warn(msg string, args ...any)  { r.record("warn", msg, args) }
func (r *Recorder) Error(msg string, args ...any) { r.record("error", msg, args) }

func (r *Recorder) With(args ...any) logger.Logger {
	fields := make(map[string]interface{}, len(r.fields)+len(args)/2)
	for k, v := range r.fields {
		fields[k] = v
	}
	for k, v := range argsToMap(args) {
		fields[k] = v
	}
	return &Recorder{mu: r.mu, entries: r.entries, fields: fields}
}

func (r *Recorder) WithContext(ctx context.Context) logger.Logger {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return r.With(logger.RequestIDKey, id)
	}
	return r
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), (*r.entries)...)
}

// Find returns the first entry with msg.
func (r *Recorder) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Recorder) record(level, msg string, args []any) {
	fields := make(map[string]interface{}, len(r.fields)+len(args)/2)
	for k, v := range r.fields {
		fields[k] = v
	}
	for k, v := range argsToMap(args) {
		fields[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

func argsToMap(args []any) map[string]interface{} {
	fields := make(map[string]interface{})
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return fields
}
