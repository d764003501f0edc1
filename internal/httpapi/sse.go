package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter frames server-sent events over an http.ResponseWriter,
// flushing after every event so clients see node results as they happen.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

// newSSEWriter prepares w for an event stream and returns the writer, or
// false when the underlying writer cannot flush.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// Keeps nginx from buffering the stream.
	h.Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, f: f}, true
}

// send writes one named event with a JSON data payload and flushes.
func (s *sseWriter) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("httpapi: marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("httpapi: write %s event: %w", event, err)
	}
	s.f.Flush()
	return nil
}
