// Package stream pushes option-store snapshots to editors over
// Server-Sent Events and websockets.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// ErrFlushNotSupported is returned when the ResponseWriter cannot flush.
var ErrFlushNotSupported = errors.New("streaming not supported")

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("stream closed")

// Event is one Server-Sent Event.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry int
}

// JSONEvent builds an event of type name whose data is v encoded as JSON.
func JSONEvent(name string, v any) (*Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Event{Event: name, Data: string(data)}, nil
}

// Bytes encodes e in the text/event-stream format.
func (e *Event) Bytes() []byte {
	var b strings.Builder
	if e.ID != "" {
		b.WriteString("id: " + e.ID + "\n")
	}
	if e.Event != "" {
		b.WriteString("event: " + e.Event + "\n")
	}
	if e.Retry > 0 {
		b.WriteString("retry: " + strconv.Itoa(e.Retry) + "\n")
	}
	if e.Data != "" {
		for _, line := range strings.Split(e.Data, "\n") {
			b.WriteString("data: " + line + "\n")
		}
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// Writer is an SSE connection to a single client.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	closed  bool

	// LastEventID is the id the client sent when reconnecting, or "".
	LastEventID string
}

// NewWriter sets the event-stream headers on w.
func NewWriter(w http.ResponseWriter, r *http.Request) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrFlushNotSupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: flusher, LastEventID: r.Header.Get("Last-Event-ID")}, nil
}

// Send writes ev and flushes it.
func (s *Writer) Send(ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(ev.Bytes()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Comment writes an SSE comment line, used as keep-alive.
func (s *Writer) Comment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close marks the writer closed. The response itself ends when the
// handler returns.
func (s *Writer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
