package api

import (
	"io"
	"sync"
)

// eventWriterRetain caps how much un-drained console output a session
// keeps. A guest looping over PRINT_CHAR can emit indefinitely; polling
// clients that never call the console endpoint must not grow the buffer
// without bound, so the oldest bytes are dropped past this point.
const eventWriterRetain = 64 * 1024

// EventWriter is the io.Writer behind a session's console: every Write is
// broadcast to stream subscribers immediately and retained (bounded) for
// clients that poll GET /console instead.
type EventWriter struct {
	broadcaster *Broadcaster
	sessionID   string
	stream      string // "stdout" or "stderr"

	mu  sync.Mutex
	buf []byte
}

// NewEventWriter builds a writer for one session's named stream. A nil
// broadcaster is fine: output is then only retained for polling.
func NewEventWriter(broadcaster *Broadcaster, sessionID string, stream string) *EventWriter {
	return &EventWriter{
		broadcaster: broadcaster,
		sessionID:   sessionID,
		stream:      stream,
	}
}

// Write implements io.Writer: broadcast, then retain.
func (w *EventWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if w.broadcaster != nil {
		w.broadcaster.BroadcastOutput(w.sessionID, w.stream, string(p))
	}

	w.mu.Lock()
	w.buf = append(w.buf, p...)
	if len(w.buf) > eventWriterRetain {
		w.buf = w.buf[len(w.buf)-eventWriterRetain:]
	}
	w.mu.Unlock()

	return len(p), nil
}

// Drain returns the retained output and clears it.
func (w *EventWriter) Drain() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := string(w.buf)
	w.buf = w.buf[:0]
	return out
}

// Peek returns the retained output without clearing it.
func (w *EventWriter) Peek() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return string(w.buf)
}

var _ io.Writer = (*EventWriter)(nil)
