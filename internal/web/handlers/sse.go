package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/marker-scanner/internal/constants"
	"github.com/kozaktomas/marker-scanner/internal/scanner"
)

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// setupSSEConnection sets the SSE headers. On failure it writes an error
// response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

// streamSessionEvents streams a session's events until the session reaches a
// terminal state, the client disconnects or the listener is closed.
func streamSessionEvents(w http.ResponseWriter, r *http.Request, session *scanner.Session, keepalive time.Duration) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := session.AddListener()
	defer session.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", session.Snapshot())
	if session.State().IsTerminal() {
		return
	}

	if keepalive <= 0 {
		keepalive = constants.SSEKeepaliveInterval
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			// the terminal state event is queued before State() reports it
			if session.State().IsTerminal() && len(eventCh) == 0 {
				return
			}
		}
	}
}
