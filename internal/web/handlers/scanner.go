package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/marker-scanner/internal/scanner"
)

// ScannerHandler exposes the server-side scanner session, if one is running.
type ScannerHandler struct {
	session   *scanner.Session
	keepalive time.Duration
}

// NewScannerHandler creates a scanner handler. session may be nil when the
// server was started without a camera.
func NewScannerHandler(session *scanner.Session) *ScannerHandler {
	return &ScannerHandler{session: session}
}

// Get returns the current session snapshot.
func (h *ScannerHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		respondError(w, http.StatusNotFound, "no scanner session")
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// Events streams session changes as server-sent events.
func (h *ScannerHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		respondError(w, http.StatusNotFound, "no scanner session")
		return
	}
	streamSessionEvents(w, r, h.session, h.keepalive)
}
