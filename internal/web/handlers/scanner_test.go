package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/marker-scanner/internal/scanner"
)

func TestScannerHandler_NoSession(t *testing.T) {
	handler := NewScannerHandler(nil)

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/scanner", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	handler.Events(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/scanner/events", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", recorder.Code)
	}
}

func TestScannerHandler_Get(t *testing.T) {
	session := scanner.NewSession()
	session.SetDevice("/dev/video0")
	session.ModelReady()

	recorder := httptest.NewRecorder()
	NewScannerHandler(session).Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/scanner", nil))

	var snap scanner.Snapshot
	if err := json.Unmarshal(recorder.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if snap.ID != session.ID() || snap.State != scanner.StateScanning || snap.Device != "/dev/video0" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestScannerHandler_Events_TerminalSession(t *testing.T) {
	session := scanner.NewSession()
	session.Fail(errors.New("camera unplugged"))

	recorder := httptest.NewRecorder()
	NewScannerHandler(session).Events(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/scanner/events", nil))

	if ct := recorder.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected event stream, got %q", ct)
	}
	body := recorder.Body.String()
	if !strings.HasPrefix(body, "event: status\n") || !strings.Contains(body, `"state":"failed"`) {
		t.Errorf("unexpected body %q", body)
	}
	if session.ListenerCount() != 0 {
		t.Error("expected listener to be removed")
	}
}

func TestScannerHandler_Events_StreamsUntilStopped(t *testing.T) {
	session := scanner.NewSession()
	handler := NewScannerHandler(session)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scanner/events", nil).WithContext(ctx)
	recorder := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.Events(recorder, req)
		close(done)
	}()

	for session.ListenerCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	session.ModelReady()
	session.Stop()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("stream did not end after the session stopped")
	}

	body := recorder.Body.String()
	if !strings.Contains(body, "event: state\n") || !strings.Contains(body, `"to":"stopped"`) {
		t.Errorf("expected state events in %q", body)
	}
}

func TestScannerHandler_Events_ClientDisconnect(t *testing.T) {
	session := scanner.NewSession()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scanner/events", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		NewScannerHandler(session).Events(httptest.NewRecorder(), req)
		close(done)
	}()

	for session.ListenerCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after the client left")
	}
}
