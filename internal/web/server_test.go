package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/marker"
	"github.com/kozaktomas/marker-scanner/internal/matcher"
	"github.com/kozaktomas/marker-scanner/internal/scanner"
)

type staticExtractor struct{}

func (staticExtractor) ComputeEmbedding(context.Context, []byte) ([]float32, error) {
	return []float32{1, 0}, nil
}

func newTestServer(t *testing.T, session *scanner.Session) *Server {
	t.Helper()
	c, err := catalog.New([]catalog.Entry{
		{ID: 1, Name: "Lotus", Vector: []float32{1, 0}, VideoURL: "https://videos/lotus.mp4"},
		{ID: 2, Name: "Bamboo", Vector: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	m, err := matcher.New(c, matcher.DefaultThreshold)
	if err != nil {
		t.Fatalf("failed to build matcher: %v", err)
	}

	cfg := &config.Config{Web: config.WebConfig{Host: "127.0.0.1", Port: 0}}
	return NewServer(cfg, Dependencies{
		Matcher:   m,
		Extractor: staticExtractor{},
		Generator: marker.NewGenerator(staticExtractor{}, 2, 0),
		Session:   session,
	})
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		wantStatus  int
		wantContain string
	}{
		{"health", http.MethodGet, "/api/v1/health", "", http.StatusOK, `"ok"`},
		{"config", http.MethodGet, "/api/v1/config", "", http.StatusOK, `"markers":2`},
		{"catalog", http.MethodGet, "/api/v1/catalog", "", http.StatusOK, `"Lotus"`},
		{"catalog entry", http.MethodGet, "/api/v1/catalog/2", "", http.StatusOK, `"Bamboo"`},
		{"catalog missing", http.MethodGet, "/api/v1/catalog/9", "", http.StatusNotFound, "not found"},
		{"match", http.MethodPost, "/api/v1/match", `{"vector":[1,0]}`, http.StatusOK, `"matched":true`},
		{"scanner without session", http.MethodGet, "/api/v1/scanner", "", http.StatusNotFound, "no scanner session"},
		{"index", http.MethodGet, "/", "", http.StatusOK, "Marker Scanner"},
		{"script", http.MethodGet, "/assets/scanner.js", "", http.StatusOK, "getUserMedia"},
		{"spa fallback", http.MethodGet, "/some/page", "", http.StatusOK, "Marker Scanner"},
		{"missing asset", http.MethodGet, "/assets/missing.js", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, req)

			if recorder.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, recorder.Code, recorder.Body.String())
			}
			if tt.wantContain != "" && !strings.Contains(recorder.Body.String(), tt.wantContain) {
				t.Errorf("expected body to contain %q, got %q", tt.wantContain, recorder.Body.String())
			}
		})
	}
}

func TestServer_ScannerSession(t *testing.T) {
	session := scanner.NewSession()
	s := newTestServer(t, session)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/scanner", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), session.ID()) {
		t.Errorf("expected session id in %q", recorder.Body.String())
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	s := newTestServer(t, nil)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected Content-Security-Policy header")
	}
}
