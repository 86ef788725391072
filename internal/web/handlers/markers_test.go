package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/marker-scanner/internal/ai"
	"github.com/kozaktomas/marker-scanner/internal/marker"
)

type fakeProvider struct {
	suggestion *ai.MarkerSuggestion
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) SuggestMarker(context.Context, []byte) (*ai.MarkerSuggestion, error) {
	return p.suggestion, nil
}
func (p *fakeProvider) GetUsage() *ai.Usage { return &ai.Usage{} }
func (p *fakeProvider) ResetUsage()         {}

func newTestMarkersHandler(t *testing.T) *MarkersHandler {
	t.Helper()
	ext := &fakeExtractor{vectors: map[string][]float32{
		"lotus": {2, 0, 0},
		"short": {1, 0},
		"blank": {0, 0, 0},
	}}
	h := NewMarkersHandler(testConfig(), marker.NewGenerator(ext, 3, 0))
	h.newProvider = func(_ context.Context, name string) (ai.Provider, error) {
		if name != "fake" {
			return nil, errors.New("unknown provider: " + name)
		}
		return &fakeProvider{suggestion: &ai.MarkerSuggestion{Name: "Pink Lotus", Description: "flower"}}, nil
	}
	return h
}

func TestMarkersHandler_Generate(t *testing.T) {
	handler := newTestMarkersHandler(t)

	req := multipartRequest(t, "/api/v1/markers/generate", "hoa-sen.jpg", []byte("lotus"), map[string]string{
		"video_url": "https://videos/lotus.mp4",
		"id":        "12",
	})
	recorder := httptest.NewRecorder()
	handler.Generate(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}

	var res marker.Result
	if err := json.Unmarshal(recorder.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if res.Dim != 3 || res.Vector[0] != 1 {
		t.Errorf("expected normalized 3-dim vector, got %v", res.Vector)
	}
	if res.Entry.ID != 12 || res.Entry.Name != "hoa sen" || res.Entry.VideoURL != "https://videos/lotus.mp4" {
		t.Errorf("unexpected entry %+v", res.Entry)
	}
	if res.Snippet == "" {
		t.Error("expected snippet")
	}
}

func TestMarkersHandler_Generate_Suggest(t *testing.T) {
	handler := newTestMarkersHandler(t)

	req := multipartRequest(t, "/api/v1/markers/generate", "img.jpg", []byte("lotus"), map[string]string{"suggest": "fake"})
	recorder := httptest.NewRecorder()
	handler.Generate(recorder, req)

	var res marker.Result
	json.Unmarshal(recorder.Body.Bytes(), &res)
	if res.Entry.Name != "Pink Lotus" || res.Suggestion == nil || res.Suggestion.Description != "flower" {
		t.Errorf("expected suggested name, got %+v", res)
	}
}

func TestMarkersHandler_Generate_Errors(t *testing.T) {
	handler := newTestMarkersHandler(t)

	tests := []struct {
		name       string
		content    string
		fields     map[string]string
		wantStatus int
	}{
		{"dimension mismatch", "short", nil, http.StatusUnprocessableEntity},
		{"zero embedding", "blank", nil, http.StatusUnprocessableEntity},
		{"embedding failure", "unknown", nil, http.StatusBadGateway},
		{"unknown provider", "lotus", map[string]string{"suggest": "nope"}, http.StatusBadRequest},
		{"invalid id", "lotus", map[string]string{"id": "x"}, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Generate(recorder, multipartRequest(t, "/api/v1/markers/generate", "a.jpg", []byte(tc.content), tc.fields))
			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
		})
	}
}
