package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
)

func TestCatalogHandler_List(t *testing.T) {
	handler := NewCatalogHandler(testCatalog(t))

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}

	var resp struct {
		Dim     int             `json:"dim"`
		Markers []markerSummary `json:"markers"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Dim != 3 || len(resp.Markers) != 3 {
		t.Fatalf("expected dim 3 and 3 markers, got %d and %d", resp.Dim, len(resp.Markers))
	}
	if resp.Markers[0].Name != "Lotus" || resp.Markers[2].ID != 3 {
		t.Errorf("unexpected markers %+v", resp.Markers)
	}
	if containsKey(t, recorder.Body.Bytes(), "vector") {
		t.Error("expected summaries without vectors")
	}
}

func TestCatalogHandler_List_WithVectors(t *testing.T) {
	handler := NewCatalogHandler(testCatalog(t))

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/catalog?vectors=true", nil))

	var resp struct {
		Markers []catalog.Entry `json:"markers"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Markers) != 3 || len(resp.Markers[1].Vector) != 3 {
		t.Errorf("expected full entries, got %+v", resp.Markers)
	}
}

func TestCatalogHandler_Get(t *testing.T) {
	handler := NewCatalogHandler(testCatalog(t))

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"found", "2", http.StatusOK},
		{"not found", "99", http.StatusNotFound},
		{"invalid", "abc", http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/catalog/"+tc.id, nil),
				map[string]string{"id": tc.id})
			recorder := httptest.NewRecorder()
			handler.Get(recorder, req)

			if recorder.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
			if tc.wantStatus == http.StatusOK {
				var entry catalog.Entry
				json.Unmarshal(recorder.Body.Bytes(), &entry)
				if entry.Name != "Bamboo" || entry.VideoURL != "https://videos/bamboo.mp4" {
					t.Errorf("unexpected entry %+v", entry)
				}
			}
		})
	}
}

// containsKey reports whether any object in the "markers" array has key.
func containsKey(t *testing.T, body []byte, key string) bool {
	t.Helper()
	var resp struct {
		Markers []map[string]any `json:"markers"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	for _, m := range resp.Markers {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}
