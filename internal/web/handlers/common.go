package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/matcher"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// readUploadedFile returns the contents of a multipart file field.
// The caller must have parsed the multipart form.
func readUploadedFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("missing %q file", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", errors.New("failed to read uploaded file")
	}
	if len(data) == 0 {
		return nil, "", errors.New("uploaded file is empty")
	}
	return data, header.Filename, nil
}

// MatchResponse is the reply for a single scanned frame or vector.
type MatchResponse struct {
	Matched bool            `json:"matched"`
	Match   *matcher.Result `json:"match,omitempty"`
	Best    *matcher.Result `json:"best,omitempty"`
}

func newMatchResponse(best *matcher.Result, matched bool) MatchResponse {
	resp := MatchResponse{Matched: matched, Best: best}
	if matched {
		resp.Match = best
	}
	return resp
}

// markerSummary is a catalog entry without its vector.
type markerSummary struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	VideoURL string `json:"video_url"`
	Dim      int    `json:"dim"`
}

func summarize(e catalog.Entry) markerSummary {
	return markerSummary{ID: e.ID, Name: e.Name, VideoURL: e.VideoURL, Dim: len(e.Vector)}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
