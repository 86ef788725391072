package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/marker-scanner/internal/constants"
	"github.com/kozaktomas/marker-scanner/internal/fingerprint"
	"github.com/kozaktomas/marker-scanner/internal/matcher"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

// MatchHandler matches live vectors or camera frames against the catalog.
type MatchHandler struct {
	matcher      *matcher.Matcher
	extractor    fingerprint.Extractor
	maxImageSize int
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(m *matcher.Matcher, extractor fingerprint.Extractor, maxImageSize int) *MatchHandler {
	return &MatchHandler{
		matcher:      m,
		extractor:    extractor,
		maxImageSize: maxImageSize,
	}
}

// MatchVectorRequest is the body of POST /match.
type MatchVectorRequest struct {
	Vector []float32 `json:"vector"`
}

// MatchVector matches a client-computed embedding.
func (h *MatchHandler) MatchVector(w http.ResponseWriter, r *http.Request) {
	var req MatchVectorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.WSReadLimit)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Vector) == 0 {
		respondError(w, http.StatusBadRequest, "vector is required")
		return
	}

	h.respondMatch(w, req.Vector)
}

// MatchImage embeds an uploaded camera frame and matches it.
func (h *MatchHandler) MatchImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxFrameSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	frame, _, err := readUploadedFile(r, "file")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.maxImageSize > 0 {
		if resized, err := fingerprint.ResizeImage(frame, h.maxImageSize); err == nil {
			frame = resized
		}
	}

	embedding, err := h.extractor.ComputeEmbedding(r.Context(), frame)
	if err != nil {
		slog.Warn("embedding frame failed", "error", err)
		respondError(w, http.StatusBadGateway, "failed to compute embedding: "+err.Error())
		return
	}

	h.respondMatch(w, embedding)
}

func (h *MatchHandler) respondMatch(w http.ResponseWriter, query []float32) {
	best, matched, err := h.matcher.Match(query)
	switch {
	case errors.Is(err, vector.ErrZeroNorm):
		// a blank frame has no direction; report it as no match
		respondJSON(w, http.StatusOK, newMatchResponse(nil, false))
		return
	case errors.Is(err, vector.ErrDimensionMismatch):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, newMatchResponse(best, matched))
}
