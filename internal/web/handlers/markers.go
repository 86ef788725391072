package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/marker-scanner/internal/ai"
	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/constants"
	"github.com/kozaktomas/marker-scanner/internal/marker"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

// MarkersHandler creates catalog entries from uploaded reference images.
type MarkersHandler struct {
	generator   *marker.Generator
	newProvider func(ctx context.Context, name string) (ai.Provider, error)
}

// NewMarkersHandler creates a new markers handler.
func NewMarkersHandler(cfg *config.Config, generator *marker.Generator) *MarkersHandler {
	return &MarkersHandler{
		generator: generator,
		newProvider: func(ctx context.Context, name string) (ai.Provider, error) {
			return ai.NewProvider(ctx, name, cfg)
		},
	}
}

// Generate handles POST /markers/generate.
func (h *MarkersHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	image, filename, err := readUploadedFile(r, "file")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := marker.Options{
		Name:     strings.TrimSpace(r.FormValue("name")),
		VideoURL: strings.TrimSpace(r.FormValue("video_url")),
	}
	if idStr := r.FormValue("id"); idStr != "" {
		id, err := strconv.Atoi(idStr)
		if err != nil || id < 0 {
			respondError(w, http.StatusBadRequest, "invalid id")
			return
		}
		opts.ID = id
	}

	if name := strings.TrimSpace(r.FormValue("suggest")); name != "" {
		provider, err := h.newProvider(r.Context(), name)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Suggest = provider
	}
	if opts.Name == "" && opts.Suggest == nil {
		opts.Name = marker.NameFromPath(filename)
	}

	res, err := h.generator.Generate(r.Context(), image, opts)
	switch {
	case err == nil:
	case errors.Is(err, vector.ErrDimensionMismatch):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, vector.ErrZeroNorm):
		respondError(w, http.StatusUnprocessableEntity, "embedding is all zeros")
		return
	default:
		slog.Error("marker generation failed", "file", sanitizeForLog(filename), "error", err)
		respondError(w, http.StatusBadGateway, "failed to compute embedding")
		return
	}

	respondJSON(w, http.StatusOK, res)
}
