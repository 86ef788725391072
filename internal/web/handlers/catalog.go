package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
)

// CatalogHandler serves the loaded marker catalog.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// List returns all markers. Vectors are included only with ?vectors=true.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("vectors") == "true" {
		respondJSON(w, http.StatusOK, map[string]any{
			"dim":     h.catalog.Dim(),
			"markers": h.catalog.Entries(),
		})
		return
	}

	summaries := make([]markerSummary, 0, h.catalog.Len())
	for i := range h.catalog.Len() {
		summaries = append(summaries, summarize(h.catalog.At(i)))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"dim":     h.catalog.Dim(),
		"markers": summaries,
	})
}

// Get returns a single marker including its vector.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid marker id")
		return
	}

	entry, err := h.catalog.Get(id)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "marker not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entry)
}
