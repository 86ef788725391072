package handlers

import (
	"net/http"

	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/matcher"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config  *config.Config
	matcher *matcher.Matcher
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, m *matcher.Matcher) *ConfigHandler {
	return &ConfigHandler{
		config:  cfg,
		matcher: m,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Providers      []ProviderInfo `json:"providers"`
	Threshold      float64        `json:"threshold"`
	Dim            int            `json:"dim"`
	Markers        int            `json:"markers"`
	ScanIntervalMS int64          `json:"scan_interval_ms"`
	MaxImageSize   int            `json:"max_image_size"`
	CatalogSource  string         `json:"catalog_source"`
}

// ProviderInfo represents information about an AI provider
type ProviderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Get returns the scanner settings the browser client needs
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	providers := []ProviderInfo{
		{
			Name:      "openai",
			Available: h.config.OpenAI.Token != "",
		},
		{
			Name:      "gemini",
			Available: h.config.Gemini.APIKey != "",
		},
		{
			Name:      "ollama",
			Available: true, // Always available (local)
		},
	}

	dim := h.matcher.Catalog().Dim()
	if dim == 0 {
		dim = h.config.Embedding.Dim
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		Providers:      providers,
		Threshold:      h.matcher.Threshold(),
		Dim:            dim,
		Markers:        h.matcher.Catalog().Len(),
		ScanIntervalMS: h.config.Scan.Interval.Milliseconds(),
		MaxImageSize:   h.config.Scan.MaxImageSize,
		CatalogSource:  h.config.Catalog.Source,
	})
}
