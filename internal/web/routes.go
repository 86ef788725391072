package web

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/marker-scanner/internal/web/handlers"
	"github.com/kozaktomas/marker-scanner/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Create handlers
	configHandler := handlers.NewConfigHandler(s.config, s.deps.Matcher)
	catalogHandler := handlers.NewCatalogHandler(s.deps.Matcher.Catalog())
	matchHandler := handlers.NewMatchHandler(s.deps.Matcher, s.deps.Extractor, s.config.Scan.MaxImageSize)
	markersHandler := handlers.NewMarkersHandler(s.config, s.deps.Generator)
	scannerHandler := handlers.NewScannerHandler(s.deps.Session)
	wsHandler := handlers.NewWSHandler(s.deps.Matcher, s.config.Web.AllowedOrigins)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Request/response endpoints
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(time.Minute))

			r.Get("/config", configHandler.Get)

			// Catalog
			r.Get("/catalog", catalogHandler.List)
			r.Get("/catalog/{id}", catalogHandler.Get)

			// Matching
			r.Post("/match", matchHandler.MatchVector)
			r.Post("/match/image", matchHandler.MatchImage)

			// Marker generation
			r.Post("/markers/generate", markersHandler.Generate)

			r.Get("/scanner", scannerHandler.Get)
		})

		// Long-lived connections
		r.Get("/scanner/events", scannerHandler.Events)
		r.Get("/ws", wsHandler.Serve)
	})

	// Serve the embedded scanner page
	s.router.Get("/*", s.serveSPA)
}

// serveSPA serves the embedded browser scanner
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	fs := static.GetFileSystem()
	p := r.URL.Path
	if p == "/" {
		p = "/index.html"
	}

	// Try to serve the requested file
	if f, err := fs.Open(p); err == nil {
		defer f.Close()
		if stat, err := f.Stat(); err == nil && !stat.IsDir() {
			contentType := mime.TypeByExtension(path.Ext(p))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			w.Header().Set("Content-Type", contentType)

			// Add cache headers for static assets
			if strings.HasPrefix(p, "/assets/") {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}

			w.WriteHeader(http.StatusOK)
			io.Copy(w, f)
			return
		}
	}

	if strings.HasPrefix(p, "/assets/") || strings.HasPrefix(p, "/api/") {
		http.NotFound(w, r)
		return
	}

	// Unknown paths fall back to the scanner page
	indexFile, err := fs.Open("/index.html")
	if err != nil {
		http.Error(w, "scanner page not built", http.StatusNotFound)
		return
	}
	defer indexFile.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, indexFile)
}
