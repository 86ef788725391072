package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/matcher"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Embedding: config.EmbeddingConfig{Dim: 3},
		Catalog:   config.CatalogConfig{Source: config.CatalogSourceFile},
		Match:     config.MatchConfig{Threshold: matcher.DefaultThreshold},
	}
}

// testCatalog holds three orthogonal unit markers.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Entry{
		{ID: 1, Name: "Lotus", Vector: []float32{1, 0, 0}, VideoURL: "https://videos/lotus.mp4"},
		{ID: 2, Name: "Bamboo", Vector: []float32{0, 1, 0}, VideoURL: "https://videos/bamboo.mp4"},
		{ID: 3, Name: "Dragon", Vector: []float32{0, 0, 1}, VideoURL: "https://videos/dragon.mp4"},
	})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return c
}

func testMatcher(t *testing.T) *matcher.Matcher {
	t.Helper()
	m, err := matcher.New(testCatalog(t), matcher.DefaultThreshold)
	if err != nil {
		t.Fatalf("failed to build matcher: %v", err)
	}
	return m
}

// fakeExtractor returns a fixed embedding per image content.
type fakeExtractor struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

func (f *fakeExtractor) ComputeEmbedding(_ context.Context, data []byte) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	v, ok := f.vectors[string(data)]
	if !ok {
		return nil, errors.New("embedding server unavailable")
	}
	return v, nil
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a POST with a "file" part and extra form fields.
func multipartRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(content)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
