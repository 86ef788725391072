// Package marker turns reference images into catalog entries: it embeds the
// image with the same model the scanner uses and normalizes the vector.
package marker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kozaktomas/marker-scanner/internal/ai"
	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/fingerprint"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

// Options describe the entry being generated.
type Options struct {
	ID       int    // 0 leaves the ID for the catalog writer to assign
	Name     string // overrides any suggested name
	VideoURL string
	Suggest  ai.Provider // optional name suggestion
}

// Result is a generated entry together with the text an operator pastes into a catalog.
type Result struct {
	Dim        int                  `json:"dim"`
	Vector     []float32            `json:"vector"`
	Snippet    string               `json:"snippet"`
	Entry      catalog.Entry        `json:"entry"`
	Suggestion *ai.MarkerSuggestion `json:"suggestion,omitempty"`
}

// Generator embeds reference images.
type Generator struct {
	extractor    fingerprint.Extractor
	dim          int
	maxImageSize int
}

// NewGenerator creates a generator. When dim is positive, embeddings of any
// other length are rejected. Images larger than maxImageSize are shrunk first.
func NewGenerator(extractor fingerprint.Extractor, dim, maxImageSize int) *Generator {
	return &Generator{extractor: extractor, dim: dim, maxImageSize: maxImageSize}
}

// Generate embeds one image and returns the normalized vector and entry.
func (g *Generator) Generate(ctx context.Context, image []byte, opts Options) (*Result, error) {
	data := image
	if g.maxImageSize > 0 {
		if resized, err := fingerprint.ResizeImage(image, g.maxImageSize); err == nil {
			data = resized
		} else {
			slog.Debug("image resize failed, sending original", "error", err)
		}
	}

	embedding, err := g.extractor.ComputeEmbedding(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("computing embedding: %w", err)
	}
	if g.dim > 0 && len(embedding) != g.dim {
		return nil, fmt.Errorf("%w: model returned %d dimensions, expected %d",
			vector.ErrDimensionMismatch, len(embedding), g.dim)
	}

	normalized, err := vector.Normalize(embedding)
	if err != nil {
		return nil, fmt.Errorf("normalizing embedding: %w", err)
	}

	res := &Result{
		Dim:     len(normalized),
		Vector:  normalized,
		Snippet: catalog.Snippet(normalized),
	}

	name := strings.TrimSpace(opts.Name)
	if opts.Suggest != nil {
		suggestion, err := opts.Suggest.SuggestMarker(ctx, image)
		if err != nil {
			slog.Warn("name suggestion failed", "provider", opts.Suggest.Name(), "error", err)
		} else {
			res.Suggestion = suggestion
			if name == "" {
				name = suggestion.Name
			}
		}
	}

	res.Entry = catalog.Entry{
		ID:       opts.ID,
		Name:     name,
		Vector:   normalized,
		VideoURL: opts.VideoURL,
	}
	return res, nil
}

// GenerateFile reads and embeds an image file. Without a name the file's base
// name is used.
func (g *Generator) GenerateFile(ctx context.Context, path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if opts.Name == "" && opts.Suggest == nil {
		opts.Name = NameFromPath(path)
	}
	return g.Generate(ctx, data, opts)
}

// NameFromPath derives a marker name from a file name ("hoa-sen_01.jpg" -> "hoa sen 01").
func NameFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

// BatchItem is the outcome for one file of a batch.
type BatchItem struct {
	Path   string
	Result *Result
	Err    error
}

// Batch embeds files with a bounded number of workers. Items are returned in
// input order; entries get IDs firstID, firstID+1, ... in that order.
// onDone, if set, is called once per file as it finishes.
func (g *Generator) Batch(ctx context.Context, paths []string, firstID, workers int, onDone func(BatchItem)) []BatchItem {
	if workers <= 0 {
		workers = 1
	}

	items := make([]BatchItem, len(paths))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			item := BatchItem{Path: path}
			if err := ctx.Err(); err != nil {
				item.Err = err
			} else {
				item.Result, item.Err = g.GenerateFile(ctx, path, Options{ID: firstID + i})
			}
			items[i] = item
			if onDone != nil {
				onDone(item)
			}
		}()
	}

	wg.Wait()
	return items
}

// Entries collects the successful entries of a batch, in order.
func Entries(items []BatchItem) []catalog.Entry {
	var entries []catalog.Entry
	for _, it := range items {
		if it.Err == nil && it.Result != nil {
			entries = append(entries, it.Result.Entry)
		}
	}
	return entries
}
