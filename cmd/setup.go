package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/marker-scanner/internal/capture"
	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/database/postgres"
	"github.com/kozaktomas/marker-scanner/internal/fingerprint"
	"github.com/kozaktomas/marker-scanner/internal/matcher"
)

// loadCatalog loads the catalog from CATALOG_SOURCE: PostgreSQL, the file at
// CATALOG_PATH, or the embedded default catalog.
func loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Source == config.CatalogSourcePostgres {
		if cfg.Database.URL == "" {
			return nil, errors.New("DATABASE_URL environment variable is required for CATALOG_SOURCE=postgres")
		}
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		return postgres.NewMarkerRepository(pool).Load(ctx)
	}

	var src catalog.Source = catalog.EmbeddedSource{}
	if cfg.Catalog.Path != "" {
		src = catalog.FileSource{Path: cfg.Catalog.Path}
	}
	return src.Load(ctx)
}

// matchThreshold returns --threshold when it was given on the command line,
// otherwise MATCH_THRESHOLD.
func matchThreshold(cmd *cobra.Command, cfg *config.Config) float64 {
	if cmd.Flags().Changed("threshold") {
		return mustGetFloat64(cmd, "threshold")
	}
	return cfg.Match.Threshold
}

// newMatcher builds a matcher after checking the catalog against EMBEDDING_DIM.
func newMatcher(cfg *config.Config, c *catalog.Catalog, threshold float64) (*matcher.Matcher, error) {
	if c.Len() > 0 && cfg.Embedding.Dim > 0 && c.Dim() != cfg.Embedding.Dim {
		return nil, fmt.Errorf("catalog dimension %d does not match EMBEDDING_DIM %d", c.Dim(), cfg.Embedding.Dim)
	}
	return matcher.New(c, threshold)
}

func newExtractor(cfg *config.Config) *fingerprint.EmbeddingClient {
	return fingerprint.NewEmbeddingClient(cfg.Embedding.URL, "")
}

// openSource opens the frame source for input: a directory of images, a video
// file, or (when input is empty) the configured camera with its fallback.
// It returns the source and a description of what was opened.
func openSource(ctx context.Context, cfg *config.Config, input string, fps int, loop bool) (capture.Source, string, error) {
	if input == "" {
		return capture.OpenCamera(ctx, cfg.Camera.Device, cfg.Camera.FallbackDevice,
			capture.FFmpegOpener(cfg.Camera.Format, fps))
	}

	info, err := os.Stat(input)
	if err != nil {
		if strings.HasPrefix(input, "/dev/") {
			return capture.OpenCamera(ctx, input, cfg.Camera.FallbackDevice,
				capture.FFmpegOpener(cfg.Camera.Format, fps))
		}
		return nil, "", fmt.Errorf("opening %s: %w", input, err)
	}

	if info.IsDir() {
		src, err := capture.NewDirSource(input, loop)
		if err != nil {
			return nil, "", err
		}
		return src, filepath.Clean(input), nil
	}

	if !info.Mode().IsRegular() {
		// character device such as /dev/video0
		return capture.OpenCamera(ctx, input, cfg.Camera.FallbackDevice,
			capture.FFmpegOpener(cfg.Camera.Format, fps))
	}

	src, err := capture.OpenFFmpeg(ctx, capture.FFmpegOptions{Input: input, FPS: fps, Loop: loop})
	if err != nil {
		return nil, "", err
	}
	return src, input, nil
}
