package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/marker-scanner/internal/ai"
	"github.com/kozaktomas/marker-scanner/internal/capture"
	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/constants"
	"github.com/kozaktomas/marker-scanner/internal/marker"
)

var markerCmd = &cobra.Command{
	Use:   "marker",
	Short: "Create and inspect catalog markers",
}

var markerGenerateCmd = &cobra.Command{
	Use:   "generate <image>",
	Short: "Generate a catalog entry from a reference image",
	Long: `Embed a reference image with the scanner's model and print the normalized
vector as a catalog snippet, or append it to a catalog file.

Examples:
  # Print a snippet to paste into catalog.yaml
  marker-scanner marker generate lotus.jpg

  # Append to the catalog with a video and an AI suggested name
  marker-scanner marker generate lotus.jpg --append catalog.yaml \
      --video-url https://cdn.example.com/lotus.mp4 --suggest-name openai`,
	Args: cobra.ExactArgs(1),
	RunE: runMarkerGenerate,
}

var markerBatchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Generate a catalog from every image in a directory",
	Long: `Embed every image in a directory and write the entries to a YAML catalog.
Names are derived from file names; IDs are assigned in file name order.

Examples:
  marker-scanner marker batch ./markers --output catalog.yaml
  marker-scanner marker batch ./markers --output catalog.yaml --concurrency 8 --start-id 100`,
	Args: cobra.ExactArgs(1),
	RunE: runMarkerBatch,
}

var markerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the markers of the configured catalog",
	RunE:  runMarkerList,
}

func init() {
	rootCmd.AddCommand(markerCmd)
	markerCmd.AddCommand(markerGenerateCmd)
	markerCmd.AddCommand(markerBatchCmd)
	markerCmd.AddCommand(markerListCmd)

	markerGenerateCmd.Flags().String("name", "", "Marker name (default: file name, or the suggested name)")
	markerGenerateCmd.Flags().String("video-url", "", "Video played when the marker is recognized")
	markerGenerateCmd.Flags().Int("id", 0, "Marker ID (default: next free ID when appending)")
	markerGenerateCmd.Flags().String("append", "", "Append the entry to this catalog file")
	markerGenerateCmd.Flags().String("suggest-name", "", "Ask a vision model for a name: openai, gemini or ollama")
	markerGenerateCmd.Flags().Bool("push", false, "Save the entry to the PostgreSQL catalog")

	markerBatchCmd.Flags().String("output", "catalog.yaml", "Catalog file to write")
	markerBatchCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel workers")
	markerBatchCmd.Flags().Int("start-id", 1, "ID of the first marker")
	markerBatchCmd.Flags().Bool("force", false, "Overwrite the output file if it exists")
}

func runMarkerGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	opts := marker.Options{
		ID:       mustGetInt(cmd, "id"),
		Name:     mustGetString(cmd, "name"),
		VideoURL: mustGetString(cmd, "video-url"),
	}

	if providerName := mustGetString(cmd, "suggest-name"); providerName != "" {
		provider, err := ai.NewProvider(ctx, providerName, cfg)
		if err != nil {
			return err
		}
		opts.Suggest = provider
		defer func() {
			if u := provider.GetUsage(); u.InputTokens > 0 {
				fmt.Fprintf(os.Stderr, "%s usage: %d input, %d output tokens ($%.4f)\n",
					provider.Name(), u.InputTokens, u.OutputTokens, u.TotalCost)
			}
		}()
	}

	gen := marker.NewGenerator(newExtractor(cfg), cfg.Embedding.Dim, constants.MaxImageSize)
	res, err := gen.GenerateFile(ctx, args[0], opts)
	if err != nil {
		return err
	}
	if res.Entry.Name == "" {
		res.Entry.Name = marker.NameFromPath(args[0])
	}
	if res.Suggestion != nil && res.Suggestion.Description != "" {
		fmt.Fprintf(os.Stderr, "Suggested: %s - %s\n", res.Suggestion.Name, res.Suggestion.Description)
	}

	if mustGetBool(cmd, "push") {
		return pushMarker(ctx, cfg, res.Entry)
	}

	if path := mustGetString(cmd, "append"); path != "" {
		entry, err := catalog.AppendToFile(path, res.Entry)
		if err != nil {
			return err
		}
		fmt.Printf("Added marker %d (%q, %d dims) to %s\n", entry.ID, entry.Name, res.Dim, path)
		return nil
	}

	fmt.Printf("- id: %d\n", res.Entry.ID)
	fmt.Printf("  name: %s\n", res.Entry.Name)
	if res.Entry.VideoURL != "" {
		fmt.Printf("  video_url: %s\n", res.Entry.VideoURL)
	}
	fmt.Printf("  %s\n", res.Snippet)
	return nil
}

// pushMarker saves one entry to PostgreSQL, assigning the next free ID when none is set.
func pushMarker(ctx context.Context, cfg *config.Config, entry catalog.Entry) error {
	repo, closeRepo, err := openMarkerRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	entries, err := repo.List(ctx)
	if err != nil {
		return err
	}
	existing, err := catalog.New(entries)
	if err != nil {
		return err
	}
	if existing.Len() > 0 && existing.Dim() != len(entry.Vector) {
		return fmt.Errorf("%w: marker has %d dimensions, stored catalog has %d",
			catalog.ErrInvalidEntry, len(entry.Vector), existing.Dim())
	}
	if entry.ID == 0 {
		entry.ID = existing.NextID()
	}

	if err := repo.Save(ctx, entry); err != nil {
		return err
	}
	fmt.Printf("Saved marker %d (%q) to PostgreSQL\n", entry.ID, entry.Name)
	return nil
}

func runMarkerBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	output := mustGetString(cmd, "output")
	if _, err := os.Stat(output); err == nil && !mustGetBool(cmd, "force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}

	files, err := capture.ListImages(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", args[0])
	}

	extractor := newExtractor(cfg)
	if err := extractor.Health(ctx); err != nil {
		return fmt.Errorf("embedding server is not ready: %w", err)
	}

	fmt.Printf("Images to process: %d\n\n", len(files))

	// Create progress bar
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Computing embeddings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var errorCount int
	var mu sync.Mutex

	gen := marker.NewGenerator(extractor, cfg.Embedding.Dim, constants.MaxImageSize)
	items := gen.Batch(ctx, files, mustGetInt(cmd, "start-id"), mustGetInt(cmd, "concurrency"), func(item marker.BatchItem) {
		if item.Err != nil {
			mu.Lock()
			errorCount++
			mu.Unlock()
		}
		bar.Add(1)
	})
	fmt.Println()

	for _, item := range items {
		if item.Err != nil {
			fmt.Printf("  %s: %v\n", filepath.Base(item.Path), item.Err)
		}
	}

	entries := marker.Entries(items)
	if len(entries) == 0 {
		return errors.New("no markers generated")
	}
	if err := catalog.WriteFile(output, entries); err != nil {
		return err
	}

	fmt.Printf("\nWrote %d markers to %s (%d failed)\n", len(entries), output, errorCount)
	return nil
}

func runMarkerList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	c, err := loadCatalog(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	if c.Len() == 0 {
		fmt.Println("Catalog is empty.")
		return nil
	}

	fmt.Printf("%-6s %-30s %-6s %s\n", "ID", "NAME", "DIM", "VIDEO")
	for _, e := range c.Entries() {
		fmt.Printf("%-6d %-30s %-6d %s\n", e.ID, e.Name, len(e.Vector), e.VideoURL)
	}
	fmt.Printf("\nTotal: %d markers\n", c.Len())
	return nil
}
