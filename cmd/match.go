package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/fingerprint"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

var matchCmd = &cobra.Command{
	Use:   "match <image>...",
	Short: "Match still images against the catalog",
	Long: `Embed each image and print the best catalog entry.

Examples:
  marker-scanner match photo.jpg
  marker-scanner match *.jpg --top 3 --threshold 0.8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Float64("threshold", 0, "Similarity threshold (default from MATCH_THRESHOLD)")
	matchCmd.Flags().Int("top", 1, "Number of candidates to print per image")
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	top := mustGetInt(cmd, "top")

	c, err := loadCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	m, err := newMatcher(cfg, c, matchThreshold(cmd, cfg))
	if err != nil {
		return err
	}
	if c.Len() == 0 {
		return errors.New("catalog is empty")
	}

	extractor := newExtractor(cfg)
	if err := extractor.Health(ctx); err != nil {
		return fmt.Errorf("embedding server is not ready: %w", err)
	}

	var failed int
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed++
			continue
		}
		if cfg.Scan.MaxImageSize > 0 {
			if resized, err := fingerprint.ResizeImage(data, cfg.Scan.MaxImageSize); err == nil {
				data = resized
			}
		}

		embedding, err := extractor.ComputeEmbedding(ctx, data)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed++
			continue
		}

		best, matched, err := m.Match(embedding)
		switch {
		case errors.Is(err, vector.ErrZeroNorm):
			fmt.Printf("%s: no match (blank embedding)\n", path)
			continue
		case err != nil:
			fmt.Printf("%s: %v\n", path, err)
			failed++
			continue
		}

		if matched {
			fmt.Printf("%s: MATCH %s (id %d, similarity %.4f) %s\n", path, best.Name, best.EntryID, best.Similarity, best.VideoURL)
		} else {
			fmt.Printf("%s: no match (best %s at %.4f)\n", path, best.Name, best.Similarity)
		}

		if top > 1 {
			scores, _ := m.Score(embedding)
			sort.SliceStable(scores, func(i, j int) bool { return scores[i].Similarity > scores[j].Similarity })
			for i, s := range scores {
				if i >= top {
					break
				}
				e, _ := c.Get(s.EntryID)
				fmt.Printf("  %d. %-30s %.4f\n", i+1, e.Name, s.Similarity)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}
