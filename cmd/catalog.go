package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/database/postgres"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the marker catalog",
}

var catalogPushCmd = &cobra.Command{
	Use:   "push <catalog.yaml>",
	Short: "Replace the PostgreSQL catalog with a YAML catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogPush,
}

var catalogPullCmd = &cobra.Command{
	Use:   "pull <catalog.yaml>",
	Short: "Export the PostgreSQL catalog to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogPull,
}

var catalogRemoveCmd = &cobra.Command{
	Use:   "remove <id>...",
	Short: "Delete markers from the PostgreSQL catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCatalogRemove,
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [catalog.yaml]",
	Short: "Check a catalog file for problems",
	Long: `Load a catalog and report problems: mixed dimensions, duplicate IDs,
zero vectors, vectors that were not stored normalized, duplicate names and
entries without a video. Without an argument the configured catalog is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalogValidate,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogPushCmd)
	catalogCmd.AddCommand(catalogPullCmd)
	catalogCmd.AddCommand(catalogRemoveCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
}

func openMarkerRepository(ctx context.Context, cfg *config.Config) (*postgres.MarkerRepository, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	fmt.Println("Connecting to PostgreSQL...")
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewMarkerRepository(pool), func() { pool.Close() }, nil
}

func runCatalogPush(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	c, err := catalog.LoadFile(args[0])
	if err != nil {
		return err
	}

	repo, closeRepo, err := openMarkerRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	if err := repo.ReplaceAll(ctx, c); err != nil {
		return fmt.Errorf("failed to push catalog: %w", err)
	}
	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Pushed %d markers (dim %d) to PostgreSQL\n", count, c.Dim())
	return nil
}

func runCatalogRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid marker id %q", a)
		}
		ids = append(ids, id)
	}

	repo, closeRepo, err := openMarkerRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	n, err := repo.Delete(ctx, ids)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d of %d markers\n", n, len(ids))
	return nil
}

func runCatalogPull(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	repo, closeRepo, err := openMarkerRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	entries, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	if err := catalog.WriteFile(args[0], entries); err != nil {
		return err
	}
	fmt.Printf("Wrote %d markers to %s\n", len(entries), args[0])
	return nil
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	var entries []catalog.Entry
	var source string
	if len(args) > 0 {
		raw, err := catalog.ReadEntries(args[0])
		if err != nil {
			return err
		}
		entries, source = raw, args[0]
	} else {
		c, err := loadCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		entries, source = c.Entries(), cfg.Catalog.Source
	}

	issues := catalog.Validate(entries, cfg.Embedding.Dim)
	var fatal int
	for _, is := range issues {
		prefix := "warning"
		if is.Fatal {
			prefix = "error"
			fatal++
		}
		fmt.Printf("%s: %s\n", prefix, is.Message)
	}

	fmt.Printf("\n%s: %d markers, %d errors, %d warnings\n", source, len(entries), fatal, len(issues)-fatal)
	if fatal > 0 {
		return fmt.Errorf("catalog has %d errors", fatal)
	}
	return nil
}
