package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/marker"
	"github.com/kozaktomas/marker-scanner/internal/scanner"
	"github.com/kozaktomas/marker-scanner/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Marker Scanner web server.
The web server provides a browser scanner page, a REST API for matching
frames and generating markers, and a websocket that answers live feature
vectors with match results.

With --camera the server also scans a local camera and publishes the
session at /api/v1/scanner.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Bool("camera", false, "Scan the configured camera on the server")
	serveCmd.Flags().String("source", "", "Scan this video file or image directory instead of the camera (implies --camera)")
	serveCmd.Flags().Int("fps", 2, "Frames per second decoded from the camera")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Loading catalog (%s)...\n", cfg.Catalog.Source)
	c, err := loadCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	m, err := newMatcher(cfg, c, cfg.Match.Threshold)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d markers (threshold %.2f)\n", c.Len(), m.Threshold())

	extractor := newExtractor(cfg)
	slog.Info("embedding client ready", "model", extractor.Model(), "dim", cfg.Embedding.Dim)
	deps := web.Dependencies{
		Matcher:   m,
		Extractor: extractor,
		Generator: marker.NewGenerator(extractor, cfg.Embedding.Dim, cfg.Scan.MaxImageSize),
	}

	var sc *scanner.Scanner
	sourcePath := mustGetString(cmd, "source")
	if mustGetBool(cmd, "camera") || sourcePath != "" {
		source, device, err := openSource(ctx, cfg, sourcePath, mustGetInt(cmd, "fps"), true)
		if err != nil {
			return fmt.Errorf("failed to open frame source: %w", err)
		}
		session := scanner.NewSession()
		session.SetDevice(device)
		sc = scanner.New(source, extractor, m, session, scanner.Options{
			Interval:          cfg.Scan.Interval,
			MaxImageSize:      cfg.Scan.MaxImageSize,
			FrameHashDistance: cfg.Scan.FrameHashDistance,
		})
		deps.Session = session
		fmt.Printf("Scanning %s\n", device)
	}

	server := web.NewServer(cfg, deps)

	scanDone := make(chan struct{})
	if sc != nil {
		go func() {
			defer close(scanDone)
			if err := sc.Run(ctx); err != nil {
				slog.Error("server-side scanner stopped", "error", err)
			}
		}()
	} else {
		close(scanDone)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
		<-scanDone

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Marker Scanner on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
