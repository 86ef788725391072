package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/matcher"
	"github.com/kozaktomas/marker-scanner/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan [camera|video|directory]",
	Short: "Scan a camera, video file or image directory for markers",
	Long: `Run the scanner headless and print every state change.

Without an argument the camera from CAMERA_DEVICE is opened; if it fails,
CAMERA_FALLBACK_DEVICE is tried once. A video file is decoded with ffmpeg,
and a directory is scanned image by image in name order.

Examples:
  # Scan the default camera
  marker-scanner scan

  # Scan a recorded video once, 4 frames per second
  marker-scanner scan demo.mp4 --fps 4

  # Scan a directory of photos in a loop with a stricter threshold
  marker-scanner scan ./frames --loop --threshold 0.8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Duration("interval", 0, "Time between scans (default from SCAN_INTERVAL)")
	scanCmd.Flags().Float64("threshold", 0, "Similarity threshold (default from MATCH_THRESHOLD)")
	scanCmd.Flags().Int("fps", 2, "Frames per second decoded from cameras and videos")
	scanCmd.Flags().Bool("loop", false, "Loop video files and directories")
	scanCmd.Flags().Int("frame-hash-distance", -1, "Reuse results for frames within this dHash distance (default from SCAN_FRAME_HASH_DISTANCE)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := mustGetDuration(cmd, "interval")
	if interval <= 0 {
		interval = cfg.Scan.Interval
	}
	hashDistance := mustGetInt(cmd, "frame-hash-distance")
	if hashDistance < 0 {
		hashDistance = cfg.Scan.FrameHashDistance
	}

	c, err := loadCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	m, err := newMatcher(cfg, c, matchThreshold(cmd, cfg))
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d markers (dim %d, threshold %.2f)\n", c.Len(), c.Dim(), m.Threshold())

	var input string
	if len(args) > 0 {
		input = args[0]
	}
	source, device, err := openSource(ctx, cfg, input, mustGetInt(cmd, "fps"), mustGetBool(cmd, "loop"))
	if err != nil {
		return fmt.Errorf("failed to open frame source: %w", err)
	}
	fmt.Printf("Scanning %s every %s (Ctrl+C to stop)\n", device, interval)

	session := scanner.NewSession()
	session.SetDevice(device)
	sc := scanner.New(source, newExtractor(cfg), m, session, scanner.Options{
		Interval:          interval,
		MaxImageSize:      cfg.Scan.MaxImageSize,
		FrameHashDistance: hashDistance,
	})

	events := session.AddListener()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range events {
			printEvent(ev)
		}
	}()

	runErr := sc.Run(ctx)
	session.RemoveListener(events)
	<-printed

	snap := session.Snapshot()
	fmt.Printf("\nFinal state: %s\n", snap.State)
	fmt.Printf("Scans: %d, matches: %d, misses: %d, reused: %d, skipped: %d, zero vectors: %d, errors: %d\n",
		snap.Stats.Scans, snap.Stats.Matches, snap.Stats.Misses, snap.Stats.Reused,
		snap.Stats.Skipped, snap.Stats.ZeroNorm, snap.Stats.Errors)
	return runErr
}

func printEvent(ev scanner.Event) {
	ts := time.Now().Format("15:04:05")
	switch ev.Type {
	case scanner.EventMatch:
		if r, ok := ev.Data.(*matcher.Result); ok {
			fmt.Printf("[%s] MATCH    %s (id %d, similarity %.3f) -> %s\n", ts, r.Name, r.EntryID, r.Similarity, r.VideoURL)
			return
		}
		fmt.Printf("[%s] MATCH    %s\n", ts, ev.Message)
	case scanner.EventNoMatch:
		fmt.Printf("[%s] LOST     %s\n", ts, ev.Message)
	case scanner.EventState:
		if d, ok := ev.Data.(map[string]any); ok {
			fmt.Printf("[%s] STATE    %v -> %v\n", ts, d["from"], d["to"])
			return
		}
		fmt.Printf("[%s] STATE    %s\n", ts, ev.Message)
	case scanner.EventError:
		fmt.Printf("[%s] ERROR    %s\n", ts, ev.Message)
	}
}
