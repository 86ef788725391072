package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/marker-scanner/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "marker-scanner",
	Short: "Recognize printed markers in a camera feed and play their videos",
	Long: `Marker Scanner compares image embeddings from a camera feed against a
catalog of reference markers. When a frame is similar enough to a marker,
the marker's video is played over the camera view.

It can run headless against a camera, a video file or a directory of frames,
or serve a browser scanner page and a websocket API.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	logging.Setup(level)
}
