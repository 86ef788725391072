package cmd

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/config"
)

func thresholdCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Float64("threshold", 0, "")
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func TestMatchThreshold(t *testing.T) {
	cfg := &config.Config{}
	cfg.Match.Threshold = 0.7

	tests := []struct {
		name string
		args []string
		want float64
	}{
		{"flag not set", nil, 0.7},
		{"explicit value", []string{"--threshold", "0.85"}, 0.85},
		{"explicit zero", []string{"--threshold", "0"}, 0},
		{"negative", []string{"--threshold=-0.5"}, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchThreshold(thresholdCommand(t, tt.args...), cfg)
			if got != tt.want {
				t.Errorf("matchThreshold() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestNewMatcher_ZeroThreshold(t *testing.T) {
	cfg := &config.Config{}
	cfg.Match.Threshold = 0.7
	cfg.Embedding.Dim = 2

	c, err := catalog.New([]catalog.Entry{{ID: 1, Name: "x", Vector: []float32{1, 0}}})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	m, err := newMatcher(cfg, c, matchThreshold(thresholdCommand(t, "--threshold", "0"), cfg))
	if err != nil {
		t.Fatalf("newMatcher: %v", err)
	}
	if m.Threshold() != 0 {
		t.Errorf("Threshold() = %v; want 0", m.Threshold())
	}
}

func TestNewMatcher_DimensionCheck(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Dim = 3

	c, err := catalog.New([]catalog.Entry{{ID: 1, Name: "x", Vector: []float32{1, 0}}})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	if _, err := newMatcher(cfg, c, 0.7); err == nil {
		t.Error("expected an error when the catalog dimension differs from EMBEDDING_DIM")
	}
}
