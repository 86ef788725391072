// Package capture provides camera and file frame sources for the scanner.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNoFrame is returned when a source produced no frame in time.
	ErrNoFrame = errors.New("no frame available")

	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("frame source closed")
)

// Source yields encoded image frames. Next blocks until a frame newer than the
// previously returned one is available. A finite source returns io.EOF when done.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Opener opens a source for a device name (camera path or file).
type Opener func(ctx context.Context, device string) (Source, error)

// OpenCamera opens the primary device and, if that fails, makes exactly one
// attempt with the fallback device. It returns the source and the device that
// was opened.
func OpenCamera(ctx context.Context, primary, fallback string, open Opener) (Source, string, error) {
	src, err := open(ctx, primary)
	if err == nil {
		return src, primary, nil
	}
	if fallback == "" || fallback == primary {
		return nil, "", fmt.Errorf("opening camera %s: %w", primary, err)
	}

	slog.Warn("primary camera unavailable, trying fallback",
		"device", primary, "fallback", fallback, "error", err)

	src, fbErr := open(ctx, fallback)
	if fbErr != nil {
		return nil, "", fmt.Errorf("opening camera %s: %w (fallback %s: %w)", primary, err, fallback, fbErr)
	}
	return src, fallback, nil
}
