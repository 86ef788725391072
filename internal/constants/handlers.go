// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// SSEKeepaliveInterval is how often an idle event stream sends a comment line
	SSEKeepaliveInterval = 30 * time.Second
)

// File upload constants
const (
	// MaxUploadSize is the maximum reference image upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// MaxFrameSize is the maximum size of a single scanned frame in bytes (5MB)
	MaxFrameSize = 5 << 20
)

// Websocket constants
const (
	// WSReadLimit is the maximum websocket message size; a 1280-dim vector as JSON is ~30KB
	WSReadLimit = 256 << 10

	// WSMessagesPerSecond is the sustained per-connection message rate
	WSMessagesPerSecond = 10

	// WSBurst is the per-connection burst allowance
	WSBurst = 20

	// WSWriteTimeout bounds a single websocket write
	WSWriteTimeout = 5 * time.Second
)
