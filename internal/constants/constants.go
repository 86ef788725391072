// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Matching constants
const (
	// UnitTolerance is how far a stored vector's norm may drift from 1
	// before the catalog re-normalizes it
	UnitTolerance = 1e-3
)

// Scanning constants
const (
	// HealthCheckTimeout bounds the one-shot embedding backend readiness check
	HealthCheckTimeout = 10 * time.Second

	// ScanTimeout bounds a single scan attempt (frame grab + embedding + match)
	ScanTimeout = 5 * time.Second

	// FrameReadTimeout is how long a capture source waits for the first frame
	FrameReadTimeout = 5 * time.Second
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for batch marker generation
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) for images sent to vision models
	MaxImageSize = 1024
)

// AI provider names
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)
