package config

import (
	"os"
	"testing"
	"time"
)

func TestGetModelPricing_KnownModel(t *testing.T) {
	cfg := Load() // Load actual config with embedded prices

	pricing := cfg.GetModelPricing("gpt-4.1-mini")

	// Should have non-zero pricing for standard mode
	if pricing.Standard.Input == 0 && pricing.Standard.Output == 0 {
		t.Error("expected non-zero pricing for gpt-4.1-mini standard mode")
	}

	// Verify expected values from prices.yaml
	if pricing.Standard.Input != 0.40 {
		t.Errorf("expected standard input price 0.40, got %f", pricing.Standard.Input)
	}

	if pricing.Standard.Output != 1.60 {
		t.Errorf("expected standard output price 1.60, got %f", pricing.Standard.Output)
	}
}

func TestGetModelPricing_BatchPricing(t *testing.T) {
	cfg := Load()

	pricing := cfg.GetModelPricing("gpt-4.1-mini")

	// Batch pricing should be 50% of standard
	if pricing.Batch.Input != 0.20 {
		t.Errorf("expected batch input price 0.20, got %f", pricing.Batch.Input)
	}

	if pricing.Batch.Output != 0.80 {
		t.Errorf("expected batch output price 0.80, got %f", pricing.Batch.Output)
	}
}

func TestGetModelPricing_GeminiModel(t *testing.T) {
	cfg := Load()

	pricing := cfg.GetModelPricing("gemini-2.5-flash")

	if pricing.Standard.Input != 0.30 {
		t.Errorf("expected gemini standard input 0.30, got %f", pricing.Standard.Input)
	}

	if pricing.Standard.Output != 2.50 {
		t.Errorf("expected gemini standard output 2.50, got %f", pricing.Standard.Output)
	}
}

func TestGetModelPricing_LocalModel(t *testing.T) {
	cfg := Load()

	pricing := cfg.GetModelPricing("llama3.2-vision")

	// Local models should have zero pricing
	if pricing.Standard.Input != 0 {
		t.Errorf("expected llama local model to have zero input price, got %f", pricing.Standard.Input)
	}

	if pricing.Standard.Output != 0 {
		t.Errorf("expected llama local model to have zero output price, got %f", pricing.Standard.Output)
	}
}

func TestGetModelPricing_UnknownModel(t *testing.T) {
	cfg := Load()

	pricing := cfg.GetModelPricing("unknown-model-xyz")

	// Unknown model should return zero pricing
	if pricing.Standard.Input != 0 || pricing.Standard.Output != 0 {
		t.Errorf("expected zero pricing for unknown model, got input=%f output=%f",
			pricing.Standard.Input, pricing.Standard.Output)
	}

	if pricing.Batch.Input != 0 || pricing.Batch.Output != 0 {
		t.Errorf("expected zero batch pricing for unknown model, got input=%f output=%f",
			pricing.Batch.Input, pricing.Batch.Output)
	}
}

func TestLoad_DefaultEmbeddingDim(t *testing.T) {
	os.Unsetenv("EMBEDDING_DIM")

	cfg := Load()

	if cfg.Embedding.Dim != 1280 {
		t.Errorf("expected default embedding dim 1280, got %d", cfg.Embedding.Dim)
	}
}

func TestLoad_EmbeddingDimOverrides(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"custom", "512", 512},
		{"invalid", "invalid", 1280},
		{"negative", "-100", 1280},
		{"zero", "0", 1280},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EMBEDDING_DIM", tt.value)

			cfg := Load()

			if cfg.Embedding.Dim != tt.want {
				t.Errorf("expected embedding dim %d, got %d", tt.want, cfg.Embedding.Dim)
			}
		})
	}
}

func TestLoad_MatchThreshold(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"unset", "", 0.7},
		{"custom", "0.85", 0.85},
		{"one is allowed", "1", 1},
		{"above one", "1.5", 0.7},
		{"minus one", "-1", 0.7},
		{"not a number", "high", 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MATCH_THRESHOLD", tt.value)

			cfg := Load()

			if cfg.Match.Threshold != tt.want {
				t.Errorf("expected threshold %v, got %v", tt.want, cfg.Match.Threshold)
			}
		})
	}
}

func TestLoad_ScanDefaults(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "")
	t.Setenv("SCAN_MAX_IMAGE_SIZE", "")
	t.Setenv("SCAN_FRAME_HASH_DISTANCE", "")

	cfg := Load()

	if cfg.Scan.Interval != 500*time.Millisecond {
		t.Errorf("expected default interval 500ms, got %v", cfg.Scan.Interval)
	}
	if cfg.Scan.MaxImageSize != 640 {
		t.Errorf("expected default max image size 640, got %d", cfg.Scan.MaxImageSize)
	}
	if cfg.Scan.FrameHashDistance != 0 {
		t.Errorf("expected frame hash gate disabled by default, got %d", cfg.Scan.FrameHashDistance)
	}
}

func TestLoad_ScanConfig(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "250ms")
	t.Setenv("SCAN_MAX_IMAGE_SIZE", "320")
	t.Setenv("SCAN_FRAME_HASH_DISTANCE", "4")

	cfg := Load()

	if cfg.Scan.Interval != 250*time.Millisecond {
		t.Errorf("expected interval 250ms, got %v", cfg.Scan.Interval)
	}
	if cfg.Scan.MaxImageSize != 320 {
		t.Errorf("expected max image size 320, got %d", cfg.Scan.MaxImageSize)
	}
	if cfg.Scan.FrameHashDistance != 4 {
		t.Errorf("expected frame hash distance 4, got %d", cfg.Scan.FrameHashDistance)
	}
}

func TestLoad_InvalidScanInterval(t *testing.T) {
	for _, value := range []string{"soon", "-1s", "0s"} {
		t.Setenv("SCAN_INTERVAL", value)

		cfg := Load()

		if cfg.Scan.Interval != 500*time.Millisecond {
			t.Errorf("SCAN_INTERVAL=%q: expected default 500ms, got %v", value, cfg.Scan.Interval)
		}
	}
}

func TestLoad_CatalogSource(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", CatalogSourceFile},
		{"file", CatalogSourceFile},
		{"postgres", CatalogSourcePostgres},
		{"POSTGRES", CatalogSourcePostgres},
		{"redis", CatalogSourceFile},
	}

	for _, tt := range tests {
		t.Setenv("CATALOG_SOURCE", tt.value)

		cfg := Load()

		if cfg.Catalog.Source != tt.want {
			t.Errorf("CATALOG_SOURCE=%q: expected %q, got %q", tt.value, tt.want, cfg.Catalog.Source)
		}
	}
}

func TestLoad_CameraConfig(t *testing.T) {
	t.Setenv("CAMERA_DEVICE", "/dev/video2")
	t.Setenv("CAMERA_FALLBACK_DEVICE", "/dev/video0")
	t.Setenv("CAMERA_FORMAT", "avfoundation")

	cfg := Load()

	if cfg.Camera.Device != "/dev/video2" {
		t.Errorf("expected device '/dev/video2', got '%s'", cfg.Camera.Device)
	}
	if cfg.Camera.FallbackDevice != "/dev/video0" {
		t.Errorf("expected fallback '/dev/video0', got '%s'", cfg.Camera.FallbackDevice)
	}
	if cfg.Camera.Format != "avfoundation" {
		t.Errorf("expected format 'avfoundation', got '%s'", cfg.Camera.Format)
	}
}

func TestLoad_WebConfig(t *testing.T) {
	t.Setenv("WEB_HOST", "127.0.0.1")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg := Load()

	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("expected host '127.0.0.1', got '%s'", cfg.Web.Host)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("unexpected allowed origins: %v", cfg.Web.AllowedOrigins)
	}
}

func TestLoad_OpenAIConfig(t *testing.T) {
	t.Setenv("OPENAI_TOKEN", "sk-test-token-123")

	cfg := Load()

	if cfg.OpenAI.Token != "sk-test-token-123" {
		t.Errorf("expected OpenAI token 'sk-test-token-123', got '%s'", cfg.OpenAI.Token)
	}
}

func TestLoad_GeminiConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini-api-key-456")

	cfg := Load()

	if cfg.Gemini.APIKey != "gemini-api-key-456" {
		t.Errorf("expected Gemini API key 'gemini-api-key-456', got '%s'", cfg.Gemini.APIKey)
	}
}

func TestLoad_OllamaConfig(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://localhost:11434")
	t.Setenv("OLLAMA_MODEL", "llava:13b")

	cfg := Load()

	if cfg.Ollama.URL != "http://localhost:11434" {
		t.Errorf("expected Ollama URL 'http://localhost:11434', got '%s'", cfg.Ollama.URL)
	}

	if cfg.Ollama.Model != "llava:13b" {
		t.Errorf("expected Ollama model 'llava:13b', got '%s'", cfg.Ollama.Model)
	}
}

func TestLoad_PricesLoaded(t *testing.T) {
	cfg := Load()

	if len(cfg.Prices.Models) == 0 {
		t.Error("expected prices to be loaded from embedded YAML")
	}

	expectedModels := []string{"gpt-4.1-mini", "gemini-2.5-flash", "llama3.2-vision", "llava"}
	for _, model := range expectedModels {
		if _, ok := cfg.Prices.Models[model]; !ok {
			t.Errorf("expected model '%s' to be in prices", model)
		}
	}
}

func TestLoad_EmptyEnvVars(t *testing.T) {
	os.Unsetenv("CATALOG_PATH")
	os.Unsetenv("OPENAI_TOKEN")
	os.Unsetenv("DATABASE_URL")

	cfg := Load()

	if cfg.Catalog.Path != "" {
		t.Errorf("expected empty catalog path, got '%s'", cfg.Catalog.Path)
	}

	if cfg.OpenAI.Token != "" {
		t.Errorf("expected empty OpenAI token, got '%s'", cfg.OpenAI.Token)
	}

	if cfg.Database.URL != "" {
		t.Errorf("expected empty database URL, got '%s'", cfg.Database.URL)
	}
}
