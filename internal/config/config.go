package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

// Catalog source kinds accepted by CATALOG_SOURCE.
const (
	CatalogSourceFile     = "file"
	CatalogSourcePostgres = "postgres"
)

type Config struct {
	Embedding EmbeddingConfig
	Catalog   CatalogConfig
	Match     MatchConfig
	Scan      ScanConfig
	Camera    CameraConfig
	Database  DatabaseConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Ollama    OllamaConfig
	Web       WebConfig
	LogLevel  string
	Prices    PricesConfig
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 1280 (MobileNetV2 pooled features)
}

type CatalogConfig struct {
	Path   string // YAML catalog file; empty means the embedded default catalog
	Source string // file or postgres
}

type MatchConfig struct {
	Threshold float64 // similarity must be strictly greater to count as a match
}

type ScanConfig struct {
	Interval          time.Duration // time between scan attempts
	MaxImageSize      int           // longest frame edge sent to the embedding server
	FrameHashDistance int           // dHash distance treated as "same frame", 0 disables the gate
}

type CameraConfig struct {
	Device         string // primary capture device, e.g. /dev/video0
	FallbackDevice string // tried once when Device cannot be opened
	Format         string // ffmpeg input format, defaults to v4l2
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	URL   string // defaults to http://localhost:11434
	Model string // defaults to llama3.2-vision:11b
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
	Batch    RequestPricing `yaml:"batch"`
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegativeInt is envInt that also accepts zero.
func envNonNegativeInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envThreshold parses a similarity threshold in (-1, 1].
func envThreshold(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= -1 || f > 1 {
		return defaultVal
	}
	return f
}

// envDuration parses a positive Go duration ("500ms", "1s").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for part := range strings.SplitSeq(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	source := strings.ToLower(envString("CATALOG_SOURCE", CatalogSourceFile))
	if source != CatalogSourcePostgres {
		source = CatalogSourceFile
	}

	return &Config{
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 1280),
		},
		Catalog: CatalogConfig{
			Path:   os.Getenv("CATALOG_PATH"),
			Source: source,
		},
		Match: MatchConfig{
			Threshold: envThreshold("MATCH_THRESHOLD", 0.7),
		},
		Scan: ScanConfig{
			Interval:          envDuration("SCAN_INTERVAL", 500*time.Millisecond),
			MaxImageSize:      envInt("SCAN_MAX_IMAGE_SIZE", 640),
			FrameHashDistance: envNonNegativeInt("SCAN_FRAME_HASH_DISTANCE", 0),
		},
		Camera: CameraConfig{
			Device:         envString("CAMERA_DEVICE", "/dev/video0"),
			FallbackDevice: os.Getenv("CAMERA_FALLBACK_DEVICE"),
			Format:         envString("CAMERA_FORMAT", "v4l2"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			URL:   os.Getenv("OLLAMA_URL"),
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
		Prices:   prices,
	}
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Return zero pricing if model not found
	return ModelPricing{}
}
