package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go-doc-verifier/internal/analyzer"

	"github.com/joho/godotenv"
)

// DefaultFaceCascadePath is where OpenCV packages usually install the frontal face model
const DefaultFaceCascadePath = "/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml"

type Config struct {
	Host                 string
	Port                 string
	RequestTimeout       time.Duration
	DocumentFetchTimeout time.Duration
	AnalysisTimeout      time.Duration
	MaxRequestBodySize   int64

	// Analyzer
	DisableOCR        bool
	OCRLanguage       string
	DebugOutputDir    string
	FaceCascadePath   string
	SealColorFilter   bool
	ParallelAnalyzers bool
	MaxWorkers        int
	RenderDPI         int

	// HTTP surface
	APIKey             string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64

	// Document sources
	AzureStorageAccount string
	AzureStorageKey     string
	LocalStorageDir     string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AnalyzerOptions is the only configuration the verification core sees
func (c *Config) AnalyzerOptions() analyzer.Options {
	opts := analyzer.DefaultOptions()
	if c.DisableOCR {
		opts = opts.WithoutOCR()
	}
	if c.DebugOutputDir != "" {
		opts = opts.WithDebugOutput(c.DebugOutputDir)
	}
	if !c.SealColorFilter {
		opts = opts.WithoutSealColorFilter()
	}
	if !c.ParallelAnalyzers {
		opts = opts.Sequential()
	}
	if c.MaxWorkers > 0 {
		opts.MaxWorkers = c.MaxWorkers
	}
	return opts
}

// LoadFromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real variables win.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:                 getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                 getEnvOrDefault("PORT", "8080"),
		RequestTimeout:       parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		DocumentFetchTimeout: parseDurationOrDefault("DOCUMENT_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:      parseDurationOrDefault("ANALYSIS_TIMEOUT", 45*time.Second),
		MaxRequestBodySize:   parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 25*1024*1024), // 25MB, two scans

		DisableOCR:        parseBoolOrDefault("DISABLE_OCR", parseBoolOrDefault("ML_DISABLE_OCR", false)),
		OCRLanguage:       getEnvOrDefault("OCR_LANGUAGE", "eng"),
		DebugOutputDir:    strings.TrimSpace(os.Getenv("DEBUG_OUTPUT_DIR")),
		FaceCascadePath:   getEnvOrDefault("FACE_CASCADE_PATH", DefaultFaceCascadePath),
		SealColorFilter:   parseBoolOrDefault("SEAL_COLOR_FILTER", true),
		ParallelAnalyzers: parseBoolOrDefault("PARALLEL_ANALYZERS", true),
		MaxWorkers:        int(parseIntOrDefault("MAX_WORKERS", 4)),
		RenderDPI:         int(parseIntOrDefault("RENDER_DPI", 150)),

		APIKey:             strings.TrimSpace(os.Getenv("API_KEY")),
		CORSAllowedOrigins: parseListOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerSecond: parseFloatOrDefault("RATE_LIMIT_PER_SECOND", 25),

		AzureStorageAccount: strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureStorageKey:     strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),
		LocalStorageDir:     getEnvOrDefault("LOCAL_STORAGE_DIR", "./data"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail late at request time
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.DocumentFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.DocumentFetchTimeout, c.AnalysisTimeout)
	}
	if c.RenderDPI < 36 || c.RenderDPI > 600 {
		return fmt.Errorf("RENDER_DPI must be within [36, 600] (got %d)", c.RenderDPI)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("MAX_WORKERS must be > 0 (got %d)", c.MaxWorkers)
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be > 0 (got %g)", c.RateLimitPerSecond)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if b, ok := parseBool(os.Getenv(key)); ok {
		return b
	}
	return defaultValue
}

// parseBool accepts strconv forms plus yes/no and on/off
func parseBool(value string) (bool, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "":
		return false, false
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	b, err := strconv.ParseBool(value)
	return b, err == nil
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
