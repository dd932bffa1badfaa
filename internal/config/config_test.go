package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("ServerAddress() = %q", cfg.ServerAddress())
	}
	if cfg.RenderDPI != 150 {
		t.Errorf("RenderDPI = %d, want 150", cfg.RenderDPI)
	}
	if !cfg.ParallelAnalyzers || !cfg.SealColorFilter || cfg.DisableOCR {
		t.Errorf("Unexpected analyzer defaults: %+v", cfg)
	}
	if cfg.FaceCascadePath != DefaultFaceCascadePath {
		t.Errorf("FaceCascadePath = %q", cfg.FaceCascadePath)
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"*"}) {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("ANALYSIS_TIMEOUT", "5s")
	t.Setenv("ML_DISABLE_OCR", "true")
	t.Setenv("RENDER_DPI", "300")
	t.Setenv("PARALLEL_ANALYZERS", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("API_KEY", " secret ")
	t.Setenv("DEBUG_OUTPUT_DIR", "/tmp/debug")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.ServerAddress() != "127.0.0.1:9090" {
		t.Errorf("ServerAddress() = %q", cfg.ServerAddress())
	}
	if cfg.AnalysisTimeout != 5*time.Second {
		t.Errorf("AnalysisTimeout = %v", cfg.AnalysisTimeout)
	}
	if !cfg.DisableOCR {
		t.Error("Expected ML_DISABLE_OCR alias to disable OCR")
	}
	if cfg.RenderDPI != 300 {
		t.Errorf("RenderDPI = %d", cfg.RenderDPI)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Errorf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}

	opts := cfg.AnalyzerOptions()
	if !opts.DisableOCR || opts.Parallel || opts.DebugOutputDir != "/tmp/debug" {
		t.Errorf("AnalyzerOptions() = %+v", opts)
	}
}

func TestLoadFromEnv_DisableOCRWinsOverAlias(t *testing.T) {
	t.Setenv("DISABLE_OCR", "false")
	t.Setenv("ML_DISABLE_OCR", "true")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DisableOCR {
		t.Error("Expected DISABLE_OCR to take precedence")
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		value  string
		want   bool
		wantOK bool
	}{
		{"1", true, true},
		{"true", true, true},
		{"yes", true, true},
		{" YES ", true, true},
		{"on", true, true},
		{"0", false, true},
		{"False", false, true},
		{"no", false, true},
		{"off", false, true},
		{"", false, false},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := parseBool(tt.value)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseBool(%q) = %v, %v; want %v, %v", tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLoadFromEnv_DisableOCRYes(t *testing.T) {
	t.Setenv("ML_DISABLE_OCR", "yes")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.DisableOCR || !cfg.AnalyzerOptions().DisableOCR {
		t.Error("Expected ML_DISABLE_OCR=yes to disable OCR")
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
		{"zero body size", "MAX_REQUEST_BODY_SIZE", "0"},
		{"dpi too low", "RENDER_DPI", "10"},
		{"dpi too high", "RENDER_DPI", "1200"},
		{"zero workers", "MAX_WORKERS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnv_IgnoresBadDurations(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("Expected default timeout, got %v", cfg.RequestTimeout)
	}
}
