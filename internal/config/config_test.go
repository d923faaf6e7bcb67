package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"plate-match/internal/config"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, used, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if used != "" {
		t.Fatalf("expected no config file, got %q", used)
	}
	if cfg.Video.MaxFrames != 8 {
		t.Fatalf("unexpected max frames %d", cfg.Video.MaxFrames)
	}
	if cfg.External.Provider != config.ProviderALPR || cfg.External.Timeout != 10*time.Second {
		t.Fatalf("unexpected external defaults %+v", cfg.External)
	}
	if !cfg.OCR.Enabled || cfg.OCR.Language != "eng" {
		t.Fatalf("unexpected OCR defaults %+v", cfg.OCR)
	}
	if !cfg.Detect.PlaceholderFallback {
		t.Fatal("placeholder fallback should default on")
	}
	if cfg.Server.MaxUploadBytes() != 200<<20 {
		t.Fatalf("unexpected upload limit %d", cfg.Server.MaxUploadBytes())
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "platematch.yaml")
	data := strings.Join([]string{
		"video:",
		"  max_frames: 12",
		"external:",
		"  provider: None",
		"  timeout: 3s",
		"ocr:",
		"  language: deu",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PLATEMATCH_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("PLATEMATCH_LOG_LEVEL", "DEBUG")

	cfg, used, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if used != path {
		t.Fatalf("expected %q used, got %q", path, used)
	}
	if cfg.Video.MaxFrames != 12 || cfg.External.Timeout != 3*time.Second || cfg.OCR.Language != "deu" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.External.Provider != config.ProviderNone {
		t.Fatalf("provider not normalized: %q", cfg.External.Provider)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Log.Level != "debug" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Server, cfg.Log)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"max frames", func(c *config.Config) { c.Video.MaxFrames = 0 }},
		{"timeout", func(c *config.Config) { c.External.Timeout = 0 }},
		{"provider", func(c *config.Config) { c.External.Provider = "yolo" }},
		{"upload", func(c *config.Config) { c.Server.MaxUploadMB = 0 }},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }},
	}
	if err := config.Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
