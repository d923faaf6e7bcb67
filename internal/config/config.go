// Package config loads platematch settings from an optional file and
// PLATEMATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PLATEMATCH"

// Provider names for the external detector.
const (
	ProviderALPR        = "alpr"
	ProviderRekognition = "rekognition"
	ProviderNone        = "none"
)

type Config struct {
	Video    Video    `mapstructure:"video"`
	Detect   Detect   `mapstructure:"detect"`
	External External `mapstructure:"external"`
	OCR      OCR      `mapstructure:"ocr"`
	Server   Server   `mapstructure:"server"`
	Log      Log      `mapstructure:"log"`
}

type Video struct {
	MaxFrames int `mapstructure:"max_frames"`
}

type Detect struct {
	PlaceholderFallback bool `mapstructure:"placeholder_fallback"`
}

type External struct {
	Provider    string        `mapstructure:"provider"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ALPR        ALPR          `mapstructure:"alpr"`
	Rekognition Rekognition   `mapstructure:"rekognition"`
}

type ALPR struct {
	Command    string `mapstructure:"command"`
	Country    string `mapstructure:"country"`
	ConfigFile string `mapstructure:"config_file"`
}

type Rekognition struct {
	Region string `mapstructure:"region"`
}

type OCR struct {
	Enabled   bool   `mapstructure:"enabled"`
	Language  string `mapstructure:"language"`
	Whitelist string `mapstructure:"whitelist"`
}

type Server struct {
	Addr        string   `mapstructure:"addr"`
	MaxUploadMB int64    `mapstructure:"max_upload_mb"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MaxUploadBytes is the upload limit in bytes.
func (s Server) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Video:  Video{MaxFrames: 8},
		Detect: Detect{PlaceholderFallback: true},
		External: External{
			Provider:    ProviderALPR,
			Timeout:     10 * time.Second,
			ALPR:        ALPR{Command: "alpr"},
			Rekognition: Rekognition{Region: "us-east-1"},
		},
		OCR: OCR{
			Enabled:   true,
			Language:  "eng",
			Whitelist: "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
		},
		Server: Server{
			Addr:        ":8080",
			MaxUploadMB: 200,
			CORSOrigins: []string{"*"},
		},
		Log: Log{Level: "info", Format: "auto"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("video.max_frames", d.Video.MaxFrames)
	v.SetDefault("detect.placeholder_fallback", d.Detect.PlaceholderFallback)
	v.SetDefault("external.provider", d.External.Provider)
	v.SetDefault("external.timeout", d.External.Timeout)
	v.SetDefault("external.alpr.command", d.External.ALPR.Command)
	v.SetDefault("external.alpr.country", d.External.ALPR.Country)
	v.SetDefault("external.alpr.config_file", d.External.ALPR.ConfigFile)
	v.SetDefault("external.rekognition.region", d.External.Rekognition.Region)
	v.SetDefault("ocr.enabled", d.OCR.Enabled)
	v.SetDefault("ocr.language", d.OCR.Language)
	v.SetDefault("ocr.whitelist", d.OCR.Whitelist)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the configuration. With an empty path it looks for
// platematch.{yaml,toml,json} in the working directory and
// $HOME/.config/platematch; a missing file is not an error. It returns the
// file that was used, if any.
func Load(path string) (Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("platematch")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "platematch"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

func (c *Config) normalize() {
	c.External.Provider = strings.ToLower(strings.TrimSpace(c.External.Provider))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c Config) Validate() error {
	if c.Video.MaxFrames < 1 {
		return fmt.Errorf("video.max_frames must be at least 1, got %d", c.Video.MaxFrames)
	}
	if c.External.Timeout <= 0 {
		return fmt.Errorf("external.timeout must be positive, got %s", c.External.Timeout)
	}
	switch c.External.Provider {
	case ProviderALPR, ProviderRekognition, ProviderNone:
	default:
		return fmt.Errorf("external.provider must be one of alpr, rekognition, none; got %q", c.External.Provider)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be at least 1, got %d", c.Server.MaxUploadMB)
	}
	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log.format must be one of auto, console, json; got %q", c.Log.Format)
	}
	return nil
}
