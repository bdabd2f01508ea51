// Package config loads server configuration from an optional YAML file with
// environment-variable overrides, then validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Data     DataConfig     `yaml:"data"`
	Log      LogConfig      `yaml:"log"`
	Security SecurityConfig `yaml:"security"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Env  string `yaml:"env"` // dev, staging, production
	Port string `yaml:"port"`
}

// DataConfig holds persistence locations.
type DataConfig struct {
	MeetingsDir string `yaml:"meetings_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // console, json
	File       string `yaml:"file"`   // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// SecurityConfig holds API auth settings. An empty secret disables auth,
// which is only acceptable outside production.
type SecurityConfig struct {
	APISecret string `yaml:"api_secret"`
}

// PipelineConfig holds the transcription/diarization settings.
type PipelineConfig struct {
	TranscriberURL string `yaml:"transcriber_url"` // empty -> degraded noop mode
	MockCapture    bool   `yaml:"mock_capture"`    // scripted audio source for development

	DiarizeThreshold  float64 `yaml:"diarize_threshold"`
	DiarizeMinSegment float64 `yaml:"diarize_min_segment"`
	DiarizeMergeGap   float64 `yaml:"diarize_merge_gap"`
}

// Load reads the optional YAML file at path (skipped when empty or absent),
// applies environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Env, "FLUX_ENV")
	setString(&cfg.Server.Port, "FLUX_PORT")
	setString(&cfg.Data.MeetingsDir, "FLUX_MEETINGS_DIR")
	setString(&cfg.Log.Level, "FLUX_LOG_LEVEL")
	setString(&cfg.Log.Format, "FLUX_LOG_FORMAT")
	setString(&cfg.Log.File, "FLUX_LOG_FILE")
	setString(&cfg.Security.APISecret, "FLUX_API_SECRET")
	setString(&cfg.Pipeline.TranscriberURL, "FLUX_TRANSCRIBER_URL")
	if v := os.Getenv("FLUX_MOCK_CAPTURE"); v != "" {
		cfg.Pipeline.MockCapture = v == "1" || strings.EqualFold(v, "true")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Env == "" {
		cfg.Server.Env = "dev"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8787"
	}
	if cfg.Data.MeetingsDir == "" {
		cfg.Data.MeetingsDir = "./data/meetings"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate checks the configuration and aggregates all problems into one
// error.
func Validate(cfg *Config) error {
	var errs []string

	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port: %s (must be 1-65535)", cfg.Server.Port))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be: debug, info, warn, error)", cfg.Log.Level))
	}

	validLogFormats := map[string]bool{"console": true, "json": true}
	if !validLogFormats[cfg.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be: console, json)", cfg.Log.Format))
	}

	validEnvs := map[string]bool{"dev": true, "development": true, "staging": true, "production": true}
	if !validEnvs[cfg.Server.Env] {
		errs = append(errs, fmt.Sprintf("invalid env: %s (must be: dev, development, staging, production)", cfg.Server.Env))
	}

	if cfg.IsProduction() && cfg.Security.APISecret == "" {
		errs = append(errs, "api_secret is required in production")
	}
	if cfg.Security.APISecret != "" && len(cfg.Security.APISecret) < 32 {
		errs = append(errs, "api_secret must be at least 32 characters long")
	}

	if cfg.Pipeline.DiarizeThreshold < 0 || cfg.Pipeline.DiarizeThreshold > 1 {
		errs = append(errs, fmt.Sprintf("invalid diarize_threshold: %g (must be in [0,1])", cfg.Pipeline.DiarizeThreshold))
	}
	if cfg.Pipeline.DiarizeMinSegment < 0 {
		errs = append(errs, "diarize_min_segment must not be negative")
	}
	if cfg.Pipeline.DiarizeMergeGap < 0 {
		errs = append(errs, "diarize_merge_gap must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetServerAddr returns the listen address.
func (c *Config) GetServerAddr() string {
	return ":" + c.Server.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
