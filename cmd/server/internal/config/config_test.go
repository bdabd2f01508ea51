package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Env != "dev" {
		t.Errorf("Env = %q, want dev", cfg.Server.Env)
	}
	if cfg.Server.Port != "8787" {
		t.Errorf("Port = %q, want 8787", cfg.Server.Port)
	}
	if cfg.Data.MeetingsDir != "./data/meetings" {
		t.Errorf("MeetingsDir = %q", cfg.Data.MeetingsDir)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("log defaults = %q/%q", cfg.Log.Level, cfg.Log.Format)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  env: staging
  port: "9090"
data:
  meetings_dir: /var/lib/flux/meetings
log:
  level: debug
pipeline:
  transcriber_url: http://127.0.0.1:7848
  mock_capture: true
  diarize_threshold: 0.6
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Env != "staging" || cfg.Server.Port != "9090" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Data.MeetingsDir != "/var/lib/flux/meetings" {
		t.Errorf("MeetingsDir = %q", cfg.Data.MeetingsDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
	if !cfg.Pipeline.MockCapture || cfg.Pipeline.TranscriberURL != "http://127.0.0.1:7848" {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.DiarizeThreshold != 0.6 {
		t.Errorf("DiarizeThreshold = %g", cfg.Pipeline.DiarizeThreshold)
	}
	// Unset fields still get defaults.
	if cfg.Log.Format != "console" {
		t.Errorf("Format = %q, want console", cfg.Log.Format)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8787" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded on malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLUX_PORT", "7000")
	t.Setenv("FLUX_LOG_LEVEL", "warn")
	t.Setenv("FLUX_MOCK_CAPTURE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("Port = %q, want env override", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q, want env override", cfg.Log.Level)
	}
	if !cfg.Pipeline.MockCapture {
		t.Error("MockCapture not set from env")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, _ := Load("")
		return cfg
	}

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = "hello"
		if err := Validate(cfg); err == nil {
			t.Error("invalid port accepted")
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := base()
		cfg.Log.Level = "verbose"
		if err := Validate(cfg); err == nil {
			t.Error("invalid log level accepted")
		}
	})

	t.Run("production requires api secret", func(t *testing.T) {
		cfg := base()
		cfg.Server.Env = "production"
		if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "api_secret") {
			t.Errorf("err = %v", err)
		}
		cfg.Security.APISecret = strings.Repeat("s", 32)
		if err := Validate(cfg); err != nil {
			t.Errorf("valid production config rejected: %v", err)
		}
	})

	t.Run("short api secret", func(t *testing.T) {
		cfg := base()
		cfg.Security.APISecret = "short"
		if err := Validate(cfg); err == nil {
			t.Error("short api_secret accepted")
		}
	})

	t.Run("diarize tunables out of range", func(t *testing.T) {
		cfg := base()
		cfg.Pipeline.DiarizeThreshold = 1.5
		cfg.Pipeline.DiarizeMinSegment = -1
		err := Validate(cfg)
		if err == nil {
			t.Fatal("out-of-range tunables accepted")
		}
		if !strings.Contains(err.Error(), "diarize_threshold") || !strings.Contains(err.Error(), "diarize_min_segment") {
			t.Errorf("errors not aggregated: %v", err)
		}
	})
}

func TestGetServerAddr(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: "8080"}}
	if got := cfg.GetServerAddr(); got != ":8080" {
		t.Errorf("GetServerAddr = %q", got)
	}
}
