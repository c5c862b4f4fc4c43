package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, fromFile, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fromFile {
		t.Fatal("expected fromFile=false for missing config")
	}
	if cfg.Pipeline.TargetTotal != defaultTargetTotal {
		t.Fatalf("expected default target, got %d", cfg.Pipeline.TargetTotal)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[pipeline]\ntarget_total = 40\nbatch_size = 4\n\n[llm]\nbase_url = \"https://example.test/\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, fromFile, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !fromFile {
		t.Fatal("expected fromFile=true")
	}
	if cfg.Pipeline.TargetTotal != 40 || cfg.Pipeline.BatchSize != 4 {
		t.Fatalf("overrides not applied: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.StageCount != defaultStageCount {
		t.Fatalf("unset fields should keep defaults, got %d", cfg.Pipeline.StageCount)
	}
	if cfg.LLM.BaseURL != "https://example.test" {
		t.Fatalf("base url not normalized: %q", cfg.LLM.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero target", func(c *Config) { c.Pipeline.TargetTotal = 0 }},
		{"oversized batch", func(c *Config) { c.Pipeline.BatchSize = 51 }},
		{"zero stages", func(c *Config) { c.Pipeline.StageCount = 0 }},
		{"excessive delay", func(c *Config) { c.Pipeline.CallDelaySeconds = 11 }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"sub-unit multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }},
		{"missing model", func(c *Config) { c.LLM.Model = "" }},
		{"missing data dir", func(c *Config) { c.Paths.DataDir = "" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "yaml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.CallDelaySeconds = 1.5
	if got := cfg.Pipeline.CallDelay(); got != 1500*time.Millisecond {
		t.Fatalf("CallDelay = %v", got)
	}
	cfg.Retry.InitialDelaySeconds = 0.25
	if got := cfg.Retry.InitialDelay(); got != 250*time.Millisecond {
		t.Fatalf("InitialDelay = %v", got)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected overwrite refusal")
	}

	cfg, fromFile, err := Load(path)
	if err != nil || !fromFile {
		t.Fatalf("Load sample: fromFile=%v err=%v", fromFile, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}
