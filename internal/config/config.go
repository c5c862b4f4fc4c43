package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Pipeline contains the run-shaping knobs: how much to produce and how fast.
type Pipeline struct {
	TargetTotal      int     `toml:"target_total"`
	BatchSize        int     `toml:"batch_size"`
	StageCount       int     `toml:"stage_count"`
	CallDelaySeconds float64 `toml:"call_delay_seconds"`
}

// Retry contains the backoff policy applied to every service call.
type Retry struct {
	MaxAttempts         int     `toml:"max_attempts"`
	InitialDelaySeconds float64 `toml:"initial_delay_seconds"`
	Multiplier          float64 `toml:"multiplier"`
	Jitter              bool    `toml:"jitter"`
}

// LLM contains connection settings for the refinement service. The API key is
// resolved from the environment so it never lands in the config file.
type LLM struct {
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the complete runtime configuration.
type Config struct {
	Pipeline Pipeline `toml:"pipeline"`
	Retry    Retry    `toml:"retry"`
	LLM      LLM      `toml:"llm"`
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
}

// APIKeyEnv is the environment variable holding the refinement service key.
const APIKeyEnv = "ANTHROPIC_API_KEY"

// DefaultConfigPath returns the standard config location for the current user.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "refinery", "config.toml"), nil
}

// Load reads the config at path, falling back to the default location when
// path is empty. A missing file yields defaults; fromFile reports whether a
// file was actually read.
func Load(path string) (*Config, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, false, err
		}
		resolved = defaultPath
	}
	resolved = ExpandPath(resolved)

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return &cfg, false, nil
		}
		return nil, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, false, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	cfg.normalize()
	return &cfg, true, nil
}

// WriteSample writes the annotated sample config to path, refusing to clobber
// an existing file.
func WriteSample(path string) error {
	path = ExpandPath(path)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// APIKey resolves the service API key from the environment.
func (c *Config) APIKey() string {
	return strings.TrimSpace(os.Getenv(APIKeyEnv))
}

// CallDelay returns the mandatory inter-call delay as a duration.
func (p Pipeline) CallDelay() time.Duration {
	return time.Duration(p.CallDelaySeconds * float64(time.Second))
}

// InitialDelay returns the first backoff delay as a duration.
func (r Retry) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelaySeconds * float64(time.Second))
}

// EnsureDirectories creates the data and log directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			if trimmed == "~" {
				return home
			}
			return filepath.Join(home, trimmed[2:])
		}
	}
	return trimmed
}

func (c *Config) normalize() {
	c.Paths.DataDir = ExpandPath(c.Paths.DataDir)
	c.Paths.LogDir = ExpandPath(c.Paths.LogDir)
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
