// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"refinery/internal/config"
)

// NewConfig returns a config pointed at temp directories with settings sized
// for tests: small targets, no pacing, no jitter, single-digit timeouts.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")

	cfg.Pipeline.TargetTotal = 20
	cfg.Pipeline.BatchSize = 5
	cfg.Pipeline.StageCount = 2
	cfg.Pipeline.CallDelaySeconds = 0

	cfg.Retry.MaxAttempts = 2
	cfg.Retry.InitialDelaySeconds = 0
	cfg.Retry.Jitter = false

	cfg.LLM.TimeoutSeconds = 5

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}
