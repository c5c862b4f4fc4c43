package preflight

import (
	"path/filepath"
	"testing"

	"refinery/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	return &cfg
}

func TestRunAllChecksPass(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "test-key")
	cfg := testConfig(t)

	results, ok := Run(cfg)
	if !ok {
		t.Fatalf("expected all checks to pass: %+v", results)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(results))
	}
	for _, result := range results {
		if !result.Passed {
			t.Errorf("check %q failed: %s", result.Name, result.Message)
		}
	}
}

func TestRunFlagsMissingAPIKey(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "")
	cfg := testConfig(t)

	results, ok := Run(cfg)
	if ok {
		t.Fatal("expected a failing check with no API key set")
	}
	for _, result := range results {
		if result.Name == "api key" {
			if result.Passed {
				t.Fatal("api key check passed without a key")
			}
			return
		}
	}
	t.Fatal("api key check missing from results")
}

func TestRunFlagsUnconfiguredDataDir(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "test-key")
	cfg := testConfig(t)
	cfg.Paths.DataDir = ""

	results, ok := Run(cfg)
	if ok {
		t.Fatal("expected failing checks with no data directory")
	}
	failed := 0
	for _, result := range results {
		if !result.Passed {
			failed++
		}
	}
	if failed < 2 {
		t.Fatalf("expected data directory and free space checks to fail, got %d failures", failed)
	}
}
