// Package preflight verifies the environment before a run starts so failures
// surface up front instead of batches deep into the pipeline.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"refinery/internal/config"
)

// minFreeBytes is the free-space floor for the data directory. Batch files
// are tiny; this mostly catches a full disk before the run starts.
const minFreeBytes = 64 << 20

// Result is the outcome of one check.
type Result struct {
	Name    string
	Passed  bool
	Message string
}

// Run executes every check against cfg and returns the individual results
// plus whether all of them passed.
func Run(cfg *config.Config) ([]Result, bool) {
	checks := []func(*config.Config) Result{
		checkAPIKey,
		checkDataDir,
		checkLogDir,
		checkFreeSpace,
	}

	results := make([]Result, 0, len(checks))
	allPassed := true
	for _, check := range checks {
		result := check(cfg)
		if !result.Passed {
			allPassed = false
		}
		results = append(results, result)
	}
	return results, allPassed
}

func checkAPIKey(cfg *config.Config) Result {
	if cfg.APIKey() == "" {
		return Result{
			Name:    "api key",
			Message: fmt.Sprintf("%s is not set", config.APIKeyEnv),
		}
	}
	return Result{Name: "api key", Passed: true, Message: "present"}
}

func checkDataDir(cfg *config.Config) Result {
	return checkWritableDir("data directory", cfg.Paths.DataDir)
}

func checkLogDir(cfg *config.Config) Result {
	return checkWritableDir("log directory", cfg.Paths.LogDir)
}

func checkWritableDir(name, dir string) Result {
	if dir == "" {
		return Result{Name: name, Message: "not configured"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: name, Message: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}

	probe, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return Result{Name: name, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	probeName := probe.Name()
	probe.Close()
	os.Remove(probeName)

	return Result{Name: name, Passed: true, Message: dir}
}

func checkFreeSpace(cfg *config.Config) Result {
	dir := cfg.Paths.DataDir
	if dir == "" {
		return Result{Name: "free space", Message: "data directory not configured"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: "free space", Message: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(filepath.Clean(dir), &stat); err != nil {
		return Result{Name: "free space", Message: fmt.Sprintf("statfs %s: %v", dir, err)}
	}

	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Result{
			Name:    "free space",
			Message: fmt.Sprintf("%d MB free at %s, need at least %d MB", free>>20, dir, minFreeBytes>>20),
		}
	}
	return Result{Name: "free space", Passed: true, Message: fmt.Sprintf("%d MB free", free>>20)}
}
