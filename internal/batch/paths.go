package batch

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Location addresses one storage directory: the origin (generated source
// batches) or the output of a refinement stage.
type Location int

// Origin is the stage-0 location holding freshly generated batches.
const Origin Location = 0

// Stage returns the location for the output of stage index (1-based).
func Stage(index int) Location {
	return Location(index)
}

func (l Location) String() string {
	if l == Origin {
		return "origin"
	}
	return fmt.Sprintf("stage %d", int(l))
}

const (
	originDirName = "propositions"
	stageDirName  = "responses"
)

func (s *Store) dir(loc Location) string {
	if loc == Origin {
		return filepath.Join(s.root, originDirName)
	}
	return filepath.Join(s.root, stageDirName, strconv.Itoa(int(loc)))
}

func (s *Store) file(loc Location, number int) string {
	return filepath.Join(s.dir(loc), batchFileName(number))
}

func batchFileName(number int) string {
	return fmt.Sprintf("batch_%03d.json", number)
}

// parseBatchNumber extracts the batch number from a batch file name, or
// returns false for files that do not follow the naming scheme.
func parseBatchNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "batch_") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "batch_"), ".json")
	number, err := strconv.Atoi(digits)
	if err != nil || number < 1 {
		return 0, false
	}
	return number, true
}
