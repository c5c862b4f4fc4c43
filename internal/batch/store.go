package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"refinery/internal/services"
)

// Store reads and writes batch files under a single data root. Writes go to a
// temporary name followed by a rename, so a location is only ever observed in
// its prior state or its fully-updated state.
type Store struct {
	root   string
	stages int
}

// Open prepares the storage root: the origin directory plus one directory per
// stage, 1..stages.
func Open(root string, stages int) (*Store, error) {
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", "data root is required", nil)
	}
	if stages < 1 {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", "at least one stage is required", nil)
	}

	store := &Store{root: root, stages: stages}
	dirs := []string{store.dir(Origin)}
	for stage := 1; stage <= stages; stage++ {
		dirs = append(dirs, store.dir(Stage(stage)))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrStorage, "store", "open", fmt.Sprintf("create %s", dir), err)
		}
	}
	return store, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

// Stages returns the configured stage count.
func (s *Store) Stages() int { return s.stages }

// Final returns the location whose contents define completed items.
func (s *Store) Final() Location { return Stage(s.stages) }

// Write persists items as the batch file for number at loc. The location ends
// up either unchanged or holding the complete new batch.
func (s *Store) Write(loc Location, number int, items []Item) error {
	if number < 1 {
		return services.Wrap(services.ErrStorage, "store", "write", fmt.Sprintf("invalid batch number %d", number), nil)
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "write", "encode batch", err)
	}
	data = append(data, '\n')

	dir := s.dir(loc)
	tmp, err := os.CreateTemp(dir, batchFileName(number)+".tmp-*")
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "write", "create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return services.Wrap(services.ErrStorage, "store", "write", "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return services.Wrap(services.ErrStorage, "store", "write", "sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrStorage, "store", "write", "close temp file", err)
	}
	if err := os.Rename(tmpName, s.file(loc, number)); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrStorage, "store", "write", "rename into place", err)
	}
	return nil
}

// Read loads the batch file for number at loc. Absent batches yield
// services.ErrNotFound.
func (s *Store) Read(loc Location, number int) ([]Item, error) {
	data, err := os.ReadFile(s.file(loc, number))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "store", "read", fmt.Sprintf("batch %d at %s", number, loc), nil)
		}
		return nil, services.Wrap(services.ErrStorage, "store", "read", fmt.Sprintf("batch %d at %s", number, loc), err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "read", fmt.Sprintf("decode batch %d at %s", number, loc), err)
	}
	return items, nil
}

// List returns the batch numbers present at loc in ascending order.
func (s *Store) List(loc Location) ([]int, error) {
	entries, err := os.ReadDir(s.dir(loc))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrStorage, "store", "list", loc.String(), err)
	}

	var numbers []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if number, ok := parseBatchNumber(entry.Name()); ok {
			numbers = append(numbers, number)
		}
	}
	sort.Ints(numbers)
	return numbers, nil
}

// Exists reports whether the batch file for number is present at loc.
func (s *Store) Exists(loc Location, number int) (bool, error) {
	_, err := os.Stat(s.file(loc, number))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, services.Wrap(services.ErrStorage, "store", "stat", fmt.Sprintf("batch %d at %s", number, loc), err)
}

// ItemCount sums the cardinalities of every batch present at loc.
func (s *Store) ItemCount(loc Location) (int, error) {
	numbers, err := s.List(loc)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, number := range numbers {
		items, err := s.Read(loc, number)
		if err != nil {
			return 0, err
		}
		total += len(items)
	}
	return total, nil
}

// NextNumber returns the lowest batch number that does not collide with any
// batch already persisted at the origin (highest existing number + 1).
func (s *Store) NextNumber() (int, error) {
	numbers, err := s.List(Origin)
	if err != nil {
		return 0, err
	}
	if len(numbers) == 0 {
		return 1, nil
	}
	return numbers[len(numbers)-1] + 1, nil
}
