// Package report persists and renders searchlight score maps and
// permutation test results.
package report

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Noofbiz/brainDecode/searchlight"
)

// formatVersion is incremented when the on-disk score map format changes.
const formatVersion = 1

type scoreMapFile struct {
	Version   int
	CreatedAt int64 // unix timestamp when the file was written
	Map       searchlight.ScoreMap
}

// SaveScoreMap writes sm to path using encoding/gob. It performs an atomic
// write (create temp file then rename).
func SaveScoreMap(path string, sm *searchlight.ScoreMap) error {
	if path == "" {
		return fmt.Errorf("empty score map path")
	}
	if sm == nil {
		return fmt.Errorf("score map is nil")
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := ensureDir(dir); err != nil {
		return err
	}

	// create a temp file in the same directory for atomicity
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp score map file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	f := scoreMapFile{Version: formatVersion, CreatedAt: time.Now().Unix(), Map: *sm}
	if err := gob.NewEncoder(tmpFile).Encode(&f); err != nil {
		return fmt.Errorf("encode score map to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp score map file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp score map file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp score map to target: %w", err)
	}
	return nil
}

// LoadScoreMap reads a score map written by SaveScoreMap and checks its format
// version and internal consistency.
func LoadScoreMap(path string) (*searchlight.ScoreMap, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open score map %s: %w", path, err)
	}
	defer fh.Close()

	var f scoreMapFile
	if err := gob.NewDecoder(fh).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode score map %s: %w", path, err)
	}
	if f.Version != formatVersion {
		return nil, fmt.Errorf("score map version mismatch: file=%d expected=%d", f.Version, formatVersion)
	}
	sm := &f.Map
	size := sm.Shape[0] * sm.Shape[1] * sm.Shape[2]
	if len(sm.Counts) != size || len(sm.Scores) != sm.Channels {
		return nil, fmt.Errorf("score map %s is inconsistent: %d counts, %d channels for shape %v", path, len(sm.Counts), len(sm.Scores), sm.Shape)
	}
	for ch, s := range sm.Scores {
		if len(s) != size {
			return nil, fmt.Errorf("score map %s: channel %d has %d voxels, expected %d", path, ch, len(s), size)
		}
	}
	return sm, nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
