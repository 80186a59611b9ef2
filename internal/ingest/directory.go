// Package ingest finds documents to extract on the local filesystem.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

// Stats summarizes a directory scan.
type Stats struct {
	Scanned int // files seen
	Matched int // files with a supported extension
	Failed  int // entries that could not be read
}

// Scan walks root and returns the supported documents under it in lexical
// order. Unreadable entries are counted and skipped.
func Scan(root string, skipHidden bool) ([]string, Stats, error) {
	var stats Stats
	if strings.TrimSpace(root) == "" {
		return nil, stats, errors.New("root is required")
	}

	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !constants.IsAllowed(path) {
			return nil
		}
		stats.Matched++
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(found)
	return found, stats, nil
}

// IsHidden reports whether the base name starts with a dot.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
