package app

import (
	"os"
	"path/filepath"
	"strings"
)

// SourceType represents the kind of build input
type SourceType string

const (
	// SourceSnapshot is a build snapshot file (.json, .yaml, .yml)
	SourceSnapshot SourceType = "snapshot"
	// SourceDirectory is a compiler output directory to scan
	SourceDirectory SourceType = "directory"
	SourceUnknown   SourceType = "unknown"
)

// snapshotExts are the extensions the snapshot loader accepts
var snapshotExts = []string{".json", ".yaml", ".yml"}

// DetectSource determines how a build input should be read. Existing
// directories are scanned; anything with a snapshot extension is loaded as
// a snapshot, whether or not it exists yet, so the loader reports a
// missing file.
func DetectSource(path string) SourceType {
	if path == "" {
		return SourceUnknown
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return SourceDirectory
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range snapshotExts {
		if ext == e {
			return SourceSnapshot
		}
	}

	return SourceUnknown
}

// IsValidSource reports whether t is a readable source type
func IsValidSource(t SourceType) bool {
	return t == SourceSnapshot || t == SourceDirectory
}
