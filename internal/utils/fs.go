package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir ensures the parent directory of path exists, creating it if necessary
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ResolvePath returns target unchanged when absolute, otherwise joined onto base
func ResolvePath(base, target string) string {
	target = ExpandPath(target)
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	if base == "" {
		if abs, err := filepath.Abs(target); err == nil {
			return abs
		}
		return filepath.Clean(target)
	}
	return filepath.Join(base, target)
}

// IsOutside reports whether target lies outside the dir directory
func IsOutside(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
