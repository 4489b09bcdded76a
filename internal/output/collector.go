package output

import (
	"path/filepath"
	"slices"
	"sync"
)

// Record describes one file handled by a Writer
type Record struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Written bool   `json:"written"`
}

// Collector tracks files handled by a Writer during a build
type Collector struct {
	mu      sync.RWMutex
	records []Record
	baseDir string
}

// NewCollector creates a collector reporting paths relative to baseDir
func NewCollector(baseDir string) *Collector {
	return &Collector{baseDir: baseDir}
}

// Add records a handled file
func (c *Collector) Add(path string, size int64, written bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	relPath := path
	if c.baseDir != "" {
		if rel, err := filepath.Rel(c.baseDir, path); err == nil {
			relPath = rel
		}
	}
	c.records = append(c.records, Record{
		Path:    filepath.ToSlash(relPath),
		Size:    size,
		Written: written,
	})
}

// Records returns a copy of the recorded files
func (c *Collector) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.records)
}

// Written returns the paths of files actually written, in order
func (c *Collector) Written() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	paths := make([]string, 0, len(c.records))
	for _, r := range c.records {
		if r.Written {
			paths = append(paths, r.Path)
		}
	}
	return paths
}

// Count returns the number of recorded files
func (c *Collector) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Reset drops every record
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}
