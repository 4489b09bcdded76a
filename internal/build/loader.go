package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantmind-br/assets-manifest/internal/domain"
)

// Loader loads and validates build snapshot files
type Loader struct{}

// NewLoader creates a new snapshot loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses a snapshot file from the given path. A relative
// compiler output path is resolved against the snapshot's directory.
func (l *Loader) Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, path)
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	snap, err := l.LoadFromBytes(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	resolveOutputPaths(snap, filepath.Dir(path))
	return snap, nil
}

func resolveOutputPaths(snap *Snapshot, base string) {
	if !filepath.IsAbs(snap.Compiler.OutputPath) {
		snap.Compiler.OutputPath = filepath.Join(base, snap.Compiler.OutputPath)
	}
	for i := range snap.Children {
		resolveOutputPaths(&snap.Children[i], base)
	}
}

// LoadFromBytes parses a snapshot from raw bytes
func (l *Loader) LoadFromBytes(data []byte, ext string) (*Snapshot, error) {
	ext = strings.ToLower(ext)

	var snap Snapshot
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSnapshot, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSnapshot, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedExt, ext)
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}

	return &snap, nil
}

// Save writes snap to path as YAML or JSON depending on the extension
func (l *Loader) Save(path string, snap *Snapshot) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(snap)
	case ".json":
		data, err = json.MarshalIndent(snap, "", "  ")
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedExt, filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return domain.NewWriteError(path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return domain.NewWriteError(path, err)
	}
	return nil
}
