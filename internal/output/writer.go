package output

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

// Writer handles writing build outputs and manifests to the filesystem
type Writer struct {
	baseDir   string
	force     bool
	dryRun    bool
	collector *Collector
}

// WriterOptions contains options for the writer
type WriterOptions struct {
	// BaseDir resolves relative paths; defaults to "./dist"
	BaseDir string
	// Force rewrites files whose content is unchanged
	Force     bool
	DryRun    bool
	Collector *Collector
}

// NewWriter creates a new output writer
func NewWriter(opts WriterOptions) *Writer {
	if opts.BaseDir == "" {
		opts.BaseDir = "./dist"
	}

	return &Writer{
		baseDir:   opts.BaseDir,
		force:     opts.Force,
		dryRun:    opts.DryRun,
		collector: opts.Collector,
	}
}

// Write saves data at path, creating parent directories as needed. The file
// is replaced atomically.
func (w *Writer) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path = w.GetPath(path)

	// Unchanged content, skip
	if !w.force {
		if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
			w.collect(path, data, false)
			return nil
		}
	}

	// Dry run - just record
	if w.dryRun {
		w.collect(path, data, false)
		return nil
	}

	if err := utils.EnsureDir(path); err != nil {
		return domain.NewWriteError(path, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return domain.NewWriteError(path, err)
	}

	w.collect(path, data, true)
	return nil
}

func (w *Writer) collect(path string, data []byte, written bool) {
	if w.collector != nil {
		w.collector.Add(path, int64(len(data)), written)
	}
}

// writeAtomic writes to a temporary sibling and renames it over path
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// File is a named payload for WriteMultiple
type File struct {
	Path string
	Data []byte
}

// WriteMultiple writes several files, stopping at the first error
func (w *Writer) WriteMultiple(ctx context.Context, files []File) error {
	for _, f := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := w.Write(ctx, f.Path, f.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetPath resolves name against the base directory unless it is absolute
func (w *Writer) GetPath(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(w.baseDir, filepath.FromSlash(name))
}
