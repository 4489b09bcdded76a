package build

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/output"
)

// Compilation is a domain.Compilation backed by a snapshot. Assets emitted
// during processing are kept in memory until the host writes them out.
type Compilation struct {
	name        string
	options     domain.CompilerOptions
	chunks      map[string][]string
	entrypoints []domain.Entrypoint

	mu      sync.Mutex
	assets  []*domain.Asset
	emitted []string
}

var _ domain.Compilation = (*Compilation)(nil)

// NewCompilation builds a compilation from snap. Asset sources are empty
// until loaded.
func NewCompilation(snap *Snapshot) *Compilation {
	assets := make([]*domain.Asset, len(snap.Assets))
	for i := range snap.Assets {
		a := snap.Assets[i]
		assets[i] = &a
	}

	chunks := make(map[string][]string, len(snap.Chunks))
	for name, files := range snap.Chunks {
		chunks[name] = slices.Clone(files)
	}

	return &Compilation{
		name:        snap.displayName(),
		options:     snap.Compiler,
		chunks:      chunks,
		entrypoints: slices.Clone(snap.Entrypoints),
		assets:      assets,
	}
}

func (c *Compilation) Name() string                    { return c.name }
func (c *Compilation) Options() domain.CompilerOptions { return c.options }
func (c *Compilation) Entrypoints() []domain.Entrypoint { return c.entrypoints }

// AssetsByChunkName returns a copy of the chunk to files mapping
func (c *Compilation) AssetsByChunkName() map[string][]string {
	return maps.Clone(c.chunks)
}

// Assets returns the assets in snapshot order followed by emitted ones
func (c *Compilation) Assets() []*domain.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.assets)
}

// EmitAsset adds or replaces a generated asset
func (c *Compilation) EmitAsset(name string, content []byte, info domain.AssetInfo) error {
	if name == "" {
		return fmt.Errorf("emit: empty asset name")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	asset := &domain.Asset{Name: name, Info: info, Source: slices.Clone(content)}
	for i, a := range c.assets {
		if a.Name == name {
			c.assets[i] = asset
			if !slices.Contains(c.emitted, name) {
				c.emitted = append(c.emitted, name)
			}
			return nil
		}
	}
	c.assets = append(c.assets, asset)
	c.emitted = append(c.emitted, name)
	return nil
}

// EmittedFiles returns the emitted assets as files under the output path
func (c *Compilation) EmittedFiles() []output.File {
	c.mu.Lock()
	defer c.mu.Unlock()

	files := make([]output.File, 0, len(c.emitted))
	for _, name := range c.emitted {
		for _, a := range c.assets {
			if a.Name == name {
				files = append(files, output.File{
					Path: filepath.Join(c.options.OutputPath, filepath.FromSlash(name)),
					Data: a.Source,
				})
				break
			}
		}
	}
	return files
}

// remove drops assets by name
func (c *Compilation) remove(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets = slices.DeleteFunc(c.assets, func(a *domain.Asset) bool {
		return slices.Contains(names, a.Name)
	})
}
