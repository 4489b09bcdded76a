package build

import (
	"fmt"

	"github.com/quantmind-br/assets-manifest/internal/domain"
)

// Snapshot describes one finished compilation: compiler settings, the
// assets it produced and how they relate to chunks, modules and entrypoints.
// Asset contents are read from Compiler.OutputPath at build time.
type Snapshot struct {
	Name        string                 `yaml:"name,omitempty" json:"name,omitempty"`
	Compiler    domain.CompilerOptions `yaml:"compiler" json:"compiler"`
	Assets      []domain.Asset         `yaml:"assets" json:"assets"`
	Chunks      map[string][]string    `yaml:"chunks,omitempty" json:"chunks,omitempty"`
	Modules     []domain.ModuleAsset   `yaml:"modules,omitempty" json:"modules,omitempty"`
	Entrypoints []domain.Entrypoint    `yaml:"entrypoints,omitempty" json:"entrypoints,omitempty"`
	// Children are compilations run alongside this one; the manifest is
	// emitted once all of them have been processed
	Children []Snapshot `yaml:"children,omitempty" json:"children,omitempty"`
}

// Validate checks structural consistency
func (s *Snapshot) Validate() error {
	if s.Compiler.OutputPath == "" {
		return fmt.Errorf("%w: compiler.outputPath is required", domain.ErrInvalidSnapshot)
	}

	seen := make(map[string]struct{}, len(s.Assets))
	for i, a := range s.Assets {
		if a.Name == "" {
			return fmt.Errorf("%w: asset %d has no name", domain.ErrInvalidSnapshot, i)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("%w: duplicate asset %q", domain.ErrInvalidSnapshot, a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	for i, ep := range s.Entrypoints {
		if ep.Name == "" {
			return fmt.Errorf("%w: entrypoint %d has no name", domain.ErrInvalidSnapshot, i)
		}
	}
	for i := range s.Children {
		child := &s.Children[i]
		if child.Compiler.OutputPath == "" {
			child.Compiler.OutputPath = s.Compiler.OutputPath
		}
		if err := child.Validate(); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
	}
	return nil
}

// Count returns the number of assets including children
func (s *Snapshot) Count() int {
	n := len(s.Assets)
	for i := range s.Children {
		n += s.Children[i].Count()
	}
	return n
}

// displayName names the compilation in logs
func (s *Snapshot) displayName() string {
	if s.Name != "" {
		return s.Name
	}
	return "main"
}
