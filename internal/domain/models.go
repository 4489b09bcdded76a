package domain

import "time"

// Asset represents one file produced by a build
type Asset struct {
	Name   string    `json:"name" yaml:"name"`
	Info   AssetInfo `json:"info" yaml:"info"`
	Source []byte    `json:"-" yaml:"-"`
}

// AssetInfo is the metadata bag attached to an asset by the host pipeline
type AssetInfo struct {
	SourceFilename       string `json:"sourceFilename,omitempty" yaml:"sourceFilename,omitempty"`
	UserRequest          string `json:"userRequest,omitempty" yaml:"userRequest,omitempty"`
	HotModuleReplacement bool   `json:"hotModuleReplacement,omitempty" yaml:"hotModuleReplacement,omitempty"`
	Development          bool   `json:"development,omitempty" yaml:"development,omitempty"`
	Immutable            bool   `json:"immutable,omitempty" yaml:"immutable,omitempty"`
	Integrity            string `json:"integrity,omitempty" yaml:"integrity,omitempty"`

	// Set on assets emitted by the manifest plugin itself
	AssetsManifest bool `json:"assetsManifest,omitempty" yaml:"-"`
	Generated      bool `json:"generated,omitempty" yaml:"-"`
}

// Entrypoint is a named logical bundle composed of one or more output files
type Entrypoint struct {
	Name     string   `json:"name" yaml:"name"`
	Files    []string `json:"files" yaml:"files"`
	Prefetch []string `json:"prefetch,omitempty" yaml:"prefetch,omitempty"`
	Preload  []string `json:"preload,omitempty" yaml:"preload,omitempty"`
}

// ModuleAsset records a file emitted by a loader on behalf of a module
type ModuleAsset struct {
	UserRequest string `json:"userRequest" yaml:"userRequest"`
	Filename    string `json:"filename" yaml:"filename"`
}

// CompilerOptions holds the host pipeline settings the manifest depends on
type CompilerOptions struct {
	Context                string `json:"context,omitempty" yaml:"context,omitempty"`
	OutputPath             string `json:"outputPath" yaml:"outputPath"`
	PublicPath             string `json:"publicPath,omitempty" yaml:"publicPath,omitempty"`
	HotUpdateChunkFilename string `json:"hotUpdateChunkFilename,omitempty" yaml:"hotUpdateChunkFilename,omitempty"`
}

// Stats summarizes a finished build
type Stats struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Assets    int           `json:"assets"`
	Emitted   []string      `json:"emitted,omitempty"`
	Errors    []string      `json:"errors,omitempty"`
}

// HasErrors reports whether the build recorded any error
func (s *Stats) HasErrors() bool {
	return s != nil && len(s.Errors) > 0
}

// DigestEntry is the cached form of a computed integrity digest
type DigestEntry struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mod_time"`
	Algorithms []string  `json:"algorithms"`
	Integrity  string    `json:"integrity"`
}
