package manifest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

// Locker serializes access to the manifest file across processes
type Locker interface {
	WithLock(path string, fn func() error) error
	WithLockContext(ctx context.Context, path string, fn func(ctx context.Context) error) error
}

// FileWriter persists the serialized manifest
type FileWriter interface {
	Write(ctx context.Context, path string, data []byte) error
}

// PluginOptions contains the collaborators of a Plugin
type PluginOptions struct {
	Options Options
	Logger  *utils.Logger
	Locker  Locker
	Writer  FileWriter
	// Getenv reads the process environment; defaults to os.Getenv
	Getenv func(string) string
}

// Plugin drives a Manifest through the lifecycle of a host build
type Plugin struct {
	manifest *Manifest
	index    *Index
	locker   Locker
	writer   FileWriter
	getenv   func(string) string
	logger   *utils.Logger

	compiler domain.CompilerOptions
	applied  bool
	inFlight atomic.Int32
}

// NewPlugin validates the options and creates a plugin. Locker and Writer
// are required.
func NewPlugin(opts PluginOptions) (*Plugin, error) {
	if opts.Locker == nil {
		return nil, domain.NewValidationError("locker", "locker is required")
	}
	if opts.Writer == nil {
		return nil, domain.NewValidationError("writer", "writer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	m, err := New(opts.Options, logger)
	if err != nil {
		return nil, err
	}
	index, err := NewIndex(m.opts.FileExtRegex)
	if err != nil {
		return nil, err
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	return &Plugin{
		manifest: m,
		index:    index,
		locker:   opts.Locker,
		writer:   opts.Writer,
		getenv:   getenv,
		logger:   logger.WithComponent("manifest"),
	}, nil
}

// Manifest returns the manifest built by the plugin
func (p *Plugin) Manifest() *Manifest {
	return p.manifest
}

// Index returns the source-to-output index of the current run
func (p *Plugin) Index() *Index {
	return p.index
}

// Enabled reports whether the plugin was applied with the enabled option set
func (p *Plugin) Enabled() bool {
	return p.applied && p.manifest.opts.Enabled
}

// ready reports whether lifecycle work should run, failing before Apply
func (p *Plugin) ready() (bool, error) {
	if !p.applied {
		return false, ErrNotApplied
	}
	return p.manifest.opts.Enabled, nil
}

// Apply runs the options hooks and attaches the plugin to a compiler. A
// disabled plugin ignores every later lifecycle call.
func (p *Plugin) Apply(compiler domain.CompilerOptions) error {
	m := p.manifest

	opts := m.hooks.runOptions(m.opts)
	if err := opts.Validate(); err != nil {
		return err
	}
	m.opts = opts.normalized()

	index, err := NewIndex(m.opts.FileExtRegex)
	if err != nil {
		return err
	}
	p.index = index

	m.hooks.runAfterOptions(m.opts)
	p.applied = true

	if !m.opts.Enabled {
		p.logger.Debug().Msg("Manifest plugin disabled")
		return nil
	}

	p.setCompiler(compiler)
	m.hooks.runApply(m)
	return nil
}

func (p *Plugin) setCompiler(compiler domain.CompilerOptions) {
	p.compiler = compiler
	p.manifest.SetCompilerPublicPath(compiler.PublicPath)

	template := compiler.HotUpdateChunkFilename
	if template == "" {
		template = DefaultHotUpdateChunkFile
	}
	if err := p.index.SetHotUpdatePattern(template); err != nil {
		p.logger.Warn().Err(err).Msg("Hot update filtering disabled")
	}
}

// RunStart resets the index before a new build run
func (p *Plugin) RunStart() {
	if !p.Enabled() {
		return
	}
	p.index.Clear()
}

// CompilationStart registers a compilation as in flight
func (p *Plugin) CompilationStart(c domain.Compilation) {
	if !p.Enabled() {
		return
	}
	p.inFlight.Add(1)
	p.setCompiler(c.Options())
}

// RecordModuleAsset records a file emitted on behalf of a module request
func (p *Plugin) RecordModuleAsset(userRequest, filename string) {
	if !p.Enabled() || userRequest == "" || filename == "" {
		return
	}
	p.index.RecordByModule(p.moduleKey(userRequest, filename), filename)
}

func (p *Plugin) moduleKey(userRequest, filename string) string {
	userRequest = FixKey(userRequest)
	if p.manifest.opts.ContextRelativeKeys {
		if p.compiler.Context != "" {
			if rel, err := filepath.Rel(p.compiler.Context, filepath.FromSlash(userRequest)); err == nil {
				return filepath.ToSlash(rel)
			}
		}
		return userRequest
	}
	return path.Join(path.Dir(FixKey(filename)), path.Base(userRequest))
}

func (p *Plugin) sourceKey(sourceFilename, filename string) string {
	sourceFilename = FixKey(sourceFilename)
	if p.manifest.opts.ContextRelativeKeys {
		return sourceFilename
	}
	return path.Join(path.Dir(FixKey(filename)), path.Base(sourceFilename))
}

// ProcessAssetsAnalyse indexes assets that carry their source filename or
// originating module request
func (p *Plugin) ProcessAssetsAnalyse(c domain.Compilation) {
	if !p.Enabled() {
		return
	}
	for _, asset := range c.Assets() {
		if p.skipAsset(asset) {
			continue
		}
		switch {
		case asset.Info.SourceFilename != "":
			p.index.RecordByModule(p.sourceKey(asset.Info.SourceFilename, asset.Name), asset.Name)
		case asset.Info.UserRequest != "":
			p.index.RecordByModule(p.moduleKey(asset.Info.UserRequest, asset.Name), asset.Name)
		}
	}
}

// ProcessAssetsIntegrity computes integrity digests for assets that do not
// have one yet
func (p *Plugin) ProcessAssetsIntegrity(c domain.Compilation) error {
	if ok, err := p.ready(); !ok || !p.manifest.opts.Integrity {
		return err
	}
	for _, asset := range c.Assets() {
		if asset == nil || asset.Info.Integrity != "" || asset.Info.AssetsManifest {
			continue
		}
		digest, err := Digest(asset.Source, p.manifest.opts.IntegrityHashes)
		if err != nil {
			return fmt.Errorf("integrity %s: %w", asset.Name, err)
		}
		asset.Info.Integrity = digest
	}
	return nil
}

func (p *Plugin) skipAsset(asset *domain.Asset) bool {
	return asset == nil ||
		asset.Info.AssetsManifest ||
		asset.Info.HotModuleReplacement ||
		p.index.IsHotUpdate(asset.Name)
}

// AfterProcessAssets records every finalized asset, adds entrypoint groups
// and, once the last in-flight compilation gets here, merges with the file
// on disk and emits the manifest into the compilation
func (p *Plugin) AfterProcessAssets(c domain.Compilation) error {
	if ok, err := p.ready(); !ok {
		return err
	}
	m := p.manifest
	logger := p.logger.WithCompilation(c.Name())

	hot := make(map[string]bool)
	for _, asset := range c.Assets() {
		if asset != nil && (asset.Info.HotModuleReplacement || p.index.IsHotUpdate(asset.Name)) {
			hot[asset.Name] = true
		}
	}
	byChunk := c.AssetsByChunkName()
	chunks := make([]string, 0, len(byChunk))
	for chunk := range byChunk {
		chunks = append(chunks, chunk)
	}
	slices.Sort(chunks)
	for _, chunk := range chunks {
		files := byChunk[chunk]
		kept := make([]string, 0, len(files))
		for _, f := range files {
			if !hot[f] {
				kept = append(kept, f)
			}
		}
		p.index.RecordByChunk(chunk, kept)
	}

	recorded := 0
	for _, asset := range c.Assets() {
		if p.skipAsset(asset) {
			continue
		}
		keys := p.index.FindSourceKeysFor(asset.Name)
		if len(keys) == 0 {
			keys = []string{asset.Name}
		}
		m.withAsset(asset, func() {
			for _, key := range keys {
				m.Set(key, asset.Name)
			}
		})
		recorded++
	}

	if m.opts.Entrypoints {
		p.recordEntrypoints(c.Entrypoints())
	}
	logger.Debug().Int("assets", recorded).Int("entries", m.Len()).Msg("Recorded assets")

	if p.inFlight.Add(-1) > 0 {
		return nil
	}
	p.inFlight.Store(0)

	output := p.OutputPath()
	if m.opts.Merge != MergeOff {
		err := p.locker.WithLock(output, func() error {
			m.MaybeMerge(output)
			return nil
		})
		if err != nil {
			return err
		}
	}

	data, err := m.Serialize()
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}
	return c.EmitAsset(p.emitName(output), []byte(data), domain.AssetInfo{
		AssetsManifest: true,
		Generated:      true,
	})
}

func (p *Plugin) emitName(output string) string {
	if p.compiler.OutputPath != "" {
		if rel, err := filepath.Rel(p.compiler.OutputPath, output); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(output)
}

func (p *Plugin) recordEntrypoints(entrypoints []domain.Entrypoint) {
	m := p.manifest
	groups := NewStore()
	for _, ep := range entrypoints {
		group := map[string]any{"assets": p.groupByExtension(ep.Files)}
		if len(ep.Prefetch) > 0 {
			group["prefetch"] = p.groupByExtension(ep.Prefetch)
		}
		if len(ep.Preload) > 0 {
			group["preload"] = p.groupByExtension(ep.Preload)
		}
		groups.Set(ep.Name, group)
	}

	key := m.opts.EntrypointsKey
	if key == "" {
		groups.Range(func(name string, group any) bool {
			m.SetRaw(name, group)
			return true
		})
		return
	}

	merged := NewStore()
	switch existing := m.Get(key, nil).(type) {
	case *Store:
		merged = existing.Clone()
	case map[string]any:
		merged = StoreFromMap(existing)
	}
	groups.Range(func(name string, group any) bool {
		merged.Set(name, group)
		return true
	})
	m.SetRaw(key, merged)
}

func (p *Plugin) groupByExtension(files []string) map[string]any {
	grouped := make(map[string]any)
	for _, file := range files {
		if p.index.IsHotUpdate(file) {
			continue
		}
		ext := strings.TrimPrefix(p.index.Extension(file), ".")
		list, _ := grouped[ext].([]any)
		grouped[ext] = append(list, p.entrypointFile(file))
	}
	return grouped
}

func (p *Plugin) entrypointFile(file string) any {
	if p.manifest.opts.EntrypointsUseAssets {
		if keys := p.index.FindSourceKeysFor(file); len(keys) > 0 {
			return keys[0]
		}
		return file
	}
	return p.manifest.PublicPath(file)
}

// AfterEmit writes the manifest to the real filesystem when ShouldWriteToDisk
// allows it
func (p *Plugin) AfterEmit(ctx context.Context, c domain.Compilation) error {
	if ok, err := p.ready(); !ok || !p.ShouldWriteToDisk() {
		return err
	}
	p.logger.WithCompilation(c.Name()).Debug().Str("path", p.OutputPath()).Msg("Writing manifest to disk")
	return p.WriteTo(ctx, p.OutputPath())
}

// Done runs the done hooks
func (p *Plugin) Done(ctx context.Context, stats *domain.Stats) error {
	if ok, err := p.ready(); !ok {
		return err
	}
	return p.manifest.hooks.runDone(ctx, p.manifest, stats)
}

// WriteTo serializes the manifest and writes it to dest while holding the
// file lock
func (p *Plugin) WriteTo(ctx context.Context, dest string) error {
	return p.locker.WithLockContext(ctx, dest, func(ctx context.Context) error {
		data, err := p.manifest.Serialize()
		if err != nil {
			return fmt.Errorf("serialize manifest: %w", err)
		}
		return p.writer.Write(ctx, dest, []byte(data))
	})
}

// OutputPath returns the manifest path, resolved against the compiler output
// path when relative
func (p *Plugin) OutputPath() string {
	return utils.ResolvePath(p.compiler.OutputPath, p.manifest.opts.Output)
}

// ShouldWriteToDisk reports whether AfterEmit writes the manifest file
func (p *Plugin) ShouldWriteToDisk() bool {
	switch p.manifest.opts.WriteToDisk {
	case WriteAlways:
		return true
	case WriteNever:
		return false
	default:
		return p.inDevServer() && utils.IsOutside(p.compiler.OutputPath, p.OutputPath())
	}
}

func (p *Plugin) inDevServer() bool {
	switch strings.ToLower(strings.TrimSpace(p.getenv(DevServerEnv))) {
	case "", "0", "false", "no":
		return false
	default:
		return true
	}
}
