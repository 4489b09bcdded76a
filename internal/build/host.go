package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/quantmind-br/assets-manifest/internal/cache"
	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/manifest"
	"github.com/quantmind-br/assets-manifest/internal/output"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

// DefaultWorkers bounds concurrent asset reads
const DefaultWorkers = 8

// FileWriter persists emitted assets
type FileWriter interface {
	WriteMultiple(ctx context.Context, files []output.File) error
}

// HostOptions configures a Host
type HostOptions struct {
	Plugin *manifest.Plugin
	Writer FileWriter
	// Digests, when set, short-circuits hashing of unchanged files
	Digests *cache.Digests
	Logger  *utils.Logger
	Workers int
	// Progress renders a bar while asset files are loaded
	Progress       bool
	ProgressOutput io.Writer
}

// Host drives the manifest plugin through the lifecycle of a build
// described by a snapshot, reading asset files from disk and writing the
// assets the plugin emits
type Host struct {
	plugin   *manifest.Plugin
	writer   FileWriter
	digests  *cache.Digests
	logger   *utils.Logger
	workers  int
	progress bool
	progOut  io.Writer
}

// NewHost creates a host around an applied plugin
func NewHost(opts HostOptions) (*Host, error) {
	if opts.Plugin == nil {
		return nil, domain.NewValidationError("plugin", "is required")
	}
	if opts.Writer == nil {
		return nil, domain.NewValidationError("writer", "is required")
	}
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &Host{
		plugin:   opts.Plugin,
		writer:   opts.Writer,
		digests:  opts.Digests,
		logger:   logger.WithComponent("build"),
		workers:  opts.Workers,
		progress: opts.Progress,
		progOut:  opts.ProgressOutput,
	}, nil
}

// unit pairs a snapshot with its compilation
type unit struct {
	snap *Snapshot
	comp *Compilation
	// files holds stat results for assets whose content was hashed here
	files map[*domain.Asset]fs.FileInfo
}

// Run executes one build run. Child compilations are processed before their
// parent so the parent, being last, emits the manifest.
func (h *Host) Run(ctx context.Context, snap *Snapshot) (*domain.Stats, error) {
	stats := &domain.Stats{StartTime: time.Now()}

	var units []*unit
	flatten(snap, &units)

	h.plugin.RunStart()
	for _, u := range units {
		u.comp = NewCompilation(u.snap)
		u.files = make(map[*domain.Asset]fs.FileInfo)
		h.plugin.CompilationStart(u.comp)
	}

	var statsMu sync.Mutex
	addError := func(err error) {
		statsMu.Lock()
		defer statsMu.Unlock()
		stats.Errors = append(stats.Errors, err.Error())
	}

	for _, u := range units {
		if err := h.process(ctx, u, addError); err != nil {
			return stats, err
		}
		stats.Assets += len(u.snap.Assets)
	}

	for _, u := range units {
		files := u.comp.EmittedFiles()
		if err := h.writer.WriteMultiple(ctx, files); err != nil {
			return stats, err
		}
		for _, f := range files {
			stats.Emitted = append(stats.Emitted, f.Path)
		}
		if err := h.plugin.AfterEmit(ctx, u.comp); err != nil {
			return stats, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	h.logger.Info().
		Int("assets", stats.Assets).
		Int("emitted", len(stats.Emitted)).
		Int("errors", len(stats.Errors)).
		Dur("duration", stats.Duration).
		Msg("Build finished")

	if err := h.plugin.Done(ctx, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func flatten(snap *Snapshot, units *[]*unit) {
	for i := range snap.Children {
		flatten(&snap.Children[i], units)
	}
	*units = append(*units, &unit{snap: snap})
}

func (h *Host) process(ctx context.Context, u *unit, addError func(error)) error {
	logger := h.logger.WithCompilation(u.comp.Name())

	for _, mod := range u.snap.Modules {
		h.plugin.RecordModuleAsset(mod.UserRequest, mod.Filename)
	}

	if err := h.loadSources(ctx, u, addError); err != nil {
		return err
	}

	h.plugin.ProcessAssetsAnalyse(u.comp)
	if err := h.plugin.ProcessAssetsIntegrity(u.comp); err != nil {
		return err
	}
	h.storeDigests(ctx, u)

	if err := h.plugin.AfterProcessAssets(u.comp); err != nil {
		return err
	}
	logger.Debug().Int("assets", len(u.snap.Assets)).Msg("Compilation processed")
	return nil
}

// loadSources checks every asset exists under the output path and, when
// integrity is enabled, loads content that has no cached digest. Missing
// files are reported and dropped from the compilation.
func (h *Host) loadSources(ctx context.Context, u *unit, addError func(error)) error {
	opts := h.plugin.Manifest().Options()
	hashing := opts.Integrity && h.plugin.Enabled()
	assets := u.comp.Assets()

	var bar *progressbar.ProgressBar
	if h.progress && len(assets) > 0 {
		bar = utils.NewProgressBarTo(h.progOut, len(assets), utils.DescLoading)
		defer bar.Finish()
	}

	var (
		mu      sync.Mutex
		missing []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)

	for _, asset := range assets {
		g.Go(func() error {
			if bar != nil {
				defer bar.Add(1)
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			path := filepath.Join(u.comp.Options().OutputPath, filepath.FromSlash(asset.Name))
			info, err := os.Stat(path)
			if err != nil {
				addError(fmt.Errorf("asset %s: %w", asset.Name, err))
				mu.Lock()
				missing = append(missing, asset.Name)
				mu.Unlock()
				return nil
			}
			if !hashing || asset.Info.Integrity != "" {
				return nil
			}

			if h.digests != nil {
				digest, err := h.digests.Lookup(gctx, path, info.Size(), info.ModTime(), opts.IntegrityHashes)
				if err == nil {
					asset.Info.Integrity = digest
					return nil
				}
				if !cache.IsMiss(err) {
					h.logger.Debug().Err(err).Str("asset", asset.Name).Msg("Digest cache lookup failed")
				}
			}

			data, err := os.ReadFile(path)
			if err != nil {
				addError(fmt.Errorf("asset %s: %w", asset.Name, err))
				mu.Lock()
				missing = append(missing, asset.Name)
				mu.Unlock()
				return nil
			}
			asset.Source = data

			mu.Lock()
			u.files[asset] = info
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		u.comp.remove(missing...)
		h.logger.WithCompilation(u.comp.Name()).Warn().Strs("assets", missing).Msg("Assets missing from output path")
	}
	return nil
}

// storeDigests caches digests computed for freshly read files
func (h *Host) storeDigests(ctx context.Context, u *unit) {
	if h.digests == nil {
		return
	}
	opts := h.plugin.Manifest().Options()
	var errs []error
	for asset, info := range u.files {
		if asset.Info.Integrity == "" {
			continue
		}
		err := h.digests.Store(ctx, domain.DigestEntry{
			Path:       filepath.Join(u.comp.Options().OutputPath, filepath.FromSlash(asset.Name)),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
			Algorithms: opts.IntegrityHashes,
			Integrity:  asset.Info.Integrity,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		h.logger.Debug().Err(err).Msg("Digest cache update failed")
	}
}
