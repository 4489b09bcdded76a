package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/quantmind-br/assets-manifest/internal/build"
	"github.com/quantmind-br/assets-manifest/internal/cache"
	"github.com/quantmind-br/assets-manifest/internal/config"
	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/lock"
	"github.com/quantmind-br/assets-manifest/internal/manifest"
	"github.com/quantmind-br/assets-manifest/internal/output"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

// Orchestrator wires configuration, the manifest plugin and the build host
// together and runs builds from snapshots or output directories
type Orchestrator struct {
	config    *config.Config
	logger    *utils.Logger
	loader    *build.Loader
	plugin    *manifest.Plugin
	host      *build.Host
	cache     *cache.BadgerCache
	collector *output.Collector
	scan      build.ScanOptions
	applied   bool
}

// OrchestratorOptions contains options for creating an orchestrator
type OrchestratorOptions struct {
	Config  *config.Config
	Verbose bool
	DryRun  bool
	Force   bool
	// Logger overrides the logger built from Config.Logging
	Logger *utils.Logger
	// Getenv reads the environment; defaults to os.Getenv
	Getenv func(string) string
	// Configure may register hooks or function-valued options before the
	// manifest is created
	Configure func(*manifest.Options)
	// Scan configures directory sources
	Scan           build.ScanOptions
	ProgressOutput io.Writer
}

// NewOrchestrator creates a new orchestrator with the given configuration
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := opts.Logger
	if logger == nil {
		logLevel := cfg.Logging.Level
		if opts.Verbose {
			logLevel = "debug"
		}
		logger = utils.NewLogger(utils.LoggerOptions{
			Level:   logLevel,
			Format:  cfg.Logging.Format,
			Verbose: opts.Verbose,
		})
	}

	manifestOpts, err := cfg.Manifest.ToOptions()
	if err != nil {
		return nil, err
	}
	if opts.Configure != nil {
		opts.Configure(&manifestOpts)
	}

	collector := output.NewCollector("")
	writer := output.NewWriter(output.WriterOptions{
		BaseDir:   ".",
		Force:     opts.Force || cfg.Build.Force,
		DryRun:    opts.DryRun || cfg.Build.DryRun,
		Collector: collector,
	})

	gate := lock.New(lock.Options{
		Timeout:          cfg.Lock.Timeout,
		RetryInterval:    cfg.Lock.RetryInterval,
		MaxRetryInterval: cfg.Lock.MaxRetryInterval,
		Logger:           logger,
	})

	plugin, err := manifest.NewPlugin(manifest.PluginOptions{
		Options: manifestOpts,
		Logger:  logger,
		Locker:  gate,
		Writer:  writer,
		Getenv:  devServerEnv(opts.Getenv, cfg.Build.DevServer),
	})
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		config:    cfg,
		logger:    logger,
		loader:    build.NewLoader(),
		plugin:    plugin,
		collector: collector,
		scan:      opts.Scan,
	}

	var digests *cache.Digests
	if cfg.Cache.Enabled && manifestOpts.Integrity {
		c, err := cache.NewBadgerCache(cache.Options{
			Directory: utils.ExpandPath(cfg.Cache.Directory),
			Logger:    logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Digest cache unavailable, hashing every asset")
		} else {
			o.cache = c
			digests = cache.NewDigests(c, cfg.Cache.TTL)
		}
	}

	o.host, err = build.NewHost(build.HostOptions{
		Plugin:         plugin,
		Writer:         writer,
		Digests:        digests,
		Logger:         logger,
		Workers:        cfg.Build.Workers,
		Progress:       cfg.Build.Progress,
		ProgressOutput: opts.ProgressOutput,
	})
	if err != nil {
		o.Close()
		return nil, err
	}

	return o, nil
}

// devServerEnv returns a getenv that reports a dev server when forced
func devServerEnv(getenv func(string) string, force bool) func(string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if !force {
		return getenv
	}
	return func(key string) string {
		if key == manifest.DevServerEnv {
			return "true"
		}
		return getenv(key)
	}
}

// Plugin returns the manifest plugin
func (o *Orchestrator) Plugin() *manifest.Plugin {
	return o.plugin
}

// Manifest returns the manifest built so far
func (o *Orchestrator) Manifest() *manifest.Manifest {
	return o.plugin.Manifest()
}

// Written returns the files written by this orchestrator so far
func (o *Orchestrator) Written() []string {
	return o.collector.Written()
}

// Load reads a build source into a snapshot with configured overrides applied
func (o *Orchestrator) Load(ctx context.Context, source string) (*build.Snapshot, error) {
	var (
		snap *build.Snapshot
		err  error
	)
	switch t := DetectSource(source); t {
	case SourceSnapshot:
		snap, err = o.loader.Load(source)
	case SourceDirectory:
		snap, err = build.Scan(ctx, source, o.scanOptions(source))
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedExt, source)
	}
	if err != nil {
		return nil, err
	}

	o.applyOverrides(snap)
	return snap, nil
}

// scanOptions excludes the manifest itself when it lives inside dir
func (o *Orchestrator) scanOptions(dir string) build.ScanOptions {
	opts := o.scan
	opts.Exclude = slices.Clone(opts.Exclude)

	out := o.plugin.Manifest().Options().Output
	if filepath.IsAbs(out) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return opts
		}
		rel, err := filepath.Rel(abs, out)
		if err != nil || strings.HasPrefix(rel, "..") {
			return opts
		}
		out = rel
	}
	opts.Exclude = append(opts.Exclude, filepath.ToSlash(out))
	return opts
}

func (o *Orchestrator) applyOverrides(snap *build.Snapshot) {
	b := o.config.Build
	if b.OutputPath != "" {
		snap.Compiler.OutputPath = utils.ExpandPath(b.OutputPath)
	}
	if b.PublicPath != "" {
		snap.Compiler.PublicPath = b.PublicPath
	}
	if b.Context != "" {
		snap.Compiler.Context = utils.ExpandPath(b.Context)
	}
}

// Run loads source and builds the manifest for it
func (o *Orchestrator) Run(ctx context.Context, source string) (*domain.Stats, error) {
	startTime := time.Now()

	snap, err := o.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("source", source).
		Str("output_path", snap.Compiler.OutputPath).
		Int("assets", snap.Count()).
		Msg("Starting build")

	if !o.applied {
		if err := o.plugin.Apply(snap.Compiler); err != nil {
			return nil, err
		}
		o.applied = true
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Build.Timeout)
	defer cancel()

	stats, err := o.host.Run(ctx, snap)
	if err != nil {
		if ctx.Err() != nil {
			o.logger.Warn().Msg("Build cancelled")
		}
		return stats, fmt.Errorf("build %s: %w", source, err)
	}

	for _, msg := range stats.Errors {
		o.logger.Warn().Str("source", source).Msg(msg)
	}
	o.logger.Info().
		Dur("duration", time.Since(startTime)).
		Str("manifest", o.plugin.OutputPath()).
		Msg("Build completed")

	return stats, nil
}

// RunResult is the outcome of one source in RunAll
type RunResult struct {
	Source string
	Stats  *domain.Stats
	Error  error
}

// RunAll builds each source in order against the same manifest, so entries
// accumulate across runs the way a watch rebuild does. With continueOnError
// unset the first failure stops the sequence.
func (o *Orchestrator) RunAll(ctx context.Context, sources []string, continueOnError bool) ([]RunResult, error) {
	results := make([]RunResult, 0, len(sources))
	var errs []error

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		stats, err := o.Run(ctx, source)
		results = append(results, RunResult{Source: source, Stats: stats, Error: err})
		if err == nil {
			continue
		}

		o.logger.Error().Err(err).Str("source", source).Msg("Build failed")
		if !continueOnError {
			return results, err
		}
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("%d/%d builds failed: %w", len(errs), len(sources), errors.Join(errs...))
	}
	return results, nil
}

// Close releases all resources held by the orchestrator
func (o *Orchestrator) Close() error {
	if o.cache != nil {
		return o.cache.Close()
	}
	return nil
}
