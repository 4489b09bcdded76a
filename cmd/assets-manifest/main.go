package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/quantmind-br/assets-manifest/internal/app"
	"github.com/quantmind-br/assets-manifest/internal/build"
	"github.com/quantmind-br/assets-manifest/internal/cache"
	"github.com/quantmind-br/assets-manifest/internal/config"
	"github.com/quantmind-br/assets-manifest/internal/lock"
	"github.com/quantmind-br/assets-manifest/internal/schema"
	"github.com/quantmind-br/assets-manifest/internal/utils"
	"github.com/quantmind-br/assets-manifest/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	verbose bool
	log     *utils.Logger

	// Dependencies for testing
	osStat = os.Stat
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "assets-manifest [source...]",
	Short: "Generate an assets manifest from build outputs",
	Long: `assets-manifest maps original asset names to their emitted, hashed
file names and writes the result as JSON.

A source is either a build snapshot (.yaml, .yml or .json) describing a
compilation, or an output directory to scan. Several sources are built in
order into the same manifest.`,
	Version: version.Short(),
	Args:    cobra.ArbitraryArgs,
	RunE:    run,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./assets-manifest.yaml or ~/.assets-manifest/assets-manifest.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Manifest flags
	rootCmd.Flags().StringP("output", "o", "assets-manifest.json", "Manifest file name, relative to the output path")
	rootCmd.Flags().String("public-path", "", "Prefix for manifest values (\"\" uses none)")
	rootCmd.Flags().Bool("integrity", false, "Compute subresource integrity hashes")
	rootCmd.Flags().StringSlice("integrity-hashes", []string{"sha256", "sha384", "sha512"}, "Integrity hash algorithms")
	rootCmd.Flags().Bool("entrypoints", false, "Include entrypoints in the manifest")
	rootCmd.Flags().String("merge", "false", "Merge with an existing manifest (true, false or customize)")
	rootCmd.Flags().String("write-to-disk", "auto", "Write the manifest to disk (true, false or auto)")
	rootCmd.Flags().Bool("sort", true, "Sort manifest keys")
	rootCmd.Flags().Int("space", 2, "JSON indentation width")

	// Build flags
	rootCmd.Flags().String("output-path", "", "Override the compiler output directory")
	rootCmd.Flags().String("compiler-public-path", "", "Override the compiler public path")
	rootCmd.Flags().String("context", "", "Override the compiler context directory")
	rootCmd.Flags().IntP("workers", "j", config.DefaultWorkers, "Number of concurrent workers")
	rootCmd.Flags().Duration("timeout", config.DefaultTimeout, "Per-build timeout")
	rootCmd.Flags().Bool("progress", false, "Show a progress bar while reading assets")
	rootCmd.Flags().Bool("dry-run", false, "Simulate without writing files")
	rootCmd.Flags().Bool("force", false, "Rewrite files even when unchanged")
	rootCmd.Flags().Bool("dev-server", false, "Behave as if running under a dev server")
	rootCmd.Flags().Bool("no-cache", false, "Disable the integrity digest cache")
	rootCmd.Flags().Bool("continue-on-error", false, "Keep building remaining sources after a failure")
	rootCmd.Flags().Bool("print", false, "Print the manifest to stdout when done")

	// Scan flags for directory sources
	rootCmd.Flags().StringSlice("include", nil, "Glob patterns of files to include when scanning directories")
	rootCmd.Flags().StringSlice("exclude", nil, "Glob patterns of files to exclude when scanning directories")

	// Bind flags to viper
	_ = viper.BindPFlag("manifest.output", rootCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("manifest.public_path", rootCmd.Flags().Lookup("public-path"))
	_ = viper.BindPFlag("manifest.integrity", rootCmd.Flags().Lookup("integrity"))
	_ = viper.BindPFlag("manifest.integrity_hashes", rootCmd.Flags().Lookup("integrity-hashes"))
	_ = viper.BindPFlag("manifest.entrypoints", rootCmd.Flags().Lookup("entrypoints"))
	_ = viper.BindPFlag("manifest.merge", rootCmd.Flags().Lookup("merge"))
	_ = viper.BindPFlag("manifest.write_to_disk", rootCmd.Flags().Lookup("write-to-disk"))
	_ = viper.BindPFlag("manifest.sort_manifest", rootCmd.Flags().Lookup("sort"))
	_ = viper.BindPFlag("manifest.space", rootCmd.Flags().Lookup("space"))
	_ = viper.BindPFlag("build.output_path", rootCmd.Flags().Lookup("output-path"))
	_ = viper.BindPFlag("build.public_path", rootCmd.Flags().Lookup("compiler-public-path"))
	_ = viper.BindPFlag("build.context", rootCmd.Flags().Lookup("context"))
	_ = viper.BindPFlag("build.workers", rootCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("build.timeout", rootCmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("build.progress", rootCmd.Flags().Lookup("progress"))
	_ = viper.BindPFlag("build.dry_run", rootCmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("build.force", rootCmd.Flags().Lookup("force"))
	_ = viper.BindPFlag("build.dev_server", rootCmd.Flags().Lookup("dev-server"))

	scanCmd.Flags().String("out", "", "Snapshot file to write (.yaml, .yml or .json); stdout when empty")
	scanCmd.Flags().String("public-path", "", "Compiler public path recorded in the snapshot")
	scanCmd.Flags().StringSlice("include", nil, "Glob patterns of files to include")
	scanCmd.Flags().StringSlice("exclude", nil, "Glob patterns of files to exclude")

	// Add subcommands
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// A missing .env is not an error
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func newLogger() *utils.Logger {
	logLevel := "info"
	if verbose {
		logLevel = "debug"
	}
	return utils.NewLogger(utils.LoggerOptions{
		Level:   logLevel,
		Format:  "pretty",
		Verbose: verbose,
	})
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Info().Msg("Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func run(cmd *cobra.Command, args []string) error {
	log = newLogger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Check if a source was provided
	if len(args) == 0 {
		return cmd.Help()
	}

	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
	printManifest, _ := cmd.Flags().GetBool("print")
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	ctx, cancel := signalContext()
	defer cancel()

	orchestrator, err := app.NewOrchestrator(app.OrchestratorOptions{
		Config:  cfg,
		Verbose: verbose,
		Logger:  log,
		Scan: build.ScanOptions{
			Include: include,
			Exclude: exclude,
		},
		ProgressOutput: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	defer orchestrator.Close()

	results, err := orchestrator.RunAll(ctx, args, continueOnError)
	printSummary(cmd.ErrOrStderr(), results)
	if err != nil {
		return err
	}

	if printManifest {
		fmt.Fprintln(cmd.OutOrStdout(), orchestrator.Manifest().String())
	}
	return nil
}

// printSummary reports the outcome of each source
func printSummary(w io.Writer, results []app.RunResult) {
	if len(results) < 2 {
		return
	}
	for _, r := range results {
		switch {
		case r.Error != nil:
			fmt.Fprintf(w, "  FAILED  %s: %v\n", r.Source, r.Error)
		case r.Stats != nil:
			fmt.Fprintf(w, "  OK      %s (%d assets, %s)\n", r.Source, r.Stats.Assets, r.Stats.Duration.Round(time.Millisecond))
		default:
			fmt.Fprintf(w, "  OK      %s\n", r.Source)
		}
	}
}

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Write a build snapshot for an output directory",
	Long: `Scans an output directory and writes a build snapshot describing its
files. Hashed file names such as main.3f2a9c1d.js are grouped into a chunk
named after the unhashed stem. The snapshot can be edited and passed back as
a source.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		publicPath, _ := cmd.Flags().GetString("public-path")
		include, _ := cmd.Flags().GetStringSlice("include")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		snap, err := build.Scan(cmd.Context(), args[0], build.ScanOptions{
			Include:    include,
			Exclude:    exclude,
			PublicPath: publicPath,
		})
		if err != nil {
			return err
		}

		if out == "" {
			data, err := yaml.Marshal(snap)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := build.NewLoader().Save(out, snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d assets)\n", out, snap.Count())
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the manifest options JSON schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.OptionsSchema()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the integrity digest cache",
}

// openCache opens the configured digest cache
func openCache() (*cache.BadgerCache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cache.NewBadgerCache(cache.Options{
		Directory: utils.ExpandPath(cfg.Cache.Directory),
		Logger:    newLogger(),
	})
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print digest cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		defer c.Close()

		s := c.Stats()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Directory: %s\n", c.Dir())
		fmt.Fprintf(w, "Entries:   %d\n", s.Entries)
		fmt.Fprintf(w, "Digests:   %d\n", s.Digests)
		fmt.Fprintf(w, "Size:      %d bytes\n", s.LSMSize+s.VlogSize)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		defer c.Close()

		n := c.Count(cache.PrefixDigest + ":")
		if err := c.Prune(cache.PrefixDigest); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached digests\n", n)
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local environment",
	Long:  "Verifies that configuration, file locking and the digest cache work in this environment.",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Checking environment...")
		allPassed := true

		// Check 1: Write permissions for the working directory
		fmt.Fprint(w, "  Write permissions: ")
		if checkWritePermissions(".") {
			fmt.Fprintln(w, "OK")
		} else {
			fmt.Fprintln(w, "FAILED")
			allPassed = false
		}

		// Check 2: Manifest file locking
		fmt.Fprint(w, "  File locking: ")
		if err := checkLocking(cmd.Context(), os.TempDir()); err != nil {
			fmt.Fprintf(w, "FAILED (%v)\n", err)
			allPassed = false
		} else {
			fmt.Fprintln(w, "OK")
		}

		// Check 3: Config file
		fmt.Fprint(w, "  Config file: ")
		if _, err := config.Load(); err != nil {
			fmt.Fprintf(w, "WARN (%v)\n", err)
		} else {
			fmt.Fprintln(w, "OK")
		}

		// Check 4: Options schema
		fmt.Fprint(w, "  Options schema: ")
		if err := schema.ValidateOptions(map[string]any{}); err != nil {
			fmt.Fprintf(w, "FAILED (%v)\n", err)
			allPassed = false
		} else {
			fmt.Fprintln(w, "OK")
		}

		// Check 5: Cache directory
		fmt.Fprint(w, "  Cache directory: ")
		cacheDir := config.CacheDir()
		if checkCacheDir(cacheDir) {
			fmt.Fprintf(w, "OK (%s)\n", cacheDir)
		} else {
			fmt.Fprintln(w, "WARN (will be created on first use)")
		}

		fmt.Fprintln(w)
		if allPassed {
			fmt.Fprintln(w, "All critical checks passed!")
		} else {
			fmt.Fprintln(w, "Some checks failed. Please resolve the issues above.")
		}
		return nil
	},
}

// checkWritePermissions checks if we can write to dir
func checkWritePermissions(dir string) bool {
	f, err := os.CreateTemp(dir, ".assets-manifest-write-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// checkLocking takes and releases a manifest lock under dir
func checkLocking(ctx context.Context, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := filepath.Join(dir, fmt.Sprintf("assets-manifest-doctor-%d.json", os.Getpid()))
	defer os.Remove(path + ".lock")

	opts := lock.DefaultOptions()
	opts.Timeout = 2 * time.Second
	return lock.New(opts).WithLockContext(ctx, path, func(context.Context) error { return nil })
}

// checkCacheDir checks if the cache directory exists
func checkCacheDir(path string) bool {
	info, err := osStat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}

// exitCode maps an error to a process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
