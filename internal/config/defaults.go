package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/quantmind-br/assets-manifest/internal/manifest"
)

// Default values
const (
	// Build defaults
	DefaultWorkers = 8
	DefaultTimeout = 5 * time.Minute

	// Cache defaults
	DefaultCacheEnabled = true
	DefaultCacheTTL     = 30 * 24 * time.Hour

	// Lock defaults
	DefaultLockTimeout          = 10 * time.Second
	DefaultLockRetryInterval    = 25 * time.Millisecond
	DefaultLockMaxRetryInterval = 500 * time.Millisecond

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"

	// ConfigName is the config file name without extension
	ConfigName = "assets-manifest"
	// EnvPrefix prefixes environment overrides (ASSETS_MANIFEST_*)
	EnvPrefix = "ASSETS_MANIFEST"
)

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".assets-manifest"
	}
	return filepath.Join(home, ".assets-manifest")
}

// CacheDir returns the cache directory path
func CacheDir() string {
	return filepath.Join(ConfigDir(), "cache")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), ConfigName+".yaml")
}

// Default returns the default configuration
func Default() *Config {
	opts := manifest.DefaultOptions()
	return &Config{
		Manifest: ManifestConfig{
			Enabled:               opts.Enabled,
			Assets:                map[string]any{},
			Output:                opts.Output,
			Space:                 opts.Space,
			WriteToDisk:           string(opts.WriteToDisk),
			FileExtRegex:          opts.FileExtRegex,
			SortManifest:          opts.SortManifest,
			Merge:                 false,
			ContextRelativeKeys:   false,
			Integrity:             false,
			IntegrityHashes:       opts.IntegrityHashes,
			IntegrityPropertyName: opts.IntegrityPropertyName,
			Entrypoints:           false,
			EntrypointsKey:        opts.EntrypointsKey,
		},
		Build: BuildConfig{
			Workers: DefaultWorkers,
			Timeout: DefaultTimeout,
		},
		Cache: CacheConfig{
			Enabled:   DefaultCacheEnabled,
			TTL:       DefaultCacheTTL,
			Directory: CacheDir(),
		},
		Lock: LockConfig{
			Timeout:          DefaultLockTimeout,
			RetryInterval:    DefaultLockRetryInterval,
			MaxRetryInterval: DefaultLockMaxRetryInterval,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
