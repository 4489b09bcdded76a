package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/quantmind-br/assets-manifest/internal/manifest"
)

// Load loads configuration from file, environment, and defaults
// Uses the global viper instance to access CLI flag bindings
func Load() (*Config, error) {
	cfg, err := load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithViper loads configuration and returns the viper instance
// This is useful for merging CLI flags later
func LoadWithViper() (*Config, *viper.Viper, error) {
	v := viper.New()
	cfg, err := load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// An explicit SetConfigFile wins over the search paths
	if v.ConfigFileUsed() == "" {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// Environment variables (ASSETS_MANIFEST_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	def := Default()

	// Manifest defaults
	v.SetDefault("manifest.enabled", def.Manifest.Enabled)
	v.SetDefault("manifest.output", def.Manifest.Output)
	v.SetDefault("manifest.space", def.Manifest.Space)
	v.SetDefault("manifest.write_to_disk", def.Manifest.WriteToDisk)
	v.SetDefault("manifest.file_ext_regex", manifest.DefaultFileExtRegex)
	v.SetDefault("manifest.sort_manifest", def.Manifest.SortManifest)
	v.SetDefault("manifest.merge", false)
	v.SetDefault("manifest.context_relative_keys", false)
	v.SetDefault("manifest.integrity", false)
	v.SetDefault("manifest.integrity_hashes", def.Manifest.IntegrityHashes)
	v.SetDefault("manifest.integrity_property_name", def.Manifest.IntegrityPropertyName)
	v.SetDefault("manifest.entrypoints", false)
	v.SetDefault("manifest.entrypoints_key", manifest.DefaultEntrypointsKey)
	v.SetDefault("manifest.entrypoints_use_assets", false)

	// Build defaults
	v.SetDefault("build.workers", DefaultWorkers)
	v.SetDefault("build.timeout", DefaultTimeout)
	v.SetDefault("build.progress", false)
	v.SetDefault("build.dry_run", false)
	v.SetDefault("build.force", false)

	// Cache defaults
	v.SetDefault("cache.enabled", DefaultCacheEnabled)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.directory", CacheDir())

	// Lock defaults
	v.SetDefault("lock.timeout", DefaultLockTimeout)
	v.SetDefault("lock.retry_interval", DefaultLockRetryInterval)
	v.SetDefault("lock.max_retry_interval", DefaultLockMaxRetryInterval)

	// Logging defaults
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}

// EnsureCacheDir creates the cache directory if it doesn't exist
func EnsureCacheDir() error {
	return os.MkdirAll(CacheDir(), 0755)
}
