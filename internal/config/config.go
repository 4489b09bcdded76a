package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/manifest"
)

// Config represents the application configuration
type Config struct {
	Manifest ManifestConfig `mapstructure:"manifest" yaml:"manifest"`
	Build    BuildConfig    `mapstructure:"build" yaml:"build"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Lock     LockConfig     `mapstructure:"lock" yaml:"lock"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ManifestConfig mirrors the serializable manifest options. Union-typed
// settings are kept as decoded so booleans and strings can both be accepted.
type ManifestConfig struct {
	Enabled bool           `mapstructure:"enabled" yaml:"enabled"`
	Assets  map[string]any `mapstructure:"assets" yaml:"assets"`
	// AssetsFile seeds the manifest from a JSON file. Keys read from it keep
	// their case, unlike keys under Assets.
	AssetsFile            string   `mapstructure:"assets_file" yaml:"assets_file"`
	Output                string   `mapstructure:"output" yaml:"output"`
	Replacer              []string `mapstructure:"replacer" yaml:"replacer"`
	Space                 int      `mapstructure:"space" yaml:"space"`
	Indent                string   `mapstructure:"indent" yaml:"indent"`
	WriteToDisk           any      `mapstructure:"write_to_disk" yaml:"write_to_disk"`
	FileExtRegex          any      `mapstructure:"file_ext_regex" yaml:"file_ext_regex"`
	SortManifest          bool     `mapstructure:"sort_manifest" yaml:"sort_manifest"`
	Merge                 any      `mapstructure:"merge" yaml:"merge"`
	PublicPath            any      `mapstructure:"public_path" yaml:"public_path"`
	ContextRelativeKeys   bool     `mapstructure:"context_relative_keys" yaml:"context_relative_keys"`
	Integrity             bool     `mapstructure:"integrity" yaml:"integrity"`
	IntegrityHashes       []string `mapstructure:"integrity_hashes" yaml:"integrity_hashes"`
	IntegrityPropertyName string   `mapstructure:"integrity_property_name" yaml:"integrity_property_name"`
	Entrypoints           bool     `mapstructure:"entrypoints" yaml:"entrypoints"`
	EntrypointsKey        any      `mapstructure:"entrypoints_key" yaml:"entrypoints_key"`
	EntrypointsUseAssets  bool     `mapstructure:"entrypoints_use_assets" yaml:"entrypoints_use_assets"`
}

// BuildConfig contains settings for the file-backed build host
type BuildConfig struct {
	// OutputPath overrides the snapshot's compiler output directory
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	// PublicPath overrides the snapshot's compiler public path
	PublicPath string        `mapstructure:"public_path" yaml:"public_path"`
	Context    string        `mapstructure:"context" yaml:"context"`
	Workers    int           `mapstructure:"workers" yaml:"workers"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Progress   bool          `mapstructure:"progress" yaml:"progress"`
	DryRun     bool          `mapstructure:"dry_run" yaml:"dry_run"`
	Force      bool          `mapstructure:"force" yaml:"force"`
	DevServer  bool          `mapstructure:"dev_server" yaml:"dev_server"`
}

// CacheConfig contains digest cache settings
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Directory string        `mapstructure:"directory" yaml:"directory"`
}

// LockConfig contains manifest lock settings
type LockConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RetryInterval    time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
	MaxRetryInterval time.Duration `mapstructure:"max_retry_interval" yaml:"max_retry_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate fills defaults for out-of-range runtime settings and validates the
// manifest section against the options schema
func (c *Config) Validate() error {
	if c.Build.Workers < 1 {
		c.Build.Workers = DefaultWorkers
	}
	if c.Build.Timeout < time.Second {
		c.Build.Timeout = DefaultTimeout
	}
	if c.Cache.TTL < time.Minute {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Lock.Timeout <= 0 {
		c.Lock.Timeout = DefaultLockTimeout
	}
	if c.Lock.RetryInterval <= 0 {
		c.Lock.RetryInterval = DefaultLockRetryInterval
	}
	if c.Lock.MaxRetryInterval < c.Lock.RetryInterval {
		c.Lock.MaxRetryInterval = max(DefaultLockMaxRetryInterval, c.Lock.RetryInterval)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	opts, err := c.Manifest.ToOptions()
	if err != nil {
		return err
	}
	return opts.Validate()
}

// ToOptions converts the manifest section into manifest options
func (m ManifestConfig) ToOptions() (manifest.Options, error) {
	opts := manifest.DefaultOptions()
	opts.Enabled = m.Enabled
	opts.Output = m.Output
	opts.Replacer = m.Replacer
	opts.Space = m.Space
	opts.Indent = m.Indent
	opts.SortManifest = m.SortManifest
	opts.ContextRelativeKeys = m.ContextRelativeKeys
	opts.Integrity = m.Integrity
	opts.IntegrityPropertyName = m.IntegrityPropertyName
	opts.Entrypoints = m.Entrypoints
	opts.EntrypointsUseAssets = m.EntrypointsUseAssets
	if len(m.IntegrityHashes) > 0 {
		opts.IntegrityHashes = m.IntegrityHashes
	}

	var err error
	if opts.WriteToDisk, err = manifest.ParseWriteMode(m.WriteToDisk); err != nil {
		return opts, err
	}
	if opts.Merge, err = manifest.ParseMergeMode(m.Merge); err != nil {
		return opts, err
	}
	if opts.FileExtRegex, err = stringOrFalse("file_ext_regex", m.FileExtRegex, manifest.DefaultFileExtRegex); err != nil {
		return opts, err
	}
	if opts.EntrypointsKey, err = stringOrFalse("entrypoints_key", m.EntrypointsKey, manifest.DefaultEntrypointsKey); err != nil {
		return opts, err
	}

	switch v := normalizeBool(m.PublicPath).(type) {
	case nil:
	case bool:
		opts.UseCompilerPublicPath = v
	case string:
		opts.PublicPath = v
	default:
		return opts, domain.NewValidationError("public_path", fmt.Sprintf("unsupported value %v", v))
	}

	assets := make(map[string]any, len(m.Assets))
	for k, v := range m.Assets {
		assets[k] = v
	}
	if m.AssetsFile != "" {
		seed, err := loadAssetsFile(m.AssetsFile)
		if err != nil {
			return opts, err
		}
		for k, v := range seed {
			assets[k] = v
		}
	}
	opts.Assets = assets

	return opts, nil
}

// stringOrFalse decodes a setting that is either a string or false. nil
// yields def; false yields the empty string.
func stringOrFalse(field string, v any, def string) (string, error) {
	switch t := normalizeBool(v).(type) {
	case nil:
		return def, nil
	case bool:
		if !t {
			return "", nil
		}
	case string:
		if t == "" {
			return def, nil
		}
		return t, nil
	}
	return "", domain.NewValidationError(field, fmt.Sprintf("must be a string or false, got %v", v))
}

// normalizeBool turns "true"/"false" strings, as produced by environment
// variables, into booleans
func normalizeBool(v any) any {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return v
}

func loadAssetsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewValidationError("assets_file", err.Error())
	}
	store := manifest.NewStore()
	if err := store.UnmarshalJSON(data); err != nil {
		return nil, domain.NewValidationError("assets_file", err.Error())
	}
	return store.ToMap(), nil
}

// MarshalIndent renders the configuration as indented JSON
func (c *Config) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
