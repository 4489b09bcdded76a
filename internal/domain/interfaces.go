package domain

import (
	"context"
	"time"
)

// Compilation is the view of one build unit exposed by the host pipeline
type Compilation interface {
	// Name identifies the compilation (multi-config builds have several)
	Name() string
	// Options returns the compiler settings for this compilation
	Options() CompilerOptions
	// Assets returns the finalized assets in host enumeration order
	Assets() []*Asset
	// AssetsByChunkName maps chunk names to the files they produced
	AssetsByChunkName() map[string][]string
	// Entrypoints returns the named entrypoints in declaration order
	Entrypoints() []Entrypoint
	// EmitAsset adds a generated file to the build output
	EmitAsset(name string, content []byte, info AssetInfo) error
}

// Cache defines the interface for digest caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Has checks if a key exists in cache
	Has(ctx context.Context, key string) bool
	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error
	// Close releases cache resources
	Close() error
}
