package cache

import (
	"time"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

var _ domain.Cache = (*BadgerCache)(nil)

// DefaultGCInterval is how often value log garbage collection runs for an
// on-disk cache
const DefaultGCInterval = 5 * time.Minute

// Options contains cache configuration options
type Options struct {
	// Directory holds the database; defaults to ~/.assets-manifest/cache
	Directory string
	InMemory  bool
	// Logger receives badger's own warnings and errors; nil silences them
	Logger *utils.Logger
	// GCInterval defaults to DefaultGCInterval
	GCInterval time.Duration
}

// DefaultOptions returns default cache options
func DefaultOptions() Options {
	return Options{GCInterval: DefaultGCInterval}
}

// Stats describes the contents of a cache
type Stats struct {
	Entries  int64 `json:"entries"`
	Digests  int64 `json:"digests"`
	LSMSize  int64 `json:"lsm_size"`
	VlogSize int64 `json:"vlog_size"`
}
