package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/quantmind-br/assets-manifest/internal/domain"
)

// DefaultDigestTTL bounds how long a digest survives without being refreshed
const DefaultDigestTTL = 30 * 24 * time.Hour

// Digests stores integrity digests in a domain.Cache
type Digests struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewDigests wraps cache. A non-positive ttl uses DefaultDigestTTL.
func NewDigests(cache domain.Cache, ttl time.Duration) *Digests {
	if ttl <= 0 {
		ttl = DefaultDigestTTL
	}
	return &Digests{cache: cache, ttl: ttl}
}

// Lookup returns the cached digest for the file identity, if any. A corrupt
// or mismatched entry counts as a miss.
func (d *Digests) Lookup(ctx context.Context, path string, size int64, modTime time.Time, algorithms []string) (string, error) {
	data, err := d.cache.Get(ctx, DigestKey(path, size, modTime, algorithms))
	if err != nil {
		return "", err
	}

	var entry domain.DigestEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", domain.ErrCacheMiss
	}
	if entry.Size != size || !entry.ModTime.Equal(modTime) || entry.Integrity == "" {
		return "", domain.ErrCacheMiss
	}
	return entry.Integrity, nil
}

// Store records a computed digest
func (d *Digests) Store(ctx context.Context, entry domain.DigestEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := DigestKey(entry.Path, entry.Size, entry.ModTime, entry.Algorithms)
	return d.cache.Set(ctx, key, data, d.ttl)
}

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, domain.ErrCacheMiss)
}
