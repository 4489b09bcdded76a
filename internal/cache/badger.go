package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

// BadgerCache stores integrity digests in BadgerDB
type BadgerCache struct {
	db   *badger.DB
	dir  string
	stop chan struct{}
}

// NewBadgerCache opens, or creates, a cache database
func NewBadgerCache(opts Options) (*BadgerCache, error) {
	var badgerOpts badger.Options

	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Directory == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			opts.Directory = filepath.Join(homeDir, ".assets-manifest", "cache")
		}
		if err := os.MkdirAll(opts.Directory, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		badgerOpts = badger.DefaultOptions(opts.Directory)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{opts.Logger.WithComponent("cache")})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", opts.Directory, err)
	}

	c := &BadgerCache{db: db, dir: opts.Directory, stop: make(chan struct{})}
	if !opts.InMemory {
		interval := opts.GCInterval
		if interval <= 0 {
			interval = DefaultGCInterval
		}
		go c.gc(interval)
	}
	return c, nil
}

func (c *BadgerCache) gc(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			// ErrNoRewrite just means nothing was reclaimed
			_ = c.db.RunValueLogGC(0.5)
		}
	}
}

// Dir returns the database directory, empty for an in-memory cache
func (c *BadgerCache) Dir() string {
	return c.dir
}

// Get returns the value for key or domain.ErrCacheMiss
func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrCacheMiss
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key; a positive ttl expires it
func (c *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Has reports whether key holds a live value
func (c *BadgerCache) Has(ctx context.Context, key string) bool {
	if ctx.Err() != nil {
		return false
	}
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	return err == nil
}

// Delete removes key; deleting a missing key is not an error
func (c *BadgerCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close stops garbage collection and closes the database
func (c *BadgerCache) Close() error {
	close(c.stop)
	return c.db.Close()
}

// Clear removes every entry
func (c *BadgerCache) Clear() error {
	return c.db.DropAll()
}

// Prune removes every entry in a key namespace such as PrefixDigest
func (c *BadgerCache) Prune(namespace string) error {
	return c.db.DropPrefix([]byte(namespace + ":"))
}

// Count returns the number of live entries whose key starts with prefix
func (c *BadgerCache) Count(prefix string) int64 {
	var count int64
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// Size returns the number of live entries
func (c *BadgerCache) Size() int64 {
	return c.Count("")
}

// Stats summarizes the cache contents
func (c *BadgerCache) Stats() Stats {
	lsm, vlog := c.db.Size()
	return Stats{
		Entries:  c.Size(),
		Digests:  c.Count(PrefixDigest + ":"),
		LSMSize:  lsm,
		VlogSize: vlog,
	}
}

// badgerLogger routes badger's log output through zerolog. Badger's info
// messages are routine compaction notices, so they are logged at debug.
type badgerLogger struct {
	log *utils.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Trace().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
