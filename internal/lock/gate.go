// Package lock provides advisory cross-process locking around manifest writes.
//
// A lock on path is an exclusive flock (LockFileEx on Windows) held on the
// sibling file "<path>.lock". Locks are cooperative: every writer of the
// manifest must go through a Gate for them to be effective.
package lock

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/quantmind-br/assets-manifest/internal/utils"
)

// Suffix is appended to a path to name its lock file
const Suffix = ".lock"

// Options configures a Gate
type Options struct {
	// Timeout bounds how long acquisition waits for a held lock
	Timeout time.Duration
	// RetryInterval is the first wait between attempts
	RetryInterval time.Duration
	// MaxRetryInterval caps the wait between attempts
	MaxRetryInterval time.Duration
	Logger           *utils.Logger
}

// DefaultOptions returns default gate options
func DefaultOptions() Options {
	r := DefaultRetrierOptions()
	return Options{
		Timeout:          r.Timeout,
		RetryInterval:    r.InitialInterval,
		MaxRetryInterval: r.MaxInterval,
	}
}

// Gate acquires and releases advisory file locks
type Gate struct {
	retrier *Retrier
	logger  *utils.Logger
}

// New creates a Gate
func New(opts Options) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Gate{
		retrier: NewRetrier(RetrierOptions{
			InitialInterval: opts.RetryInterval,
			MaxInterval:     opts.MaxRetryInterval,
			Timeout:         opts.Timeout,
		}),
		logger: logger.WithComponent("lock"),
	}
}

// Handle is a held lock
type Handle struct {
	path string
	file *os.File
}

// Path returns the path the lock guards
func (h *Handle) Path() string {
	return h.path
}

// Release drops the lock. Releasing twice is a no-op.
func (h *Handle) Release() error {
	if h == nil || h.file == nil {
		return nil
	}
	f := h.file
	h.file = nil

	unlockErr := unlock(f)
	closeErr := f.Close()
	if err := errors.Join(unlockErr, closeErr); err != nil {
		return newReleaseError(h.path, err)
	}
	return nil
}

// Acquire blocks until the lock on path is held, the gate timeout elapses or
// ctx is done
func (g *Gate) Acquire(ctx context.Context, path string) (*Handle, error) {
	lockPath := path + Suffix
	if err := utils.EnsureDir(lockPath); err != nil {
		return nil, newAcquireError(path, err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, newAcquireError(path, err)
	}

	logger := g.logger.WithPath(path)
	err = g.retrier.Retry(ctx,
		func() error { return tryLock(f) },
		func(err error) bool { return errors.Is(err, errWouldBlock) },
		func(err error, wait time.Duration) {
			logger.Debug().Dur("wait", wait).Msg("Lock busy, retrying")
		},
	)
	if err != nil {
		f.Close()
		return nil, newAcquireError(path, err)
	}

	logger.Debug().Msg("Lock acquired")
	return &Handle{path: path, file: f}, nil
}

// WithLock runs fn while holding the lock on path. The lock is released
// whether or not fn fails.
func (g *Gate) WithLock(path string, fn func() error) error {
	return g.WithLockContext(context.Background(), path, func(context.Context) error {
		return fn()
	})
}

// WithLockContext runs fn while holding the lock on path. Acquisition gives
// up when ctx is done. The lock is released whether or not fn fails.
func (g *Gate) WithLockContext(ctx context.Context, path string, fn func(ctx context.Context) error) (err error) {
	h, err := g.Acquire(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := h.Release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()

	return fn(ctx)
}
