package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastGate(timeout time.Duration) *Gate {
	return New(Options{
		Timeout:          timeout,
		RetryInterval:    5 * time.Millisecond,
		MaxRetryInterval: 20 * time.Millisecond,
	})
}

func TestWithLock_RunsAndReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets-manifest.json")
	g := fastGate(time.Second)

	called := false
	err := g.WithLock(path, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.FileExists(t, path+Suffix)

	// released, so a second acquisition succeeds immediately
	h, err := g.Acquire(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, h.Release())
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets-manifest.json")
	g := fastGate(time.Second)
	boom := errors.New("boom")

	err := g.WithLock(path, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	h, err := fastGate(50*time.Millisecond).Acquire(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, h.Release())
}

func TestAcquire_Contention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets-manifest.json")

	held, err := fastGate(time.Second).Acquire(context.Background(), path)
	require.NoError(t, err)
	defer held.Release()

	_, err = fastGate(60*time.Millisecond).Acquire(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockUnavailable)

	var lockErr *Error
	require.True(t, errors.As(err, &lockErr))
	assert.Equal(t, "acquire", lockErr.Op)
	assert.Equal(t, path, lockErr.Path)
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets-manifest.json")

	held, err := fastGate(time.Second).Acquire(context.Background(), path)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		held.Release()
	}()

	h, err := fastGate(2*time.Second).Acquire(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, h.Release())
}

func TestAcquire_ContextCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets-manifest.json")

	held, err := fastGate(time.Second).Acquire(context.Background(), path)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = fastGate(5*time.Second).WithLockContext(ctx, path, func(context.Context) error {
		t.Fatal("critical section must not run")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquire_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "assets-manifest.json")

	h, err := fastGate(time.Second).Acquire(context.Background(), path)
	require.NoError(t, err)
	defer h.Release()

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, path, h.Path())
}

func TestHandle_ReleaseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets-manifest.json")

	h, err := fastGate(time.Second).Acquire(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, h.Release())
	assert.NoError(t, h.Release())

	var nilHandle *Handle
	assert.NoError(t, nilHandle.Release())
}

func TestWithLockContext_SerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets-manifest.json")
	g := fastGate(5 * time.Second)

	var inside atomic.Int32
	var overlapped atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.WithLockContext(context.Background(), path, func(context.Context) error {
				if inside.Add(1) > 1 {
					overlapped.Store(true)
				}
				time.Sleep(10 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, overlapped.Load())
}

func TestError(t *testing.T) {
	cause := errors.New("denied")
	err := newReleaseError("/tmp/m.json", cause)

	assert.Equal(t, "release", err.Op)
	assert.ErrorIs(t, err, ErrUnlockFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "lock release /tmp/m.json")
}

func TestRetrier(t *testing.T) {
	t.Run("retries until success", func(t *testing.T) {
		r := NewRetrier(RetrierOptions{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Timeout: time.Second})
		attempts := 0
		err := r.Retry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errWouldBlock
			}
			return nil
		}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		r := NewRetrier(RetrierOptions{InitialInterval: time.Millisecond, Timeout: time.Second})
		boom := errors.New("boom")
		attempts := 0
		err := r.Retry(context.Background(), func() error {
			attempts++
			return boom
		}, func(err error) bool { return errors.Is(err, errWouldBlock) }, nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, attempts)
	})

	t.Run("defaults", func(t *testing.T) {
		r := NewRetrier(RetrierOptions{})
		d := DefaultRetrierOptions()
		assert.Equal(t, d.InitialInterval, r.initialInterval)
		assert.Equal(t, d.Timeout, r.timeout)
	})
}
