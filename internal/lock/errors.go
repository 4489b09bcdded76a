package lock

import (
	"errors"
	"fmt"
)

var (
	// ErrLockUnavailable indicates the lock could not be acquired in time
	ErrLockUnavailable = errors.New("lock unavailable")

	// ErrUnlockFailed indicates releasing a held lock failed
	ErrUnlockFailed = errors.New("unlock failed")

	// ErrUnsupported indicates advisory locking is not available on this platform
	ErrUnsupported = errors.New("advisory locking not supported on this platform")

	errWouldBlock = errors.New("lock is held by another process")
)

// Error describes a failed lock operation on a path
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("lock %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newAcquireError(path string, cause error) *Error {
	return &Error{Op: "acquire", Path: path, Err: fmt.Errorf("%w: %w", ErrLockUnavailable, cause)}
}

func newReleaseError(path string, cause error) *Error {
	return &Error{Op: "release", Path: path, Err: fmt.Errorf("%w: %w", ErrUnlockFailed, cause)}
}
