//go:build !unix && !windows

package lock

import "os"

func tryLock(*os.File) error {
	return ErrUnsupported
}

func unlock(*os.File) error {
	return ErrUnsupported
}
