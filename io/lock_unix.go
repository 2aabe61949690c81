//go:build unix

package io

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/trueleo/scalardb/dberr"
)

func lockFile(file *os.File, mode LockMode) error {

	how := unix.LOCK_EX
	if mode == Shared {
		how = unix.LOCK_SH
	}

	for {
		err := unix.Flock(int(file.Fd()), how|unix.LOCK_NB)

		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EWOULDBLOCK):
			return fmt.Errorf("%w: %s lock held by another handle", dberr.ErrLocked, mode)
		default:
			return fmt.Errorf("%w: flock: %w", dberr.ErrIO, err)
		}
	}
}

func unlockFile(file *os.File) error {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("%w: unlock: %w", dberr.ErrIO, err)
	}
	return nil
}
