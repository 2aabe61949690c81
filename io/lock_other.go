//go:build !unix

package io

import "os"

// advisory locks are only available on unix
func lockFile(file *os.File, mode LockMode) error {
	return nil
}

func unlockFile(file *os.File) error {
	return nil
}
