package io

import (
	"errors"
	"fmt"
	"os"

	"github.com/trueleo/scalardb/dberr"
)

var ErrNotOpened = errors.New("file not opened")

// DataFile is a table file accessed by absolute offsets.
type DataFile struct {
	path   string
	file   *os.File
	opened bool
	locked bool

	readOnly bool
	exists   bool
}

func NewDataFile(path string) *DataFile {

	_, err := os.Stat(path)

	dfile := &DataFile{
		path:   path,
		exists: err == nil,
	}

	return dfile
}

func (f *DataFile) Path() string {
	return f.path
}

// Exists reports whether the file was present when the DataFile was created.
func (f *DataFile) Exists() bool {
	return f.exists
}

func (f *DataFile) ReadOnly() bool {
	return f.readOnly
}

func (f *DataFile) Open(readOnly bool) (topErr error) {

	var perm os.FileMode = 0644

	if readOnly {
		f.file, topErr = os.OpenFile(f.path, os.O_RDONLY, perm)
	} else {
		f.file, topErr = os.OpenFile(f.path, os.O_CREATE|os.O_RDWR, perm)
	}

	if topErr != nil {
		return fmt.Errorf("%w: unable to open %s: %w", dberr.ErrIO, f.path, topErr)
	}

	f.opened = true
	f.readOnly = readOnly

	return nil
}

// Lock takes an advisory lock on the whole file without blocking.
// A conflicting holder is reported as dberr.ErrLocked.
func (f *DataFile) Lock(mode LockMode) error {
	if !f.opened {
		return ErrNotOpened
	}

	if err := lockFile(f.file, mode); err != nil {
		return fmt.Errorf("%s: %w", f.path, err)
	}

	f.locked = true
	return nil
}

func (f *DataFile) Close() error {
	if !f.opened {
		return nil
	}

	f.opened = false

	var unlockErr error
	if f.locked {
		unlockErr = unlockFile(f.file)
		f.locked = false
	}

	if err := f.file.Close(); err != nil {
		return fmt.Errorf("%w: unable to close %s: %w", dberr.ErrIO, f.path, err)
	}

	return unlockErr
}

func (f *DataFile) ReadAt(out []byte, off int) (err error) {
	if !f.opened {
		return ErrNotOpened
	}

	var readBytes int
	readBytes, err = f.file.ReadAt(out, int64(off))

	if readBytes != len(out) {
		return fmt.Errorf("%w: read %d of %d bytes at %d: %w", dberr.ErrIO, readBytes, len(out), off, err)
	}

	return nil
}

func (f *DataFile) WriteAt(in []byte, off int) (err error) {
	if !f.opened {
		return ErrNotOpened
	}

	var writtenBytes int
	writtenBytes, err = f.file.WriteAt(in, int64(off))

	if err != nil || writtenBytes != len(in) {
		return fmt.Errorf("%w: wrote %d of %d bytes at %d: %w", dberr.ErrIO, writtenBytes, len(in), off, err)
	}

	return nil
}

// fill zeroes to the file at offset with given size
func (f *DataFile) FillZeroes(offset, size int) error {
	return f.WriteAt(make([]byte, size), offset)
}

func (f *DataFile) Size() (int64, error) {
	if !f.opened {
		return 0, ErrNotOpened
	}

	info, err := f.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: unable to stat %s: %w", dberr.ErrIO, f.path, err)
	}

	return info.Size(), nil
}

func (f *DataFile) Sync() error {
	if !f.opened {
		return ErrNotOpened
	}

	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("%w: unable to sync %s: %w", dberr.ErrIO, f.path, err)
	}

	return nil
}

func (f *DataFile) Truncate(size int64) error {
	if !f.opened {
		return ErrNotOpened
	}

	if err := f.file.Truncate(size); err != nil {
		return fmt.Errorf("%w: unable to truncate %s: %w", dberr.ErrIO, f.path, err)
	}

	return nil
}

// Raw exposes the underlying file for streaming copies.
func (f *DataFile) Raw() *os.File {
	return f.file
}
