package table

import (
	"fmt"
	goio "io"
	"log/slog"
	"os"

	"github.com/trueleo/scalardb/btree"
	"github.com/trueleo/scalardb/compression"
	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/io"
	"github.com/trueleo/scalardb/schema"
)

// Backup flushes the table and writes the whole file to w as an lz4 frame.
// It returns the number of uncompressed bytes written.
func (t *Table) Backup(w goio.Writer) (int64, error) {

	if t.closed {
		return 0, dberr.ErrClosed
	}

	if err := t.pager.Flush(); err != nil {
		return 0, err
	}
	if err := t.FlushHeader(); err != nil {
		return 0, err
	}

	size, err := t.file.Size()
	if err != nil {
		return 0, err
	}

	written, err := compression.Compress(w, goio.NewSectionReader(t.file.Raw(), 0, size))
	if err != nil {
		return written, fmt.Errorf("%w: backup of %s: %w", dberr.ErrIO, t.config.Path, err)
	}

	t.log.Info("table backed up", "bytes", written, "rows", t.header.NumRows)

	return written, nil
}

// Restore writes a backup taken with Backup into a new file at path. The
// restored header and the node type of every page are checked before the
// file is kept.
func Restore(r goio.Reader, path string) (topErr error) {

	file := io.NewDataFile(path)
	if file.Exists() {
		return fmt.Errorf("%w: restore target %s already exists", dberr.ErrMisuse, path)
	}

	if err := file.Open(false); err != nil {
		return err
	}

	defer func() {
		closeErr := file.Close()
		if topErr == nil {
			topErr = closeErr
		}
		if topErr != nil {
			os.Remove(path)
		}
	}()

	if err := file.Lock(io.Exclusive); err != nil {
		return err
	}

	written, err := compression.Decompress(file.Raw(), r)
	if err != nil {
		return fmt.Errorf("%w: restore into %s: %w", dberr.ErrIO, path, err)
	}

	if written < schema.HeaderSpace || (written-schema.HeaderSpace)%btree.PageSize != 0 {
		return fmt.Errorf("%w: restored %d bytes, not a header plus whole pages", dberr.ErrCorrupted, written)
	}

	headerBuf := make([]byte, schema.HeaderSpace)
	if err := file.ReadAt(headerBuf, 0); err != nil {
		return err
	}

	var header schema.TableHeader
	if err := header.FromBytes(headerBuf); err != nil {
		return fmt.Errorf("%w: restored header: %w", dberr.ErrCorrupted, err)
	}

	numPages := int(written-schema.HeaderSpace) / btree.PageSize
	page := make([]byte, btree.PageSize)

	for i := 0; i < numPages; i++ {
		if err := file.ReadAt(page, schema.HeaderSpace+i*btree.PageSize); err != nil {
			return err
		}
		if typ := btree.Node(page).Type(); !typ.Valid() {
			return fmt.Errorf("%w: restored page %d has node type %d", dberr.ErrCorrupted, i, typ)
		}
	}

	if err := file.Sync(); err != nil {
		return err
	}

	slog.Info("table restored", "path", path, "table", header.Name, "rows", header.NumRows, "bytes", written)

	return nil
}
