package table

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/trueleo/scalardb/btree"
	"github.com/trueleo/scalardb/compression"
	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/schema"
)

func row(n int64, s string) []schema.Value {
	return []schema.Value{schema.NumberValue(n), schema.StringValue(s)}
}

func openTable(t *testing.T, config Config) *Table {
	t.Helper()

	config.NoSync = true

	tbl, err := Open(config)
	if err != nil {
		t.Fatalf("unable to open table: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })

	return tbl
}

func expectRow(t *testing.T, tbl *Table, index uint64, n int64, s string) {
	t.Helper()

	values, err := tbl.Read(index)
	if err != nil {
		t.Fatalf("read %d: %v", index, err)
	}
	if values[0].Num != n || values[1].Str != s {
		t.Errorf("row %d: Expected (%d, %q) but got (%s, %q)", index, n, s, values[0], values[1].Str)
	}
}

func TestInsertReadReopen(t *testing.T) {

	path := filepath.Join(t.TempDir(), "users.db")

	tbl := openTable(t, Config{Path: path})

	if tbl.Name() != "users" {
		t.Errorf("Expected %q but got %q", "users", tbl.Name())
	}

	if err := tbl.Insert(row(1, "hi")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := tbl.Insert(row(2, "there")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	id := tbl.ID()

	if err := tbl.Close(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	tbl = openTable(t, Config{Path: path})

	if tbl.NumRows() != 2 {
		t.Fatalf("Expected %d rows but got %d", 2, tbl.NumRows())
	}
	if tbl.ID() != id {
		t.Errorf("table id changed across reopen")
	}

	expectRow(t, tbl, 0, 1, "hi")
	expectRow(t, tbl, 1, 2, "there")

	if _, err := tbl.Read(2); !errors.Is(err, dberr.ErrRowNotFound) {
		t.Errorf("Expected ErrRowNotFound but got %v", err)
	}
}

func TestRowsPerPage(t *testing.T) {

	tbl := openTable(t, Config{Path: filepath.Join(t.TempDir(), "geometry.db")})

	// (4096 - 14) / (4 + 18)
	if tbl.RowsPerPage() != 185 {
		t.Errorf("Expected %d but got %d", 185, tbl.RowsPerPage())
	}
	if tbl.MaxRows() != 185*DefaultMaxPages {
		t.Errorf("Expected %d but got %d", 185*DefaultMaxPages, tbl.MaxRows())
	}
}

func TestRowLimit(t *testing.T) {

	path := filepath.Join(t.TempDir(), "limit.db")
	tbl := openTable(t, Config{Path: path, MaxPages: 1})

	for i := 0; i < int(tbl.MaxRows()); i++ {
		if err := tbl.Insert(row(int64(i), "r")); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	if err := tbl.Insert(row(-1, "over")); !errors.Is(err, dberr.ErrRowLimit) {
		t.Fatalf("Expected ErrRowLimit but got %v", err)
	}

	if tbl.NumRows() != tbl.MaxRows() {
		t.Errorf("Expected %d rows but got %d", tbl.MaxRows(), tbl.NumRows())
	}
}

func TestInsertRejectsInvalidRow(t *testing.T) {

	tbl := openTable(t, Config{Path: filepath.Join(t.TempDir(), "invalid.db")})

	cases := [][]schema.Value{
		row(1, "0123456789"),
		{schema.NumberValue(1)},
		{schema.StringValue("x"), schema.StringValue("y")},
	}

	for i, values := range cases {
		if err := tbl.Insert(values); !errors.Is(err, dberr.ErrParse) {
			t.Errorf("case %d: Expected ErrParse but got %v", i, err)
		}
	}

	if tbl.NumRows() != 0 {
		t.Errorf("Expected %d rows but got %d", 0, tbl.NumRows())
	}

	if err := tbl.Insert(row(1, "012345678")); err != nil {
		t.Errorf("a 9 byte string fits a 10 byte field, got %v", err)
	}
}

var wideSchema = schema.MustNew(
	schema.Integer64("id"),
	schema.FixedString("name", 256),
	schema.FixedString("note", 256),
)

func wideRow(n int) []schema.Value {
	return []schema.Value{
		schema.NumberValue(int64(n)),
		schema.StringValue(fmt.Sprintf("name-%d", n)),
		schema.StringValue(fmt.Sprintf("note-%d", n*n)),
	}
}

func TestMultiLevelTree(t *testing.T) {

	path := filepath.Join(t.TempDir(), "wide.db")

	config := Config{Path: path, Schema: wideSchema, MaxPages: 30, InternalMaxKeys: 3}
	tbl := openTable(t, config)

	if tbl.RowsPerPage() != 7 {
		t.Fatalf("Expected %d but got %d", 7, tbl.RowsPerPage())
	}

	total := int(tbl.MaxRows())
	for i := 0; i < total; i++ {
		if err := tbl.Insert(wideRow(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	if err := tbl.Insert(wideRow(total)); !errors.Is(err, dberr.ErrRowLimit) {
		t.Fatalf("Expected ErrRowLimit but got %v", err)
	}

	st, err := tbl.Stats()
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if st.Tree.Height < 3 || st.Tree.Cells != total {
		t.Errorf("unexpected tree stats %+v", st.Tree)
	}

	tbl.Close()

	tbl = openTable(t, config)

	next := uint64(0)
	err = tbl.Scan(func(index uint64, values []schema.Value) error {
		if index != next {
			return fmt.Errorf("Expected index %d but got %d", next, index)
		}
		if values[1].Str != fmt.Sprintf("name-%d", index) {
			return fmt.Errorf("row %d holds %q", index, values[1].Str)
		}
		next++
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if next != uint64(total) {
		t.Errorf("Expected %d rows scanned but got %d", total, next)
	}

	expectWide := func(i int) {
		values, err := tbl.Read(uint64(i))
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if values[2].Str != fmt.Sprintf("note-%d", i*i) {
			t.Errorf("row %d: unexpected note %q", i, values[2].Str)
		}
	}
	expectWide(0)
	expectWide(total / 2)
	expectWide(total - 1)
}

func TestStoredSchemaWins(t *testing.T) {

	path := filepath.Join(t.TempDir(), "schema.db")

	tbl := openTable(t, Config{Path: path})
	tbl.Insert(row(7, "seven"))
	tbl.Close()

	tbl = openTable(t, Config{Path: path, Schema: wideSchema, MaxPages: 5})

	if !tbl.Schema().Equal(DefaultSchema) {
		t.Errorf("Expected stored schema %s but got %s", DefaultSchema, tbl.Schema())
	}
	if tbl.MaxPages() != DefaultMaxPages {
		t.Errorf("Expected %d max pages but got %d", DefaultMaxPages, tbl.MaxPages())
	}

	expectRow(t, tbl, 0, 7, "seven")
}

func TestSecondOpenIsLocked(t *testing.T) {

	if runtime.GOOS == "windows" {
		t.Skip("advisory locks are unix only")
	}

	path := filepath.Join(t.TempDir(), "locked.db")
	openTable(t, Config{Path: path})

	if _, err := Open(Config{Path: path}); !errors.Is(err, dberr.ErrLocked) {
		t.Errorf("Expected ErrLocked but got %v", err)
	}
}

func TestClosedTable(t *testing.T) {

	tbl := openTable(t, Config{Path: filepath.Join(t.TempDir(), "closed.db")})
	tbl.Insert(row(1, "a"))

	if err := tbl.Close(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}

	if err := tbl.Insert(row(2, "b")); !errors.Is(err, dberr.ErrClosed) {
		t.Errorf("Expected ErrClosed but got %v", err)
	}
	if _, err := tbl.Read(0); !errors.Is(err, dberr.ErrClosed) {
		t.Errorf("Expected ErrClosed but got %v", err)
	}
}

func TestCorruptedHeader(t *testing.T) {

	path := filepath.Join(t.TempDir(), "garbage.db")

	tbl := openTable(t, Config{Path: path})
	tbl.Close()

	// payload length far beyond the header region
	f, err := os.OpenFile(path, os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	f.WriteAt([]byte{0xff, 0xff, 0xff, 0x7f}, 0)
	f.Close()

	if _, err := Open(Config{Path: path}); !errors.Is(err, dberr.ErrSerialization) {
		t.Errorf("Expected ErrSerialization but got %v", err)
	}
}

func TestBackupRestore(t *testing.T) {

	dir := t.TempDir()

	config := Config{Path: filepath.Join(dir, "src.db"), Schema: wideSchema, MaxPages: 10, InternalMaxKeys: 3}
	tbl := openTable(t, config)

	for i := 0; i < 40; i++ {
		if err := tbl.Insert(wideRow(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	var backup bytes.Buffer
	written, err := tbl.Backup(&backup)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if backup.Len() == 0 || written <= int64(backup.Len()) {
		t.Errorf("backup of %d bytes compressed to %d", written, backup.Len())
	}

	restoredPath := filepath.Join(dir, "restored.db")
	if err := Restore(bytes.NewReader(backup.Bytes()), restoredPath); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if err := Restore(bytes.NewReader(backup.Bytes()), restoredPath); !errors.Is(err, dberr.ErrMisuse) {
		t.Errorf("Expected ErrMisuse restoring over an existing file but got %v", err)
	}

	restored := openTable(t, Config{Path: restoredPath, InternalMaxKeys: 3})

	if restored.NumRows() != 40 || restored.ID() != tbl.ID() {
		t.Fatalf("restored table has %d rows, id %v", restored.NumRows(), restored.ID())
	}

	for i := 0; i < 40; i++ {
		values, err := restored.Read(uint64(i))
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if values[0].Num != int64(i) {
			t.Errorf("Expected %d but got %d", i, values[0].Num)
		}
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {

	path := filepath.Join(t.TempDir(), "bad.db")

	if err := Restore(bytes.NewReader([]byte("nope")), path); err == nil {
		t.Fatalf("Expected an error")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("failed restore should remove %s, stat: %v", path, err)
	}
}

func TestInsertRecoversFromFailedHeaderWrite(t *testing.T) {

	path := filepath.Join(t.TempDir(), "stuck.db")
	tbl := openTable(t, Config{Path: path})

	if err := tbl.Insert(row(0, "zero")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	name := tbl.header.Name

	// a name that no longer fits the header region fails the commit after the
	// leaf holding the row has been flushed
	tbl.header.Name = strings.Repeat("x", schema.HeaderSpace)
	if err := tbl.Insert(row(1, "lost")); !errors.Is(err, dberr.ErrSerialization) {
		t.Fatalf("Expected ErrSerialization but got %v", err)
	}
	if tbl.NumRows() != 1 {
		t.Fatalf("Expected %d but got %d", 1, tbl.NumRows())
	}

	tbl.header.Name = name
	if err := tbl.Insert(row(1, "one")); err != nil {
		t.Fatalf("insert after a failed header write: %v", err)
	}
	expectRow(t, tbl, 1, 1, "one")

	tbl.header.Name = strings.Repeat("x", schema.HeaderSpace)
	if err := tbl.Insert(row(2, "lost")); !errors.Is(err, dberr.ErrSerialization) {
		t.Fatalf("Expected ErrSerialization but got %v", err)
	}
	tbl.header.Name = name

	if err := tbl.Close(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	tbl = openTable(t, Config{Path: path})

	if tbl.NumRows() != 2 {
		t.Fatalf("Expected %d but got %d", 2, tbl.NumRows())
	}

	if _, err := tbl.Read(2); !errors.Is(err, dberr.ErrRowNotFound) {
		t.Errorf("Expected ErrRowNotFound for the uncommitted row but got %v", err)
	}

	for i, s := range []string{"two", "three"} {
		if err := tbl.Insert(row(int64(i+2), s)); err != nil {
			t.Fatalf("insert after reopen: %v", err)
		}
	}

	expectRow(t, tbl, 0, 0, "zero")
	expectRow(t, tbl, 1, 1, "one")
	expectRow(t, tbl, 2, 2, "two")
	expectRow(t, tbl, 3, 3, "three")
}

func TestRestoreRejectsBadPageType(t *testing.T) {

	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")

	tbl := openTable(t, Config{Path: src})
	for i := 0; i < 3; i++ {
		if err := tbl.Insert(row(int64(i), "r")); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	raw, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(raw) != schema.HeaderSpace+btree.PageSize {
		t.Fatalf("Expected %d but got %d", schema.HeaderSpace+btree.PageSize, len(raw))
	}
	raw[schema.HeaderSpace] = 7

	var backup bytes.Buffer
	if _, err := compression.Compress(&backup, bytes.NewReader(raw)); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	path := filepath.Join(dir, "restored.db")
	if err := Restore(&backup, path); !errors.Is(err, dberr.ErrCorrupted) {
		t.Fatalf("Expected ErrCorrupted but got %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("failed restore should remove %s, stat: %v", path, err)
	}
}
