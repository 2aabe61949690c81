// Package table ties a table file's header, pager and B+tree together.
//
// Rows are keyed by insertion order: the n-th inserted row is stored under key
// n-1. The header keeps the row count and is rewritten after every insert.
package table

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/trueleo/scalardb/btree"
	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/io"
	"github.com/trueleo/scalardb/pager"
	"github.com/trueleo/scalardb/schema"
)

type Table struct {
	config      Config
	schemaGiven bool

	file   *io.DataFile
	header *schema.TableHeader
	pager  *pager.Pager
	tree   *btree.Tree

	rowsPerPage int
	maxRows     uint64

	headerBuf [schema.HeaderSpace]byte

	log    *slog.Logger
	closed bool
}

type Stats struct {
	Rows        uint64
	MaxRows     uint64
	RowsPerPage int

	Tree  btree.Stats
	Pager pager.Stats
}

// New opens or creates the table file at path.
func New(name string, s *schema.Schema, path string) (*Table, error) {
	return Open(Config{Path: path, Name: name, Schema: s})
}

func Open(config Config) (*Table, error) {

	if config.Path == "" {
		return nil, fmt.Errorf("%w: empty table path", dberr.ErrMisuse)
	}

	schemaGiven := config.Schema != nil
	config = config.withDefaults()

	file := io.NewDataFile(config.Path)
	if err := file.Open(false); err != nil {
		return nil, err
	}

	if err := file.Lock(io.Exclusive); err != nil {
		file.Close()
		return nil, err
	}

	t := &Table{
		config:      config,
		schemaGiven: schemaGiven,
		file:        file,
		log:         config.Logger.With("table", config.Name),
	}

	if err := t.open(); err != nil {
		file.Close()
		return nil, err
	}

	return t, nil
}

func (t *Table) open() error {

	size, err := t.file.Size()
	if err != nil {
		return err
	}

	created := false

	switch {
	case size == 0:
		if err := t.create(); err != nil {
			return err
		}
		created = true
	case size < schema.HeaderSpace:
		return fmt.Errorf("%w: file of %d bytes is shorter than the header region", dberr.ErrCorrupted, size)
	}

	if err := t.loadHeader(); err != nil {
		return err
	}

	if !created && t.schemaGiven && !t.header.Schema.Equal(t.config.Schema) {
		t.log.Warn("schema differs from the stored one, using stored schema",
			"requested", t.config.Schema.String(),
			"stored", t.header.Schema.String())
	}

	s := t.header.Schema

	t.rowsPerPage = btree.LeafMaxCells(s.RowSize())
	if t.rowsPerPage < 1 {
		return fmt.Errorf("%w: row of %d bytes does not fit a page", dberr.ErrSchemaInvalid, s.RowSize())
	}

	t.maxRows = min(uint64(t.rowsPerPage)*uint64(t.header.MaxPages), math.MaxUint32+1)

	internalMax := btree.InternalMaxKeys
	if k := t.config.InternalMaxKeys; k > 0 && k < internalMax {
		internalMax = k
	}

	capacity := btree.PageBudget(int(t.maxRows), t.rowsPerPage, internalMax)

	t.pager, err = pager.Open(t.file, capacity)
	if err != nil {
		return err
	}

	t.tree, err = btree.New(t.pager, s, btree.Options{
		InternalMaxKeys: internalMax,
		Logger:          t.log,
	})
	if err != nil {
		return err
	}

	if t.pager.NumPages() == 0 {
		if t.header.NumRows != 0 {
			return fmt.Errorf("%w: header counts %d rows but the file has no pages", dberr.ErrCorrupted, t.header.NumRows)
		}

		if err := t.tree.Init(); err != nil {
			return err
		}
		if err := t.pager.Flush(); err != nil {
			return err
		}
		if err := t.sync(); err != nil {
			return err
		}
	}

	if t.header.NumRows > t.maxRows {
		return fmt.Errorf("%w: header counts %d rows, limit is %d", dberr.ErrCorrupted, t.header.NumRows, t.maxRows)
	}

	t.log.Info("table opened",
		"path", t.config.Path,
		"uid", t.header.Uid.String(),
		"rows", t.header.NumRows,
		"pages", t.pager.NumPages(),
		"max_rows", t.maxRows,
		"page_capacity", capacity)

	return nil
}

func (t *Table) create() error {

	header := schema.NewTableHeader(t.config.Name, t.config.Schema, t.config.MaxPages)

	if _, err := header.WriteTo(t.headerBuf[:]); err != nil {
		return err
	}

	if err := t.file.WriteAt(t.headerBuf[:], 0); err != nil {
		return fmt.Errorf("unable to write table header: %w", err)
	}

	color.Green(" +++ created table %s with id %v, row size %d bytes, %d max pages",
		header.Name, header.Uid.String(), header.Schema.RowSize(), header.MaxPages)

	return nil
}

func (t *Table) loadHeader() error {

	if err := t.file.ReadAt(t.headerBuf[:], 0); err != nil {
		return fmt.Errorf("unable to read table header: %w", err)
	}

	header := &schema.TableHeader{}
	if err := header.FromBytes(t.headerBuf[:]); err != nil {
		return fmt.Errorf("unable to decode table header of %s: %w", t.config.Path, err)
	}

	t.header = header
	return nil
}

// FlushHeader writes the in-memory header to the header region.
func (t *Table) FlushHeader() error {

	if t.closed {
		return dberr.ErrClosed
	}

	if _, err := t.header.WriteTo(t.headerBuf[:]); err != nil {
		return err
	}

	if err := t.file.WriteAt(t.headerBuf[:], 0); err != nil {
		return fmt.Errorf("unable to flush table header: %w", err)
	}

	return nil
}

func (t *Table) sync() error {
	if t.config.NoSync {
		return nil
	}
	return t.file.Sync()
}

// Insert appends a row. Any failure before the header is written leaves the
// row count unchanged.
func (t *Table) Insert(values []schema.Value) error {

	if t.closed {
		return dberr.ErrClosed
	}

	if t.header.NumRows >= t.maxRows {
		return fmt.Errorf("%w: %d rows", dberr.ErrRowLimit, t.maxRows)
	}

	key := uint32(t.header.NumRows)

	// a cell at num_rows is left over from an insert whose commit failed
	_, leftover, err := t.tree.Get(key)
	if err != nil {
		return err
	}

	if leftover {
		t.log.Warn("overwriting uncommitted row", "key", key)
		err = t.tree.Replace(key, values)
	} else {
		err = t.tree.Insert(key, values)
	}

	if err != nil {
		if errors.Is(err, dberr.ErrPageLimit) {
			t.log.Error("page budget exhausted before the row limit", "rows", t.header.NumRows, "err", err)
		}
		return err
	}

	if err := t.pager.Flush(); err != nil {
		return err
	}

	t.header.NumRows++

	if err := t.FlushHeader(); err != nil {
		t.header.NumRows--
		return err
	}

	return t.sync()
}

// Read returns the row at index, counted from 0 in insertion order.
func (t *Table) Read(index uint64) ([]schema.Value, error) {

	if t.closed {
		return nil, dberr.ErrClosed
	}

	if index >= t.header.NumRows {
		return nil, fmt.Errorf("%w: index %d, table holds %d rows", dberr.ErrRowNotFound, index, t.header.NumRows)
	}

	values, err := t.tree.Lookup(uint32(index))
	if errors.Is(err, dberr.ErrRowNotFound) {
		return nil, fmt.Errorf("%w: row %d counted in the header is missing: %w", dberr.ErrCorrupted, index, err)
	}

	return values, err
}

// Scan calls fn for every row in insertion order.
func (t *Table) Scan(fn func(index uint64, values []schema.Value) error) error {

	if t.closed {
		return dberr.ErrClosed
	}

	return t.tree.ScanRows(func(key uint32, values []schema.Value) error {
		return fn(uint64(key), values)
	})
}

func (t *Table) Close() error {

	if t.closed {
		return nil
	}

	var errs []error

	errs = append(errs, t.pager.Close())
	errs = append(errs, t.FlushHeader())
	errs = append(errs, t.file.Sync())
	errs = append(errs, t.file.Close())

	t.closed = true

	t.log.Info("table closed", "rows", t.header.NumRows)

	return errors.Join(errs...)
}

func (t *Table) Name() string {
	return t.header.Name
}

func (t *Table) ID() uuid.UUID {
	return t.header.Uid
}

func (t *Table) Path() string {
	return t.config.Path
}

func (t *Table) Schema() *schema.Schema {
	return t.header.Schema
}

func (t *Table) NumRows() uint64 {
	return t.header.NumRows
}

func (t *Table) RowsPerPage() int {
	return t.rowsPerPage
}

func (t *Table) MaxPages() uint32 {
	return t.header.MaxPages
}

func (t *Table) MaxRows() uint64 {
	return t.maxRows
}

func (t *Table) Stats() (Stats, error) {

	if t.closed {
		return Stats{}, dberr.ErrClosed
	}

	treeStats, err := t.tree.Stats()
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Rows:        t.header.NumRows,
		MaxRows:     t.maxRows,
		RowsPerPage: t.rowsPerPage,
		Tree:        treeStats,
		Pager:       t.pager.Stats(),
	}, nil
}
