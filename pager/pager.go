// Package pager maps page indices of a table file to cached 4096 byte buffers.
//
// Pages live in the file right after the header region, page i at
// schema.HeaderSpace + i*btree.PageSize. Pages are loaded lazily and stay cached
// until the pager is closed; there is no eviction, so capacity bounds both the
// file and the cache.
package pager

import (
	"fmt"
	"log"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/trueleo/scalardb/bits"
	"github.com/trueleo/scalardb/btree"
	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/io"
	"github.com/trueleo/scalardb/schema"
)

const notCached = -1

type Pager struct {
	file *io.DataFile

	slots    *SlotArena
	slotOf   []int32 // by page index, grows with the file
	numPages uint32
	capacity int

	dirty bits.Bitfield
	stats Stats

	closed bool
}

func PageOffset(index uint32) int {
	return schema.HeaderSpace + int(index)*btree.PageSize
}

// Open attaches a pager to an opened file. The page count is derived from the
// file length; a trailing partial page is ignored.
func Open(file *io.DataFile, capacity int) (*Pager, error) {

	if capacity < 1 {
		return nil, fmt.Errorf("%w: pager capacity %d", dberr.ErrMisuse, capacity)
	}

	size, err := file.Size()
	if err != nil {
		return nil, err
	}

	var numPages int64
	if size > schema.HeaderSpace {
		body := size - schema.HeaderSpace
		numPages = body / btree.PageSize

		if rest := body % btree.PageSize; rest != 0 {
			log.Printf("pager: %s ends with a partial page of %d bytes, ignoring it", file.Path(), rest)
		}
	}

	if numPages > int64(capacity) {
		return nil, fmt.Errorf("%w: file holds %d pages, capacity is %d", dberr.ErrCorrupted, numPages, capacity)
	}

	slotOf := make([]int32, numPages)
	for i := range slotOf {
		slotOf[i] = notCached
	}

	return &Pager{
		file:     file,
		slots:    NewSlotArena(capacity, btree.PageSize),
		slotOf:   slotOf,
		numPages: uint32(numPages),
		capacity: capacity,
		dirty:    bits.NewBitfield(capacity),
		stats:    Stats{Opened: time.Now()},
	}, nil
}

func (p *Pager) NumPages() uint32 {
	return p.numPages
}

func (p *Pager) Capacity() int {
	return p.capacity
}

// Remaining is the number of pages that can still be created.
func (p *Pager) Remaining() int {
	return p.capacity - int(p.numPages)
}

func (p *Pager) cached(index uint32) []byte {
	if int(index) >= len(p.slotOf) {
		return nil
	}
	if slot := p.slotOf[index]; slot != notCached {
		return p.slots.Buffer(uint32(slot))
	}
	return nil
}

// Page returns the buffer of page index. Asking for the page right after the
// last one grows the file by one zeroed page, which reads as an empty leaf.
func (p *Pager) Page(index uint32) ([]byte, error) {

	if p.closed {
		return nil, dberr.ErrClosed
	}

	if int(index) >= p.capacity {
		return nil, fmt.Errorf("%w: page %d, capacity %d", dberr.ErrPageLimit, index, p.capacity)
	}

	if index > p.numPages {
		return nil, fmt.Errorf("%w: page %d requested with %d pages in the file", dberr.ErrMisuse, index, p.numPages)
	}

	if data := p.cached(index); data != nil {
		p.stats.Hits++
		return data, nil
	}

	p.stats.Misses++

	if index == p.numPages {
		return p.create(index)
	}

	return p.load(index)
}

func (p *Pager) create(index uint32) ([]byte, error) {

	if err := p.file.FillZeroes(PageOffset(index), btree.PageSize); err != nil {
		return nil, fmt.Errorf("unable to grow file to page %d: %w", index, err)
	}

	data, slot, err := p.slots.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %w", dberr.ErrPageLimit, index, err)
	}

	btree.Leaf(data, 0).Init()

	p.slotOf = append(p.slotOf, int32(slot))
	p.numPages++
	p.stats.Allocations++

	return data, nil
}

func (p *Pager) load(index uint32) ([]byte, error) {

	data, slot, err := p.slots.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %w", dberr.ErrPageLimit, index, err)
	}

	if err := p.file.ReadAt(data, PageOffset(index)); err != nil {
		p.slots.Return(slot)
		return nil, fmt.Errorf("unable to read page %d: %w", index, err)
	}

	if typ := btree.Node(data).Type(); !typ.Valid() {
		log.Printf("pager: page %d has unknown node type %d, header:\n%s", index, typ, spew.Sdump(data[:btree.LeafHeaderSize]))
		p.slots.Return(slot)
		return nil, fmt.Errorf("%w: page %d has unknown node type %d", dberr.ErrCorrupted, index, typ)
	}

	p.slotOf[index] = int32(slot)
	p.stats.Loads++

	return data, nil
}

// Allocate creates the next page.
func (p *Pager) Allocate() (uint32, []byte, error) {
	index := p.numPages
	data, err := p.Page(index)
	if err != nil {
		return 0, nil, err
	}
	return index, data, nil
}

func (p *Pager) MarkDirty(index uint32) {
	if int(index) < p.capacity {
		p.dirty.Set(int(index))
	}
}

// FlushPage writes page index to disk if it is cached, dirty or not.
func (p *Pager) FlushPage(index uint32) error {

	if p.closed {
		return dberr.ErrClosed
	}

	if int(index) >= p.capacity {
		return fmt.Errorf("%w: page %d, capacity %d", dberr.ErrPageLimit, index, p.capacity)
	}

	data := p.cached(index)
	if data == nil {
		return nil
	}

	if err := p.file.WriteAt(data, PageOffset(index)); err != nil {
		return fmt.Errorf("unable to flush page %d: %w", index, err)
	}

	p.dirty.Clear(int(index))
	p.stats.Flushes++

	return nil
}

// Flush writes every dirty page in index order.
func (p *Pager) Flush() error {

	if p.closed {
		return dberr.ErrClosed
	}

	for _, index := range p.dirty.ToIndices(nil) {
		if err := p.FlushPage(index); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pager) Sync() error {
	if p.closed {
		return dberr.ErrClosed
	}
	return p.file.Sync()
}

func (p *Pager) Stats() Stats {
	st := p.stats
	st.Pages = p.numPages
	st.Capacity = p.capacity
	st.Cached = p.slots.Used()
	st.Dirty = p.dirty.Count()
	return st
}

// Close flushes dirty pages and drops the cache. The file stays open.
func (p *Pager) Close() error {

	if p.closed {
		return nil
	}

	err := p.Flush()

	p.closed = true
	p.slots = nil
	p.slotOf = nil

	return err
}
