package btree

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/schema"
)

type LeafPage struct {
	Node
	rowSize int
}

// Leaf wraps an existing page buffer.
func Leaf(data []byte, rowSize int) *LeafPage {
	return &LeafPage{Node: Node(data[:PageSize]), rowSize: rowSize}
}

// NewLeaf allocates a detached, empty leaf that no pager owns yet.
func NewLeaf(rowSize int) *LeafPage {
	l := Leaf(make([]byte, PageSize), rowSize)
	l.Init()
	return l
}

// Init turns the page into an empty, non-root leaf.
func (l *LeafPage) Init() {
	l.reset(LeafNode)
}

func (l *LeafPage) NumCells() int {
	return int(leafNumCellsField.u32(l.Node))
}

func (l *LeafPage) setNumCells(n int) {
	leafNumCellsField.putU32(l.Node, uint32(n))
}

func (l *LeafPage) MaxCells() int {
	return LeafMaxCells(l.rowSize)
}

func (l *LeafPage) RowSize() int {
	return l.rowSize
}

// NextLeaf is the right sibling in key order, 0 when this is the last leaf.
func (l *LeafPage) NextLeaf() uint32 {
	return leafNextLeafField.u32(l.Node)
}

func (l *LeafPage) SetNextLeaf(next uint32) {
	leafNextLeafField.putU32(l.Node, next)
}

func (l *LeafPage) cellSize() int {
	return KeySize + l.rowSize
}

func (l *LeafPage) cellOffset(i int) int {
	return LeafHeaderSize + i*l.cellSize()
}

func (l *LeafPage) cell(i int) []byte {
	off := l.cellOffset(i)
	return l.Node[off : off+l.cellSize()]
}

func (l *LeafPage) Key(i int) uint32 {
	off := l.cellOffset(i)
	return binary.NativeEndian.Uint32(l.Node[off : off+KeySize])
}

// Row is a view of the encoded row stored in cell i.
func (l *LeafPage) Row(i int) []byte {
	return l.cell(i)[KeySize:]
}

// MaxKey is the largest key stored in the leaf. The leaf must not be empty.
func (l *LeafPage) MaxKey() uint32 {
	return l.Key(l.NumCells() - 1)
}

// Find returns the index of the cell holding key, if any.
func (l *LeafPage) Find(key uint32) (int, bool) {
	i := l.LowerBound(key)
	if i < l.NumCells() && l.Key(i) == key {
		return i, true
	}
	return 0, false
}

// LowerBound is the index of the first cell whose key is >= key.
func (l *LeafPage) LowerBound(key uint32) int {
	return sort.Search(l.NumCells(), func(i int) bool {
		return l.Key(i) >= key
	})
}

// upperBound is the index of the first cell whose key is > key, so equal keys
// keep their insertion order.
func (l *LeafPage) upperBound(key uint32) int {
	return sort.Search(l.NumCells(), func(i int) bool {
		return l.Key(i) > key
	})
}

// ReadRow decodes the row stored in cell i.
func (l *LeafPage) ReadRow(i int, s *schema.Schema) ([]schema.Value, error) {
	if i < 0 || i >= l.NumCells() {
		return nil, fmt.Errorf("%w: cell %d of a leaf holding %d", dberr.ErrMisuse, i, l.NumCells())
	}
	return schema.DecodeRow(l.Node, l.cellOffset(i)+KeySize, s)
}

// Insert encodes values and inserts them under key. When the leaf is full it is
// split and the new right sibling is returned; the caller links it into the tree.
func (l *LeafPage) Insert(key uint32, values []schema.Value, s *schema.Schema) (*LeafPage, error) {

	if s.RowSize() != l.rowSize {
		return nil, fmt.Errorf("%w: schema row size %d, leaf row size %d", dberr.ErrMisuse, s.RowSize(), l.rowSize)
	}

	row := make([]byte, l.rowSize)
	if err := schema.EncodeRow(row, 0, s, values); err != nil {
		return nil, err
	}

	return l.InsertRow(key, row)
}

// InsertRow inserts an already encoded row.
func (l *LeafPage) InsertRow(key uint32, row []byte) (*LeafPage, error) {

	if len(row) != l.rowSize {
		return nil, fmt.Errorf("%w: row of %d bytes in a leaf of %d byte rows", dberr.ErrMisuse, len(row), l.rowSize)
	}

	numCells := l.NumCells()
	maxCells := l.MaxCells()

	if numCells > maxCells {
		return nil, fmt.Errorf("%w: leaf holds %d cells, capacity %d", dberr.ErrCorrupted, numCells, maxCells)
	}

	idx := l.upperBound(key)

	if numCells < maxCells {
		copy(l.Node[l.cellOffset(idx+1):l.cellOffset(numCells+1)], l.Node[l.cellOffset(idx):l.cellOffset(numCells)])
		writeCell(l.cell(idx), key, row)
		l.setNumCells(numCells + 1)
		return nil, nil
	}

	return l.splitInsert(idx, key, row), nil
}

func (l *LeafPage) splitInsert(idx int, key uint32, row []byte) *LeafPage {

	right := NewLeaf(l.rowSize)
	right.SetParent(l.Parent())
	right.SetNextLeaf(l.NextLeaf())

	total := l.MaxCells() + 1
	rightCount := total / 2
	leftCount := total - rightCount

	// walk down so every source cell is read before its slot is overwritten
	for i := total - 1; i >= 0; i-- {
		dest, pos := l, i
		if i >= leftCount {
			dest, pos = right, i-leftCount
		}

		dst := dest.cell(pos)

		switch {
		case i == idx:
			writeCell(dst, key, row)
		case i > idx:
			copy(dst, l.cell(i-1))
		default:
			copy(dst, l.cell(i))
		}
	}

	l.setNumCells(leftCount)
	right.setNumCells(rightCount)

	clear(l.Node[l.cellOffset(leftCount):])

	return right
}

func writeCell(dst []byte, key uint32, row []byte) {
	binary.NativeEndian.PutUint32(dst[:KeySize], key)
	copy(dst[KeySize:], row)
}
