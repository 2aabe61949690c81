package btree

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sort"

	"github.com/trueleo/scalardb/dberr"
)

type Side uint8

const (
	Left Side = iota
	Right
)

// InternalPage routes keys to children. Key i is the largest key reachable
// through child i; the right child covers every key above the last cell's key.
type InternalPage struct {
	Node
}

func Internal(data []byte) *InternalPage {
	return &InternalPage{Node: Node(data[:PageSize])}
}

// NewInternal allocates a detached, empty internal page.
func NewInternal() *InternalPage {
	p := Internal(make([]byte, PageSize))
	p.Init()
	return p
}

func (p *InternalPage) Init() {
	p.reset(InternalNode)
}

func (p *InternalPage) NumKeys() int {
	return int(internalNumKeysField.u32(p.Node))
}

func (p *InternalPage) setNumKeys(n int) {
	internalNumKeysField.putU32(p.Node, uint32(n))
}

func (p *InternalPage) MaxKeys() int {
	return InternalMaxKeys
}

func (p *InternalPage) RightChild() uint32 {
	return internalRightChildField.u32(p.Node)
}

func (p *InternalPage) SetRightChild(child uint32) {
	internalRightChildField.putU32(p.Node, child)
}

func cellOffset(i int) int {
	return InternalHeaderSize + i*internalCellSize
}

func (p *InternalPage) Key(i int) uint32 {
	off := cellOffset(i) + 4
	return binary.NativeEndian.Uint32(p.Node[off : off+KeySize])
}

func (p *InternalPage) setKey(i int, key uint32) {
	off := cellOffset(i) + 4
	binary.NativeEndian.PutUint32(p.Node[off:off+KeySize], key)
}

func (p *InternalPage) cellChild(i int) uint32 {
	off := cellOffset(i)
	return binary.NativeEndian.Uint32(p.Node[off : off+4])
}

func (p *InternalPage) setCellChild(i int, child uint32) {
	off := cellOffset(i)
	binary.NativeEndian.PutUint32(p.Node[off:off+4], child)
}

func (p *InternalPage) setCell(i int, child, key uint32) {
	p.setCellChild(i, child)
	p.setKey(i, key)
}

// Child returns child i, where i == NumKeys() is the right child.
func (p *InternalPage) Child(i int) uint32 {
	if i == p.NumKeys() {
		return p.RightChild()
	}
	return p.cellChild(i)
}

// Children returns the left child of cell i, or the child to its right.
func (p *InternalPage) Children(i int, side Side) (uint32, error) {
	numKeys := p.NumKeys()

	if side == Right {
		i++
	}

	if i < 0 || i > numKeys {
		return 0, fmt.Errorf("%w: child %d of an internal page with %d keys", dberr.ErrMisuse, i, numKeys)
	}

	return p.Child(i), nil
}

// FindChild returns the position of the child whose subtree covers key.
// NumKeys() means the right child.
func (p *InternalPage) FindChild(key uint32) int {
	return sort.Search(p.NumKeys(), func(i int) bool {
		return p.Key(i) >= key
	})
}

// ChildPosition finds child among the page's children.
func (p *InternalPage) ChildPosition(child uint32) (int, bool) {
	for i := 0; i <= p.NumKeys(); i++ {
		if p.Child(i) == child {
			return i, true
		}
	}
	return 0, false
}

// InsertChild records that child pos was split: its largest key is now leftMax
// and newChild, holding the rest of its keys, sits right after it.
// The page must have room for one more key.
func (p *InternalPage) InsertChild(pos int, leftMax uint32, newChild uint32) {

	numKeys := p.NumKeys()

	if pos == numKeys {
		p.setCell(numKeys, p.RightChild(), leftMax)
		p.SetRightChild(newChild)
		p.setNumKeys(numKeys + 1)
		return
	}

	copy(p.Node[cellOffset(pos+1):cellOffset(numKeys+1)], p.Node[cellOffset(pos):cellOffset(numKeys)])
	p.setKey(pos, leftMax)
	p.setCellChild(pos+1, newChild)
	p.setNumKeys(numKeys + 1)
}

// SplitInsert is InsertChild for a full page. maxKeys+1 keys are divided
// between this page and a new right sibling; the median key moves up to the
// parent and is returned as promoted. The right page's children still point to
// this page as their parent.
func (p *InternalPage) SplitInsert(pos int, leftMax uint32, newChild uint32) (right *InternalPage, promoted uint32) {

	numKeys := p.NumKeys()

	keys := make([]uint32, 0, numKeys+1)
	children := make([]uint32, 0, numKeys+2)

	for i := 0; i < numKeys; i++ {
		keys = append(keys, p.Key(i))
	}
	for i := 0; i <= numKeys; i++ {
		children = append(children, p.Child(i))
	}

	keys = slices.Insert(keys, pos, leftMax)
	children = slices.Insert(children, pos+1, newChild)

	total := len(keys)
	rightCount := (total - 1) / 2
	leftCount := total - 1 - rightCount

	right = NewInternal()
	right.SetParent(p.Parent())

	parent, root := p.Parent(), p.IsRoot()
	p.Init()
	p.SetParent(parent)
	p.SetRoot(root)

	p.fill(keys[:leftCount], children[:leftCount+1])
	right.fill(keys[leftCount+1:], children[leftCount+1:])

	return right, keys[leftCount]
}

func (p *InternalPage) fill(keys []uint32, children []uint32) {
	for i, key := range keys {
		p.setCell(i, children[i], key)
	}
	p.SetRightChild(children[len(keys)])
	p.setNumKeys(len(keys))
}
