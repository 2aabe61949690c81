package btree

import "encoding/binary"

const PageSize = 4096

// RootPage is the index of the root node. A root split moves the old root's
// contents to a new page so the root never changes index.
const RootPage uint32 = 0

// KeySize is the width of a key in both node kinds.
const KeySize = 4

type NodeType uint8

const (
	LeafNode     NodeType = 0
	InternalNode NodeType = 1
)

func (t NodeType) String() string {
	switch t {
	case LeafNode:
		return "leaf"
	case InternalNode:
		return "internal"
	default:
		return "unknown"
	}
}

func (t NodeType) Valid() bool {
	return t == LeafNode || t == InternalNode
}

// headerField locates one fixed-width header value inside a page.
type headerField struct {
	Offset int
	Width  int
}

func (f headerField) end() int {
	return f.Offset + f.Width
}

func (f headerField) u8(page []byte) uint8 {
	return page[f.Offset]
}

func (f headerField) putU8(page []byte, v uint8) {
	page[f.Offset] = v
}

func (f headerField) u32(page []byte) uint32 {
	return binary.NativeEndian.Uint32(page[f.Offset:f.end()])
}

func (f headerField) putU32(page []byte, v uint32) {
	binary.NativeEndian.PutUint32(page[f.Offset:f.end()], v)
}

// page header
//
// common   | type (1) | is root (1) | parent (4) |
// leaf     | common | cells (4) | next leaf (4) | (key, row) ...
// internal | common | keys (4) | right child (4) | (child, key) ...
var (
	nodeTypeField = headerField{Offset: 0, Width: 1}
	isRootField   = headerField{Offset: nodeTypeField.end(), Width: 1}
	parentField   = headerField{Offset: isRootField.end(), Width: 4}

	leafNumCellsField = headerField{Offset: parentField.end(), Width: 4}
	leafNextLeafField = headerField{Offset: leafNumCellsField.end(), Width: 4}

	internalNumKeysField    = headerField{Offset: parentField.end(), Width: 4}
	internalRightChildField = headerField{Offset: internalNumKeysField.end(), Width: 4}
)

var (
	CommonHeaderSize   = parentField.end()
	LeafHeaderSize     = leafNextLeafField.end()
	InternalHeaderSize = internalRightChildField.end()
)

const internalCellSize = 4 + KeySize // child pointer + key

// InternalMaxKeys is the number of (child, key) cells that fit an internal page.
var InternalMaxKeys = (PageSize - InternalHeaderSize) / internalCellSize

// LeafMaxCells is the number of (key, row) cells of the given row width that fit a leaf page.
func LeafMaxCells(rowSize int) int {
	return (PageSize - LeafHeaderSize) / (KeySize + rowSize)
}
