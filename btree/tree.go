package btree

import (
	"fmt"
	"log/slog"

	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/schema"
)

// PageStore hands out page buffers by index. Buffers stay valid and owned by
// the store; the tree marks every page it modifies as dirty.
type PageStore interface {
	NumPages() uint32
	Page(index uint32) ([]byte, error)
	Allocate() (uint32, []byte, error)
	MarkDirty(index uint32)
	Remaining() int
}

type Options struct {
	// InternalMaxKeys caps internal fan-out below the page geometry; 0 keeps InternalMaxKeys.
	InternalMaxKeys int

	Logger *slog.Logger
}

// deeper than this can only be a cycle in corrupted pages
const maxDepth = 64

type Tree struct {
	store  PageStore
	schema *schema.Schema

	rowSize     int
	leafMax     int
	internalMax int

	log *slog.Logger
}

func New(store PageStore, s *schema.Schema, opts Options) (*Tree, error) {

	leafMax := LeafMaxCells(s.RowSize())
	if leafMax < 1 {
		return nil, fmt.Errorf("%w: row of %d bytes does not fit a %d byte page", dberr.ErrSchemaInvalid, s.RowSize(), PageSize)
	}

	internalMax := opts.InternalMaxKeys
	if internalMax == 0 || internalMax > InternalMaxKeys {
		internalMax = InternalMaxKeys
	}
	if internalMax < 2 {
		return nil, fmt.Errorf("%w: internal fan-out of %d keys", dberr.ErrMisuse, internalMax)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Tree{
		store:       store,
		schema:      s,
		rowSize:     s.RowSize(),
		leafMax:     leafMax,
		internalMax: internalMax,
		log:         logger,
	}, nil
}

func (t *Tree) LeafMaxCells() int {
	return t.leafMax
}

func (t *Tree) InternalMaxKeys() int {
	return t.internalMax
}

// Init creates the root leaf on an empty store.
func (t *Tree) Init() error {

	if t.store.NumPages() > 0 {
		return nil
	}

	idx, data, err := t.store.Allocate()
	if err != nil {
		return err
	}
	if idx != RootPage {
		return fmt.Errorf("%w: root allocated at page %d", dberr.ErrMisuse, idx)
	}

	root := Leaf(data, t.rowSize)
	root.Init()
	root.SetRoot(true)
	t.store.MarkDirty(idx)

	return nil
}

func (t *Tree) node(idx uint32) (Node, error) {

	data, err := t.store.Page(idx)
	if err != nil {
		return nil, err
	}

	n := Node(data)
	if !n.Type().Valid() {
		return nil, fmt.Errorf("%w: page %d has node type %d", dberr.ErrCorrupted, idx, n.Type())
	}

	return n, nil
}

func (t *Tree) leaf(idx uint32) (*LeafPage, error) {
	n, err := t.node(idx)
	if err != nil {
		return nil, err
	}
	if n.Type() != LeafNode {
		return nil, fmt.Errorf("%w: page %d expected leaf, found %s", dberr.ErrCorrupted, idx, n.Type())
	}
	return Leaf(n, t.rowSize), nil
}

func (t *Tree) internal(idx uint32) (*InternalPage, error) {
	n, err := t.node(idx)
	if err != nil {
		return nil, err
	}
	if n.Type() != InternalNode {
		return nil, fmt.Errorf("%w: page %d expected internal, found %s", dberr.ErrCorrupted, idx, n.Type())
	}
	return Internal(n), nil
}

// findLeaf descends from the root to the leaf covering key. The returned path
// lists the pages crossed, root first and leaf last.
func (t *Tree) findLeaf(key uint32) (*LeafPage, []uint32, error) {

	idx := RootPage
	path := make([]uint32, 0, 4)

	for depth := 1; depth <= maxDepth; depth++ {
		n, err := t.node(idx)
		if err != nil {
			return nil, nil, err
		}

		path = append(path, idx)

		if n.Type() == LeafNode {
			return Leaf(n, t.rowSize), path, nil
		}

		p := Internal(n)
		child := p.Child(p.FindChild(key))

		if child == RootPage || child >= t.store.NumPages() {
			return nil, nil, fmt.Errorf("%w: page %d routes to child %d of %d pages", dberr.ErrCorrupted, idx, child, t.store.NumPages())
		}

		idx = child
	}

	return nil, nil, fmt.Errorf("%w: tree deeper than %d levels", dberr.ErrCorrupted, maxDepth)
}

// splitCost is the number of pages an insert into the full leaf at the end of
// path allocates: the new leaf, one sibling per full ancestor, and a page for
// the old root when the split reaches it.
func (t *Tree) splitCost(path []uint32) (int, error) {

	need := 1

	for i := len(path) - 2; i >= 0; i-- {
		p, err := t.internal(path[i])
		if err != nil {
			return 0, err
		}
		if p.NumKeys() < t.internalMax {
			return need, nil
		}
		need++
	}

	return need + 1, nil
}

// Get returns the encoded row stored under key.
func (t *Tree) Get(key uint32) ([]byte, bool, error) {

	leaf, _, err := t.findLeaf(key)
	if err != nil {
		return nil, false, err
	}

	i, found := leaf.Find(key)
	if !found {
		return nil, false, nil
	}

	return leaf.Row(i), true, nil
}

// Lookup decodes the row stored under key.
func (t *Tree) Lookup(key uint32) ([]schema.Value, error) {

	leaf, _, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}

	i, found := leaf.Find(key)
	if !found {
		return nil, fmt.Errorf("%w: key %d", dberr.ErrRowNotFound, key)
	}

	return leaf.ReadRow(i, t.schema)
}

// Replace overwrites the row stored under key in place.
func (t *Tree) Replace(key uint32, values []schema.Value) error {

	row := make([]byte, t.rowSize)
	if err := schema.EncodeRow(row, 0, t.schema, values); err != nil {
		return err
	}

	leaf, path, err := t.findLeaf(key)
	if err != nil {
		return err
	}

	i, found := leaf.Find(key)
	if !found {
		return fmt.Errorf("%w: key %d", dberr.ErrRowNotFound, key)
	}

	copy(leaf.Row(i), row)
	t.store.MarkDirty(path[len(path)-1])

	return nil
}

// Insert stores values under key. Existing keys are rejected with ErrDuplicateKey.
func (t *Tree) Insert(key uint32, values []schema.Value) error {

	row := make([]byte, t.rowSize)
	if err := schema.EncodeRow(row, 0, t.schema, values); err != nil {
		return err
	}

	leaf, path, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	leafIdx := path[len(path)-1]

	if _, found := leaf.Find(key); found {
		return fmt.Errorf("%w: key %d", dberr.ErrDuplicateKey, key)
	}

	if leaf.NumCells() >= t.leafMax {
		need, err := t.splitCost(path)
		if err != nil {
			return err
		}
		if t.store.Remaining() < need {
			return fmt.Errorf("%w: split needs %d pages, %d left", dberr.ErrPageLimit, need, t.store.Remaining())
		}
	}

	right, err := leaf.InsertRow(key, row)
	if err != nil {
		return err
	}
	t.store.MarkDirty(leafIdx)

	if right == nil {
		return nil
	}

	rightIdx, err := t.adopt(right.Node)
	if err != nil {
		return err
	}
	leaf.SetNextLeaf(rightIdx)

	t.log.Debug("leaf split", "page", leafIdx, "sibling", rightIdx, "left_cells", leaf.NumCells(), "right_cells", right.NumCells())

	return t.propagate(leafIdx, leaf.MaxKey(), rightIdx)
}

// adopt copies a detached page into a freshly allocated one.
func (t *Tree) adopt(n Node) (uint32, error) {
	idx, data, err := t.store.Allocate()
	if err != nil {
		return 0, err
	}
	copy(data, n)
	t.store.MarkDirty(idx)
	return idx, nil
}

func (t *Tree) setParent(idx uint32, parent uint32) error {
	n, err := t.node(idx)
	if err != nil {
		return err
	}
	n.SetParent(parent)
	t.store.MarkDirty(idx)
	return nil
}

// propagate links rightIdx, split off leftIdx, into leftIdx's parent.
func (t *Tree) propagate(leftIdx uint32, leftMax uint32, rightIdx uint32) error {

	if leftIdx == RootPage {
		return t.growRoot(leftMax, rightIdx)
	}

	left, err := t.node(leftIdx)
	if err != nil {
		return err
	}

	parentIdx := left.Parent()
	parent, err := t.internal(parentIdx)
	if err != nil {
		return err
	}

	pos := parent.FindChild(leftMax)
	if parent.Child(pos) != leftIdx {
		var found bool
		if pos, found = parent.ChildPosition(leftIdx); !found {
			return fmt.Errorf("%w: page %d is not a child of its parent %d", dberr.ErrCorrupted, leftIdx, parentIdx)
		}
	}

	if err := t.setParent(rightIdx, parentIdx); err != nil {
		return err
	}

	if parent.NumKeys() < t.internalMax {
		parent.InsertChild(pos, leftMax, rightIdx)
		t.store.MarkDirty(parentIdx)
		return nil
	}

	sibling, promoted := parent.SplitInsert(pos, leftMax, rightIdx)
	t.store.MarkDirty(parentIdx)

	siblingIdx, err := t.adopt(sibling.Node)
	if err != nil {
		return err
	}

	for i := 0; i <= sibling.NumKeys(); i++ {
		if err := t.setParent(sibling.Child(i), siblingIdx); err != nil {
			return err
		}
	}

	t.log.Debug("internal split", "page", parentIdx, "sibling", siblingIdx, "promoted", promoted)

	return t.propagate(parentIdx, promoted, siblingIdx)
}

// growRoot moves the root's contents to a new page and turns the root into an
// internal node over that page and rightIdx.
func (t *Tree) growRoot(leftMax uint32, rightIdx uint32) error {

	root, err := t.node(RootPage)
	if err != nil {
		return err
	}

	leftIdx, leftData, err := t.store.Allocate()
	if err != nil {
		return err
	}

	left := Node(leftData)
	copy(left, root)
	left.SetRoot(false)
	left.SetParent(RootPage)
	t.store.MarkDirty(leftIdx)

	if left.Type() == InternalNode {
		moved := Internal(left)
		for i := 0; i <= moved.NumKeys(); i++ {
			if err := t.setParent(moved.Child(i), leftIdx); err != nil {
				return err
			}
		}
	}

	if err := t.setParent(rightIdx, RootPage); err != nil {
		return err
	}

	newRoot := Internal(root)
	newRoot.Init()
	newRoot.SetRoot(true)
	newRoot.setCell(0, leftIdx, leftMax)
	newRoot.SetRightChild(rightIdx)
	newRoot.setNumKeys(1)
	t.store.MarkDirty(RootPage)

	t.log.Debug("root split", "left", leftIdx, "right", rightIdx, "separator", leftMax)

	return nil
}

// Scan calls fn for every cell in key order by walking the leaf chain.
func (t *Tree) Scan(fn func(key uint32, row []byte) error) error {

	idx, err := t.leftmostLeaf()
	if err != nil {
		return err
	}

	for visited := uint32(0); ; visited++ {
		if visited > t.store.NumPages() {
			return fmt.Errorf("%w: leaf chain loops", dberr.ErrCorrupted)
		}

		leaf, err := t.leaf(idx)
		if err != nil {
			return err
		}

		for i := 0; i < leaf.NumCells(); i++ {
			if err := fn(leaf.Key(i), leaf.Row(i)); err != nil {
				return err
			}
		}

		idx = leaf.NextLeaf()
		if idx == 0 {
			return nil
		}
	}
}

// ScanRows is Scan with decoded rows.
func (t *Tree) ScanRows(fn func(key uint32, values []schema.Value) error) error {
	return t.Scan(func(key uint32, row []byte) error {
		values, err := schema.DecodeRow(row, 0, t.schema)
		if err != nil {
			return err
		}
		return fn(key, values)
	})
}

func (t *Tree) leftmostLeaf() (uint32, error) {

	idx := RootPage

	for depth := 0; depth < maxDepth; depth++ {
		n, err := t.node(idx)
		if err != nil {
			return 0, err
		}
		if n.Type() == LeafNode {
			return idx, nil
		}
		idx = Internal(n).Child(0)
	}

	return 0, fmt.Errorf("%w: tree deeper than %d levels", dberr.ErrCorrupted, maxDepth)
}

// Height is the number of levels from the root down to the leaves.
func (t *Tree) Height() (int, error) {

	idx := RootPage

	for depth := 1; depth <= maxDepth; depth++ {
		n, err := t.node(idx)
		if err != nil {
			return 0, err
		}
		if n.Type() == LeafNode {
			return depth, nil
		}
		idx = Internal(n).Child(0)
	}

	return 0, fmt.Errorf("%w: tree deeper than %d levels", dberr.ErrCorrupted, maxDepth)
}

type Stats struct {
	Height    int
	Leaves    int
	Internals int
	Cells     int
}

// Stats walks the whole tree.
func (t *Tree) Stats() (Stats, error) {

	var st Stats

	var walk func(idx uint32, depth int) error
	walk = func(idx uint32, depth int) error {
		if depth > maxDepth {
			return fmt.Errorf("%w: tree deeper than %d levels", dberr.ErrCorrupted, maxDepth)
		}
		if depth > st.Height {
			st.Height = depth
		}

		n, err := t.node(idx)
		if err != nil {
			return err
		}

		if n.Type() == LeafNode {
			st.Leaves++
			st.Cells += Leaf(n, t.rowSize).NumCells()
			return nil
		}

		st.Internals++
		p := Internal(n)
		for i := 0; i <= p.NumKeys(); i++ {
			if err := walk(p.Child(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	return st, walk(RootPage, 1)
}
