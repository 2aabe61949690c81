// Package check verifies a table file without opening it as a table.
package check

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/sync/errgroup"

	"github.com/trueleo/scalardb/bits"
	"github.com/trueleo/scalardb/btree"
	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/io"
	"github.com/trueleo/scalardb/pager"
	"github.com/trueleo/scalardb/schema"
)

type Report struct {
	Table string
	Uid   string
	Rows  uint64

	Pages     uint32
	Leaves    int
	Internals int
	Height    int
	Cells     int

	Problems []string
}

func (r Report) OK() bool {
	return len(r.Problems) == 0
}

type verifier struct {
	header *schema.TableHeader
	pages  [][]byte

	rowSize   int
	visited   bits.Bitfield
	leafOrder []uint32
	leafDepth int

	report *Report
}

func (v *verifier) problem(idx uint32, format string, args ...any) {
	msg := fmt.Sprintf("page %d: %s", idx, fmt.Sprintf(format, args...))
	v.report.Problems = append(v.report.Problems, msg)

	if int(idx) < len(v.pages) {
		slog.Debug("integrity problem", "page", idx, "problem", msg, "header", spew.Sdump(v.pages[idx][:btree.LeafHeaderSize]))
	}
}

// Verify reads the table at path and checks the header and every page
// reachable from the root. A file that breaks the format returns an error
// wrapping dberr.ErrCorrupted along with a report listing every problem found.
func Verify(ctx context.Context, path string) (Report, error) {

	var report Report

	file := io.NewDataFile(path)
	if err := file.Open(true); err != nil {
		return report, err
	}
	defer file.Close()

	if err := file.Lock(io.Shared); err != nil {
		return report, err
	}

	headerBuf := make([]byte, schema.HeaderSpace)
	if err := file.ReadAt(headerBuf, 0); err != nil {
		return report, fmt.Errorf("%w: header region: %w", dberr.ErrCorrupted, err)
	}

	header := &schema.TableHeader{}
	if err := header.FromBytes(headerBuf); err != nil {
		return report, fmt.Errorf("%w: %w", dberr.ErrCorrupted, err)
	}

	report.Table = header.Name
	report.Uid = header.Uid.String()
	report.Rows = header.NumRows

	size, err := file.Size()
	if err != nil {
		return report, err
	}

	body := size - schema.HeaderSpace
	if body%btree.PageSize != 0 {
		return report, fmt.Errorf("%w: %d bytes after the header is not a whole number of pages", dberr.ErrCorrupted, body)
	}

	report.Pages = uint32(body / btree.PageSize)
	if report.Pages == 0 {
		return report, fmt.Errorf("%w: no root page", dberr.ErrCorrupted)
	}

	pages, err := readPages(ctx, file, report.Pages)
	if err != nil {
		return report, err
	}

	v := &verifier{
		header:  header,
		pages:   pages,
		rowSize: header.Schema.RowSize(),
		visited: bits.NewBitfield(int(report.Pages)),
		report:  &report,
	}

	v.walk(btree.RootPage, btree.RootPage, 1, bound{})
	v.checkLeafChain()

	for idx := uint32(0); idx < report.Pages; idx++ {
		if v.visited.Get(int(idx)) == 0 {
			v.problem(idx, "not reachable from the root")
		}
	}

	if uint64(report.Cells) != header.NumRows {
		v.problem(btree.RootPage, "tree holds %d cells, header counts %d rows", report.Cells, header.NumRows)
	}

	if !report.OK() {
		return report, fmt.Errorf("%w: %d problems, first: %s", dberr.ErrCorrupted, len(report.Problems), report.Problems[0])
	}

	return report, nil
}

// readPages loads every page concurrently and validates node type tags.
func readPages(ctx context.Context, file *io.DataFile, count uint32) ([][]byte, error) {

	pages := make([][]byte, count)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for idx := uint32(0); idx < count; idx++ {
		idx := idx // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			data := make([]byte, btree.PageSize)
			if err := file.ReadAt(data, pager.PageOffset(idx)); err != nil {
				return fmt.Errorf("unable to read page %d: %w", idx, err)
			}

			if typ := btree.Node(data).Type(); !typ.Valid() {
				return fmt.Errorf("%w: page %d has unknown node type %d", dberr.ErrCorrupted, idx, typ)
			}

			pages[idx] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return pages, nil
}

// bound is the key range (lo, hi] a subtree may hold.
type bound struct {
	lo, hi       uint32
	hasLo, hasHi bool
}

func (b bound) contains(key uint32) bool {
	return (!b.hasLo || key > b.lo) && (!b.hasHi || key <= b.hi)
}

// walk checks the subtree at idx and returns its largest key.
func (v *verifier) walk(idx uint32, parent uint32, depth int, b bound) (uint32, bool) {

	if idx >= v.report.Pages {
		v.problem(parent, "child %d out of range, file has %d pages", idx, v.report.Pages)
		return 0, false
	}

	if v.visited.TestAndSet(int(idx)) {
		v.problem(idx, "reachable more than once")
		return 0, false
	}

	n := btree.Node(v.pages[idx])

	if idx == btree.RootPage {
		if !n.IsRoot() {
			v.problem(idx, "root page without the root flag")
		}
	} else {
		if n.IsRoot() {
			v.problem(idx, "root flag set on a non-root page")
		}
		if n.Parent() != parent {
			v.problem(idx, "parent is %d, reached from %d", n.Parent(), parent)
		}
	}

	if depth > v.report.Height {
		v.report.Height = depth
	}

	if n.Type() == btree.LeafNode {
		return v.leaf(idx, depth, b)
	}

	return v.internal(idx, depth, b)
}

func (v *verifier) leaf(idx uint32, depth int, b bound) (uint32, bool) {

	leaf := btree.Leaf(v.pages[idx], v.rowSize)
	v.report.Leaves++
	v.leafOrder = append(v.leafOrder, idx)

	if v.leafDepth == 0 {
		v.leafDepth = depth
	} else if depth != v.leafDepth {
		v.problem(idx, "leaf at depth %d, other leaves at %d", depth, v.leafDepth)
	}

	numCells := leaf.NumCells()
	if numCells > leaf.MaxCells() {
		v.problem(idx, "%d cells, capacity %d", numCells, leaf.MaxCells())
		return 0, false
	}

	v.report.Cells += numCells

	if numCells == 0 {
		if idx != btree.RootPage {
			v.problem(idx, "empty leaf")
		}
		return 0, false
	}

	for i := 0; i < numCells; i++ {
		key := leaf.Key(i)

		if i > 0 && key <= leaf.Key(i-1) {
			v.problem(idx, "key %d at cell %d not above %d", key, i, leaf.Key(i-1))
		}
		if !b.contains(key) {
			v.problem(idx, "key %d outside the range routed by the parent", key)
		}
		if _, err := leaf.ReadRow(i, v.header.Schema); err != nil {
			v.problem(idx, "cell %d: %v", i, err)
		}
	}

	return leaf.MaxKey(), true
}

func (v *verifier) internal(idx uint32, depth int, b bound) (uint32, bool) {

	p := btree.Internal(v.pages[idx])
	v.report.Internals++

	numKeys := p.NumKeys()
	if numKeys == 0 || numKeys > p.MaxKeys() {
		v.problem(idx, "%d keys, allowed 1..%d", numKeys, p.MaxKeys())
		return 0, false
	}

	var max uint32
	var ok bool

	childBound := bound{lo: b.lo, hasLo: b.hasLo}

	for i := 0; i <= numKeys; i++ {

		if i < numKeys {
			key := p.Key(i)
			if i > 0 && key <= p.Key(i-1) {
				v.problem(idx, "key %d at cell %d not above %d", key, i, p.Key(i-1))
			}
			if !b.contains(key) {
				v.problem(idx, "key %d outside the range routed by the parent", key)
			}
			childBound.hi, childBound.hasHi = key, true
		} else {
			childBound.hi, childBound.hasHi = b.hi, b.hasHi
		}

		child := p.Child(i)
		if child == btree.RootPage {
			v.problem(idx, "child %d points at the root", i)
			continue
		}

		max, ok = v.walk(child, idx, depth+1, childBound)

		if i < numKeys && ok && max != p.Key(i) {
			v.problem(idx, "key %d does not match the largest key %d of child %d", p.Key(i), max, child)
		}

		childBound.lo, childBound.hasLo = childBound.hi, childBound.hasHi
	}

	return max, ok
}

func (v *verifier) checkLeafChain() {

	if len(v.leafOrder) == 0 {
		return
	}

	for i, idx := range v.leafOrder {
		expected := uint32(0)
		if i+1 < len(v.leafOrder) {
			expected = v.leafOrder[i+1]
		}

		if next := btree.Leaf(v.pages[idx], v.rowSize).NextLeaf(); next != expected {
			v.problem(idx, "next leaf is %d, expected %d", next, expected)
		}
	}
}
