// Package gisttest builds synthetic GiST relations for tests.
package gisttest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexhholmes/gevel/internal/base"
	"github.com/alexhholmes/gevel/internal/storage"
)

// heapBlock is where leaf tuples point; leaf t_tids reference the heap and
// are never followed.
const heapBlock base.BlockNumber = 1000

// Relation is a relation under construction, one PageBuilder per block.
type Relation struct {
	pageSize int
	pages    []*base.PageBuilder
}

func New(pageSize int) *Relation {
	return &Relation{pageSize: pageSize}
}

// Page returns the builder for blk, growing the relation as needed.
func (r *Relation) Page(blk base.BlockNumber) *base.PageBuilder {
	for uint32(len(r.pages)) <= uint32(blk) {
		r.pages = append(r.pages, base.NewPageBuilder(r.pageSize))
	}
	return r.pages[blk]
}

// Internal makes blk an internal page with one downlink per child.
func (r *Relation) Internal(blk base.BlockNumber, children ...base.BlockNumber) *base.PageBuilder {
	b := r.Page(blk)
	for _, c := range children {
		b.Tuple(c, 24)
	}
	return b
}

// Leaf makes blk a leaf page holding tuples of the given lengths.
func (r *Relation) Leaf(blk base.BlockNumber, lengths ...int) *base.PageBuilder {
	b := r.Page(blk).Leaf()
	for _, l := range lengths {
		b.Tuple(heapBlock, l)
	}
	return b
}

// Pages renders every block.
func (r *Relation) Pages(t testing.TB) [][]byte {
	t.Helper()
	out := make([][]byte, len(r.pages))
	for i, b := range r.pages {
		buf, err := b.Build()
		require.NoError(t, err, "block %d", i)
		out[i] = buf
	}
	return out
}

// Memory returns the relation as an in-memory page source.
func (r *Relation) Memory(t testing.TB) *storage.Memory {
	t.Helper()
	return storage.NewMemory(r.pageSize, r.Pages(t)...)
}

// WriteFile writes the relation image to dir/name and returns its path.
func (r *Relation) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, r.Memory(t).Bytes(), 0600))
	return path
}

// SingleLeaf is a root leaf with six tuples: five of 144 bytes and one of
// 148, leaving 7260 bytes free on an 8192-byte page.
func SingleLeaf() *Relation {
	r := New(base.DefaultPageSize)
	r.Leaf(0, 144, 144, 144, 144, 144, 148)
	return r
}

// TwoLeaves is an internal root over two sibling-linked leaves, blocks 1
// and 2.
func TwoLeaves() *Relation {
	r := New(base.DefaultPageSize)
	r.Internal(0, 1, 2)
	r.Leaf(1, 40, 40, 40).RightLink(2)
	r.Leaf(2, 40, 40)
	return r
}

// ThreeLevels is a three-level tree:
//
//	0
//	├── 1 ──→ 2
//	│   ├── 3 ──→ 4
//	│   └── 4 ──→ 5
//	└── 2
//	    ├── 5 ──→ 6
//	    └── 6
//
// Block 4 carries one invalid tuple left by an incomplete split.
func ThreeLevels() *Relation {
	r := New(base.DefaultPageSize)
	r.Internal(0, 1, 2)
	r.Internal(1, 3, 4).RightLink(2)
	r.Internal(2, 5, 6)
	r.Leaf(3, 32, 32).RightLink(4)
	r.Leaf(4, 32).InvalidTuple(heapBlock, 32).RightLink(5)
	r.Leaf(5, 48, 48, 48).RightLink(6)
	r.Leaf(6, 64)
	return r
}

// SplitLeaf is a root with a single downlink to block 1, whose right half
// (block 2) is reachable only through block 1's right link.
func SplitLeaf() *Relation {
	r := New(base.DefaultPageSize)
	r.Internal(0, 1)
	r.Leaf(1, 32, 32).RightLink(2)
	r.Leaf(2, 32)
	return r
}

// Cycle is a root over two leaves whose right links point at each other.
func Cycle() *Relation {
	r := New(base.DefaultPageSize)
	r.Internal(0, 1)
	r.Leaf(1, 32).RightLink(2)
	r.Leaf(2, 32).RightLink(1)
	return r
}

// FollowRightCycle is Cycle with both leaves mid-split, so a downlink walk
// keeps following their right links.
func FollowRightCycle() *Relation {
	r := New(base.DefaultPageSize)
	r.Internal(0, 1).LSN(10)
	r.Leaf(1, 32).Flags(base.FFollowRight).RightLink(2)
	r.Leaf(2, 32).Flags(base.FFollowRight).RightLink(1)
	return r
}
