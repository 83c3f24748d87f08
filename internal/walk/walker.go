// Package walk reconstructs the page tree of a GiST relation from its flat,
// block-addressed storage.
package walk

import (
	"fmt"

	"github.com/alexhholmes/gevel/internal/base"
)

// Node is one visited page.
type Node struct {
	Position int // 1-based visit order
	Level    int // root is 0
	Block    base.BlockNumber
	Page     *base.Page

	// RightLinked is set when the page was reached through its left
	// sibling's right link rather than a downlink.
	RightLinked bool
}

// pending is a page scheduled for a visit. parentLSN is the LSN of the page
// that produced the reference, used to detect splits that happened after
// the parent was read.
type pending struct {
	blk         base.BlockNumber
	level       int
	parentLSN   uint64
	rightLinked bool
}

// segment is the part of one level's chain still to be visited in ModeTree.
// It ends at stop or at the end of the chain, whichever comes first.
type segment struct {
	level  int
	next   base.BlockNumber
	stop   base.BlockNumber
	linked bool // next was reached through a right link
}

// Walker is an incremental producer of Nodes. Only the current page is held;
// the scheduled references are bounded by depth times fan-out.
//
//	w := walk.New(src, base.GistRootBlock)
//	for w.Next() {
//		n := w.Node()
//	}
//	if err := w.Err(); err != nil { ... }
type Walker struct {
	src  base.PageSource
	root base.BlockNumber
	opts Options

	started bool
	done    bool
	err     error
	node    Node

	visited uint64
	budget  uint64

	// ModeTree: one open segment per level, innermost last.
	segs []segment

	// ModeDownlinks: LIFO of scheduled pages.
	stack []pending

	// ModeLevelChains: next page on the current chain and the start of the
	// level below.
	next      base.BlockNumber
	level     int
	nextLevel base.BlockNumber
	linked    bool // next was reached through a right link
}

// New returns a Walker over src starting at root. Nothing is read until the
// first call to Next.
func New(src base.PageSource, root base.BlockNumber, opts ...Option) *Walker {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Walker{
		src:       src,
		root:      root,
		opts:      o,
		next:      base.InvalidBlockNumber,
		nextLevel: base.InvalidBlockNumber,
	}
}

// Next advances to the next page. It returns false when the walk is complete
// or has failed; check Err to tell the two apart.
func (w *Walker) Next() bool {
	if w.done {
		return false
	}
	if !w.started {
		w.started = true
		if err := w.start(); err != nil {
			return w.fail(err)
		}
	}

	var err error
	var ok bool
	switch w.opts.Mode {
	case ModeLevelChains:
		ok, err = w.nextChain()
	case ModeDownlinks:
		ok, err = w.nextDownlink()
	default:
		ok, err = w.nextTree()
	}
	if err != nil {
		return w.fail(err)
	}
	if !ok {
		w.done = true
		w.node = Node{}
	}
	return ok
}

// Node returns the current page. It is valid until the next call to Next.
func (w *Walker) Node() Node {
	return w.node
}

// Err returns the error that stopped the walk, if any.
func (w *Walker) Err() error {
	return w.err
}

// Visited returns how many pages have been yielded so far.
func (w *Walker) Visited() uint64 {
	return w.visited
}

func (w *Walker) fail(err error) bool {
	w.err = err
	w.done = true
	w.node = Node{}
	w.stack = nil
	w.segs = nil
	return false
}

func (w *Walker) start() error {
	n, err := w.src.NumBlocks()
	if err != nil {
		return fmt.Errorf("%w: relation size: %w", base.ErrCorrupt, err)
	}
	w.budget = uint64(n)

	switch w.opts.Mode {
	case ModeLevelChains:
		w.next = w.root
	case ModeDownlinks:
		w.stack = append(w.stack, pending{blk: w.root})
	default:
		w.segs = append(w.segs, segment{
			next: w.root,
			stop: base.InvalidBlockNumber,
		})
	}
	return nil
}

// read fetches and decodes blk without yielding it.
func (w *Walker) read(blk base.BlockNumber) (*base.Page, error) {
	buf, err := w.src.ReadPage(blk)
	if err != nil {
		return nil, fmt.Errorf("%w: read block %d: %w", base.ErrCorrupt, blk, err)
	}
	page, err := base.DecodePage(buf)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", blk, err)
	}
	return page, nil
}

// visit reads and decodes blk, then charges it against the visit budget.
// A healthy tree visits each block at most once, so exceeding the relation
// size means a cycle unless the relation grew meanwhile.
func (w *Walker) visit(blk base.BlockNumber, level int, rightLinked bool) error {
	page, err := w.read(blk)
	if err != nil {
		return err
	}

	if w.visited >= w.budget {
		n, err := w.src.NumBlocks()
		if err != nil {
			return fmt.Errorf("%w: relation size: %w", base.ErrCorrupt, err)
		}
		if uint64(n) <= w.budget {
			return fmt.Errorf("%w: %d pages visited in a relation of %d blocks (at block %d)",
				base.ErrRunaway, w.visited+1, n, blk)
		}
		w.budget = uint64(n)
	}

	w.visited++
	w.node = Node{
		Position:    int(w.visited),
		Level:       level,
		Block:       blk,
		Page:        page,
		RightLinked: rightLinked,
	}
	return nil
}

// descend reports whether children of an internal page at level are visited.
func (w *Walker) descend(page *base.Page, level int) bool {
	if page.IsLeaf() || page.IsDeleted() {
		return false
	}
	return w.opts.MaxLevel < 0 || level < w.opts.MaxLevel
}

// nextTree yields pages depth-first along the sibling chains. A page is
// followed by the run of the level below that it owns, so every page on a
// chain is visited once, including pages that no downlink references yet.
// A chain that loops is caught by the visit budget.
func (w *Walker) nextTree() (bool, error) {
	for len(w.segs) > 0 {
		top := len(w.segs) - 1
		s := w.segs[top]
		if !s.next.Valid() || s.next == s.stop {
			w.segs = w.segs[:top]
			continue
		}

		if err := w.visit(s.next, s.level, s.linked); err != nil {
			return false, err
		}
		page := w.node.Page
		w.segs[top].next = page.RightLink()
		w.segs[top].linked = true

		if !w.descend(page, s.level) {
			return true, nil
		}
		first, err := page.FirstDownlink()
		if err != nil {
			return false, fmt.Errorf("block %d: %w", s.next, err)
		}
		if !first.Valid() {
			return true, nil
		}
		stop, err := w.segmentEnd(page.RightLink(), s.level)
		if err != nil {
			return false, err
		}
		w.segs = append(w.segs, segment{
			level: s.level + 1,
			next:  first,
			stop:  stop,
		})
		return true, nil
	}
	return false, nil
}

// segmentEnd returns the first downlink of the nearest page at or right of
// blk that will be descended, or InvalidBlockNumber if there is none. Pages
// read here are not yielded and not charged; the scan itself is bounded by
// the visit budget.
func (w *Walker) segmentEnd(blk base.BlockNumber, level int) (base.BlockNumber, error) {
	var hops uint64
	for blk.Valid() {
		if hops > w.budget {
			return base.InvalidBlockNumber, fmt.Errorf("%w: right links from level %d do not terminate (at block %d)",
				base.ErrRunaway, level, blk)
		}
		hops++

		page, err := w.read(blk)
		if err != nil {
			return base.InvalidBlockNumber, err
		}
		if w.descend(page, level) {
			first, err := page.FirstDownlink()
			if err != nil {
				return base.InvalidBlockNumber, fmt.Errorf("block %d: %w", blk, err)
			}
			if first.Valid() {
				return first, nil
			}
		}
		blk = page.RightLink()
	}
	return base.InvalidBlockNumber, nil
}

// nextDownlink yields pages in depth-first pre-order.
//
// A page that split after its parent was read has lost part of its key
// range to a right sibling the parent may not reference yet. Such a page
// is recognised by F_FOLLOW_RIGHT, or by an NSN newer than the parent's
// LSN; the sibling is then scheduled right after the page's own subtree,
// at the same level.
func (w *Walker) nextDownlink() (bool, error) {
	if len(w.stack) == 0 {
		return false, nil
	}
	p := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	if err := w.visit(p.blk, p.level, p.rightLinked); err != nil {
		return false, err
	}
	page := w.node.Page

	if !page.IsDeleted() && p.parentLSN != 0 && page.RightLink().Valid() &&
		(page.FollowRight() || page.NSN() > p.parentLSN) {
		w.stack = append(w.stack, pending{
			blk:         page.RightLink(),
			level:       p.level,
			parentLSN:   p.parentLSN,
			rightLinked: true,
		})
	}

	if !w.descend(page, p.level) {
		return true, nil
	}
	links, err := page.Downlinks()
	if err != nil {
		return false, fmt.Errorf("block %d: %w", p.blk, err)
	}
	// Reverse so the first downlink is popped first.
	for i := len(links) - 1; i >= 0; i-- {
		w.stack = append(w.stack, pending{
			blk:       links[i],
			level:     p.level + 1,
			parentLSN: page.LSN(),
		})
	}
	return true, nil
}

// nextChain yields every page of a level along its right links before
// moving to the level below.
func (w *Walker) nextChain() (bool, error) {
	if !w.next.Valid() {
		if !w.nextLevel.Valid() {
			return false, nil
		}
		w.next = w.nextLevel
		w.nextLevel = base.InvalidBlockNumber
		w.level++
		w.linked = false
	}

	blk := w.next
	if err := w.visit(blk, w.level, w.linked); err != nil {
		return false, err
	}
	page := w.node.Page
	w.next = page.RightLink()
	w.linked = true

	if !w.nextLevel.Valid() && w.descend(page, w.level) {
		first, err := page.FirstDownlink()
		if err != nil {
			return false, fmt.Errorf("block %d: %w", blk, err)
		}
		w.nextLevel = first
	}
	return true, nil
}
