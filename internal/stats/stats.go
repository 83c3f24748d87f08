// Package stats folds a tree walk into aggregate index statistics.
package stats

import (
	"fmt"
	"strings"

	"github.com/alexhholmes/gevel/internal/walk"
)

// Stats summarizes one complete walk of a GiST index.
type Stats struct {
	Levels         int    // deepest level seen plus one
	Pages          uint64 // pages visited
	LeafPages      uint64
	Tuples         uint64 // line pointers on every visited page
	InvalidTuples  uint64
	LeafTuples     uint64
	TupleBytes     uint64 // sum of tuple lengths
	LeafTupleBytes uint64
	IndexBytes     uint64 // Pages * page size

	// PagesPerLevel[l] is the number of pages visited at level l.
	PagesPerLevel []uint64
}

// Row is one labeled line of the statistics table.
type Row struct {
	Label string
	Value uint64
}

// Rows returns the nine labeled statistics in display order.
func (s *Stats) Rows() []Row {
	return []Row{
		{"Number of levels", uint64(s.Levels)},
		{"Number of pages", s.Pages},
		{"Number of leaf pages", s.LeafPages},
		{"Number of tuples", s.Tuples},
		{"Number of invalid tuples", s.InvalidTuples},
		{"Number of leaf tuples", s.LeafTuples},
		{"Total size of tuples (bytes)", s.TupleBytes},
		{"Total size of leaf tuples (bytes)", s.LeafTupleBytes},
		{"Total size of index (bytes)", s.IndexBytes},
	}
}

// String renders the statistics as an aligned text table.
func (s *Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Number of levels:          %d\n", s.Levels)
	fmt.Fprintf(&b, "Number of pages:           %d\n", s.Pages)
	fmt.Fprintf(&b, "Number of leaf pages:      %d\n", s.LeafPages)
	fmt.Fprintf(&b, "Number of tuples:          %d\n", s.Tuples)
	fmt.Fprintf(&b, "Number of invalid tuples:  %d\n", s.InvalidTuples)
	fmt.Fprintf(&b, "Number of leaf tuples:     %d\n", s.LeafTuples)
	fmt.Fprintf(&b, "Total size of tuples:      %d bytes\n", s.TupleBytes)
	fmt.Fprintf(&b, "Total size of leaf tuples: %d bytes\n", s.LeafTupleBytes)
	fmt.Fprintf(&b, "Total size of index:       %d bytes\n", s.IndexBytes)
	return b.String()
}

// Aggregator accumulates Stats one node at a time.
type Aggregator struct {
	s Stats
}

// Add folds one visited page into the totals.
func (a *Aggregator) Add(n walk.Node) error {
	page := n.Page
	tuples, err := page.Tuples()
	if err != nil {
		return fmt.Errorf("block %d: %w", n.Block, err)
	}

	for len(a.s.PagesPerLevel) <= n.Level {
		a.s.PagesPerLevel = append(a.s.PagesPerLevel, 0)
	}
	a.s.PagesPerLevel[n.Level]++
	a.s.Levels = len(a.s.PagesPerLevel)
	a.s.Pages++
	a.s.IndexBytes += uint64(page.Size())

	leaf := page.IsLeaf()
	if leaf {
		a.s.LeafPages++
	}
	for _, t := range tuples {
		a.s.Tuples++
		a.s.TupleBytes += uint64(t.Length)
		if !t.Valid {
			a.s.InvalidTuples++
		}
		if leaf {
			a.s.LeafTuples++
			a.s.LeafTupleBytes += uint64(t.Length)
		}
	}
	return nil
}

// Finish returns the accumulated statistics.
func (a *Aggregator) Finish() Stats {
	s := a.s
	s.PagesPerLevel = append([]uint64(nil), a.s.PagesPerLevel...)
	return s
}

// Nodes is a source of visited pages. *walk.Walker is one.
type Nodes interface {
	Next() bool
	Node() walk.Node
	Err() error
}

// Aggregate drains nodes and returns the statistics of every page visited.
// On any walk or decode error no Stats are returned.
func Aggregate(nodes Nodes) (Stats, error) {
	var a Aggregator
	for nodes.Next() {
		if err := a.Add(nodes.Node()); err != nil {
			return Stats{}, err
		}
	}
	if err := nodes.Err(); err != nil {
		return Stats{}, err
	}
	return a.Finish(), nil
}
