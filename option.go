package gevel

import (
	"github.com/alexhholmes/gevel/internal/walk"
)

// Order controls how the page tree is traversed.
type Order = walk.Mode

const (
	// OrderTree walks every level along its right-link chain, depth-first:
	// each page is followed by the pages of the level below that it owns.
	// Pages reachable only through a right link are visited, and a chain
	// that loops fails the walk with ErrRunaway.
	OrderTree = walk.ModeTree

	// OrderDownlinks visits every page reachable through downlinks,
	// depth-first, each parent before its children. Right links are only
	// followed across splits the parent does not know about yet.
	OrderDownlinks = walk.ModeDownlinks

	// OrderLevels visits the tree one level at a time by following each
	// level's right-link chain from its leftmost page.
	OrderLevels = walk.ModeLevelChains
)

// Options configures an Inspector.
type Options struct {
	logger   Logger
	order    Order
	maxLevel int // Deepest level descended into. Negative means no limit.
}

// DefaultOptions returns the default configuration: no logging, tree order,
// no level limit.
//
//goland:noinspection GoUnusedExportedFunction
func DefaultOptions() Options {
	return Options{
		logger:   DiscardLogger{},
		order:    OrderTree,
		maxLevel: -1,
	}
}

// Option configures inspector options using the functional options pattern.
type Option func(*Options)

// WithLogger sets the logger used for resolution, traversal summaries and
// structural anomalies.
func WithLogger(l Logger) Option {
	return func(opts *Options) {
		if l == nil {
			l = DiscardLogger{}
		}
		opts.logger = l
	}
}

// WithOrder sets the traversal order.
func WithOrder(o Order) Option {
	return func(opts *Options) {
		opts.order = o
	}
}

// WithMaxLevel stops the walk from descending below level. Pages at level
// are still reported. The root is level 0.
//
//goland:noinspection GoUnusedExportedFunction
func WithMaxLevel(level int) Option {
	return func(opts *Options) {
		opts.maxLevel = level
	}
}

func (o Options) walkOptions() []walk.Option {
	return []walk.Option{
		walk.WithMode(o.order),
		walk.WithMaxLevel(o.maxLevel),
	}
}
