package walk

// Mode selects the traversal order.
type Mode int

const (
	// ModeTree walks every level along its right-link chain. Each page is
	// followed by its share of the level below: the run of the child chain
	// from its first downlink up to where its right sibling's first downlink
	// begins.
	ModeTree Mode = iota

	// ModeDownlinks visits pages depth-first through every downlink, following
	// right links only across in-progress splits.
	ModeDownlinks

	// ModeLevelChains visits one level at a time along its right-link chain.
	ModeLevelChains
)

func (m Mode) String() string {
	switch m {
	case ModeTree:
		return "tree"
	case ModeDownlinks:
		return "downlinks"
	case ModeLevelChains:
		return "levels"
	}
	return "unknown"
}

// Options configures a Walker.
type Options struct {
	Mode Mode

	// MaxLevel stops descent below this level. Negative means unlimited.
	MaxLevel int
}

// Option configures a Walker.
type Option func(*Options)

// WithMode sets the traversal order (default: ModeTree).
func WithMode(m Mode) Option {
	return func(opts *Options) {
		opts.Mode = m
	}
}

// WithMaxLevel limits the walk to pages at or above level. Pages at level are
// yielded but not descended.
func WithMaxLevel(level int) Option {
	return func(opts *Options) {
		opts.MaxLevel = level
	}
}

func defaultOptions() Options {
	return Options{
		Mode:     ModeTree,
		MaxLevel: -1,
	}
}
