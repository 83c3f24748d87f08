package catalog

// Options configures a Manifest.
type Options struct {
	// IO selects how relation files are read (default: IOMMap).
	IO IOMode

	// CacheSize bounds the number of relation files kept open between
	// resolutions.
	CacheSize uint32
}

// Option configures a Manifest.
type Option func(*Options)

// WithIO sets how relation files are opened.
func WithIO(m IOMode) Option {
	return func(opts *Options) {
		opts.IO = m
	}
}

// WithCacheSize sets how many relation files stay open between resolutions.
func WithCacheSize(n uint32) Option {
	return func(opts *Options) {
		opts.CacheSize = n
	}
}

func defaultOptions() Options {
	return Options{
		IO:        IOMMap,
		CacheSize: 256,
	}
}
