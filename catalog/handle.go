package catalog

import (
	"sync"

	"github.com/alexhholmes/gevel/internal/base"
	"github.com/alexhholmes/gevel/internal/storage"
)

// handle is an open relation file shared by the Manifest's cache and every
// Relation resolved from it. The file is closed when the last holder lets go.
type handle struct {
	src base.PageSource

	mu   sync.Mutex
	refs int
}

// newHandle returns a handle holding one reference, the cache's.
func newHandle(src base.PageSource) *handle {
	return &handle{src: src, refs: 1}
}

// acquire takes a reference. It fails once the file has been closed.
func (h *handle) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs == 0 {
		return false
	}
	h.refs++
	return true
}

func (h *handle) release() error {
	h.mu.Lock()
	h.refs--
	last := h.refs == 0
	h.mu.Unlock()
	if last {
		return h.src.Close()
	}
	return nil
}

// lease is one Relation's reference to a handle.
type lease struct {
	h    *handle
	once sync.Once
}

func (l *lease) ReadPage(blk base.BlockNumber) ([]byte, error) {
	return l.h.src.ReadPage(blk)
}

func (l *lease) NumBlocks() (uint32, error) {
	return l.h.src.NumBlocks()
}

// Stats reports I/O on the shared file since it was opened.
func (l *lease) Stats() storage.Stats {
	return sourceStats(l.h.src)
}

// Close drops the reference. Further calls are no-ops.
func (l *lease) Close() error {
	var err error
	l.once.Do(func() {
		err = l.h.release()
	})
	return err
}

func sourceStats(src base.PageSource) storage.Stats {
	if s, ok := src.(interface{ Stats() storage.Stats }); ok {
		return s.Stats()
	}
	return storage.Stats{}
}
