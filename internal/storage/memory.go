package storage

import (
	"fmt"
	"sync"

	"github.com/alexhholmes/gevel/internal/base"
)

// Memory is an in-memory relation. Pages may be replaced while a walk is
// running, which is how tests simulate concurrent writers.
type Memory struct {
	counters

	mu       sync.RWMutex
	pageSize int
	pages    [][]byte
	closed   bool
}

func NewMemory(pageSize int, pages ...[]byte) *Memory {
	m := &Memory{pageSize: pageSize}
	for _, p := range pages {
		m.Append(p)
	}
	return m
}

// Append adds a page at the end of the relation and returns its block number.
func (m *Memory) Append(page []byte) base.BlockNumber {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages = append(m.pages, clonePage(page))
	return base.BlockNumber(len(m.pages) - 1)
}

// Set replaces the page at blk, growing the relation with zeroed pages if
// needed.
func (m *Memory) Set(blk base.BlockNumber, page []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for uint32(len(m.pages)) <= uint32(blk) {
		m.pages = append(m.pages, make([]byte, m.pageSize))
	}
	m.pages[blk] = clonePage(page)
}

// Truncate drops every page from blk on.
func (m *Memory) Truncate(blk base.BlockNumber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if uint32(blk) < uint32(len(m.pages)) {
		m.pages = m.pages[:blk]
	}
}

func (m *Memory) ReadPage(blk base.BlockNumber) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if uint32(blk) >= uint32(len(m.pages)) {
		return nil, fmt.Errorf("%w: block %d of %d", ErrBlockOutOfRange, blk, len(m.pages))
	}
	m.record(len(m.pages[blk]))
	return clonePage(m.pages[blk]), nil
}

func (m *Memory) NumBlocks() (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return uint32(len(m.pages)), nil
}

func (m *Memory) PageSize() int {
	return m.pageSize
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Bytes returns the relation as one contiguous image, as it would be stored
// in a relation file.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]byte, 0, len(m.pages)*m.pageSize)
	for _, p := range m.pages {
		out = append(out, p...)
	}
	return out
}

func clonePage(p []byte) []byte {
	c := make([]byte, len(p))
	copy(c, p)
	return c
}
