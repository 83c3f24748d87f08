// Package storage provides read-only page sources over relation files.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/alexhholmes/gevel/internal/base"
)

// SegmentBytes is the size of one relation segment file (RELSEG_SIZE * BLCKSZ).
const SegmentBytes = 1 << 30

var (
	ErrBlockOutOfRange = errors.New("block beyond end of relation")
	ErrClosed          = errors.New("storage closed")
)

var (
	_ base.PageSource = (*File)(nil)
	_ base.PageSource = (*MMap)(nil)
	_ base.PageSource = (*Memory)(nil)
)

// Stats holds I/O statistics
type Stats struct {
	Reads uint64
	Read  uint64
}

type counters struct {
	reads atomic.Uint64
	read  atomic.Uint64
}

func (c *counters) record(n int) {
	c.reads.Add(1)
	c.read.Add(uint64(n))
}

// Stats returns I/O statistics
func (c *counters) Stats() Stats {
	return Stats{
		Reads: c.reads.Load(),
		Read:  c.read.Load(),
	}
}

// BlocksPerSegment returns how many pages of pageSize fit in one segment.
func BlocksPerSegment(pageSize int) uint32 {
	return uint32(SegmentBytes / pageSize)
}

// SegmentPath returns the file name of segment n: path, path.1, path.2, ...
func SegmentPath(path string, n int) string {
	if n == 0 {
		return path
	}
	return fmt.Sprintf("%s.%d", path, n)
}

// segmentCount returns how many consecutive segment files exist for path.
func segmentCount(path string) (int, error) {
	n := 0
	for {
		_, err := os.Stat(SegmentPath(path, n))
		if errors.Is(err, os.ErrNotExist) {
			if n == 0 {
				return 0, err
			}
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}
