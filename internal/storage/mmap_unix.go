// mmap_unix.go
//go:build linux || darwin

package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/alexhholmes/gevel/internal/base"
)

// MMap reads pages from read-only shared mappings of each segment file. The
// mappings cover the relation as it was at open time; NumBlocks does not grow.
type MMap struct {
	counters

	mu       sync.RWMutex // Protects maps
	pageSize int
	perSeg   uint32
	maps     [][]byte
	blocks   uint32
	closed   bool
}

// OpenMMap maps every segment of the relation at path.
func OpenMMap(path string, pageSize int) (*MMap, error) {
	return openMMap(path, pageSize, BlocksPerSegment(pageSize))
}

func openMMap(path string, pageSize int, perSeg uint32) (*MMap, error) {
	if err := base.CheckPageSize(pageSize); err != nil {
		return nil, err
	}
	n, err := segmentCount(path)
	if err != nil {
		return nil, err
	}

	m := &MMap{pageSize: pageSize, perSeg: perSeg}
	for i := 0; i < n; i++ {
		data, err := mapSegment(SegmentPath(path, i), pageSize, perSeg)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.maps = append(m.maps, data)
		blocks := uint32(len(data) / pageSize)
		m.blocks = uint32(i)*m.perSeg + blocks
		if blocks < m.perSeg {
			// Only the last segment may be short.
			break
		}
	}
	return m, nil
}

func mapSegment(name string, pageSize int, perSeg uint32) ([]byte, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	size := min(info.Size()-info.Size()%int64(pageSize), int64(perSeg)*int64(pageSize))
	if size == 0 {
		return nil, nil
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", name, err)
	}
	// The walk jumps between blocks; readahead would only waste I/O.
	_ = unix.Madvise(data, unix.MADV_RANDOM)
	return data, nil
}

// ReadPage copies block blk out of the mapping.
func (m *MMap) ReadPage(blk base.BlockNumber) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if uint32(blk) >= m.blocks {
		return nil, fmt.Errorf("%w: block %d of %d mapped", ErrBlockOutOfRange, blk, m.blocks)
	}
	seg := m.maps[uint32(blk)/m.perSeg]
	offset := int(uint32(blk)%m.perSeg) * m.pageSize

	// Copy so the caller never holds a reference into the mapping.
	buf := make([]byte, m.pageSize)
	copy(buf, seg[offset:offset+m.pageSize])
	m.record(m.pageSize)
	return buf, nil
}

// NumBlocks returns the number of mapped blocks.
func (m *MMap) NumBlocks() (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return m.blocks, nil
}

// PageSize returns the page size the relation was mapped with.
func (m *MMap) PageSize() int {
	return m.pageSize
}

// Close unmaps every segment.
func (m *MMap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	var errs []error
	for _, data := range m.maps {
		if data == nil {
			continue
		}
		if err := unix.Munmap(data); err != nil {
			errs = append(errs, err)
		}
	}
	m.maps = nil
	m.closed = true
	return errors.Join(errs...)
}
