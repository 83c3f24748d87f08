package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/alexhholmes/gevel/internal/base"
	"github.com/alexhholmes/gevel/internal/directio"
)

// File reads pages with positioned reads, one segment file at a time.
type File struct {
	counters

	mu       sync.RWMutex // Protects segs
	path     string
	pageSize int
	perSeg   uint32
	direct   bool
	segs     []*os.File
	bufPool  sync.Pool
}

// OpenFile opens the relation at path for buffered positioned reads.
func OpenFile(path string, pageSize int) (*File, error) {
	return openFile(path, pageSize, BlocksPerSegment(pageSize), false)
}

// OpenDirect opens the relation at path so reads bypass the OS page cache.
// Page sizes that direct I/O cannot address fall back to buffered reads.
func OpenDirect(path string, pageSize int) (*File, error) {
	return openFile(path, pageSize, BlocksPerSegment(pageSize), directio.Supports(pageSize))
}

func openFile(path string, pageSize int, perSeg uint32, direct bool) (*File, error) {
	if err := base.CheckPageSize(pageSize); err != nil {
		return nil, err
	}
	f := &File{
		path:     path,
		pageSize: pageSize,
		perSeg:   perSeg,
		direct:   direct,
		bufPool: sync.Pool{
			New: func() any {
				return directio.AlignedBlock(pageSize)
			},
		},
	}

	n, err := segmentCount(path)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if err := f.openSegment(i); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (f *File) openSegment(n int) error {
	name := SegmentPath(f.path, n)
	var (
		file *os.File
		err  error
	)
	if f.direct {
		file, err = directio.OpenFile(name)
	} else {
		file, err = os.Open(name)
	}
	if err != nil {
		return err
	}
	f.segs = append(f.segs, file)
	return nil
}

// ReadPage reads block blk into a new buffer.
func (f *File) ReadPage(blk base.BlockNumber) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.segs == nil {
		return nil, ErrClosed
	}
	seg := int(uint32(blk) / f.perSeg)
	if seg >= len(f.segs) {
		return nil, fmt.Errorf("%w: block %d", ErrBlockOutOfRange, blk)
	}
	offset := int64(uint32(blk)%f.perSeg) * int64(f.pageSize)

	buf := f.bufPool.Get().([]byte)
	defer f.bufPool.Put(buf)

	n, err := f.segs[seg].ReadAt(buf, offset)
	if errors.Is(err, io.EOF) || (err == nil && n != f.pageSize) {
		return nil, fmt.Errorf("%w: block %d (short read: got %d bytes, expected %d)",
			ErrBlockOutOfRange, blk, n, f.pageSize)
	}
	if err != nil {
		return nil, fmt.Errorf("read block %d: %w", blk, err)
	}
	f.record(n)

	page := make([]byte, f.pageSize)
	copy(page, buf)
	return page, nil
}

// NumBlocks returns the current relation length. Segments created since open
// are picked up; a trailing partial page is not counted.
func (f *File) NumBlocks() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.segs == nil {
		return 0, ErrClosed
	}
	for {
		last := f.segs[len(f.segs)-1]
		info, err := last.Stat()
		if err != nil {
			return 0, err
		}
		blocks := uint32(info.Size() / int64(f.pageSize))
		if blocks < f.perSeg {
			return uint32(len(f.segs)-1)*f.perSeg + blocks, nil
		}
		// Full segment; a successor may exist.
		err = f.openSegment(len(f.segs))
		if errors.Is(err, os.ErrNotExist) {
			return uint32(len(f.segs)) * f.perSeg, nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// PageSize returns the page size the file was opened with.
func (f *File) PageSize() int {
	return f.pageSize
}

// Close closes every segment file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, s := range f.segs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.segs = nil
	return errors.Join(errs...)
}
