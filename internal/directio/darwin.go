//go:build darwin

package directio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	AlignSize = 0
	BlockSize = 4096
	DirectIO  = true
)

// OpenFile opens name read-only and sets F_NOCACHE.
func OpenFile(name string) (*os.File, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	// Insert F_NOCACHE to avoid OS caching
	if _, err := unix.FcntlInt(file.Fd(), unix.F_NOCACHE, 1); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to set F_NOCACHE: %w", err)
	}
	return file, nil
}
