//go:build linux

package directio

import (
	"os"

	"golang.org/x/sys/unix"
)

const (
	AlignSize = 4096
	BlockSize = 4096
	DirectIO  = true
)

// OpenFile opens name read-only with O_DIRECT.
func OpenFile(name string) (*os.File, error) {
	return os.OpenFile(name, os.O_RDONLY|unix.O_DIRECT, 0)
}
