//go:build !linux && !darwin

package directio

import "os"

const (
	AlignSize = 0
	BlockSize = 4096
	DirectIO  = false
)

// OpenFile falls back to a plain read-only open.
func OpenFile(name string) (*os.File, error) {
	return os.Open(name)
}
