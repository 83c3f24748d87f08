// Package directio opens files so that reads bypass the OS page cache.
// This is adapted from https://github.com/ncw/directio.
package directio

import (
	"unsafe"
)

// IsAligned checks whether passed byte slice is aligned
func IsAligned(block []byte) bool {
	if AlignSize == 0 || len(block) == 0 {
		return true
	}
	return alignment(block, AlignSize) == 0
}

// AlignedBlock returns []byte of size blockSize aligned to a multiple
// of AlignSize in memory (must be power of two)
func AlignedBlock(blockSize int) []byte {
	block := make([]byte, blockSize+AlignSize)
	if AlignSize == 0 {
		return block[:blockSize]
	}
	a := alignment(block, AlignSize)
	offset := 0
	if a != 0 {
		offset = AlignSize - a
	}
	return block[offset : offset+blockSize]
}

// Supports reports whether pages of the given size can be read with direct
// I/O: both the buffer and the file offset must be multiples of BlockSize.
func Supports(pageSize int) bool {
	return DirectIO && pageSize%BlockSize == 0
}

// alignment returns alignment of the block in memory
// with reference to AlignSize
//
// Can't check alignment of a zero sized block as &block[0] is invalid
func alignment(block []byte, AlignSize int) int {
	return int(uintptr(unsafe.Pointer(&block[0])) & uintptr(AlignSize-1))
}
