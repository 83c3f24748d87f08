// mmap_unsupported.go
//go:build !linux && !darwin

package storage

// On unsupported platforms, MMap falls back to positioned reads
type MMap struct {
	*File
}

func OpenMMap(path string, pageSize int) (*MMap, error) {
	f, err := OpenFile(path, pageSize)
	if err != nil {
		return nil, err
	}
	return &MMap{File: f}, nil
}

// All methods automatically delegate to File
