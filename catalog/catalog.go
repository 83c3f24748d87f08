// Package catalog maps index identifiers to relations on disk.
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexhholmes/gevel/internal/base"
)

// AccessMethodGist is the only access method the inspector understands.
const AccessMethodGist = "gist"

var (
	ErrNotFound  = base.ErrNotFound
	ErrWrongType = base.ErrWrongType
)

// Relation is a resolved index, open for reading. Close releases its pages.
type Relation struct {
	OID          uint32
	Name         string
	AccessMethod string
	RootBlock    base.BlockNumber
	PageSize     int
	Pages        base.PageSource
}

// Close closes the relation's page source.
func (r *Relation) Close() error {
	if r.Pages == nil {
		return nil
	}
	return r.Pages.Close()
}

// IsGist reports whether the relation is a GiST index.
func (r *Relation) IsGist() bool {
	return strings.EqualFold(r.AccessMethod, AccessMethodGist)
}

// Entry describes one relation of a catalog before it is opened.
type Entry struct {
	OID          uint32 `yaml:"oid"`
	Name         string `yaml:"name"`
	AccessMethod string `yaml:"access_method"`
	Path         string `yaml:"path"`
	RootBlock    uint32 `yaml:"root_block"`
	PageSize     int    `yaml:"page_size,omitempty"`
}

// IOMode selects the page source a relation file is opened with.
type IOMode int

const (
	IOMMap IOMode = iota
	IOPread
	IODirect
)

func (m IOMode) String() string {
	switch m {
	case IOMMap:
		return "mmap"
	case IOPread:
		return "pread"
	case IODirect:
		return "direct"
	}
	return fmt.Sprintf("IOMode(%d)", int(m))
}

// ParseIOMode parses the names returned by IOMode.String.
func ParseIOMode(s string) (IOMode, error) {
	switch strings.ToLower(s) {
	case "mmap":
		return IOMMap, nil
	case "pread":
		return IOPread, nil
	case "direct":
		return IODirect, nil
	}
	return 0, fmt.Errorf("unknown io mode %q", s)
}

// index resolves identifiers to positions in a slice of entries.
//
// An identifier is tried as a decimal OID, then as an exact (usually
// schema-qualified) name, then as an unqualified name, which must match
// exactly one entry.
type index struct {
	byOID  map[uint32]int
	byName map[string]int
	byBare map[string][]int
}

func newIndex(entries []Entry) (*index, error) {
	idx := &index{
		byOID:  make(map[uint32]int, len(entries)),
		byName: make(map[string]int, len(entries)),
		byBare: make(map[string][]int, len(entries)),
	}
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("relation %d: missing name", e.OID)
		}
		if _, ok := idx.byOID[e.OID]; ok {
			return nil, fmt.Errorf("duplicate oid %d", e.OID)
		}
		if _, ok := idx.byName[e.Name]; ok {
			return nil, fmt.Errorf("duplicate relation name %q", e.Name)
		}
		idx.byOID[e.OID] = i
		idx.byName[e.Name] = i
		bare := unqualified(e.Name)
		idx.byBare[bare] = append(idx.byBare[bare], i)
	}
	return idx, nil
}

func (idx *index) lookup(ident string) (int, error) {
	ident = strings.TrimSpace(ident)
	if oid, err := strconv.ParseUint(ident, 10, 32); err == nil {
		if i, ok := idx.byOID[uint32(oid)]; ok {
			return i, nil
		}
	}
	if i, ok := idx.byName[ident]; ok {
		return i, nil
	}
	if !strings.Contains(ident, ".") {
		switch matches := idx.byBare[ident]; len(matches) {
		case 0:
		case 1:
			return matches[0], nil
		default:
			return 0, fmt.Errorf("%w: %q is ambiguous (%d relations)", ErrNotFound, ident, len(matches))
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, ident)
}

func unqualified(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// checkGist fails with ErrWrongType unless e is a GiST index.
func checkGist(e Entry) error {
	if !strings.EqualFold(e.AccessMethod, AccessMethodGist) {
		return fmt.Errorf("%w: %s uses access method %q", ErrWrongType, e.Name, e.AccessMethod)
	}
	return nil
}

var (
	errNoPages        = errors.New("relation has no page source")
	errManifestClosed = errors.New("manifest closed")
)
