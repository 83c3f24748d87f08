package catalog

import (
	"fmt"
	"sync"

	"github.com/alexhholmes/gevel/internal/base"
	"github.com/alexhholmes/gevel/internal/storage"
)

// Static is an in-memory catalog over page sources the caller owns.
// Resolved relations share the registered source; closing them is a no-op.
type Static struct {
	mu      sync.RWMutex
	entries []Entry
	pages   []base.PageSource
	idx     *index
}

func NewStatic() *Static {
	return &Static{idx: &index{
		byOID:  map[uint32]int{},
		byName: map[string]int{},
		byBare: map[string][]int{},
	}}
}

// Add registers a relation. Path and PageSize of e are informational.
func (s *Static) Add(e Entry, pages base.PageSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.PageSize == 0 {
		e.PageSize = base.DefaultPageSize
	}
	entries := append(append([]Entry(nil), s.entries...), e)
	idx, err := newIndex(entries)
	if err != nil {
		return err
	}
	s.entries = entries
	s.pages = append(s.pages, pages)
	s.idx = idx
	return nil
}

// AddGist registers a GiST index rooted at block 0.
func (s *Static) AddGist(oid uint32, name string, pages base.PageSource) error {
	return s.Add(Entry{OID: oid, Name: name, AccessMethod: AccessMethodGist}, pages)
}

func (s *Static) Resolve(ident string) (*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, err := s.idx.lookup(ident)
	if err != nil {
		return nil, err
	}
	e := s.entries[i]
	if err := checkGist(e); err != nil {
		return nil, err
	}
	if s.pages[i] == nil {
		return nil, fmt.Errorf("%s: %w", e.Name, errNoPages)
	}
	return &Relation{
		OID:          e.OID,
		Name:         e.Name,
		AccessMethod: e.AccessMethod,
		RootBlock:    base.BlockNumber(e.RootBlock),
		PageSize:     e.PageSize,
		Pages:        shared{s.pages[i]},
	}, nil
}

// shared keeps a resolved relation from closing a source other
// resolutions still use.
type shared struct {
	base.PageSource
}

func (shared) Close() error {
	return nil
}

func (s shared) Stats() storage.Stats {
	return sourceStats(s.PageSource)
}
