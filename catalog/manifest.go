package catalog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
	"gopkg.in/yaml.v3"

	"github.com/alexhholmes/gevel/internal/base"
	"github.com/alexhholmes/gevel/internal/storage"
)

// document is the YAML form of a manifest.
//
//	page_size: 8192
//	relations:
//	  - oid: 16402
//	    name: public.pts_gist_idx
//	    access_method: gist
//	    path: base/16384/16402
//	    root_block: 0
type document struct {
	PageSize  int     `yaml:"page_size"`
	Relations []Entry `yaml:"relations"`
}

// Manifest is a catalog backed by a YAML file. The file is re-read on every
// Resolve and re-parsed only when its content changes; relation paths are
// relative to the manifest's directory.
//
// Opened relation files are kept in an LRU keyed by OID and shared between
// resolutions. A file leaves the cache on eviction, on a manifest change
// and on Close, and is closed once no resolved Relation still uses it.
type Manifest struct {
	path string
	dir  string
	opts Options

	// Held across refresh, lookup and cache fill so a resolution never mixes
	// entries from one manifest version with files from another.
	mu          sync.Mutex
	fingerprint uint64
	entries     []Entry
	idx         *index
	closed      bool

	files *freelru.SyncedLRU[uint32, *handle]
}

func hashOID(oid uint32) uint32 {
	return uint32(xxhash.Sum64(binary.LittleEndian.AppendUint32(nil, oid)))
}

// OpenManifest loads the manifest at path.
func OpenManifest(path string, opts ...Option) (*Manifest, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.CacheSize == 0 {
		o.CacheSize = defaultOptions().CacheSize
	}

	files, err := freelru.NewSynced[uint32, *handle](o.CacheSize, hashOID)
	if err != nil {
		return nil, fmt.Errorf("file cache: %w", err)
	}
	files.SetOnEvict(func(_ uint32, h *handle) {
		_ = h.release()
	})
	m := &Manifest{
		path:  path,
		dir:   filepath.Dir(path),
		opts:  o,
		files: files,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.refresh(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) ([]Entry, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if doc.PageSize == 0 {
		doc.PageSize = base.DefaultPageSize
	}
	if err := base.CheckPageSize(doc.PageSize); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	for i := range doc.Relations {
		e := &doc.Relations[i]
		if e.PageSize == 0 {
			e.PageSize = doc.PageSize
		}
		if err := base.CheckPageSize(e.PageSize); err != nil {
			return nil, fmt.Errorf("relation %s: %w", e.Name, err)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("relation %s: missing path", e.Name)
		}
	}
	return doc.Relations, nil
}

// refresh re-reads the manifest file, reporting whether it changed. Cached
// files are dropped on a change. m.mu must be held.
func (m *Manifest) refresh() (bool, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return false, fmt.Errorf("read manifest: %w", err)
	}
	sum := xxhash.Sum64(data)

	if m.idx != nil && sum == m.fingerprint {
		return false, nil
	}
	entries, err := ParseManifest(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", m.path, err)
	}
	idx, err := newIndex(entries)
	if err != nil {
		return false, fmt.Errorf("%s: %w", m.path, err)
	}

	m.entries = entries
	m.idx = idx
	m.fingerprint = sum
	m.files.Purge()
	return true, nil
}

// Entries returns a copy of the current relation entries.
func (m *Manifest) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Fingerprint returns the xxhash of the manifest content last loaded.
func (m *Manifest) Fingerprint() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fingerprint
}

// Resolve looks up ident and returns the relation backed by its file,
// opening the file unless it is cached. The caller closes the returned
// Relation.
func (m *Manifest) Resolve(ident string) (*Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errManifestClosed
	}
	if _, err := m.refresh(); err != nil {
		return nil, err
	}
	i, err := m.idx.lookup(ident)
	if err != nil {
		return nil, err
	}
	e := m.entries[i]
	if err := checkGist(e); err != nil {
		return nil, err
	}

	h, ok := m.files.Get(e.OID)
	if !ok || !h.acquire() {
		src, err := m.open(e)
		if err != nil {
			return nil, fmt.Errorf("open relation %s: %w", e.Name, err)
		}
		h = newHandle(src)
		h.acquire()
		m.files.Add(e.OID, h)
	}
	return &Relation{
		OID:          e.OID,
		Name:         e.Name,
		AccessMethod: e.AccessMethod,
		RootBlock:    base.BlockNumber(e.RootBlock),
		PageSize:     e.PageSize,
		Pages:        &lease{h: h},
	}, nil
}

func (m *Manifest) open(e Entry) (base.PageSource, error) {
	path := e.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.dir, path)
	}
	switch m.opts.IO {
	case IOPread:
		return storage.OpenFile(path, e.PageSize)
	case IODirect:
		return storage.OpenDirect(path, e.PageSize)
	default:
		return storage.OpenMMap(path, e.PageSize)
	}
}

// CacheLen returns the number of open relation files in the cache.
func (m *Manifest) CacheLen() int {
	return m.files.Len()
}

// Close drops every cached file. Relations already resolved stay usable
// until they are closed themselves.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.files.Purge()
	return nil
}
