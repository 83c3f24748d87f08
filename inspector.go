// Package gevel inspects the on-disk page tree of PostgreSQL GiST indexes.
//
// An Inspector resolves an index through a Catalog, walks its pages from the
// root without loading the index into memory, and either dumps one line per
// page (GistTree, DumpTree) or folds the walk into aggregate statistics
// (GistStat).
//
//	cat, _ := catalog.OpenManifest("catalog.yaml")
//	in := gevel.New(cat)
//	tree, err := in.GistTree("public.pts_gist_idx")
package gevel

import (
	"fmt"
	"io"
	"strings"

	"github.com/alexhholmes/gevel/internal/stats"
	"github.com/alexhholmes/gevel/internal/storage"
	"github.com/alexhholmes/gevel/internal/walk"
)

// Inspector runs read-only traversals of GiST indexes. It holds no state
// between calls and is safe for concurrent use if its Catalog is.
type Inspector struct {
	catalog Catalog
	opts    Options
}

func New(cat Catalog, options ...Option) *Inspector {
	opts := DefaultOptions()
	for _, opt := range options {
		opt(&opts)
	}
	return &Inspector{catalog: cat, opts: opts}
}

// open resolves identifier and checks that it names a GiST index.
func (in *Inspector) open(identifier string) (*Relation, error) {
	rel, err := in.catalog.Resolve(identifier)
	if err != nil {
		in.opts.logger.Warn("resolve failed", "identifier", identifier, "error", err)
		return nil, err
	}
	if !rel.IsGist() {
		rel.Close()
		return nil, fmt.Errorf("%w: %s uses access method %q", ErrWrongType, rel.Name, rel.AccessMethod)
	}
	in.opts.logger.Info("resolved relation",
		"identifier", identifier,
		"oid", rel.OID,
		"name", rel.Name,
		"root", rel.RootBlock)
	return rel, nil
}

// trace is a walk over rel that logs structural anomalies as pages are
// visited.
type trace struct {
	*walk.Walker
	rel *Relation
	in  *Inspector
}

func (in *Inspector) trace(rel *Relation) *trace {
	return &trace{
		Walker: walk.New(rel.Pages, rel.RootBlock, in.opts.walkOptions()...),
		rel:    rel,
		in:     in,
	}
}

func (t *trace) Next() bool {
	if !t.Walker.Next() {
		return false
	}
	n := t.Node()
	log := t.in.opts.logger
	if n.Page.IsDeleted() {
		log.Warn("deleted page in tree", "relation", t.rel.Name, "block", n.Block, "level", n.Level)
	}
	if n.RightLinked && t.in.opts.order == OrderDownlinks {
		log.Info("followed right link across split", "relation", t.rel.Name, "block", n.Block, "level", n.Level)
	}
	return true
}

// finish logs the outcome of the walk and returns err.
func (t *trace) finish(err error) error {
	log := t.in.opts.logger
	if err != nil {
		log.Error("walk aborted", "relation", t.rel.Name, "visited", t.Visited(), "error", err)
		return err
	}

	args := []any{"relation", t.rel.Name, "order", t.in.opts.order, "pages", t.Visited()}
	if s, ok := t.rel.Pages.(interface{ Stats() storage.Stats }); ok {
		st := s.Stats()
		args = append(args, "reads", st.Reads, "bytes", st.Read)
	}
	log.Info("walk complete", args...)
	return nil
}

// GistTree returns the page tree of the index as text, one line per page.
func (in *Inspector) GistTree(identifier string) (string, error) {
	var b strings.Builder
	if err := in.DumpTree(&b, identifier); err != nil {
		return "", err
	}
	return b.String(), nil
}

// DumpTree writes the page tree of the index to w as it is walked. Lines
// already written stay written if the walk fails.
func (in *Inspector) DumpTree(w io.Writer, identifier string) error {
	rel, err := in.open(identifier)
	if err != nil {
		return err
	}
	defer rel.Close()

	t := in.trace(rel)
	d := newDumper(w)
	for err == nil && t.Next() {
		err = d.write(t.Node())
	}
	if err == nil {
		err = t.Err()
	}
	err = t.finish(err)
	if ferr := d.flush(); err == nil {
		err = ferr
	}
	return err
}

// GistStat walks the whole index and returns its statistics. No statistics
// are returned if the walk fails part way.
func (in *Inspector) GistStat(identifier string) (*Stats, error) {
	rel, err := in.open(identifier)
	if err != nil {
		return nil, err
	}
	defer rel.Close()

	t := in.trace(rel)
	s, err := stats.Aggregate(t)
	if err := t.finish(err); err != nil {
		return nil, err
	}
	return &s, nil
}
