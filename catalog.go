package gevel

import (
	"github.com/alexhholmes/gevel/catalog"
	"github.com/alexhholmes/gevel/internal/base"
	"github.com/alexhholmes/gevel/internal/stats"
)

// Catalog resolves an index identifier to an open relation. Implementations
// return ErrNotFound for unknown identifiers and ErrWrongType for relations
// that are not GiST indexes. See package catalog for a manifest-backed and
// an in-memory implementation.
type Catalog interface {
	Resolve(identifier string) (*Relation, error)
}

type (
	Relation    = catalog.Relation
	PageSource  = base.PageSource
	BlockNumber = base.BlockNumber
	Stats       = stats.Stats
	Row         = stats.Row
)

const InvalidBlockNumber = base.InvalidBlockNumber
