package gevel

import (
	"github.com/alexhholmes/gevel/internal/base"
)

//goland:noinspection GoUnusedGlobalVariable
var (
	ErrNotFound  = base.ErrNotFound
	ErrWrongType = base.ErrWrongType
	ErrCorrupt   = base.ErrCorrupt
	ErrRunaway   = base.ErrRunaway

	ErrInvalidOffset   = base.ErrInvalidOffset
	ErrInvalidPageSize = base.ErrInvalidPageSize
)
