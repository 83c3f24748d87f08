package base

import "errors"

var (
	ErrNotFound        = errors.New("relation not found")
	ErrWrongType       = errors.New("relation is not a gist index")
	ErrCorrupt         = errors.New("corrupt page")
	ErrRunaway         = errors.New("traversal exceeded relation size")
	ErrInvalidOffset   = errors.New("invalid offset: out of bounds")
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrPageOverflow    = errors.New("page overflow")
)
