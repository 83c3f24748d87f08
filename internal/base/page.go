package base

import (
	"encoding/binary"
	"fmt"
)

const (
	DefaultPageSize = 8192
	MinPageSize     = 1024
	MaxPageSize     = 32768

	PageHeaderSize  = 24 // LSN(8) + Checksum(2) + Flags(2) + Lower(2) + Upper(2) + Special(2) + SizeVersion(2) + PruneXID(4)
	ItemIDSize      = 4
	GistOpaqueSize  = 16 // NSN(8) + RightLink(4) + Flags(2) + PageID(2)
	IndexTupleSize  = 8  // BlockHi(2) + BlockLo(2) + PosID(2) + Info(2)
	PageLayoutVer   = 4
	GistPageID      = 0xFF81
	TupleIsInvalid  = 0xFFFE
	indexSizeMask   = 0x1FFF
	pageSizeMask    = 0xFF00
	pageVersionMask = 0x00FF

	GistRootBlock BlockNumber = 0

	// InvalidBlockNumber marks the absence of a right sibling.
	InvalidBlockNumber BlockNumber = 0xFFFFFFFF
)

// GiST page flags stored in the special space.
const (
	FLeaf          uint16 = 1 << 0
	FDeleted       uint16 = 1 << 1
	FTuplesDeleted uint16 = 1 << 2
	FFollowRight   uint16 = 1 << 3
	FHasGarbage    uint16 = 1 << 4
)

// BlockNumber addresses one page of a relation.
type BlockNumber uint32

func (b BlockNumber) Valid() bool {
	return b != InvalidBlockNumber
}

func (b BlockNumber) String() string {
	if !b.Valid() {
		return "Invalid Block"
	}
	return fmt.Sprintf("%d", uint32(b))
}

// CheckPageSize rejects sizes the page header cannot describe: powers of two
// from MinPageSize to MaxPageSize.
func CheckPageSize(size int) error {
	if size < MinPageSize || size > MaxPageSize || size&(size-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, size)
	}
	return nil
}

// PageSource is the read-only page access capability a walk runs against.
// ReadPage returns a buffer owned by the caller; NumBlocks reports the
// current relation length.
type PageSource interface {
	ReadPage(blk BlockNumber) ([]byte, error)
	NumBlocks() (uint32, error)
	Close() error
}

// PageHeader mirrors PageHeaderData.
// Layout: [LSN: 8][Checksum: 2][Flags: 2][Lower: 2][Upper: 2][Special: 2][SizeVersion: 2][PruneXID: 4]
type PageHeader struct {
	LSN         uint64
	Checksum    uint16
	Flags       uint16
	Lower       uint16 // end of the line pointer array
	Upper       uint16 // start of tuple data
	Special     uint16 // start of the special space
	SizeVersion uint16
	PruneXID    uint32
}

func (h *PageHeader) PageSize() int {
	return int(h.SizeVersion & pageSizeMask)
}

func (h *PageHeader) LayoutVersion() int {
	return int(h.SizeVersion & pageVersionMask)
}

// GistOpaque mirrors GISTPageOpaqueData.
// Layout: [NSN: 8][RightLink: 4][Flags: 2][PageID: 2]
type GistOpaque struct {
	NSN       uint64
	RightLink BlockNumber
	Flags     uint16
	PageID    uint16
}

// Page is a decoded GiST page. The raw buffer is kept for tuple access and
// is never modified.
//
// PAGE LAYOUT:
// ┌─────────────────────────────────────────────────────────────────────┐
// │ PageHeaderData (24 bytes)                                           │
// ├─────────────────────────────────────────────────────────────────────┤
// │ ItemIdData[0..N-1] (4 bytes each)            grows forward →        │
// ├─────────────────────────────────────────────────────────────────────┤
// │ Free space (Upper - Lower)                                          │
// ├─────────────────────────────────────────────────────────────────────┤
// │ Tuple data                                   ← grows backward       │
// ├─────────────────────────────────────────────────────────────────────┤
// │ GISTPageOpaqueData (16 bytes at Special)                            │
// └─────────────────────────────────────────────────────────────────────┘
type Page struct {
	Header PageHeader
	Opaque GistOpaque
	Items  []ItemID
	data   []byte
}

// xlogPtr reads a PageXLogRecPtr, stored as two uint32 halves.
func xlogPtr(b []byte) uint64 {
	hi := binary.LittleEndian.Uint32(b[0:4])
	lo := binary.LittleEndian.Uint32(b[4:8])
	return uint64(hi)<<32 | uint64(lo)
}

// ParseHeader decodes the fixed page header without validating it.
func ParseHeader(buf []byte) (PageHeader, error) {
	if len(buf) < PageHeaderSize {
		return PageHeader{}, fmt.Errorf("%w: short page: %d bytes", ErrCorrupt, len(buf))
	}
	le := binary.LittleEndian
	return PageHeader{
		LSN:         xlogPtr(buf[0:8]),
		Checksum:    le.Uint16(buf[8:10]),
		Flags:       le.Uint16(buf[10:12]),
		Lower:       le.Uint16(buf[12:14]),
		Upper:       le.Uint16(buf[14:16]),
		Special:     le.Uint16(buf[16:18]),
		SizeVersion: le.Uint16(buf[18:20]),
		PruneXID:    le.Uint32(buf[20:24]),
	}, nil
}

// DecodePage parses and bounds-checks a raw GiST page.
func DecodePage(buf []byte) (*Page, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	size := len(buf)

	if h.Upper == 0 {
		return nil, fmt.Errorf("%w: uninitialized page", ErrCorrupt)
	}
	if h.PageSize() != size {
		return nil, fmt.Errorf("%w: header page size %d, buffer %d bytes", ErrCorrupt, h.PageSize(), size)
	}
	if h.LayoutVersion() != PageLayoutVer {
		return nil, fmt.Errorf("%w: page layout version %d", ErrCorrupt, h.LayoutVersion())
	}
	lower, upper, special := int(h.Lower), int(h.Upper), int(h.Special)
	if lower < PageHeaderSize || lower > upper || upper > special || special > size {
		return nil, fmt.Errorf("%w: bad bounds lower=%d upper=%d special=%d", ErrCorrupt, lower, upper, special)
	}
	if (lower-PageHeaderSize)%ItemIDSize != 0 {
		return nil, fmt.Errorf("%w: line pointer area of %d bytes", ErrCorrupt, lower-PageHeaderSize)
	}
	if size-special != GistOpaqueSize {
		return nil, fmt.Errorf("%w: special space of %d bytes", ErrCorrupt, size-special)
	}

	le := binary.LittleEndian
	sp := buf[special:]
	opaque := GistOpaque{
		NSN:       xlogPtr(sp[0:8]),
		RightLink: BlockNumber(le.Uint32(sp[8:12])),
		Flags:     le.Uint16(sp[12:14]),
		PageID:    le.Uint16(sp[14:16]),
	}
	if opaque.PageID != GistPageID {
		return nil, fmt.Errorf("%w: not a gist page (page id 0x%04X)", ErrCorrupt, opaque.PageID)
	}

	n := (lower - PageHeaderSize) / ItemIDSize
	items := make([]ItemID, n)
	for i := range items {
		off := PageHeaderSize + i*ItemIDSize
		id := ParseItemID(le.Uint32(buf[off : off+ItemIDSize]))
		if id.Flags == LPNormal && id.Length == 0 {
			return nil, fmt.Errorf("%w: item %d is in use but has no storage", ErrCorrupt, i+1)
		}
		if id.HasStorage() {
			start, end := int(id.Offset), int(id.Offset)+int(id.Length)
			if start < upper || end > special {
				return nil, fmt.Errorf("%w: item %d at [%d,%d) outside tuple area [%d,%d)",
					ErrCorrupt, i+1, start, end, upper, special)
			}
		}
		items[i] = id
	}

	return &Page{Header: h, Opaque: opaque, Items: items, data: buf}, nil
}

// Size returns the page size in bytes.
func (p *Page) Size() int {
	return len(p.data)
}

// Data returns the raw page bytes.
func (p *Page) Data() []byte {
	return p.data
}

// NumItems is the line pointer count (PageGetMaxOffsetNumber).
func (p *Page) NumItems() int {
	return len(p.Items)
}

// FreeSpace is the gap between the line pointer array and tuple data.
func (p *Page) FreeSpace() int {
	return int(p.Header.Upper) - int(p.Header.Lower)
}

// HeaderBytes is the fixed overhead of the page: header plus special space.
func (p *Page) HeaderBytes() int {
	return PageHeaderSize + GistOpaqueSize
}

// FreeRatio returns free space as a fraction of the page size.
func (p *Page) FreeRatio() float64 {
	return float64(p.FreeSpace()) / float64(p.Size())
}

func (p *Page) LSN() uint64 {
	return p.Header.LSN
}

func (p *Page) NSN() uint64 {
	return p.Opaque.NSN
}

func (p *Page) RightLink() BlockNumber {
	return p.Opaque.RightLink
}

func (p *Page) IsLeaf() bool {
	return p.Opaque.Flags&FLeaf != 0
}

func (p *Page) IsDeleted() bool {
	return p.Opaque.Flags&FDeleted != 0
}

func (p *Page) FollowRight() bool {
	return p.Opaque.Flags&FFollowRight != 0
}
