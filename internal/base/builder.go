package base

import (
	"encoding/binary"
	"fmt"
)

type builderTuple struct {
	flags  ItemFlags
	length int
	block  BlockNumber
	posID  uint16
}

// PageBuilder assembles GiST pages byte by byte. Tuples are packed backward
// from the special space without alignment padding, so the page accounts
// exactly for header, line pointers, tuple bytes and free space.
type PageBuilder struct {
	size      int
	flags     uint16
	rightLink BlockNumber
	lsn       uint64
	nsn       uint64
	tuples    []builderTuple
}

func NewPageBuilder(size int) *PageBuilder {
	return &PageBuilder{size: size, rightLink: InvalidBlockNumber}
}

func (b *PageBuilder) Leaf() *PageBuilder {
	b.flags |= FLeaf
	return b
}

func (b *PageBuilder) Flags(f uint16) *PageBuilder {
	b.flags |= f
	return b
}

func (b *PageBuilder) RightLink(blk BlockNumber) *PageBuilder {
	b.rightLink = blk
	return b
}

func (b *PageBuilder) LSN(v uint64) *PageBuilder {
	b.lsn = v
	return b
}

func (b *PageBuilder) NSN(v uint64) *PageBuilder {
	b.nsn = v
	return b
}

// Tuple appends a live tuple of length bytes whose t_tid references blk.
func (b *PageBuilder) Tuple(blk BlockNumber, length int) *PageBuilder {
	b.tuples = append(b.tuples, builderTuple{flags: LPNormal, length: length, block: blk, posID: 1})
	return b
}

// InvalidTuple appends a tuple carrying the GiST invalid marker.
func (b *PageBuilder) InvalidTuple(blk BlockNumber, length int) *PageBuilder {
	b.tuples = append(b.tuples, builderTuple{flags: LPNormal, length: length, block: blk, posID: TupleIsInvalid})
	return b
}

// DeadTuple appends a tuple whose line pointer is marked dead.
func (b *PageBuilder) DeadTuple(blk BlockNumber, length int) *PageBuilder {
	b.tuples = append(b.tuples, builderTuple{flags: LPDead, length: length, block: blk, posID: 1})
	return b
}

// Build lays the page out and returns its bytes.
func (b *PageBuilder) Build() ([]byte, error) {
	if err := CheckPageSize(b.size); err != nil {
		return nil, err
	}
	buf := make([]byte, b.size)
	le := binary.LittleEndian

	special := b.size - GistOpaqueSize
	lower := PageHeaderSize + len(b.tuples)*ItemIDSize
	upper := special
	for i, t := range b.tuples {
		if t.length < IndexTupleSize {
			return nil, fmt.Errorf("tuple %d: length %d below header size", i+1, t.length)
		}
		upper -= t.length
		if upper < lower {
			return nil, fmt.Errorf("%w: tuple %d does not fit", ErrPageOverflow, i+1)
		}
		raw := buf[upper : upper+t.length]
		le.PutUint16(raw[0:2], uint16(uint32(t.block)>>16))
		le.PutUint16(raw[2:4], uint16(uint32(t.block)))
		le.PutUint16(raw[4:6], t.posID)
		le.PutUint16(raw[6:8], uint16(t.length)&indexSizeMask)

		id := ItemID{Offset: uint16(upper), Flags: t.flags, Length: uint16(t.length)}
		le.PutUint32(buf[PageHeaderSize+i*ItemIDSize:], id.Encode())
	}

	le.PutUint32(buf[0:4], uint32(b.lsn>>32))
	le.PutUint32(buf[4:8], uint32(b.lsn))
	le.PutUint16(buf[12:14], uint16(lower))
	le.PutUint16(buf[14:16], uint16(upper))
	le.PutUint16(buf[16:18], uint16(special))
	le.PutUint16(buf[18:20], uint16(b.size&pageSizeMask)|PageLayoutVer)

	sp := buf[special:]
	le.PutUint32(sp[0:4], uint32(b.nsn>>32))
	le.PutUint32(sp[4:8], uint32(b.nsn))
	le.PutUint32(sp[8:12], uint32(b.rightLink))
	le.PutUint16(sp[12:14], b.flags)
	le.PutUint16(sp[14:16], GistPageID)
	return buf, nil
}

// MustBuild is Build for fixtures whose layout is known to fit.
func (b *PageBuilder) MustBuild() []byte {
	buf, err := b.Build()
	if err != nil {
		panic(err)
	}
	return buf
}
