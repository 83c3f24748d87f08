package base

import (
	"encoding/binary"
	"fmt"
)

// ItemFlags is the 2-bit line pointer state.
type ItemFlags uint8

const (
	LPUnused   ItemFlags = 0
	LPNormal   ItemFlags = 1
	LPRedirect ItemFlags = 2
	LPDead     ItemFlags = 3
)

func (f ItemFlags) String() string {
	switch f {
	case LPUnused:
		return "unused"
	case LPNormal:
		return "normal"
	case LPRedirect:
		return "redirect"
	case LPDead:
		return "dead"
	}
	return fmt.Sprintf("ItemFlags(%d)", uint8(f))
}

// ItemID mirrors ItemIdData.
// Layout (bit fields of one uint32): [Offset: 15][Flags: 2][Length: 15]
type ItemID struct {
	Offset uint16
	Flags  ItemFlags
	Length uint16
}

func ParseItemID(v uint32) ItemID {
	return ItemID{
		Offset: uint16(v & 0x7FFF),
		Flags:  ItemFlags((v >> 15) & 0x03),
		Length: uint16(v >> 17),
	}
}

// Encode packs the item pointer back into its on-disk form.
func (id ItemID) Encode() uint32 {
	return uint32(id.Offset&0x7FFF) | uint32(id.Flags&0x03)<<15 | uint32(id.Length&0x7FFF)<<17
}

// HasStorage reports whether the item points at tuple bytes on the page.
func (id ItemID) HasStorage() bool {
	return id.Length > 0 && (id.Flags == LPNormal || id.Flags == LPDead)
}

// Tuple describes one index entry on a page.
type Tuple struct {
	Item     int // 1-based offset number
	Length   int
	Flags    ItemFlags
	Valid    bool
	Downlink BlockNumber // block referenced by t_tid; the child page on internal pages
	PosID    uint16
	Info     uint16
}

// DataSize returns the tuple size recorded in t_info.
func (t Tuple) DataSize() int {
	return int(t.Info & indexSizeMask)
}

// Tuple decodes the item with the given 1-based offset number.
func (p *Page) Tuple(item int) (Tuple, error) {
	if item < 1 || item > len(p.Items) {
		return Tuple{}, fmt.Errorf("%w: item %d of %d", ErrInvalidOffset, item, len(p.Items))
	}
	id := p.Items[item-1]
	t := Tuple{
		Item:     item,
		Length:   int(id.Length),
		Flags:    id.Flags,
		Downlink: InvalidBlockNumber,
	}
	if !id.HasStorage() {
		return t, nil
	}

	start, end := int(id.Offset), int(id.Offset)+int(id.Length)
	if start < 0 || end > len(p.data) {
		return Tuple{}, fmt.Errorf("%w: item %d at [%d,%d) outside page", ErrCorrupt, item, start, end)
	}
	if end-start < IndexTupleSize {
		return Tuple{}, fmt.Errorf("%w: item %d is %d bytes, shorter than tuple header", ErrCorrupt, item, end-start)
	}

	le := binary.LittleEndian
	raw := p.data[start:end]
	hi, lo := le.Uint16(raw[0:2]), le.Uint16(raw[2:4])
	t.Downlink = BlockNumber(uint32(hi)<<16 | uint32(lo))
	t.PosID = le.Uint16(raw[4:6])
	t.Info = le.Uint16(raw[6:8])
	t.Valid = id.Flags == LPNormal && t.PosID != TupleIsInvalid
	return t, nil
}

// Tuples decodes every item on the page in offset order.
func (p *Page) Tuples() ([]Tuple, error) {
	tuples := make([]Tuple, 0, len(p.Items))
	for i := 1; i <= len(p.Items); i++ {
		t, err := p.Tuple(i)
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, t)
	}
	return tuples, nil
}

// Downlinks returns the child blocks referenced by an internal page, in item
// order. Leaf pages have none.
func (p *Page) Downlinks() ([]BlockNumber, error) {
	if p.IsLeaf() {
		return nil, nil
	}
	links := make([]BlockNumber, 0, len(p.Items))
	for i := 1; i <= len(p.Items); i++ {
		if !p.Items[i-1].HasStorage() {
			continue
		}
		t, err := p.Tuple(i)
		if err != nil {
			return nil, err
		}
		links = append(links, t.Downlink)
	}
	return links, nil
}

// FirstDownlink returns the downlink of the first item with storage, or
// InvalidBlockNumber if there is none.
func (p *Page) FirstDownlink() (BlockNumber, error) {
	if p.IsLeaf() {
		return InvalidBlockNumber, nil
	}
	for i := 1; i <= len(p.Items); i++ {
		if !p.Items[i-1].HasStorage() {
			continue
		}
		t, err := p.Tuple(i)
		if err != nil {
			return InvalidBlockNumber, err
		}
		return t.Downlink, nil
	}
	return InvalidBlockNumber, nil
}
