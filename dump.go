package gevel

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/alexhholmes/gevel/internal/walk"
)

// indentWidth is the left pad per tree level.
const indentWidth = 4

// formatNode renders one page of the tree dump:
//
//	<indent>N(l:L) blk: B numTuple: T free: FB (P%) rightlink: R
func formatNode(n walk.Node) string {
	page := n.Page
	free := page.FreeSpace()
	return fmt.Sprintf("%s%d(l:%d) blk: %d numTuple: %d free: %dB (%.2f%%) rightlink: %s",
		strings.Repeat(" ", n.Level*indentWidth),
		n.Position,
		n.Level,
		uint32(n.Block),
		page.NumItems(),
		free,
		page.FreeRatio()*100,
		page.RightLink())
}

type dumper struct {
	w *bufio.Writer
}

func newDumper(w io.Writer) *dumper {
	return &dumper{w: bufio.NewWriter(w)}
}

func (d *dumper) write(n walk.Node) error {
	if _, err := d.w.WriteString(formatNode(n)); err != nil {
		return err
	}
	return d.w.WriteByte('\n')
}

func (d *dumper) flush() error {
	return d.w.Flush()
}
