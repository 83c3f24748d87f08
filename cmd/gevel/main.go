package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alexhholmes/gevel"
	"github.com/alexhholmes/gevel/catalog"
	"github.com/alexhholmes/gevel/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gevel", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		manifest = fs.String("catalog", "", "Path to the catalog manifest (required)")
		ioMode   = fs.String("io", "mmap", "Page access: mmap, pread or direct")
		maxLevel = fs.Int("max-level", -1, "Do not descend below this level (-1: no limit)")
		order    = fs.String("order", "tree", "Traversal order: tree, downlinks or levels")
		logKind  = fs.String("log", "none", "Logger: zap, logrus or none")
		format   = fs.String("format", "text", "stat output: text or table")
		verbose  = fs.Bool("v", false, "Verbose logging")
	)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "GiST index inspector\n\n")
		fmt.Fprintf(stderr, "Usage: gevel [OPTIONS] tree|stat <index>\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  gevel -catalog catalog.yaml tree public.pts_gist_idx\n")
		fmt.Fprintf(stderr, "  gevel -catalog catalog.yaml -max-level 1 tree 16402\n")
		fmt.Fprintf(stderr, "  gevel -catalog catalog.yaml -io pread stat pts_gist_idx\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *manifest == "" || fs.NArg() != 2 {
		fmt.Fprintf(stderr, "Error: -catalog, a command and an index are required\n\n")
		fs.Usage()
		return 2
	}
	cmd, ident := fs.Arg(0), fs.Arg(1)

	mode, err := catalog.ParseIOMode(*ioMode)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var walkOrder gevel.Order
	switch *order {
	case "tree":
		walkOrder = gevel.OrderTree
	case "downlinks":
		walkOrder = gevel.OrderDownlinks
	case "levels":
		walkOrder = gevel.OrderLevels
	default:
		fmt.Fprintf(stderr, "Error: unknown order %q\n", *order)
		return 2
	}
	switch *format {
	case "text", "table":
	default:
		fmt.Fprintf(stderr, "Error: unknown format %q\n", *format)
		return 2
	}
	log, sync, err := newLogger(*logKind, *verbose, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer sync()

	cat, err := catalog.OpenManifest(*manifest, catalog.WithIO(mode))
	if err != nil {
		fmt.Fprintf(stderr, "Error loading catalog: %v\n", err)
		return 1
	}
	defer cat.Close()
	in := gevel.New(cat,
		gevel.WithLogger(log),
		gevel.WithOrder(walkOrder),
		gevel.WithMaxLevel(*maxLevel))

	switch cmd {
	case "tree":
		err = in.DumpTree(stdout, ident)
	case "stat":
		var s *gevel.Stats
		s, err = in.GistStat(ident)
		if err == nil {
			writeStats(stdout, s, *format)
		}
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", cmd)
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func writeStats(w io.Writer, s *gevel.Stats, format string) {
	if format == "text" {
		fmt.Fprint(w, s.String())
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range s.Rows() {
		fmt.Fprintf(tw, "%s\t%d\n", r.Label, r.Value)
	}
	tw.Flush()
}

// newLogger builds the requested logger writing to w. The returned func
// flushes buffered entries.
func newLogger(kind string, verbose bool, w io.Writer) (gevel.Logger, func(), error) {
	switch kind {
	case "none", "":
		return gevel.DiscardLogger{}, func() {}, nil
	case "zap":
		level := zapcore.WarnLevel
		if verbose {
			level = zapcore.InfoLevel
		}
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		z := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
		return logger.NewZap(z), func() { _ = z.Sync() }, nil
	case "logrus":
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(logrus.WarnLevel)
		if verbose {
			l.SetLevel(logrus.InfoLevel)
		}
		return logger.NewLogrus(l), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown logger %q", kind)
}
