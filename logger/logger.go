// Package logger provides adapters for popular logger libraries to work with gevel's Logger interface.
//
// The adapters allow you to use your existing logger with gevel without writing boilerplate.
// Note that the standard library's slog.Logger already implements gevel.Logger directly.
//
// Example with zap:
//
//	import (
//	    "github.com/alexhholmes/gevel"
//	    "github.com/alexhholmes/gevel/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    in := gevel.New(cat, gevel.WithLogger(logger.NewZap(zapLogger)))
//	    stats, err := in.GistStat("public.pts_gist_idx")
//	    ...
//	}
package logger
