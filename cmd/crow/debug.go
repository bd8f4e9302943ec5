package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"

	"github.com/vito/crow/pkg/crow"
	"github.com/vito/crow/pkg/ioctx"
)

// printTree writes the concrete syntax tree of each src to stdout.
func printTree(ctx context.Context, cfg Config, args []string, mode crow.Mode) error {
	stdout := ioctx.StdoutFromContext(ctx)
	report := NewReport(ctx, cfg)
	for _, src := range args {
		var raw []byte
		var err error
		if src == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(src)
		}
		if err != nil {
			report.Failed(src, err.Error())
			continue
		}
		contents, _ := crow.DecodeNewlines(string(raw))
		tree, err := crow.Parse(contents, mode.Grammars())
		if err != nil {
			report.Failed(src, err.Error())
			continue
		}
		if len(args) > 1 {
			fmt.Fprintf(stdout, "# %s\n", src)
		}
		if err := crow.DebugTree(stdout, tree); err != nil {
			return err
		}
	}
	if code := report.ReturnCode(); code != 0 {
		return exitCode(code)
	}
	return nil
}

// setupDebugHandlers serves pprof and expvar on addr for profiling long
// runs.
func setupDebugHandlers(addr string) error {
	m := http.NewServeMux()
	m.Handle("/debug/vars", expvar.Handler())
	m.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
	m.Handle("/debug/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
	m.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	m.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
	m.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))
	m.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	m.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))

	m.Handle("/debug/gc", http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		runtime.GC()
		slog.Warn("triggered GC from debug endpoint")
	}))

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("debug handlers listening", "debugAddr", addr)
	go http.Serve(l, m) //nolint:errcheck
	return nil
}
