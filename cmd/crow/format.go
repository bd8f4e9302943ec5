package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vito/crow/pkg/cache"
	"github.com/vito/crow/pkg/crow"
	"github.com/vito/crow/pkg/ioctx"
	"golang.org/x/sync/errgroup"
)

// writeBack says what to do with formatted output.
type writeBack int

const (
	writeYes writeBack = iota
	writeCheck
	writeDiff
	writeColorDiff
)

func writeBackFromConfig(cfg Config) writeBack {
	switch {
	case cfg.Diff && cfg.Color && !cfg.NoColor:
		return writeColorDiff
	case cfg.Diff:
		return writeDiff
	case cfg.Check:
		return writeCheck
	}
	return writeYes
}

func (wb writeBack) isDiff() bool {
	return wb == writeDiff || wb == writeColorDiff
}

// formatter formats files for one run.
type formatter struct {
	mode      crow.Mode
	fast      bool
	writeBack writeBack
	report    *Report
	stdin     io.Reader
	stdout    io.Writer

	// Serializes writes to stdout so diffs don't interleave.
	stdoutMu sync.Mutex

	now func() time.Time
}

func run(ctx context.Context, cfg Config, args []string, mode crow.Mode) error {
	report := NewReport(ctx, cfg)

	if len(args) == 0 {
		report.Out("No Path provided. Nothing to do 😴")
		return nil
	}

	sources, err := collectSources(cfg, args, report)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		if report.ReturnCode() == 0 {
			report.Out("No Python files are present to be formatted. Nothing to do 😴")
			return nil
		}
		report.Finish()
		return exitCode(report.ReturnCode())
	}

	f := &formatter{
		mode:      mode,
		fast:      cfg.Fast,
		writeBack: writeBackFromConfig(cfg),
		report:    report,
		stdin:     os.Stdin,
		stdout:    ioctx.StdoutFromContext(ctx),
		now:       time.Now,
	}

	var c *cache.Cache
	if !cfg.NoCache && !f.writeBack.isDiff() {
		c, err = cache.Open(cache.Dir(), mode.CacheKey())
		if err != nil {
			slog.Warn("cache unavailable", "error", err)
			c = nil
		} else {
			defer c.Close()
		}
	}

	if len(sources) == 1 {
		f.reformatOne(ctx, sources[0], c)
	} else {
		f.reformatMany(ctx, sources, c, cfg.Workers)
	}

	report.Finish()
	if code := report.ReturnCode(); code != 0 {
		return exitCode(code)
	}
	return nil
}

// reformatOne formats a single src, which may be "-" for standard input.
func (f *formatter) reformatOne(ctx context.Context, src string, c *cache.Cache) {
	if src == "-" {
		changed, err := f.formatStdinToStdout(ctx)
		if err != nil {
			f.fail(src, err)
			return
		}
		f.report.Done(src, changed)
		return
	}

	if c != nil {
		changed, _, err := c.Filter([]string{src})
		if err != nil {
			slog.Debug("cache read failed", "path", src, "error", err)
		} else if len(changed) == 0 {
			f.report.Done(src, Cached)
			return
		}
	}

	changed, err := f.formatFileInPlace(ctx, src)
	if err != nil {
		f.fail(src, err)
		return
	}
	if c != nil && f.shouldCache(changed) {
		if err := c.Write([]string{src}); err != nil {
			slog.Debug("cache write failed", "path", src, "error", err)
		}
	}
	f.report.Done(src, changed)
}

// reformatMany formats srcs concurrently, at most workers at a time.
func (f *formatter) reformatMany(ctx context.Context, srcs []string, c *cache.Cache, workers int) {
	if c != nil {
		changed, done, err := c.Filter(srcs)
		if err != nil {
			slog.Debug("cache read failed", "error", err)
		} else {
			for _, src := range done {
				f.report.Done(src, Cached)
			}
			srcs = changed
		}
	}

	var mu sync.Mutex
	var toCache []string

	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for _, src := range srcs {
		eg.Go(func() error {
			if src == "-" {
				f.reformatOne(ctx, src, nil)
				return nil
			}
			changed, err := f.formatFileInPlace(ctx, src)
			if err != nil {
				f.fail(src, err)
				return nil
			}
			if f.shouldCache(changed) {
				mu.Lock()
				toCache = append(toCache, src)
				mu.Unlock()
			}
			f.report.Done(src, changed)
			return nil
		})
	}
	_ = eg.Wait()

	if c != nil && len(toCache) > 0 {
		if err := c.Write(toCache); err != nil {
			slog.Debug("cache write failed", "error", err)
		}
	}
}

// fail reports a file that could not be formatted. Verbose runs show
// where parsing failed.
func (f *formatter) fail(src string, err error) {
	f.report.Failed(src, err.Error())
	var invalid *crow.InvalidInput
	if errors.As(err, &invalid) {
		f.report.Detail(invalid.FormatWithHighlighting(src))
	}
}

// shouldCache reports whether a file is known to be formatted after the
// run: either it was written back, or a check found nothing to change.
func (f *formatter) shouldCache(changed Changed) bool {
	return f.writeBack == writeYes || (f.writeBack == writeCheck && changed == Unchanged)
}

// formatFileInPlace formats src, writing it back or printing a diff.
func (f *formatter) formatFileInPlace(ctx context.Context, src string) (Changed, error) {
	mode := f.mode
	if strings.HasSuffix(src, ".pyi") {
		mode.IsPyi = true
	}

	info, err := os.Stat(src)
	if err != nil {
		return Unchanged, err
	}
	then := info.ModTime()

	raw, err := os.ReadFile(src)
	if err != nil {
		return Unchanged, err
	}
	contents, newline := crow.DecodeNewlines(string(raw))

	dst, err := crow.FormatFileContents(ctx, contents, f.fast, mode)
	if errors.Is(err, crow.ErrNothingChanged) {
		return Unchanged, nil
	}
	if err != nil {
		return Unchanged, err
	}

	switch f.writeBack {
	case writeYes:
		if err := os.WriteFile(src, []byte(crow.EncodeNewlines(dst, newline)), info.Mode().Perm()); err != nil {
			return Unchanged, err
		}
	case writeDiff, writeColorDiff:
		srcName := fmt.Sprintf("%s\t%s +0000", src, diffTime(then))
		dstName := fmt.Sprintf("%s\t%s +0000", src, diffTime(f.now()))
		f.writeDiff(contents, dst, srcName, dstName, newline)
	}
	return Reformatted, nil
}

// formatStdinToStdout formats standard input. In write-back mode the
// result goes to standard output even when formatting fails, so the input
// is never lost.
func (f *formatter) formatStdinToStdout(ctx context.Context) (changed Changed, err error) {
	then := f.now()
	raw, err := io.ReadAll(f.stdin)
	if err != nil {
		return Unchanged, err
	}
	src, newline := crow.DecodeNewlines(string(raw))

	dst := src
	defer func() {
		switch f.writeBack {
		case writeYes:
			f.stdoutMu.Lock()
			defer f.stdoutMu.Unlock()
			if _, werr := io.WriteString(f.stdout, crow.EncodeNewlines(dst, newline)); werr != nil && err == nil {
				err = werr
			}
		case writeDiff, writeColorDiff:
			srcName := fmt.Sprintf("STDIN\t%s +0000", diffTime(then))
			dstName := fmt.Sprintf("STDOUT\t%s +0000", diffTime(f.now()))
			f.writeDiff(src, dst, srcName, dstName, newline)
		}
	}()

	formatted, err := crow.FormatFileContents(ctx, src, f.fast, f.mode)
	if errors.Is(err, crow.ErrNothingChanged) {
		return Unchanged, nil
	}
	if err != nil {
		return Unchanged, err
	}
	dst = formatted
	return Reformatted, nil
}

func (f *formatter) writeDiff(a, b, aName, bName, newline string) {
	diff := crow.Diff(a, b, aName, bName)
	if f.writeBack == writeColorDiff {
		diff = crow.ColorDiff(diff)
	}
	f.stdoutMu.Lock()
	defer f.stdoutMu.Unlock()
	_, _ = io.WriteString(f.stdout, crow.EncodeNewlines(diff, newline))
}

// formatCode formats the --code argument to standard output.
func formatCode(ctx context.Context, cfg Config, mode crow.Mode) error {
	dst, err := crow.FormatStr(cfg.Code, mode)
	if err != nil {
		report := NewReport(ctx, cfg)
		report.Failed("<string>", err.Error())
		return exitCode(report.ReturnCode())
	}
	_, err = io.WriteString(ioctx.StdoutFromContext(ctx), dst)
	return err
}

func diffTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.000000")
}

