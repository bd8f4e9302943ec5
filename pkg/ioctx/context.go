// Package ioctx carries the output streams of a run in its context, so
// reporting code writes wherever the caller points it.
package ioctx

import (
	"context"
	"io"
)

type stdoutKey struct{}
type stderrKey struct{}
type colorKey struct{}

// StdoutFromContext returns the stream for formatted code and diffs, or
// io.Discard.
func StdoutFromContext(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(stdoutKey{}).(io.Writer); ok {
		return w
	}
	return io.Discard
}

func StdoutToContext(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stdoutKey{}, w)
}

// StderrFromContext returns the stream for status messages, or io.Discard.
func StderrFromContext(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(stderrKey{}).(io.Writer); ok {
		return w
	}
	return io.Discard
}

func StderrToContext(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stderrKey{}, w)
}

// ColorFromContext reports whether output may use ANSI colors.
func ColorFromContext(ctx context.Context) bool {
	color, _ := ctx.Value(colorKey{}).(bool)
	return color
}

func ColorToContext(ctx context.Context, color bool) context.Context {
	return context.WithValue(ctx, colorKey{}, color)
}
