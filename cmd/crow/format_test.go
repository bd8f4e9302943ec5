package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
	"github.com/vito/crow/pkg/cache"
	"github.com/vito/crow/pkg/crow"
)

type FormatterSuite struct{}

func TestFormatter(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(FormatterSuite{})
}

func newTestFormatter(wb writeBack, stdin string) (*formatter, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	report := &Report{Check: wb == writeCheck, Diff: wb == writeDiff, Verbose: true, out: &stderr}
	return &formatter{
		mode:      crow.DefaultMode(),
		writeBack: wb,
		report:    report,
		stdin:     strings.NewReader(stdin),
		stdout:    &stdout,
		now: func() time.Time {
			return time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC)
		},
	}, &stdout, &stderr
}

func (FormatterSuite) TestKeepsLineEndings(ctx context.Context, t *testctx.T) {
	path := filepath.Join(t.TempDir(), "a.py")
	require.NoError(t, os.WriteFile(path, []byte("x=1\r\ny=2\r\n"), 0o644))

	f, _, _ := newTestFormatter(writeYes, "")
	changed, err := f.formatFileInPlace(ctx, path)
	require.NoError(t, err)
	require.Equal(t, Reformatted, changed)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "x = 1\r\ny = 2\r\n", string(content))
}

func (FormatterSuite) TestStdin(ctx context.Context, t *testctx.T) {
	f, stdout, _ := newTestFormatter(writeYes, "x=1\n")
	f.reformatOne(ctx, "-", nil)
	require.Equal(t, "x = 1\n", stdout.String())
	require.Equal(t, 1, f.report.changeCount)
}

func (FormatterSuite) TestStdinInvalid(ctx context.Context, t *testctx.T) {
	f, stdout, stderr := newTestFormatter(writeYes, "x = = 1\n")
	f.reformatOne(ctx, "-", nil)
	// the input comes back unchanged so piping through crow loses nothing
	require.Equal(t, "x = = 1\n", stdout.String())
	require.Contains(t, stderr.String(), "error: cannot format -: Cannot parse: 1:")
	require.Equal(t, 123, f.report.ReturnCode())
}

func (FormatterSuite) TestStdinDiff(ctx context.Context, t *testctx.T) {
	f, stdout, _ := newTestFormatter(writeDiff, "x=1\n")
	f.reformatOne(ctx, "-", nil)
	require.Equal(t,
		"--- STDIN\t2026-01-02 03:04:05.600000 +0000\n"+
			"+++ STDOUT\t2026-01-02 03:04:05.600000 +0000\n"+
			"@@ -1 +1 @@\n"+
			"-x=1\n"+
			"+x = 1\n",
		stdout.String())
}

func (FormatterSuite) TestPyiBySuffix(ctx context.Context, t *testctx.T) {
	path := filepath.Join(t.TempDir(), "stub.pyi")
	require.NoError(t, os.WriteFile(path, []byte("class A:\n    def f(self): ...\n"), 0o644))

	f, _, _ := newTestFormatter(writeCheck, "")
	changed, err := f.formatFileInPlace(ctx, path)
	require.NoError(t, err)
	require.Equal(t, Unchanged, changed)
}

func (FormatterSuite) TestCache(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	b := filepath.Join(dir, "b.py")
	require.NoError(t, os.WriteFile(a, []byte("x=1\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("y = 2\n"), 0o644))

	c, err := cache.Open(filepath.Join(dir, "cache"), crow.DefaultMode().CacheKey())
	require.NoError(t, err)
	defer c.Close()

	f, _, stderr := newTestFormatter(writeYes, "")
	f.reformatMany(ctx, []string{a, b}, c, 2)
	require.Equal(t, 1, f.report.changeCount)
	require.Equal(t, 1, f.report.sameCount)

	f, _, stderr = newTestFormatter(writeYes, "")
	f.reformatMany(ctx, []string{a, b}, c, 2)
	require.Equal(t, 0, f.report.changeCount)
	require.Equal(t, 2, f.report.sameCount)
	require.Contains(t, stderr.String(), a+" wasn't modified on disk since last run.")
	require.Contains(t, stderr.String(), b+" wasn't modified on disk since last run.")
}

func (FormatterSuite) TestCheckCachesOnlyUnchanged(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	b := filepath.Join(dir, "b.py")
	require.NoError(t, os.WriteFile(a, []byte("x=1\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("y = 2\n"), 0o644))

	c, err := cache.Open(filepath.Join(dir, "cache"), crow.DefaultMode().CacheKey())
	require.NoError(t, err)
	defer c.Close()

	f, _, _ := newTestFormatter(writeCheck, "")
	f.reformatMany(ctx, []string{a, b}, c, 2)
	require.Equal(t, 1, f.report.changeCount)

	changed, done, err := c.Filter([]string{a, b})
	require.NoError(t, err)
	require.Equal(t, []string{a}, changed)
	require.Equal(t, []string{b}, done)
}
