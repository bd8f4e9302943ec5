package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Exit(oteltest.Main(m))
}

type CacheSuite struct{}

func TestCache(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(CacheSuite{})
}

func writeFile(t *testctx.T, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (CacheSuite) TestFilter(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	b := filepath.Join(dir, "b.py")
	writeFile(t, a, "a = 1\n")
	writeFile(t, b, "b = 2\n")

	c, err := Open(filepath.Join(dir, "cache"), "mode")
	require.NoError(t, err)
	defer c.Close()

	changed, done, err := c.Filter([]string{a, b})
	require.NoError(t, err)
	require.Equal(t, []string{a, b}, changed)
	require.Empty(t, done)

	require.NoError(t, c.Write([]string{a, b}))

	changed, done, err = c.Filter([]string{a, b})
	require.NoError(t, err)
	require.Empty(t, changed)
	require.Equal(t, []string{a, b}, done)

	writeFile(t, b, "b = 22\n")
	changed, done, err = c.Filter([]string{a, b})
	require.NoError(t, err)
	require.Equal(t, []string{b}, changed)
	require.Equal(t, []string{a}, done)
}

func (CacheSuite) TestMtimeChange(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	writeFile(t, a, "a = 1\n")

	c, err := Open(filepath.Join(dir, "cache"), "mode")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Write([]string{a}))

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(a, later, later))

	changed, _, err := c.Filter([]string{a})
	require.NoError(t, err)
	require.Equal(t, []string{a}, changed)
}

func (CacheSuite) TestPersistsPerMode(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	writeFile(t, a, "a = 1\n")
	cacheDir := filepath.Join(dir, "cache")

	c, err := Open(cacheDir, "mode-one")
	require.NoError(t, err)
	require.NoError(t, c.Write([]string{a}))
	require.NoError(t, c.Close())

	c, err = Open(cacheDir, "mode-one")
	require.NoError(t, err)
	_, done, err := c.Filter([]string{a})
	require.NoError(t, err)
	require.Equal(t, []string{a}, done)
	require.NoError(t, c.Close())

	c, err = Open(cacheDir, "mode-two")
	require.NoError(t, err)
	defer c.Close()
	changed, _, err := c.Filter([]string{a})
	require.NoError(t, err)
	require.Equal(t, []string{a}, changed)
}

func (CacheSuite) TestMissingFiles(ctx context.Context, t *testctx.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache"), "mode")
	require.NoError(t, err)
	defer c.Close()

	missing := filepath.Join(dir, "missing.py")
	require.NoError(t, c.Write([]string{missing}))
	changed, done, err := c.Filter([]string{missing})
	require.NoError(t, err)
	require.Equal(t, []string{missing}, changed)
	require.Empty(t, done)
}
