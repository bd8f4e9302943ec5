package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

type DiscoverSuite struct{}

func TestDiscover(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(DiscoverSuite{})
}

func (DiscoverSuite) TestVerbosePattern(ctx context.Context, t *testctx.T) {
	re, err := compilePattern("--exclude", `
	/(
	    \.git      # version control
	  | build
	  | [ ]spaced  # a literal space survives in a class
	)/
	`)
	require.NoError(t, err)
	require.Equal(t, `/(\.git|build|[ ]spaced)/`, re.String())
	require.True(t, re.MatchString("/build/"))
	require.True(t, re.MatchString("/ spaced/"))
	require.False(t, re.MatchString("/src/"))
}

func (DiscoverSuite) TestSingleLinePatternIsLiteral(ctx context.Context, t *testctx.T) {
	re, err := compilePattern("--include", `a b#c`)
	require.NoError(t, err)
	require.Equal(t, `a b#c`, re.String())
}

func (DiscoverSuite) TestInvalidPattern(ctx context.Context, t *testctx.T) {
	_, err := compilePattern("--include", `(`)
	require.ErrorContains(t, err, "Invalid regular expression for --include given")
}

func (DiscoverSuite) TestCollectSources(ctx context.Context, t *testctx.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	for _, name := range []string{"b.py", "a.pyi", "pkg/c.py", "venv/lib.py", "README.md"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	outside, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(outside, "x.py"), nil, 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "x.py"), filepath.Join(root, "link.py")))

	var out bytes.Buffer
	report := &Report{Verbose: true, out: &out}
	cfg := Config{Include: defaultInclude, Exclude: defaultExclude}

	sources, err := collectSources(cfg, []string{root}, report)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(root, "a.pyi"),
		filepath.Join(root, "b.py"),
		filepath.Join(root, "pkg", "c.py"),
	}, sources)
	require.Contains(t, out.String(), filepath.Join(root, "venv")+" ignored: matches the --exclude regular expression")
	require.Contains(t, out.String(), filepath.Join(root, "link.py")+" ignored: is a symbolic link that points outside "+root)
}

func (DiscoverSuite) TestExplicitFilesSkipExclude(ctx context.Context, t *testctx.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(root, "build", "gen.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	report := &Report{out: &bytes.Buffer{}}
	cfg := Config{Include: defaultInclude, Exclude: defaultExclude}
	sources, err := collectSources(cfg, []string{path}, report)
	require.NoError(t, err)
	require.Equal(t, []string{path}, sources)
}
