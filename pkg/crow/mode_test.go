package crow

import (
	"context"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

type ModeSuite struct{}

func TestMode(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(ModeSuite{})
}

func (ModeSuite) TestParseTargetVersion(ctx context.Context, t *testctx.T) {
	for _, v := range AllTargetVersions {
		parsed, err := ParseTargetVersion(v.String())
		require.NoError(t, err)
		require.Equal(t, v, parsed)
	}

	v, err := ParseTargetVersion("PY36")
	require.NoError(t, err)
	require.Equal(t, PY36, v)

	_, err = ParseTargetVersion("py39")
	require.Error(t, err)
}

func (ModeSuite) TestCacheKey(ctx context.Context, t *testctx.T) {
	base := DefaultMode()
	require.Equal(t, "-.88.1.0.1", base.CacheKey())

	reordered := base
	reordered.TargetVersions = []TargetVersion{PY38, PY36, PY38}
	sorted := base
	sorted.TargetVersions = []TargetVersion{PY36, PY38}
	require.Equal(t, sorted.CacheKey(), reordered.CacheKey())

	narrow := base
	narrow.LineLength = 79
	require.NotEqual(t, base.CacheKey(), narrow.CacheKey())

	pyi := base
	pyi.IsPyi = true
	require.NotEqual(t, base.CacheKey(), pyi.CacheKey())
}

func (ModeSuite) TestDetectTargetVersions(ctx context.Context, t *testctx.T) {
	for _, tt := range []struct {
		name    string
		src     string
		minimum TargetVersion
	}{
		{"plain code", "x = 1\n", PY27},
		{"f-strings", "x = f'{y}'\n", PY36},
		{"walrus", "if (n := 10):\n    pass\n", PY38},
	} {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			node, err := Parse(tt.src, DefaultMode().Grammars())
			require.NoError(t, err)
			versions := DetectTargetVersions(node)
			require.NotEmpty(t, versions)
			require.Equal(t, tt.minimum, versions[0])
		})
	}
}

func (ModeSuite) TestFutureImports(ctx context.Context, t *testctx.T) {
	node, err := Parse("\"\"\"doc\"\"\"\nfrom __future__ import unicode_literals, print_function\nimport os\n", DefaultMode().Grammars())
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"unicode_literals": true, "print_function": true}, FutureImports(node))
}
