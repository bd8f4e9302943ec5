package crow

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

type DebugSuite struct{}

func TestDebug(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(DebugSuite{})
}

func (DebugSuite) TestDebugTree(ctx context.Context, t *testctx.T) {
	tree, err := Parse("x = 1\n", DefaultMode().Grammars())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DebugTree(&buf, tree))

	lines := strings.Split(strings.TrimSpace(ansi.Strip(buf.String())), "\n")
	require.Equal(t, "file_input", lines[0])
	require.Equal(t, "/file_input", lines[len(lines)-1])
	require.Contains(t, lines, `      NAME "x"`)
	require.Contains(t, lines, `      NUMBER " " "1"`)
}

func (DebugSuite) TestDebugLine(ctx context.Context, t *testctx.T) {
	var lines []*Line
	lg := NewLineGenerator(DefaultMode(), false, func(l *Line) {
		lines = append(lines, l)
	})
	tree, err := Parse("foo(a, b,)\n", DefaultMode().Grammars())
	require.NoError(t, err)
	lg.Visit(tree)
	require.Len(t, lines, 1)

	out := DebugLine(lines[0])
	require.Regexp(t, `MagicTrailingComma:\s+true`, out)
	require.Contains(t, out, `"foo"`)
}
