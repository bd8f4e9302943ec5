package crow

import (
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/require"
)

type DiffSuite struct{}

func TestDiff(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(DiffSuite{})
}

func (DiffSuite) TestUnified(ctx context.Context, t *testctx.T) {
	out := Diff("x=1\ny=2\n", "x = 1\ny = 2\n", "a.py", "b.py")

	fd, err := diff.ParseFileDiff([]byte(out))
	require.NoError(t, err)
	require.Equal(t, "a.py", fd.OrigName)
	require.Equal(t, "b.py", fd.NewName)
	require.Len(t, fd.Hunks, 1)

	hunk := fd.Hunks[0]
	require.Equal(t, int32(1), hunk.OrigStartLine)
	require.Equal(t, int32(2), hunk.OrigLines)
	require.Equal(t, int32(1), hunk.NewStartLine)
	require.Equal(t, int32(2), hunk.NewLines)
	require.Equal(t, "-x=1\n-y=2\n+x = 1\n+y = 2\n", string(hunk.Body))
}

func (DiffSuite) TestContext(ctx context.Context, t *testctx.T) {
	var a, b []string
	for i := range 20 {
		line := "keep\n"
		if i == 10 {
			a = append(a, "old\n")
			b = append(b, "new\n")
			continue
		}
		a = append(a, line)
		b = append(b, line)
	}

	out := Diff(strings.Join(a, ""), strings.Join(b, ""), "a", "b")
	fd, err := diff.ParseFileDiff([]byte(out))
	require.NoError(t, err)
	require.Len(t, fd.Hunks, 1)

	hunk := fd.Hunks[0]
	require.Equal(t, int32(6), hunk.OrigStartLine)
	require.Equal(t, int32(11), hunk.OrigLines)
	require.Equal(t, int32(11), hunk.NewLines)
}

func (DiffSuite) TestIdentical(ctx context.Context, t *testctx.T) {
	require.Empty(t, Diff("x = 1\n", "x = 1\n", "a", "b"))
}

func (DiffSuite) TestMissingNewline(ctx context.Context, t *testctx.T) {
	out := Diff("x=1", "x = 1\n", "a", "b")
	require.Contains(t, out, "-x=1\n\\ No newline at end of file\n+x = 1\n")
}

func (DiffSuite) TestColor(ctx context.Context, t *testctx.T) {
	out := Diff("x=1\n", "x = 1\n", "a", "b")
	require.Equal(t, out, ansi.Strip(ColorDiff(out)))
}
