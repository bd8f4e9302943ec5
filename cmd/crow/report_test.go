package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

type ReportSuite struct{}

func TestReport(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(ReportSuite{})
}

func (ReportSuite) TestSummary(ctx context.Context, t *testctx.T) {
	var out bytes.Buffer
	r := &Report{out: &out}
	r.Done("a.py", Reformatted)
	r.Done("b.py", Unchanged)
	r.Done("c.py", Cached)
	r.Failed("d.py", "boom")
	r.Failed("e.py", "boom")

	require.Equal(t, "1 file reformatted, 2 files left unchanged, 2 files failed to reformat.", r.Summary())
	require.Equal(t, 123, r.ReturnCode())
	require.Equal(t, "reformatted a.py\nerror: cannot format d.py: boom\nerror: cannot format e.py: boom\n", out.String())
}

func (ReportSuite) TestCheckSummary(ctx context.Context, t *testctx.T) {
	var out bytes.Buffer
	r := &Report{Check: true, out: &out}
	r.Done("a.py", Reformatted)
	r.Done("b.py", Reformatted)
	r.Done("c.py", Unchanged)

	require.Equal(t, "2 files would be reformatted, 1 file would be left unchanged.", r.Summary())
	require.Equal(t, 1, r.ReturnCode())
	require.Equal(t, "would reformat a.py\nwould reformat b.py\n", out.String())
}

func (ReportSuite) TestDiffReturnsZero(ctx context.Context, t *testctx.T) {
	r := &Report{Diff: true, out: &bytes.Buffer{}}
	r.Done("a.py", Reformatted)
	require.Equal(t, 0, r.ReturnCode())
}

func (ReportSuite) TestVerbose(ctx context.Context, t *testctx.T) {
	var out bytes.Buffer
	r := &Report{Verbose: true, out: &out}
	r.Done("a.py", Unchanged)
	r.Done("b.py", Cached)
	r.PathIgnored("build", "matches the --exclude regular expression")

	require.Equal(t,
		"a.py already well formatted, good job.\n"+
			"b.py wasn't modified on disk since last run.\n"+
			"build ignored: matches the --exclude regular expression\n",
		out.String())
}

func (ReportSuite) TestQuiet(ctx context.Context, t *testctx.T) {
	var out bytes.Buffer
	r := &Report{Quiet: true, out: &out}
	r.Done("a.py", Reformatted)
	r.PathIgnored("build", "ignored")
	r.Out("hello")
	r.Finish()
	require.Empty(t, out.String())

	r.Failed("b.py", "boom")
	require.Equal(t, "error: cannot format b.py: boom\n", out.String())
}

func (ReportSuite) TestFinish(ctx context.Context, t *testctx.T) {
	var out bytes.Buffer
	r := &Report{out: &out}
	r.Done("a.py", Unchanged)
	r.Finish()
	require.Equal(t, "All done! ✨ 🍰 ✨\n1 file left unchanged.\n", out.String())
}
