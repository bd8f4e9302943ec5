package pyast

import (
	"context"
	"os"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Exit(oteltest.Main(m))
}

type DumpSuite struct{}

func TestDump(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(DumpSuite{})
}

func (DumpSuite) TestLayoutInsensitive(ctx context.Context, t *testctx.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"whitespace", "x=1+2\n", "x = 1 + 2\n"},
		{"comments", "x = 1  # one\n# trailing\n", "x = 1\n"},
		{"redundant parens", "if (a):\n    return (b)\n", "if a:\n    return b\n"},
		{"trailing comma", "f(a, b,)\n", "f(a, b)\n"},
		{"exploded call", "f(\n    a,\n    b,\n)\n", "f(a, b)\n"},
		{"tuple parens", "for (x, y) in z:\n    pass\n", "for x, y in z:\n    pass\n"},
		{"del parens", "del (a, b)\n", "del a, b\n"},
		{"backslash continuation", "x = 1 + \\\n    2\n", "x = 1 + 2\n"},
		{"empty class parens", "class A():\n    pass\n", "class A:\n    pass\n"},
		{"quotes", "x = 'it\\'s'\n", "x = \"it's\"\n"},
		{"string prefix case", "x = U'a'\ny = B'b'\n", "x = 'a'\ny = b'b'\n"},
		{"hex case", "x = 0XABCDEF\n", "x = 0xABCDEF\n"},
		{"exponent case", "x = 1E5\n", "x = 1e5\n"},
		{"imaginary case", "x = 10J\n", "x = 10j\n"},
		{"float spelling", "x = 1.\n", "x = 1.0\n"},
		{"semicolons", "a = 1; b = 2\n", "a = 1\nb = 2\n"},
		{"grouped for target", "for (x) in y:\n    pass\n", "for x in y:\n    pass\n"},
		{"nested grouped for target", "for (((k, v))) in d.items():\n    print(k)\n", "for k, v in d.items():\n    print(k)\n"},
		{
			"docstring non-breaking space",
			"def f():\n    '''\u00a0Doc.\n    \u00a0More.'''\n",
			"def f():\n    \"\"\"Doc.\n    More.\"\"\"\n",
		},
		{
			"docstring indentation",
			"def f():\n    '''   Doc.\n\n        More.   '''\n",
			"def f():\n    \"\"\"Doc.\n\n    More.\"\"\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			a, err := Dump(ctx, []byte(tt.a))
			require.NoError(t, err)
			b, err := Dump(ctx, []byte(tt.b))
			require.NoError(t, err)
			require.Equal(t, a, b)
		})
	}
}

func (DumpSuite) TestSemanticChanges(ctx context.Context, t *testctx.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"operator", "x = a + b\n", "x = a - b\n"},
		{"tuple argument", "f((a, b))\n", "f(a, b)\n"},
		{"string value", "x = 'a'\n", "x = 'b'\n"},
		{"bytes vs str", "x = b'a'\n", "x = 'a'\n"},
		{"raw escapes", "x = r'\\n'\n", "x = '\\n'\n"},
		{"number", "x = 1\n", "x = 2\n"},
		{"statement order", "a()\nb()\n", "b()\na()\n"},
		{"nesting", "if a:\n    b()\nc()\n", "if a:\n    b()\n    c()\n"},
		{"one-tuple for target", "for (x,) in y:\n    pass\n", "for x in y:\n    pass\n"},
		{"string whitespace", "x = ' a'\n", "x = 'a'\n"},
		{"string line indentation", "x = '''a\n    b'''\n", "x = '''a\nb'''\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			a, err := Dump(ctx, []byte(tt.a))
			require.NoError(t, err)
			b, err := Dump(ctx, []byte(tt.b))
			require.NoError(t, err)
			require.NotEqual(t, a, b)
		})
	}
}

func (DumpSuite) TestSyntaxError(ctx context.Context, t *testctx.T) {
	_, err := Dump(ctx, []byte("def f(:\n    pass\n"))
	require.Error(t, err)

	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 1, se.Line)
}

func (DumpSuite) TestEscapes(ctx context.Context, t *testctx.T) {
	tests := []struct {
		lit  string
		kind string
		want string
	}{
		{`'a\tb'`, "str", "a\tb"},
		{`"\x41\101\u0041"`, "str", "AAA"},
		{`b'\u0041'`, "bytes", `\u0041`},
		{`'\N{DASH}'`, "str", `\N{DASH}`},
		{`'''a\
b'''`, "str", "ab"},
		{`Rb'\n'`, "bytes", `\n`},
		{`f'{x}\n'`, "str", "{x}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.lit, func(ctx context.Context, t *testctx.T) {
			kind, value := decodeString(tt.lit)
			require.Equal(t, tt.kind, kind)
			require.Equal(t, tt.want, value)
		})
	}
}

func (DumpSuite) TestCanonicalNumber(ctx context.Context, t *testctx.T) {
	for in, want := range map[string]string{
		"10l":     "10",
		"10L":     "10",
		"0XDEADl": "0xdead",
		"1.":      "1",
		"1.0":     "1",
		"1E+5":    "100000",
		"1_000.5": "1000.5",
		"2J":      "2j",
		"0o17":    "0o17",
		"1_000":   "1_000",
	} {
		require.Equal(t, want, canonicalNumber(in), in)
	}
}
