package crow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func TestMain(m *testing.M) {
	os.Exit(oteltest.Main(m))
}

type FormatSuite struct{}

func TestFormat(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(FormatSuite{})
}

type formatCase struct {
	name     string
	input    string
	expected string
}

func runFormatCases(t *testctx.T, mode Mode, tests []formatCase) {
	for _, tt := range tests {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			result, err := FormatStr(tt.input, mode)
			require.NoError(t, err)
			require.Equal(t, tt.expected, result)

			again, err := FormatStr(result, mode)
			require.NoError(t, err)
			require.Equal(t, result, again, "formatting is not stable")
		})
	}
}

func (FormatSuite) TestWhitespace(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultMode(), []formatCase{
		{
			name:     "assignment",
			input:    "x  =  1",
			expected: "x = 1\n",
		},
		{
			name:     "call",
			input:    "print( x , y )",
			expected: "print(x, y)\n",
		},
		{
			name:     "keyword arguments",
			input:    "f(a = 1, *args, ** kwargs)",
			expected: "f(a=1, *args, **kwargs)\n",
		},
		{
			name:     "annotated defaults",
			input:    "def f(a = 1, *, b : int = 2) -> None : pass",
			expected: "def f(a=1, *, b: int = 2) -> None:\n    pass\n",
		},
		{
			name:     "unary operators",
			input:    "x = - 1\ny = not  x",
			expected: "x = -1\ny = not x\n",
		},
		{
			name:     "tuple unpacking",
			input:    "a,b = b,a",
			expected: "a, b = b, a\n",
		},
		{
			name:     "lambda",
			input:    "f = lambda x : x+1",
			expected: "f = lambda x: x + 1\n",
		},
		{
			name:     "dict literal",
			input:    "d = {'a':1, 'b' : 2}",
			expected: "d = {\"a\": 1, \"b\": 2}\n",
		},
		{
			name:     "simple slice",
			input:    "x[a:b]",
			expected: "x[a:b]\n",
		},
		{
			name:     "complex slice",
			input:    "x[a+1 :]",
			expected: "x[a + 1 :]\n",
		},
		{
			name:     "attribute access",
			input:    "x = a . b . c",
			expected: "x = a.b.c\n",
		},
		{
			name:     "leading blank lines",
			input:    "\n\n\nx = 1\n\n\n",
			expected: "x = 1\n",
		},
	})
}

func (FormatSuite) TestStrings(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultMode(), []formatCase{
		{
			name:     "prefers double quotes",
			input:    "x = 'hello'",
			expected: "x = \"hello\"\n",
		},
		{
			name:     "keeps single quotes around double quotes",
			input:    `x = 'say "hi"'`,
			expected: "x = 'say \"hi\"'\n",
		},
		{
			name:     "drops unneeded escapes",
			input:    `x = 'it\'s'`,
			expected: "x = \"it's\"\n",
		},
		{
			name:     "lowercases prefixes",
			input:    "x = F'{y}'\nz = B'raw'",
			expected: "x = f\"{y}\"\nz = b\"raw\"\n",
		},
		{
			name:     "triple quotes",
			input:    "x = '''hello'''",
			expected: "x = \"\"\"hello\"\"\"\n",
		},
		{
			name:     "f-string fields next to each other keep their quotes",
			input:    `x = f'{a}{b["c"]}\'\''`,
			expected: "x = f'{a}{b[\"c\"]}\\'\\''\n",
		},
	})
}

func (FormatSuite) TestSkipStringNormalization(ctx context.Context, t *testctx.T) {
	mode := DefaultMode()
	mode.StringNormalization = false
	runFormatCases(t, mode, []formatCase{
		{
			name:     "quotes untouched",
			input:    "x = 'hello'",
			expected: "x = 'hello'\n",
		},
	})
}

func (FormatSuite) TestNumbers(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultMode(), []formatCase{
		{
			name:     "hex digits are uppercased",
			input:    "x = 0XABCDEF",
			expected: "x = 0xABCDEF\n",
		},
		{
			name:     "exponent",
			input:    "x = 1E5",
			expected: "x = 1e5\n",
		},
		{
			name:     "complex",
			input:    "x = 10J",
			expected: "x = 10j\n",
		},
		{
			name:     "octal and binary",
			input:    "x = 0O777\ny = 0B101",
			expected: "x = 0o777\ny = 0b101\n",
		},
	})
}

func (FormatSuite) TestInvisibleParens(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultMode(), []formatCase{
		{
			name:     "redundant parens after keywords",
			input:    "if (a):\n    return (b)",
			expected: "if a:\n    return b\n",
		},
		{
			name:     "for loop",
			input:    "for (x) in (y): pass",
			expected: "for x in y:\n    pass\n",
		},
		{
			name:     "parenthesized import",
			input:    "from a import (b)",
			expected: "from a import b\n",
		},
		{
			name:     "parens in call arguments are kept",
			input:    "print((1))",
			expected: "print((1))\n",
		},
		{
			name:     "walrus in if keeps its parens",
			input:    "if (x := f()): pass",
			expected: "if (x := f()):\n    pass\n",
		},
		{
			name:     "walrus in while keeps its parens",
			input:    "while (line := read()):\n    print(line)",
			expected: "while (line := read()):\n    print(line)\n",
		},
	})
}

func (FormatSuite) TestComments(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultMode(), []formatCase{
		{
			name:     "trailing comment gets two spaces",
			input:    "x = 1 # comment",
			expected: "x = 1  # comment\n",
		},
		{
			name:     "space after hash",
			input:    "#comment",
			expected: "# comment\n",
		},
		{
			name:     "shebang",
			input:    "#!/usr/bin/env python\nx = 1",
			expected: "#!/usr/bin/env python\nx = 1\n",
		},
		{
			name:     "comment before def keeps its place",
			input:    "x = 1\n# about f\ndef f(): pass",
			expected: "x = 1\n# about f\ndef f():\n    pass\n",
		},
		{
			name:     "standalone comment in call arguments",
			input:    "foo(a,\n    # comment\n    b)\n",
			expected: "foo(\n    a,\n    # comment\n    b,\n)\n",
		},
		{
			name: "standalone comment in a trailer after a call",
			input: `class C:
    def test(self) -> None:
        xxxxxxxxxxxxxxxx = Yyyy2YyyyyYyyyyy(
            push_manager=context.request.resource_manager,
            max_items_to_push=num_items,
            batch_size=Yyyy2YyyyYyyyyYyyy.FULL_SIZE,
        ).push(
            # Only send the first n items.
            items=items[:num_items]
        )
`,
			expected: `class C:
    def test(self) -> None:
        xxxxxxxxxxxxxxxx = Yyyy2YyyyyYyyyyy(
            push_manager=context.request.resource_manager,
            max_items_to_push=num_items,
            batch_size=Yyyy2YyyyYyyyyYyyy.FULL_SIZE,
        ).push(
            # Only send the first n items.
            items=items[:num_items]
        )
`,
		},
	})
}

func (FormatSuite) TestEmptyLines(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultMode(), []formatCase{
		{
			name:     "two lines around top level defs",
			input:    "import os\ndef f():\n    pass\nx = 1\n",
			expected: "import os\n\n\ndef f():\n    pass\n\n\nx = 1\n",
		},
		{
			name:     "at most two blank lines at the top level",
			input:    "x = 1\n\n\n\n\ny = 2\n",
			expected: "x = 1\n\n\ny = 2\n",
		},
		{
			name:     "at most one blank line in a block",
			input:    "def f():\n    a = 1\n\n\n\n    b = 2\n",
			expected: "def f():\n    a = 1\n\n    b = 2\n",
		},
		{
			name:     "no blank line after class declaration",
			input:    "class A:\n\n\n\n    def f(self): pass\n",
			expected: "class A:\n    def f(self):\n        pass\n",
		},
		{
			name:     "decorators stick to their def",
			input:    "@decorator\n\ndef f(): pass",
			expected: "@decorator\ndef f():\n    pass\n",
		},
		{
			name:     "blank line after imports",
			input:    "import os\nx = 1\n",
			expected: "import os\n\nx = 1\n",
		},
	})
}

func (FormatSuite) TestSplitting(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultMode(), []formatCase{
		{
			name:  "right hand split omits optional parens",
			input: "result = some_function_name(argument_number_one, argument_number_two, argument_number_three)",
			expected: `result = some_function_name(
    argument_number_one, argument_number_two, argument_number_three
)
`,
		},
		{
			name:  "left hand split for defs",
			input: "def very_long_function_name(argument_one, argument_two, argument_three, argument_four, argument_five):\n    pass",
			expected: `def very_long_function_name(
    argument_one, argument_two, argument_three, argument_four, argument_five
):
    pass
`,
		},
		{
			name:  "imports explode one per line",
			input: "from some.module.path import first_function_name, second_function_name, third_function_name",
			expected: `from some.module.path import (
    first_function_name,
    second_function_name,
    third_function_name,
)
`,
		},
		{
			name:  "magic trailing comma",
			input: "foo(a, b,)",
			expected: `foo(
    a,
    b,
)
`,
		},
		{
			name:  "magic trailing comma in a collection",
			input: "x = [1, 2, 3,]",
			expected: `x = [
    1,
    2,
    3,
]
`,
		},
		{
			name:     "one tuple keeps its comma",
			input:    "x = (1,)",
			expected: "x = (1,)\n",
		},
		{
			name: "parenthesized return annotation gains no comma",
			input: `def foo() -> (
    intsdfsafafafdfdsasdfsfsdfasdfafdsafdfdsfasdskdsdsfdsafdsafsdfdasfffsfdsfdsafafhdskfhdsfjdslkfdlfsdkjhsdfjkdshfkljds
):
    return 2
`,
			expected: `def foo() -> (
    intsdfsafafafdfdsasdfsfsdfasdfafdsafdfdsfasdskdsdsfdsafdsafsdfdasfffsfdsfdsafafhdskfhdsfjdslkfdlfsdkjhsdfjkdshfkljds
):
    return 2
`,
		},
		{
			name: "delimiter split inside an optional paren",
			input: `if e1234123412341234.winerror not in (_winapi.ERROR_SEM_TIMEOUT,
                        _winapi.ERROR_PIPE_BUSY) or _check_timeout(t):
    pass
`,
			expected: `if e1234123412341234.winerror not in (
    _winapi.ERROR_SEM_TIMEOUT,
    _winapi.ERROR_PIPE_BUSY,
) or _check_timeout(t):
    pass
`,
		},
	})
}

func (FormatSuite) TestSkipMagicTrailingComma(ctx context.Context, t *testctx.T) {
	mode := DefaultMode()
	mode.MagicTrailingComma = false
	runFormatCases(t, mode, []formatCase{
		{
			name:     "trailing comma removed when joined",
			input:    "foo(a, b,)",
			expected: "foo(a, b)\n",
		},
	})
}

func (FormatSuite) TestLineLength(ctx context.Context, t *testctx.T) {
	mode := DefaultMode()
	mode.LineLength = 20
	runFormatCases(t, mode, []formatCase{
		{
			name:  "narrow call",
			input: "call(argument_one, argument_two)",
			expected: `call(
    argument_one,
    argument_two,
)
`,
		},
	})
}

func (FormatSuite) TestFmtOff(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultMode(), []formatCase{
		{
			name: "region is left alone",
			input: `# fmt: off
custom_formatting = [
    0,  1,  2,
]
# fmt: on
regular_formatting = [
    0,  1,  2,
]
`,
			expected: `# fmt: off
custom_formatting = [
    0,  1,  2,
]
# fmt: on
regular_formatting = [
    0,
    1,
    2,
]
`,
		},
		{
			name:     "fmt: skip after an opening bracket",
			input:    "x = [  # fmt: skip\n    1\n]\n",
			expected: "x = [1]  # fmt: skip\n",
		},
		{
			name:     "unclosed region ends with its block",
			input:    "def f():\n    # fmt: off\n    x=1\ndef g():\n    pass\n",
			expected: "def f():\n    # fmt: off\n    x=1\n\n\ndef g():\n    pass\n",
		},
		{
			name:     "unclosed region in a nested block",
			input:    "if a:\n    if b:\n        # fmt: off\n        x=1\n    y=2\nz=3\n",
			expected: "if a:\n    if b:\n        # fmt: off\n        x=1\n    y = 2\nz = 3\n",
		},
	})
}

func (FormatSuite) TestPyi(ctx context.Context, t *testctx.T) {
	mode := DefaultMode()
	mode.IsPyi = true
	runFormatCases(t, mode, []formatCase{
		{
			name:     "stub bodies stay on the def line",
			input:    "class A:\n    def f(self): ...\n    def g(self): ...\n",
			expected: "class A:\n    def f(self): ...\n    def g(self): ...\n",
		},
	})
}

func (FormatSuite) TestInvalidInput(ctx context.Context, t *testctx.T) {
	_, err := FormatStr("x = = 1\n", DefaultMode())
	require.Error(t, err)

	var invalid *InvalidInput
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, 1, invalid.Line)
	require.Equal(t, "x = = 1", invalid.Detail)
	require.True(t, strings.HasPrefix(err.Error(), "Cannot parse: 1:"), err.Error())
}

func (FormatSuite) TestInvalidUTF8(ctx context.Context, t *testctx.T) {
	_, err := FormatStr("x = 1\ny = '\xff\xfe'\n", DefaultMode())
	require.ErrorIs(t, err, ErrInvalidUTF8)

	var invalid *InvalidInput
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, 2, invalid.Line)
	require.Equal(t, 5, invalid.Col)
}

func (FormatSuite) TestFormatFileContents(ctx context.Context, t *testctx.T) {
	t.Run("blank input", func(ctx context.Context, t *testctx.T) {
		_, err := FormatFileContents(ctx, "  \n\n", false, DefaultMode())
		require.ErrorIs(t, err, ErrNothingChanged)
	})

	t.Run("already formatted", func(ctx context.Context, t *testctx.T) {
		_, err := FormatFileContents(ctx, "x = 1\n", false, DefaultMode())
		require.ErrorIs(t, err, ErrNothingChanged)
	})

	t.Run("reformatted safely", func(ctx context.Context, t *testctx.T) {
		dst, err := FormatFileContents(ctx, "x=[1,2]\n", false, DefaultMode())
		require.NoError(t, err)
		require.Equal(t, "x = [1, 2]\n", dst)
	})

	t.Run("fast skips checks", func(ctx context.Context, t *testctx.T) {
		dst, err := FormatFileContents(ctx, "x=[1,2]\n", true, DefaultMode())
		require.NoError(t, err)
		require.Equal(t, "x = [1, 2]\n", dst)
	})

	t.Run("invalid input", func(ctx context.Context, t *testctx.T) {
		_, err := FormatFileContents(ctx, "def f(:\n", false, DefaultMode())
		var invalid *InvalidInput
		require.ErrorAs(t, err, &invalid)
	})
}

func (FormatSuite) TestDecodeNewlines(ctx context.Context, t *testctx.T) {
	for _, tt := range []struct {
		name    string
		src     string
		decoded string
		newline string
	}{
		{"empty", "", "", "\n"},
		{"unix", "x = 1\ny = 2\n", "x = 1\ny = 2\n", "\n"},
		{"windows", "x = 1\r\ny = 2\r\n", "x = 1\ny = 2\n", "\r\n"},
		{"first line decides", "x = 1\ny = 2\r\n", "x = 1\ny = 2\n", "\n"},
		{"old mac", "x = 1\ry = 2\r", "x = 1\ny = 2\n", "\n"},
	} {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			decoded, newline := DecodeNewlines(tt.src)
			require.Equal(t, tt.decoded, decoded)
			require.Equal(t, tt.newline, newline)
		})
	}

	require.Equal(t, "a\r\nb\r\n", EncodeNewlines("a\nb\n", "\r\n"))
	require.Equal(t, "a\nb\n", EncodeNewlines("a\nb\n", "\n"))
}

// TestGolden formats each testdata/*.py file and compares the result with
// its .golden file. Run with -update to rewrite the golden files.
func (FormatSuite) TestGolden(ctx context.Context, t *testctx.T) {
	inputs, err := filepath.Glob(filepath.Join("testdata", "*.py"))
	require.NoError(t, err)
	require.NotEmpty(t, inputs)

	for _, input := range inputs {
		name := strings.TrimSuffix(filepath.Base(input), ".py")
		t.Run(name, func(ctx context.Context, t *testctx.T) {
			src, err := os.ReadFile(input)
			require.NoError(t, err)

			dst, err := FormatFileContents(ctx, string(src), false, DefaultMode())
			if errors.Is(err, ErrNothingChanged) {
				dst = string(src)
				err = nil
			}
			require.NoError(t, err)
			golden.Assert(t, dst, name+".golden")

			again, err := FormatStr(dst, DefaultMode())
			require.NoError(t, err)
			require.Equal(t, dst, again, "formatting is not stable")
		})
	}
}
