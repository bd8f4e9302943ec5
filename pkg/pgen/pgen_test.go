package pgen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vito/crow/pkg/pgen"
	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

const sumGrammar = `
# sums of names, one per line
file_input: (sum NEWLINE)* ENDMARKER
sum: NAME ('+' NAME)*
`

func TestGenerateAndParse(t *testing.T) {
	g, err := pgen.Generate(sumGrammar, nil)
	require.NoError(t, err)
	require.Equal(t, 256, g.SymbolToNumber["file_input"])
	require.Equal(t, 257, g.SymbolToNumber["sum"])
	require.Equal(t, g.SymbolToNumber["file_input"], g.Start)

	d := &pgen.Driver{Grammar: g}
	src := "a + b\n  # comment\nc\n"
	root, err := d.ParseString(src)
	require.NoError(t, err)
	require.Equal(t, src, root.String())

	node, ok := root.(*pytree.Node)
	require.True(t, ok)
	require.Equal(t, 256, node.Type())

	sum, ok := node.Children[0].(*pytree.Node)
	require.True(t, ok, "multi-child reduction stays a node")
	require.Equal(t, 257, sum.Type())

	c, ok := node.Children[2].(*pytree.Leaf)
	require.True(t, ok, "single-child reduction collapses to its child")
	require.Equal(t, "c", c.Value)
	require.Equal(t, "  # comment\n", c.Prefix())
	require.Equal(t, 3, c.Lineno)
}

func TestExplicitSymbolNumbers(t *testing.T) {
	g, err := pgen.Generate(sumGrammar, map[string]int{"file_input": 300, "sum": 301})
	require.NoError(t, err)
	require.Equal(t, 300, g.Start)
	require.Equal(t, "sum", g.NumberToSymbol[301])

	_, err = pgen.Generate(sumGrammar, map[string]int{"file_input": 300})
	require.ErrorContains(t, err, "no symbol number for rule sum")
}

func TestAmbiguousGrammar(t *testing.T) {
	_, err := pgen.Generate("r: a | b\na: NAME\nb: NAME\n", nil)
	require.ErrorContains(t, err, "ambiguous")
}

func TestLeftRecursion(t *testing.T) {
	_, err := pgen.Generate("r: r NAME | NAME\n", nil)
	require.ErrorContains(t, err, "recursion for rule")
}

func TestUnknownToken(t *testing.T) {
	_, err := pgen.Generate("r: BOGUS\n", nil)
	require.ErrorContains(t, err, "unknown token or rule BOGUS")
}

func TestKeywordsAndOperators(t *testing.T) {
	g, err := pgen.Generate("r: 'pass' '+' NAME NEWLINE ENDMARKER\n", nil)
	require.NoError(t, err)
	require.Contains(t, g.Keywords, "pass")
	require.Contains(t, g.Tokens, pytoken.PLUS)
	require.Contains(t, g.Tokens, pytoken.NAME)
}

func TestParseErrors(t *testing.T) {
	g, err := pgen.Generate(sumGrammar, nil)
	require.NoError(t, err)
	d := &pgen.Driver{Grammar: g}

	_, err = d.ParseString("a + + b\n")
	var perr *pgen.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "bad input", perr.Msg)
	require.Equal(t, 1, perr.Start.Line)
	require.Equal(t, 4, perr.Start.Column)

	_, err = d.ParseString("a $ b\n")
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "bad token", perr.Msg)
}

func TestCopyIsolatesKeywords(t *testing.T) {
	g, err := pgen.Generate("r: 'print' NAME NEWLINE ENDMARKER\n", nil)
	require.NoError(t, err)
	c := g.Copy()
	delete(c.Keywords, "print")
	require.Contains(t, g.Keywords, "print")
	require.NotContains(t, c.Keywords, "print")
}
