// Package pyast renders Python source as a canonical syntax tree dump.
//
// Two sources produce the same dump when they differ only in layout:
// whitespace, comments, redundant parentheses, trailing commas, string
// quoting and prefixes, numeric literal spelling, and docstring indentation.
// The tree comes from tree-sitter, independently of the formatter's own
// parser.
package pyast

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// SyntaxError is returned when tree-sitter cannot make sense of the source.
type SyntaxError struct {
	Line int
	Col  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d", e.Line, e.Col)
}

// Dump parses src and returns its canonical dump, one node per line.
func Dump(ctx context.Context, src []byte) (string, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		p := bad.StartPoint()
		return "", &SyntaxError{Line: int(p.Row) + 1, Col: int(p.Column)}
	}

	d := &dumper{src: src}
	d.node(root, nil, 0)
	return d.out.String(), nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			return firstError(child)
		}
	}
	return n
}

// Punctuation whose presence is a matter of layout.
var skippedTokens = map[string]bool{
	"(": true,
	")": true,
	",": true,
	";": true,
}

var skippedNodes = map[string]bool{
	"comment":           true,
	"line_continuation": true,
}

// Sequence nodes that differ only in whether they were parenthesized.
var tupleNodes = map[string]bool{
	"expression_list": true,
	"tuple":           true,
	"pattern_list":    true,
	"tuple_pattern":   true,
}

type dumper struct {
	src []byte
	out strings.Builder
}

func (d *dumper) line(depth int, format string, args ...any) {
	d.out.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&d.out, format, args...)
	d.out.WriteByte('\n')
}

func (d *dumper) node(n, parent *sitter.Node, depth int) {
	typ := n.Type()
	if !n.IsNamed() {
		if !skippedTokens[typ] {
			d.line(depth, "%q", typ)
		}
		return
	}
	if skippedNodes[typ] {
		return
	}

	switch {
	case typ == "parenthesized_expression":
		d.children(n, depth)
		return
	case typ == "argument_list" && parent != nil && parent.Type() == "class_definition" && n.NamedChildCount() == 0:
		return
	case typ == "string":
		kind, value := decodeString(n.Content(d.src))
		if isDocstring(n, parent) {
			value = normalizeDocstring(value)
		}
		d.line(depth, "%s %q", kind, value)
		return
	case typ == "integer" || typ == "float":
		d.line(depth, "number %s", canonicalNumber(n.Content(d.src)))
		return
	case typ == "tuple_pattern" && isGrouping(n):
		// for (x) in y: the parentheses only group
		d.children(n, depth)
		return
	case tupleNodes[typ]:
		typ = "tuple"
	}

	if n.ChildCount() == 0 {
		d.line(depth, "%s %q", typ, n.Content(d.src))
		return
	}
	d.line(depth, "%s", typ)
	d.children(n, depth+1)
}

func (d *dumper) children(n *sitter.Node, depth int) {
	for i := 0; i < int(n.ChildCount()); i++ {
		d.node(n.Child(i), n, depth)
	}
}

// isGrouping reports whether a parenthesized pattern holds a single
// pattern and no comma, so it is not a tuple at all.
func isGrouping(n *sitter.Node) bool {
	named := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch {
		case child.Type() == ",":
			return false
		case child.IsNamed() && !skippedNodes[child.Type()]:
			named++
		}
	}
	return named == 1
}

// isDocstring reports whether the string n is the first statement of a
// module, class or function body.
func isDocstring(n, parent *sitter.Node) bool {
	if parent == nil || parent.Type() != "expression_statement" || parent.NamedChildCount() != 1 {
		return false
	}
	body := parent.Parent()
	if body == nil {
		return false
	}
	switch body.Type() {
	case "module":
	case "block":
		owner := body.Parent()
		if owner == nil || (owner.Type() != "function_definition" && owner.Type() != "class_definition") {
			return false
		}
	default:
		return false
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if skippedNodes[child.Type()] {
			continue
		}
		return child.Equal(parent)
	}
	return false
}

// normalizeDocstring makes docstring reindentation invisible: whitespace
// around every line is dropped, where whitespace is anything
// unicode.IsSpace accepts, non-breaking spaces included.
func normalizeDocstring(v string) string {
	lines := strings.Split(v, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimFunc(line, unicode.IsSpace)
	}
	return strings.TrimFunc(strings.Join(lines, "\n"), unicode.IsSpace)
}

// decodeString returns "bytes" or "str" and the value of a string literal.
func decodeString(lit string) (string, string) {
	i := strings.IndexAny(lit, `'"`)
	if i < 0 {
		return "str", lit
	}
	prefix := strings.ToLower(lit[:i])
	body := lit[i:]

	quote := body[:1]
	if strings.HasPrefix(body, strings.Repeat(quote, 3)) && len(body) >= 6 {
		quote = strings.Repeat(quote, 3)
	}
	body = strings.TrimSuffix(strings.TrimPrefix(body, quote), quote)

	kind := "str"
	if strings.Contains(prefix, "b") {
		kind = "bytes"
	}
	if strings.Contains(prefix, "r") {
		return kind, body
	}
	return kind, unescape(body, kind == "bytes")
}

func unescape(s string, isBytes bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch c = s[i]; c {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(c)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32)
			writeCode(&b, rune(v), isBytes)
			i = j - 1
		case 'x':
			i = hexEscape(&b, s, i, 2, isBytes)
		case 'u', 'U':
			if isBytes {
				b.WriteByte('\\')
				b.WriteByte(c)
				continue
			}
			n := 4
			if c == 'U' {
				n = 8
			}
			i = hexEscape(&b, s, i, n, false)
		default:
			// unknown escapes, \N{...} included, stay as written
			b.WriteByte('\\')
			b.WriteByte(c)
		}
	}
	return b.String()
}

// hexEscape decodes the n hex digits after s[i] and returns the index of the
// last byte consumed. Malformed escapes are kept verbatim.
func hexEscape(b *strings.Builder, s string, i, n int, isBytes bool) int {
	if i+n >= len(s) {
		b.WriteString(s[i-1:])
		return len(s) - 1
	}
	v, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
	if err != nil {
		b.WriteByte('\\')
		b.WriteByte(s[i])
		return i
	}
	writeCode(b, rune(v), isBytes)
	return i + n
}

func writeCode(b *strings.Builder, r rune, isBytes bool) {
	if isBytes {
		b.WriteByte(byte(r))
		return
	}
	b.WriteRune(r)
}

// canonicalNumber spells a numeric literal the same way regardless of case,
// the Python 2 long suffix, or float notation.
func canonicalNumber(text string) string {
	text = strings.TrimSuffix(strings.ToLower(text), "l")
	imag := strings.HasSuffix(text, "j")
	text = strings.TrimSuffix(text, "j")

	if len(text) > 1 && text[0] == '0' && strings.ContainsAny(text[1:2], "xob") {
		return text
	}
	if strings.ContainsAny(text, ".e") {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64); err == nil {
			text = strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	if imag {
		text += "j"
	}
	return text
}
