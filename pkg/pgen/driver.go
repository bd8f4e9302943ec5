package pgen

import (
	"strings"

	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

// Driver tokenizes source and feeds it through a Parser, reattaching the
// whitespace and comments between tokens as leaf prefixes.
type Driver struct {
	Grammar *Grammar
}

// ParseString parses a complete module. The result is a Leaf only when the
// module consists of nothing but its end marker.
func (d *Driver) ParseString(src string) (pytree.NL, error) {
	p := NewParser(d.Grammar)

	var (
		indentColumns []int
		prefix        string
		lastEnd       int
		last          pytoken.Token
	)
	for tok, err := range pytoken.Tokens(src, pytoken.Config{AsyncKeywords: d.Grammar.AsyncKeywords}) {
		if err != nil {
			return nil, err
		}
		last = tok
		if tok.Start.Offset > lastEnd {
			prefix += src[lastEnd:tok.Start.Offset]
		}
		if tok.Type == pytoken.COMMENT || tok.Type == pytoken.NL {
			prefix += tok.Value
			lastEnd = tok.End.Offset
			continue
		}

		typ, value := tok.Type, tok.Value
		if typ == pytoken.OP {
			typ = pytoken.OpMap[value]
		}

		var carry string
		switch typ {
		case pytoken.INDENT:
			indentColumns = append(indentColumns, len(value))
			carry = prefix + value
			prefix = ""
			value = ""
		case pytoken.DEDENT:
			col := indentColumns[len(indentColumns)-1]
			indentColumns = indentColumns[:len(indentColumns)-1]
			prefix, carry = partiallyConsumePrefix(prefix, col)
		}

		done, err := p.AddToken(typ, value, prefix, tok.Start)
		if err != nil {
			return nil, err
		}
		if done {
			return p.Root, nil
		}
		prefix = ""
		if typ == pytoken.INDENT || typ == pytoken.DEDENT {
			prefix = carry
		}
		lastEnd = max(lastEnd, tok.End.Offset)
	}
	return nil, &ParseError{Msg: "incomplete input", Type: last.Type, Value: last.Value, Prefix: prefix, Start: last.Start}
}

// partiallyConsumePrefix splits prefix before the first non-blank line
// indented less than column. Comments above that line stay with the block
// being closed.
func partiallyConsumePrefix(prefix string, column int) (string, string) {
	var (
		consumed   strings.Builder
		current    strings.Builder
		currentCol int
		waitForNL  bool
	)
	for _, ch := range prefix {
		current.WriteRune(ch)
		if waitForNL {
			if ch == '\n' {
				if strings.TrimSpace(current.String()) != "" && currentCol < column {
					res := consumed.String()
					return res, prefix[len(res):]
				}
				consumed.WriteString(current.String())
				current.Reset()
				currentCol = 0
				waitForNL = false
			}
			continue
		}
		switch ch {
		case ' ':
			currentCol++
		case '\t':
			currentCol += 4
		case '\n':
			currentCol = 0
		default:
			waitForNL = true
		}
	}
	return consumed.String(), current.String()
}
