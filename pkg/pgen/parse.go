package pgen

import (
	"fmt"

	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

// ParseError is returned when the token stream does not fit the grammar.
type ParseError struct {
	Msg    string
	Type   int
	Value  string
	Prefix string
	Start  pytoken.Pos
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: type=%s, value=%q, line=%d, column=%d",
		e.Msg, pytoken.Name(e.Type), e.Value, e.Start.Line, e.Start.Column)
}

type rawNode struct {
	typ      int
	start    pytoken.Pos
	children []pytree.NL
}

type stackEntry struct {
	dfa   *DFA
	state int
	node  *rawNode
}

// Parser is an LL(1) push parser. Feed it tokens with AddToken until it
// reports completion, then read Root.
type Parser struct {
	grammar *Grammar
	stack   []stackEntry

	// Root is set once the start symbol has been reduced.
	Root pytree.NL
}

// NewParser prepares a parser for the grammar's start symbol.
func NewParser(g *Grammar) *Parser {
	p := &Parser{grammar: g}
	p.stack = []stackEntry{{
		dfa:  g.DFAs[g.Start],
		node: &rawNode{typ: g.Start},
	}}
	return p
}

// AddToken feeds one token. It returns true when the input is complete.
func (p *Parser) AddToken(typ int, value, prefix string, start pytoken.Pos) (bool, error) {
	ilabel, err := p.classify(typ, value, prefix, start)
	if err != nil {
		return false, err
	}
	for {
		top := &p.stack[len(p.stack)-1]
		states := top.dfa.States
		arcs := states[top.state]
		pushed := false
		for _, arc := range arcs {
			label := p.grammar.Labels[arc.Label]
			if arc.Label == ilabel {
				p.shift(typ, value, prefix, start, arc.Next)
				state := arc.Next
				for states[state].IsFinalOnly(state) {
					p.pop()
					if len(p.stack) == 0 {
						return true, nil
					}
					top = &p.stack[len(p.stack)-1]
					states = top.dfa.States
					state = top.state
				}
				return false, nil
			}
			if label.Type >= pytoken.NTOffset {
				itsDFA := p.grammar.DFAs[label.Type]
				if itsDFA.First[ilabel] {
					p.push(label.Type, itsDFA, arc.Next, start)
					pushed = true
					break
				}
			}
		}
		if pushed {
			continue
		}
		if arcs.accepts(top.state) {
			p.pop()
			if len(p.stack) == 0 {
				return false, &ParseError{Msg: "too much input", Type: typ, Value: value, Prefix: prefix, Start: start}
			}
			continue
		}
		return false, &ParseError{Msg: "bad input", Type: typ, Value: value, Prefix: prefix, Start: start}
	}
}

func (p *Parser) classify(typ int, value, prefix string, start pytoken.Pos) (int, error) {
	if typ == pytoken.NAME {
		if il, ok := p.grammar.Keywords[value]; ok {
			return il, nil
		}
	}
	il, ok := p.grammar.Tokens[typ]
	if !ok {
		return 0, &ParseError{Msg: "bad token", Type: typ, Value: value, Prefix: prefix, Start: start}
	}
	return il, nil
}

func (p *Parser) shift(typ int, value, prefix string, start pytoken.Pos, newState int) {
	top := &p.stack[len(p.stack)-1]
	leaf := pytree.NewLeafWithPrefix(typ, value, prefix)
	leaf.Lineno = start.Line
	leaf.Column = start.Column
	top.node.children = append(top.node.children, leaf)
	top.state = newState
}

func (p *Parser) push(typ int, dfa *DFA, newState int, start pytoken.Pos) {
	p.stack[len(p.stack)-1].state = newState
	p.stack = append(p.stack, stackEntry{dfa: dfa, node: &rawNode{typ: typ, start: start}})
}

func (p *Parser) pop() {
	popped := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	nl := convert(popped.node)
	if len(p.stack) > 0 {
		top := &p.stack[len(p.stack)-1]
		top.node.children = append(top.node.children, nl)
	} else {
		p.Root = nl
	}
}

// convert collapses single-child reductions into their only child.
func convert(raw *rawNode) pytree.NL {
	if len(raw.children) == 1 {
		return raw.children[0]
	}
	return pytree.NewNode(raw.typ, raw.children...)
}
