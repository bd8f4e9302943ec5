// Package pgen turns an EBNF grammar description into LL(1) parse tables and
// drives a table-driven parser over the token stream of package pytoken.
package pgen

import "maps"

// Label is a terminal or non-terminal the parser can match. Keyword labels
// carry the keyword text in Value; all others leave it empty.
type Label struct {
	Type  int
	Value string
}

// Arc is a transition on label Label to state Next. A final state carries an
// arc with label 0 pointing at itself.
type Arc struct {
	Label int
	Next  int
}

// State is the list of outgoing arcs of one DFA state.
type State []Arc

// DFA is the automaton for one grammar rule together with its first set,
// expressed as label numbers.
type DFA struct {
	States []State
	First  map[int]bool
}

// Grammar holds the parse tables. It is built once and then only read,
// except for the shallow variants produced by Copy.
type Grammar struct {
	SymbolToNumber map[string]int
	NumberToSymbol map[int]string
	DFAs           map[int]*DFA
	Labels         []Label
	Keywords       map[string]int
	Tokens         map[int]int
	SymbolToLabel  map[string]int
	Start          int

	// AsyncKeywords tells the tokenizer to treat async/await as keywords
	// everywhere.
	AsyncKeywords bool
}

func newGrammar() *Grammar {
	return &Grammar{
		SymbolToNumber: map[string]int{},
		NumberToSymbol: map[int]string{},
		DFAs:           map[int]*DFA{},
		Labels:         []Label{{Type: 0, Value: "EMPTY"}},
		Keywords:       map[string]int{},
		Tokens:         map[int]int{},
		SymbolToLabel:  map[string]int{},
		Start:          256,
	}
}

// Copy returns a grammar sharing the immutable tables with g but owning its
// own keyword and token maps, so variants can drop keywords.
func (g *Grammar) Copy() *Grammar {
	c := *g
	c.SymbolToNumber = maps.Clone(g.SymbolToNumber)
	c.NumberToSymbol = maps.Clone(g.NumberToSymbol)
	c.Keywords = maps.Clone(g.Keywords)
	c.Tokens = maps.Clone(g.Tokens)
	c.SymbolToLabel = maps.Clone(g.SymbolToLabel)
	c.Labels = append([]Label(nil), g.Labels...)
	return &c
}

// IsFinalOnly reports whether state has nothing but the accept arc.
func (s State) IsFinalOnly(self int) bool {
	return len(s) == 1 && s[0].Label == 0 && s[0].Next == self
}

func (s State) accepts(self int) bool {
	for _, a := range s {
		if a.Label == 0 && a.Next == self {
			return true
		}
	}
	return false
}
