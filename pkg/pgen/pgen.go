package pgen

import (
	"maps"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/vito/crow/pkg/pytoken"
)

type nfaArc struct {
	// label is empty for epsilon transitions.
	label string
	next  *nfaState
}

type nfaState struct {
	arcs []nfaArc
}

func (s *nfaState) addArc(next *nfaState, label string) {
	s.arcs = append(s.arcs, nfaArc{label: label, next: next})
}

type nfaSet map[*nfaState]bool

type dfaState struct {
	nfas    nfaSet
	isFinal bool
	arcs    map[string]*dfaState
}

func newDFAState(nfas nfaSet, final *nfaState) *dfaState {
	return &dfaState{nfas: nfas, isFinal: nfas[final], arcs: map[string]*dfaState{}}
}

func (s *dfaState) equal(o *dfaState) bool {
	if s.isFinal != o.isFinal || len(s.arcs) != len(o.arcs) {
		return false
	}
	for label, next := range s.arcs {
		if o.arcs[label] != next {
			return false
		}
	}
	return true
}

func (s *dfaState) unify(old, replacement *dfaState) {
	for label, next := range s.arcs {
		if next == old {
			s.arcs[label] = replacement
		}
	}
}

type generator struct {
	toks []pytoken.Token
	pos  int
	tok  pytoken.Token

	dfas  map[string][]*dfaState
	rules []string
	start string
	first map[string]map[string]bool
}

// Generate builds parse tables from grammar text in the classic pgen
// notation. symbols assigns a number to every rule; when nil, rules are
// numbered from 256 in sorted order with the start rule first.
func Generate(text string, symbols map[string]int) (*Grammar, error) {
	toks, err := pytoken.Tokenize(text, pytoken.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "tokenize grammar")
	}
	g := &generator{
		dfas:  map[string][]*dfaState{},
		first: map[string]map[string]bool{},
	}
	for _, t := range toks {
		if t.Type != pytoken.COMMENT && t.Type != pytoken.NL {
			g.toks = append(g.toks, t)
		}
	}
	g.next()
	if err := g.parse(); err != nil {
		return nil, err
	}
	for _, name := range slices.Sorted(maps.Keys(g.dfas)) {
		if _, ok := g.first[name]; !ok {
			if err := g.calcFirst(name); err != nil {
				return nil, err
			}
		}
	}
	return g.makeGrammar(symbols)
}

func (g *generator) next() {
	if g.pos < len(g.toks) {
		g.tok = g.toks[g.pos]
		g.pos++
	}
}

func (g *generator) expect(typ pytoken.Kind, value string) (string, error) {
	if g.tok.Type != typ || (value != "" && g.tok.Value != value) {
		return "", g.errorf("expected %s/%q, got %s/%q", pytoken.Name(typ), value, pytoken.Name(g.tok.Type), g.tok.Value)
	}
	v := g.tok.Value
	g.next()
	return v, nil
}

func (g *generator) errorf(format string, args ...any) error {
	return errors.Errorf("grammar line %d: "+format, append([]any{g.tok.Start.Line}, args...)...)
}

func (g *generator) isOp(value string) bool {
	return g.tok.Type == pytoken.OP && g.tok.Value == value
}

func (g *generator) parse() error {
	for g.tok.Type != pytoken.ENDMARKER {
		for g.tok.Type == pytoken.NEWLINE {
			g.next()
		}
		if g.tok.Type == pytoken.ENDMARKER {
			break
		}
		name, err := g.expect(pytoken.NAME, "")
		if err != nil {
			return err
		}
		if _, err := g.expect(pytoken.OP, ":"); err != nil {
			return err
		}
		a, z, err := g.parseRHS()
		if err != nil {
			return err
		}
		if _, err := g.expect(pytoken.NEWLINE, ""); err != nil {
			return err
		}
		dfa := makeDFA(a, z)
		dfa = simplifyDFA(dfa)
		if _, dup := g.dfas[name]; dup {
			return g.errorf("rule %s defined twice", name)
		}
		g.dfas[name] = dfa
		g.rules = append(g.rules, name)
		if g.start == "" {
			g.start = name
		}
	}
	if g.start == "" {
		return errors.New("grammar has no rules")
	}
	return nil
}

func (g *generator) parseRHS() (*nfaState, *nfaState, error) {
	a, z, err := g.parseAlt()
	if err != nil || !g.isOp("|") {
		return a, z, err
	}
	aa, zz := &nfaState{}, &nfaState{}
	aa.addArc(a, "")
	z.addArc(zz, "")
	for g.isOp("|") {
		g.next()
		a, z, err := g.parseAlt()
		if err != nil {
			return nil, nil, err
		}
		aa.addArc(a, "")
		z.addArc(zz, "")
	}
	return aa, zz, nil
}

func (g *generator) parseAlt() (*nfaState, *nfaState, error) {
	a, b, err := g.parseItem()
	if err != nil {
		return nil, nil, err
	}
	for g.isOp("(") || g.isOp("[") || g.tok.Type == pytoken.NAME || g.tok.Type == pytoken.STRING {
		c, d, err := g.parseItem()
		if err != nil {
			return nil, nil, err
		}
		b.addArc(c, "")
		b = d
	}
	return a, b, nil
}

func (g *generator) parseItem() (*nfaState, *nfaState, error) {
	if g.isOp("[") {
		g.next()
		a, z, err := g.parseRHS()
		if err != nil {
			return nil, nil, err
		}
		if _, err := g.expect(pytoken.OP, "]"); err != nil {
			return nil, nil, err
		}
		a.addArc(z, "")
		return a, z, nil
	}
	a, z, err := g.parseAtom()
	if err != nil {
		return nil, nil, err
	}
	switch {
	case g.isOp("+"):
		g.next()
		z.addArc(a, "")
		return a, z, nil
	case g.isOp("*"):
		g.next()
		z.addArc(a, "")
		return a, a, nil
	}
	return a, z, nil
}

func (g *generator) parseAtom() (*nfaState, *nfaState, error) {
	switch {
	case g.isOp("("):
		g.next()
		a, z, err := g.parseRHS()
		if err != nil {
			return nil, nil, err
		}
		if _, err := g.expect(pytoken.OP, ")"); err != nil {
			return nil, nil, err
		}
		return a, z, nil
	case g.tok.Type == pytoken.NAME || g.tok.Type == pytoken.STRING:
		a, z := &nfaState{}, &nfaState{}
		a.addArc(z, g.tok.Value)
		g.next()
		return a, z, nil
	}
	return nil, nil, g.errorf("expected (...) or NAME or STRING, got %s/%q", pytoken.Name(g.tok.Type), g.tok.Value)
}

func addClosure(s *nfaState, base nfaSet) {
	if base[s] {
		return
	}
	base[s] = true
	for _, a := range s.arcs {
		if a.label == "" {
			addClosure(a.next, base)
		}
	}
}

// makeDFA runs the subset construction from start to finish.
func makeDFA(start, finish *nfaState) []*dfaState {
	initial := nfaSet{}
	addClosure(start, initial)
	states := []*dfaState{newDFAState(initial, finish)}
	for i := 0; i < len(states); i++ {
		state := states[i]
		arcs := map[string]nfaSet{}
		for nfa := range state.nfas {
			for _, a := range nfa.arcs {
				if a.label == "" {
					continue
				}
				set, ok := arcs[a.label]
				if !ok {
					set = nfaSet{}
					arcs[a.label] = set
				}
				addClosure(a.next, set)
			}
		}
		for _, label := range slices.Sorted(maps.Keys(arcs)) {
			set := arcs[label]
			var target *dfaState
			for _, st := range states {
				if maps.Equal(st.nfas, set) {
					target = st
					break
				}
			}
			if target == nil {
				target = newDFAState(set, finish)
				states = append(states, target)
			}
			state.arcs[label] = target
		}
	}
	return states
}

// simplifyDFA merges equivalent states until none remain.
func simplifyDFA(dfa []*dfaState) []*dfaState {
	for changed := true; changed; {
		changed = false
	scan:
		for i, si := range dfa {
			for j := i + 1; j < len(dfa); j++ {
				sj := dfa[j]
				if si.equal(sj) {
					dfa = slices.Delete(dfa, j, j+1)
					for _, st := range dfa {
						st.unify(sj, si)
					}
					changed = true
					break scan
				}
			}
		}
	}
	return dfa
}

func (g *generator) calcFirst(name string) error {
	dfa := g.dfas[name]
	g.first[name] = nil
	total := map[string]bool{}
	overlap := map[string]map[string]bool{}
	for _, label := range slices.Sorted(maps.Keys(dfa[0].arcs)) {
		if _, isRule := g.dfas[label]; isRule {
			fset, seen := g.first[label]
			if seen && fset == nil {
				return errors.Errorf("recursion for rule %q", name)
			}
			if !seen {
				if err := g.calcFirst(label); err != nil {
					return err
				}
				fset = g.first[label]
			}
			maps.Copy(total, fset)
			overlap[label] = fset
		} else {
			total[label] = true
			overlap[label] = map[string]bool{label: true}
		}
	}
	inverse := map[string]string{}
	for _, label := range slices.Sorted(maps.Keys(overlap)) {
		for sym := range overlap[label] {
			if other, ok := inverse[sym]; ok {
				return errors.Errorf("rule %s is ambiguous; %s is in the first sets of %s as well as %s", name, sym, label, other)
			}
			inverse[sym] = label
		}
	}
	g.first[name] = total
	return nil
}

func (g *generator) makeGrammar(symbols map[string]int) (*Grammar, error) {
	c := newGrammar()
	names := slices.Sorted(maps.Keys(g.dfas))
	names = slices.DeleteFunc(names, func(n string) bool { return n == g.start })
	names = append([]string{g.start}, names...)
	for i, name := range names {
		num := 256 + i
		if symbols != nil {
			n, ok := symbols[name]
			if !ok {
				return nil, errors.Errorf("no symbol number for rule %s", name)
			}
			num = n
		}
		c.SymbolToNumber[name] = num
		c.NumberToSymbol[num] = name
	}
	for _, name := range names {
		dfa := g.dfas[name]
		index := make(map[*dfaState]int, len(dfa))
		for i, st := range dfa {
			index[st] = i
		}
		states := make([]State, 0, len(dfa))
		for i, st := range dfa {
			var arcs State
			for _, label := range slices.Sorted(maps.Keys(st.arcs)) {
				il, err := g.makeLabel(c, label)
				if err != nil {
					return nil, err
				}
				arcs = append(arcs, Arc{Label: il, Next: index[st.arcs[label]]})
			}
			if st.isFinal {
				arcs = append(arcs, Arc{Label: 0, Next: i})
			}
			states = append(states, arcs)
		}
		first, err := g.makeFirst(c, name)
		if err != nil {
			return nil, err
		}
		c.DFAs[c.SymbolToNumber[name]] = &DFA{States: states, First: first}
	}
	c.Start = c.SymbolToNumber[g.start]
	return c, nil
}

func (g *generator) makeFirst(c *Grammar, name string) (map[int]bool, error) {
	first := map[int]bool{}
	for _, label := range slices.Sorted(maps.Keys(g.first[name])) {
		il, err := g.makeLabel(c, label)
		if err != nil {
			return nil, err
		}
		first[il] = true
	}
	return first, nil
}

func (g *generator) makeLabel(c *Grammar, label string) (int, error) {
	ilabel := len(c.Labels)
	if isAlpha(label[0]) {
		if num, ok := c.SymbolToNumber[label]; ok {
			if il, ok := c.SymbolToLabel[label]; ok {
				return il, nil
			}
			c.Labels = append(c.Labels, Label{Type: num})
			c.SymbolToLabel[label] = ilabel
			return ilabel, nil
		}
		itoken, ok := pytoken.Lookup(label)
		if !ok {
			return 0, errors.Errorf("unknown token or rule %s", label)
		}
		if il, ok := c.Tokens[itoken]; ok {
			return il, nil
		}
		c.Labels = append(c.Labels, Label{Type: itoken})
		c.Tokens[itoken] = ilabel
		return ilabel, nil
	}

	if label[0] != '"' && label[0] != '\'' {
		return 0, errors.Errorf("bad label %s", label)
	}
	value := strings.Trim(label, `"'`)
	if value == "" {
		return 0, errors.Errorf("empty label %s", label)
	}
	if isAlpha(value[0]) {
		if il, ok := c.Keywords[value]; ok {
			return il, nil
		}
		c.Labels = append(c.Labels, Label{Type: pytoken.NAME, Value: value})
		c.Keywords[value] = ilabel
		return ilabel, nil
	}
	itoken, ok := pytoken.OpMap[value]
	if !ok {
		return 0, errors.Errorf("unknown operator %s", label)
	}
	if il, ok := c.Tokens[itoken]; ok {
		return il, nil
	}
	c.Labels = append(c.Labels, Label{Type: itoken})
	c.Tokens[itoken] = ilabel
	return ilabel, nil
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
