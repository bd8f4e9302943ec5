package crow

import (
	"strings"

	"github.com/vito/crow/pkg/pygram"
	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

type typeSet map[int]bool

func setOf(types ...int) typeSet {
	s := make(typeSet, len(types))
	for _, t := range types {
		s[t] = true
	}
	return s
}

func (s typeSet) union(other typeSet) typeSet {
	out := make(typeSet, len(s)+len(other))
	for t := range s {
		out[t] = true
	}
	for t := range other {
		out[t] = true
	}
	return out
}

const standaloneComment = pytoken.STANDALONE_COMMENT

var (
	whitespaceTypes = setOf(pytoken.DEDENT, pytoken.INDENT, pytoken.NEWLINE)

	statementTypes = setOf(
		pygram.IfStmt,
		pygram.WhileStmt,
		pygram.ForStmt,
		pygram.TryStmt,
		pygram.ExceptClause,
		pygram.WithStmt,
		pygram.Funcdef,
		pygram.Classdef,
	)

	comparators = setOf(
		pytoken.LESS,
		pytoken.GREATER,
		pytoken.EQEQUAL,
		pytoken.NOTEQUAL,
		pytoken.LESSEQUAL,
		pytoken.GREATEREQUAL,
	)

	mathOperators = setOf(
		pytoken.VBAR,
		pytoken.CIRCUMFLEX,
		pytoken.AMPER,
		pytoken.LEFTSHIFT,
		pytoken.RIGHTSHIFT,
		pytoken.PLUS,
		pytoken.MINUS,
		pytoken.STAR,
		pytoken.SLASH,
		pytoken.DOUBLESLASH,
		pytoken.PERCENT,
		pytoken.AT,
		pytoken.TILDE,
		pytoken.DOUBLESTAR,
	)

	stars           = setOf(pytoken.STAR, pytoken.DOUBLESTAR)
	varargsSpecials = stars.union(setOf(pytoken.SLASH))

	varargsParents = setOf(
		pygram.Arglist,
		pygram.Argument, // double star in arglist
		pygram.Trailer,  // single argument to call
		pygram.Typedargslist,
		pygram.Varargslist, // lambdas
	)

	unpackingParents = setOf(
		pygram.Atom, // single element of a list or set literal
		pygram.Dictsetmaker,
		pygram.Listmaker,
		pygram.TestlistGexp,
		pygram.TestlistStarExpr,
	)

	implicitTuple = setOf(pygram.Testlist, pygram.TestlistStarExpr, pygram.Exprlist)

	bracketPairs = map[int]int{
		pytoken.LPAR:   pytoken.RPAR,
		pytoken.LSQB:   pytoken.RSQB,
		pytoken.LBRACE: pytoken.RBRACE,
	}
	openingBrackets = setOf(pytoken.LPAR, pytoken.LSQB, pytoken.LBRACE)
	closingBrackets = setOf(pytoken.RPAR, pytoken.RSQB, pytoken.RBRACE)
	brackets        = openingBrackets.union(closingBrackets)
	alwaysNoSpace   = closingBrackets.union(setOf(pytoken.COMMA, standaloneComment))
)

var assignments = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "@=": true, "/=": true,
	"%=": true, "&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
	"**=": true, "//=": true,
}

var logicOperators = map[string]bool{"and": true, "or": true}

var (
	fmtOff  = map[string]bool{"# fmt: off": true, "# fmt:off": true, "# yapf: disable": true}
	fmtOn   = map[string]bool{"# fmt: on": true, "# fmt:on": true, "# yapf: enable": true}
	fmtSkip = map[string]bool{"# fmt: skip": true, "# fmt:skip": true}
)

// stringPrefixChars are all characters allowed before a string's opening
// quote.
const stringPrefixChars = "furbFURB"

// Split priorities. Higher values are preferred split points.
const (
	comprehensionPriority = 20
	commaPriority         = 18
	ternaryPriority       = 16
	logicPriority         = 14
	stringPriority        = 12
	comparatorPriority    = 10
	dotPriority           = 1
)

var mathPriorities = map[int]int{
	pytoken.VBAR:        9,
	pytoken.CIRCUMFLEX:  8,
	pytoken.AMPER:       7,
	pytoken.LEFTSHIFT:   6,
	pytoken.RIGHTSHIFT:  6,
	pytoken.PLUS:        5,
	pytoken.MINUS:       5,
	pytoken.STAR:        4,
	pytoken.SLASH:       4,
	pytoken.DOUBLESLASH: 4,
	pytoken.PERCENT:     4,
	pytoken.AT:          4,
	pytoken.TILDE:       3,
	pytoken.DOUBLESTAR:  2,
}

// parentType is the symbol of nl's parent, or -1 without one.
func parentType(nl pytree.NL) int {
	if nl == nil {
		return -1
	}
	if p := nl.Parent(); p != nil {
		return p.Type()
	}
	return -1
}

func leafValue(nl pytree.NL) string {
	if l, ok := nl.(*pytree.Leaf); ok {
		return l.Value
	}
	return ""
}

func isLeaf(nl pytree.NL, typ int, value string) bool {
	l, ok := nl.(*pytree.Leaf)
	return ok && l.Type() == typ && l.Value == value
}

// whitespace returns the prefix leaf should be rendered with on a line.
//
// complexSubscript is set when leaf sits in a subscript whose operands are
// more than plain names or numbers; slices in such subscripts get spaces
// around their colons.
func whitespace(leaf *pytree.Leaf, complexSubscript bool) string {
	const (
		no          = ""
		space       = " "
		doubleSpace = "  "
	)
	t := leaf.Type()
	p := leaf.Parent()
	v := leaf.Value
	if alwaysNoSpace[t] {
		return no
	}
	if t == pytoken.COMMENT {
		return doubleSpace
	}
	if p == nil {
		// Leaves created during splitting have no parent; they are commas
		// and brackets, handled above.
		return no
	}
	if t == pytoken.COLON && p.Type() != pygram.Subscript && p.Type() != pygram.Subscriptlist && p.Type() != pygram.Sliceop {
		return no
	}

	prev := pytree.PrevSibling(leaf)
	if prev == nil {
		prevp := precedingLeaf(p)
		if prevp == nil || openingBrackets[prevp.Type()] {
			return no
		}

		if t == pytoken.COLON {
			if prevp.Type() == pytoken.COLON {
				return no
			} else if prevp.Type() != pytoken.COMMA && !complexSubscript {
				return no
			}
			return space
		}

		switch {
		case prevp.Type() == pytoken.EQUAL:
			if pp := prevp.Parent(); pp != nil {
				switch pp.Type() {
				case pygram.Arglist, pygram.Argument, pygram.Parameters, pygram.Varargslist:
					return no
				case pygram.Typedargslist:
					// An equals sign that already has whitespace belongs to
					// an annotated parameter; mirror it.
					return prevp.Prefix()
				}
			}

		case varargsSpecials[prevp.Type()]:
			if isVararg(prevp, varargsParents.union(unpackingParents)) {
				return no
			}

		case prevp.Type() == pytoken.COLON:
			if pt := parentType(prevp); pt == pygram.Subscript || pt == pygram.Sliceop {
				if complexSubscript {
					return space
				}
				return no
			}

		case parentType(prevp) == pygram.Factor && mathOperators[prevp.Type()]:
			return no

		case prevp.Type() == pytoken.RIGHTSHIFT && parentType(prevp) == pygram.ShiftExpr:
			// Python 2 print chevron
			if ps := pytree.PrevSibling(prevp); ps != nil && isLeaf(ps, pytoken.NAME, "print") {
				return no
			}

		case prevp.Type() == pytoken.AT && p.Parent() != nil && p.Parent().Type() == pygram.Decorator:
			return no
		}
	} else if openingBrackets[prev.Type()] {
		return no
	}

	switch p.Type() {
	case pygram.Parameters, pygram.Arglist:
		// untyped function signatures or calls
		if prev == nil || prev.Type() != pytoken.COMMA {
			return no
		}

	case pygram.Varargslist:
		// lambdas
		if prev != nil && prev.Type() != pytoken.COMMA {
			return no
		}

	case pygram.Typedargslist:
		// typed function signatures
		if prev == nil {
			return no
		}
		if t == pytoken.EQUAL {
			if prev.Type() != pygram.Tname {
				return no
			}
		} else if prev.Type() == pytoken.EQUAL {
			return prev.Prefix()
		} else if prev.Type() != pytoken.COMMA {
			return no
		}

	case pygram.Tname:
		// type names
		if prev == nil {
			prevp := precedingLeaf(p)
			if prevp == nil || prevp.Type() != pytoken.COMMA {
				return no
			}
		}

	case pygram.Trailer:
		// attributes and calls
		if t == pytoken.LPAR || t == pytoken.RPAR {
			return no
		}
		if prev == nil {
			if t == pytoken.DOT {
				prevp := precedingLeaf(p)
				if prevp == nil || prevp.Type() != pytoken.NUMBER {
					return no
				}
			} else if t == pytoken.LSQB {
				return no
			}
		} else if prev.Type() != pytoken.COMMA {
			return no
		}

	case pygram.Argument:
		// single argument
		if t == pytoken.EQUAL {
			return no
		}
		if prev == nil {
			prevp := precedingLeaf(p)
			if prevp == nil || prevp.Type() == pytoken.LPAR {
				return no
			}
		} else if prev.Type() == pytoken.EQUAL || varargsSpecials[prev.Type()] {
			return no
		}

	case pygram.Decorator:
		return no

	case pygram.DottedName:
		if prev != nil {
			return no
		}
		prevp := precedingLeaf(p)
		if prevp == nil || prevp.Type() == pytoken.AT || prevp.Type() == pytoken.DOT {
			return no
		}

	case pygram.Classdef:
		if t == pytoken.LPAR {
			return no
		}
		if prev != nil && prev.Type() == pytoken.LPAR {
			return no
		}

	case pygram.Subscript, pygram.Sliceop:
		// indexing
		if prev == nil {
			if p.Parent() != nil && p.Parent().Type() == pygram.Subscriptlist {
				return space
			}
			return no
		} else if !complexSubscript {
			return no
		}

	case pygram.Atom:
		if prev != nil && t == pytoken.DOT {
			// dots, but not the first one
			return no
		}

	case pygram.Dictsetmaker:
		if prev != nil && prev.Type() == pytoken.DOUBLESTAR {
			return no
		}

	case pygram.Factor, pygram.StarExpr:
		// unary ops
		if prev == nil {
			prevp := precedingLeaf(p)
			if prevp == nil || openingBrackets[prevp.Type()] {
				return no
			}
			pp := parentType(prevp)
			if prevp.Type() == pytoken.COLON && (pp == pygram.Subscript || pp == pygram.Sliceop) {
				return no
			} else if prevp.Type() == pytoken.EQUAL && pp == pygram.Argument {
				return no
			}
		} else if t == pytoken.NAME || t == pytoken.NUMBER || t == pytoken.STRING {
			return no
		}

	case pygram.ImportFrom:
		if t == pytoken.DOT {
			if prev != nil && prev.Type() == pytoken.DOT {
				return no
			}
		} else if t == pytoken.NAME {
			if v == "import" {
				return space
			}
			if prev != nil && prev.Type() == pytoken.DOT {
				return no
			}
		}
	}
	return space
}

// precedingLeaf returns the first leaf before nl in source order.
func precedingLeaf(nl pytree.NL) *pytree.Leaf {
	for nl != nil {
		if res := pytree.PrevSibling(nl); res != nil {
			if l, ok := res.(*pytree.Leaf); ok {
				return l
			}
			return pytree.LastLeaf(res)
		}
		p := nl.Parent()
		if p == nil {
			return nil
		}
		nl = p
	}
	return nil
}

// isVararg reports whether leaf is a star or double star introducing
// variadic arguments or unpacking within one of the given parents.
func isVararg(leaf *pytree.Leaf, within typeSet) bool {
	if !varargsSpecials[leaf.Type()] || leaf.Parent() == nil {
		return false
	}
	p := leaf.Parent()
	if p.Type() == pygram.StarExpr {
		// Star expressions are also assignment targets in extended iterable
		// unpacking; look at what contains them.
		if p.Parent() == nil {
			return false
		}
		p = p.Parent()
	}
	return within[p.Type()]
}

// isSplitAfterDelimiter returns the priority of leaf as a delimiter that
// ends a line.
func isSplitAfterDelimiter(leaf *pytree.Leaf) int {
	if leaf.Type() == pytoken.COMMA {
		return commaPriority
	}
	return 0
}

// isSplitBeforeDelimiter returns the priority of leaf as a delimiter that
// starts a line.
func isSplitBeforeDelimiter(leaf, previous *pytree.Leaf) int {
	if isVararg(leaf, varargsParents.union(unpackingParents)) {
		// * and ** can also be math operators, like 2 ** 8 and 4 * 2.
		return 0
	}
	return maxDelimiterPriorityOf(leaf, previous)
}

func maxDelimiterPriorityOf(leaf, previous *pytree.Leaf) int {
	t := leaf.Type()
	pt := parentType(leaf)

	if t == pytoken.DOT && pt != -1 && pt != pygram.ImportFrom && pt != pygram.DottedName &&
		(previous == nil || closingBrackets[previous.Type()]) {
		return dotPriority
	}

	if mathOperators[t] && pt != -1 && pt != pygram.Factor && pt != pygram.StarExpr {
		return mathPriorities[t]
	}

	if comparators[t] {
		return comparatorPriority
	}

	if t == pytoken.STRING && previous != nil && previous.Type() == pytoken.STRING {
		return stringPriority
	}

	if t != pytoken.NAME && t != pytoken.ASYNC {
		return 0
	}

	v := leaf.Value
	if (v == "for" && pt == pygram.CompFor) || t == pytoken.ASYNC {
		if ps, ok := pytree.PrevSibling(leaf).(*pytree.Leaf); !ok || ps.Value != "async" {
			// not the "for" that follows "async"
			return comprehensionPriority
		}
	}

	if v == "if" && pt == pygram.CompIf {
		return comprehensionPriority
	}

	if (v == "if" || v == "else") && pt == pygram.Test {
		return ternaryPriority
	}

	if v == "is" {
		return comparatorPriority
	}

	if v == "in" && (pt == pygram.CompOp || pt == pygram.Comparison) &&
		!(previous != nil && previous.Type() == pytoken.NAME && previous.Value == "not") {
		return comparatorPriority
	}

	if v == "not" && pt == pygram.CompOp &&
		!(previous != nil && previous.Type() == pytoken.NAME && previous.Value == "is") {
		return comparatorPriority
	}

	if logicOperators[v] && pt != -1 {
		return logicPriority
	}

	return 0
}

// isMultilineString reports whether leaf is a triple-quoted string spanning
// more than one line.
func isMultilineString(leaf *pytree.Leaf) bool {
	return hasTripleQuotes(leaf.Value) && strings.Contains(leaf.Value, "\n")
}

func hasTripleQuotes(s string) bool {
	raw := strings.TrimLeft(s, stringPrefixChars)
	return strings.HasPrefix(raw, `"""`) || strings.HasPrefix(raw, "'''")
}

// isImport reports whether leaf starts an import statement.
func isImport(leaf *pytree.Leaf) bool {
	if leaf.Type() != pytoken.NAME {
		return false
	}
	pt := parentType(leaf)
	return (leaf.Value == "import" && pt == pygram.ImportName) ||
		(leaf.Value == "from" && pt == pygram.ImportFrom)
}

// isTypeComment reports whether leaf is a "# type:" comment, optionally
// followed by suffix.
func isTypeComment(leaf *pytree.Leaf, suffix string) bool {
	t := leaf.Type()
	return (t == pytoken.COMMENT || t == standaloneComment) && strings.HasPrefix(leaf.Value, "# type:"+suffix)
}

// normalizePrefix keeps the blank lines before leaf unless it sits inside
// brackets, and drops everything else.
func normalizePrefix(leaf *pytree.Leaf, insideBrackets bool) {
	if !insideBrackets {
		spl := strings.Split(leaf.Prefix(), "#")
		if !strings.Contains(spl[0], "\\") {
			nl := strings.Count(spl[len(spl)-1], "\n")
			if len(spl) > 1 {
				nl--
			}
			leaf.SetPrefix(strings.Repeat("\n", max(nl, 0)))
			return
		}
	}
	leaf.SetPrefix("")
}

func isEmptyTuple(nl pytree.NL) bool {
	n, ok := nl.(*pytree.Node)
	return ok && n.Type() == pygram.Atom && len(n.Children) == 2 &&
		n.Children[0].Type() == pytoken.LPAR && n.Children[1].Type() == pytoken.RPAR
}

// isOneTuple reports whether nl holds a one-element tuple, with or without
// parentheses.
func isOneTuple(nl pytree.NL) bool {
	n, ok := nl.(*pytree.Node)
	if !ok {
		return false
	}
	if n.Type() == pygram.Atom {
		gexp, ok := unwrapSingletonParenthesis(n).(*pytree.Node)
		if !ok || gexp.Type() != pygram.TestlistGexp {
			return false
		}
		return len(gexp.Children) == 2 && gexp.Children[1].Type() == pytoken.COMMA
	}
	return implicitTuple[n.Type()] && len(n.Children) == 2 && n.Children[1].Type() == pytoken.COMMA
}

// isOneTupleBetween reports whether the leaves between opening and closing
// look like a one-element tuple.
func isOneTupleBetween(opening, closing *pytree.Leaf, leaves []*pytree.Leaf) bool {
	if opening.Type() != pytoken.LPAR || closing.Type() != pytoken.RPAR {
		return false
	}
	depth := closing.BracketDepth + 1
	start := -1
	for i, l := range leaves {
		if l == opening {
			start = i
			break
		}
	}
	if start < 0 {
		return false
	}
	commas := 0
	for _, l := range leaves[start+1:] {
		if l == closing {
			break
		}
		if l.BracketDepth == depth && l.Type() == pytoken.COMMA {
			commas++
			if pt := parentType(l); pt == pygram.Arglist || pt == pygram.Typedargslist {
				commas++
				break
			}
		}
	}
	return commas < 2
}

func isYield(nl pytree.NL) bool {
	if nl.Type() == pygram.YieldExpr {
		return true
	}
	if isLeaf(nl, pytoken.NAME, "yield") {
		return true
	}
	n, ok := nl.(*pytree.Node)
	if !ok || n.Type() != pygram.Atom || len(n.Children) != 3 {
		return false
	}
	if n.Children[0].Type() == pytoken.LPAR && n.Children[2].Type() == pytoken.RPAR {
		return isYield(n.Children[1])
	}
	return false
}

// unwrapSingletonParenthesis returns the middle child of a parenthesized
// node, visible or not.
func unwrapSingletonParenthesis(nl pytree.NL) pytree.NL {
	n, ok := nl.(*pytree.Node)
	if !ok || len(n.Children) != 3 {
		return nil
	}
	if n.Children[0].Type() != pytoken.LPAR || n.Children[2].Type() != pytoken.RPAR {
		return nil
	}
	return n.Children[1]
}

func isWalrusAssignment(nl pytree.NL) bool {
	inner := unwrapSingletonParenthesis(nl)
	return inner != nil && inner.Type() == pygram.NamedexprTest
}

func isAtomWithInvisibleParens(nl pytree.NL) bool {
	n, ok := nl.(*pytree.Node)
	if !ok || n.Type() != pygram.Atom || len(n.Children) == 0 {
		return false
	}
	return isLeaf(n.Children[0], pytoken.LPAR, "") && isLeaf(n.Children[len(n.Children)-1], pytoken.RPAR, "")
}

// wrapInParentheses replaces child with an atom holding it between a pair
// of parentheses, invisible unless visible is set.
func wrapInParentheses(parent *pytree.Node, child pytree.NL, visible bool) {
	lv, rv := "", ""
	if visible {
		lv, rv = "(", ")"
	}
	prefix := child.Prefix()
	child.SetPrefix("")
	index := max(pytree.Remove(child), 0)
	atom := pytree.NewNode(pygram.Atom, pytree.NewLeaf(pytoken.LPAR, lv), child, pytree.NewLeaf(pytoken.RPAR, rv))
	atom.SetPrefix(prefix)
	parent.InsertChild(index, atom)
}

// ensureVisible makes an invisible bracket render again.
func ensureVisible(leaf *pytree.Leaf) {
	switch leaf.Type() {
	case pytoken.LPAR:
		leaf.Value = "("
	case pytoken.RPAR:
		leaf.Value = ")"
	}
}

// isStubSuite reports whether n is an indented suite whose only statement
// is "...".
func isStubSuite(n *pytree.Node) bool {
	if len(n.Children) != 4 ||
		n.Children[0].Type() != pytoken.NEWLINE ||
		n.Children[1].Type() != pytoken.INDENT ||
		n.Children[3].Type() != pytoken.DEDENT {
		return false
	}
	return isStubBody(n.Children[2])
}

// isStubBody reports whether nl is a simple statement holding only "...".
func isStubBody(nl pytree.NL) bool {
	n, ok := nl.(*pytree.Node)
	if !ok || n.Type() != pygram.SimpleStmt || len(n.Children) != 2 {
		return false
	}
	atom, ok := n.Children[0].(*pytree.Node)
	if !ok || atom.Type() != pygram.Atom || len(atom.Children) != 3 {
		return false
	}
	for _, ch := range atom.Children {
		if !isLeaf(ch, pytoken.DOT, ".") {
			return false
		}
	}
	return true
}

// firstLeafColumn returns the column of the first direct leaf child of n.
func firstLeafColumn(n *pytree.Node) (int, bool) {
	for _, ch := range n.Children {
		if l, ok := ch.(*pytree.Leaf); ok {
			return l.Column, true
		}
	}
	return 0, false
}

// childTowards returns the child of ancestor that contains descendant.
func childTowards(ancestor *pytree.Node, descendant pytree.NL) pytree.NL {
	node := descendant
	for node != nil {
		p := node.Parent()
		if p == ancestor {
			return node
		}
		if p == nil {
			return nil
		}
		node = p
	}
	return nil
}
