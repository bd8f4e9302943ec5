package crow

import (
	"strings"

	"github.com/vito/crow/pkg/pygram"
	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

type visitFunc func(pytree.NL)

// LineGenerator walks a syntax tree and emits logical lines in source
// order. Empty lines are never emitted.
//
// The walk destroys the tree: leaf prefixes are rewritten in ways that no
// longer stringify to valid Python.
type LineGenerator struct {
	mode          Mode
	removeUPrefix bool
	current       *Line
	emit          func(*Line)

	visitors map[int]visitFunc
}

// NewLineGenerator returns a generator calling emit for every completed
// line.
func NewLineGenerator(mode Mode, removeUPrefix bool, emit func(*Line)) *LineGenerator {
	lg := &LineGenerator{
		mode:          mode,
		removeUPrefix: removeUPrefix,
		current:       NewLine(mode, 0, false),
		emit:          emit,
	}

	none := map[string]bool{}
	lg.visitors = map[int]visitFunc{
		pygram.AssertStmt:   lg.stmt(words("assert"), words("assert", ",")),
		pygram.IfStmt:       lg.stmt(words("if", "else", "elif"), words("if", "elif")),
		pygram.WhileStmt:    lg.stmt(words("while", "else"), words("while")),
		pygram.ForStmt:      lg.stmt(words("for", "else"), words("for", "in")),
		pygram.TryStmt:      lg.stmt(words("try", "except", "else", "finally"), none),
		pygram.ExceptClause: lg.stmt(words("except"), none),
		pygram.WithStmt:     lg.stmt(words("with"), none),
		pygram.Funcdef:      lg.stmt(words("def"), none),
		pygram.Classdef:     lg.stmt(words("class"), none),
		pygram.ExprStmt:     lg.stmt(none, assignments),
		pygram.ReturnStmt:   lg.stmt(words("return"), words("return")),
		pygram.ImportFrom:   lg.stmt(none, words("import")),
		pygram.DelStmt:      lg.stmt(none, words("del")),
		pygram.AsyncFuncdef: lg.visitAsyncStmt,
		pygram.AsyncStmt:    lg.visitAsyncStmt,
		pygram.Decorated:    lg.visitDecorators,
		pygram.Decorators:   lg.visitDecorators,
		pygram.Suite:        lg.visitSuite,
		pygram.SimpleStmt:   lg.visitSimpleStmt,
		pygram.Factor:       lg.visitFactor,

		pytoken.INDENT:    lg.visitIndent,
		pytoken.DEDENT:    lg.visitDedent,
		pytoken.SEMI:      func(pytree.NL) { lg.line(0) },
		pytoken.ENDMARKER: lg.visitEndmarker,
		pytoken.STRING:    lg.visitString,
		standaloneComment: lg.visitStandaloneComment,
	}
	return lg
}

func words(ws ...string) map[string]bool {
	m := make(map[string]bool, len(ws))
	for _, w := range ws {
		m[w] = true
	}
	return m
}

// Visit walks nl, emitting lines as they complete.
func (lg *LineGenerator) Visit(nl pytree.NL) {
	if visit, ok := lg.visitors[nl.Type()]; ok {
		visit(nl)
		return
	}
	lg.visitDefault(nl)
}

// line completes the current line and starts a new one, indent levels
// deeper. An empty current line is only re-indented.
func (lg *LineGenerator) line(indent int) {
	if lg.current.Empty() {
		lg.current.Depth += indent
		return
	}
	complete := lg.current
	lg.current = NewLine(lg.mode, complete.Depth+indent, false)
	lg.emit(complete)
}

func (lg *LineGenerator) visitDefault(nl pytree.NL) {
	leaf, ok := nl.(*pytree.Leaf)
	if !ok {
		for _, child := range children(nl) {
			lg.Visit(child)
		}
		return
	}

	anyOpen := lg.current.Brackets.AnyOpenBrackets()
	for _, comment := range generateComments(leaf) {
		switch {
		case anyOpen:
			// any comment within brackets is subject to splitting
			lg.current.Append(comment, false)
		case comment.Type() == pytoken.COMMENT:
			lg.current.Append(comment, false)
			lg.line(0)
		default:
			lg.line(0)
			lg.current.Append(comment, false)
			lg.line(0)
		}
	}

	normalizePrefix(leaf, anyOpen)
	if lg.mode.StringNormalization && leaf.Type() == pytoken.STRING {
		normalizeStringPrefix(leaf, lg.removeUPrefix)
		normalizeStringQuotes(leaf)
	}
	if leaf.Type() == pytoken.NUMBER {
		normalizeNumericLiteral(leaf)
	}
	if !whitespaceTypes[leaf.Type()] {
		lg.current.Append(leaf, false)
	}
}

func (lg *LineGenerator) visitIndent(nl pytree.NL) {
	// INDENT never holds comments.
	lg.line(+1)
	lg.visitDefault(nl)
}

func (lg *LineGenerator) visitDedent(nl pytree.NL) {
	// Trailing comments would be in the preceding NEWLINE's prefix, so the
	// current line is done.
	lg.line(0)
	// The prefix may hold standalone comments at the inner indentation.
	lg.visitDefault(nl)
	lg.line(-1)
}

// stmt returns a visitor for a compound or assignment statement. Leaves
// named by keywords begin a new line; invisible parentheses go after the
// leaves named by parens.
func (lg *LineGenerator) stmt(keywords, parens map[string]bool) visitFunc {
	return func(nl pytree.NL) {
		node := nl.(*pytree.Node)
		normalizeInvisibleParens(node, parens)
		for _, child := range node.Children {
			if l, ok := child.(*pytree.Leaf); ok && l.Type() == pytoken.NAME && keywords[l.Value] {
				lg.line(0)
			}
			lg.Visit(child)
		}
	}
}

func (lg *LineGenerator) visitSuite(nl pytree.NL) {
	node := nl.(*pytree.Node)
	if lg.mode.IsPyi && isStubSuite(node) {
		lg.Visit(node.Children[2])
		return
	}
	lg.visitDefault(node)
}

func (lg *LineGenerator) visitSimpleStmt(nl pytree.NL) {
	node := nl.(*pytree.Node)
	parent := node.Parent()
	if parent != nil && statementTypes[parent.Type()] {
		// the body of a compound statement on its header line
		if lg.mode.IsPyi && isStubBody(node) {
			lg.visitDefault(node)
			return
		}
		lg.line(+1)
		lg.visitDefault(node)
		lg.line(-1)
		return
	}
	if !lg.mode.IsPyi || parent == nil || !isStubSuite(parent) {
		lg.line(0)
	}
	lg.visitDefault(node)
}

// visitAsyncStmt handles "async def", "async for" and "async with".
func (lg *LineGenerator) visitAsyncStmt(nl pytree.NL) {
	node := nl.(*pytree.Node)
	lg.line(0)

	i := 0
	for ; i < len(node.Children); i++ {
		child := node.Children[i]
		lg.Visit(child)
		if child.Type() == pytoken.ASYNC {
			break
		}
	}
	if i+1 >= len(node.Children) {
		return
	}
	for _, child := range children(node.Children[i+1]) {
		lg.Visit(child)
	}
}

func (lg *LineGenerator) visitDecorators(nl pytree.NL) {
	for _, child := range children(nl) {
		lg.line(0)
		lg.Visit(child)
	}
}

func (lg *LineGenerator) visitEndmarker(nl pytree.NL) {
	lg.visitDefault(nl)
	lg.line(0)
}

func (lg *LineGenerator) visitStandaloneComment(nl pytree.NL) {
	if !lg.current.Brackets.AnyOpenBrackets() {
		lg.line(0)
	}
	lg.visitDefault(nl)
}

// visitFactor parenthesizes a power operand of a unary operator:
// -2 ** 8 becomes -(2 ** 8).
func (lg *LineGenerator) visitFactor(nl pytree.NL) {
	node := nl.(*pytree.Node)
	if len(node.Children) == 2 {
		operand, ok := node.Children[1].(*pytree.Node)
		if ok && operand.Type() == pygram.Power && len(operand.Children) == 3 &&
			operand.Children[1].Type() == pytoken.DOUBLESTAR {
			index := max(pytree.Remove(operand), 0)
			atom := pytree.NewNode(pygram.Atom,
				pytree.NewLeaf(pytoken.LPAR, "("),
				operand,
				pytree.NewLeaf(pytoken.RPAR, ")"))
			node.InsertChild(index, atom)
		}
	}
	lg.visitDefault(node)
}

func (lg *LineGenerator) visitString(nl pytree.NL) {
	leaf := nl.(*pytree.Leaf)
	if isDocstring(leaf) && isMultilineString(leaf) && !strings.Contains(leaf.Value, "\\\n") {
		lg.reindentDocstring(leaf)
	}
	lg.visitDefault(leaf)
}

// reindentDocstring re-indents the body of a docstring to the depth of the
// current line.
func (lg *LineGenerator) reindentDocstring(leaf *pytree.Leaf) {
	if lg.mode.StringNormalization {
		normalizeStringPrefix(leaf, lg.removeUPrefix)
	}
	prefix, _ := stringPrefix(leaf.Value)
	lead := len(prefix) + 3
	value := leaf.Value
	if len(value) < lead+3 {
		return
	}
	quote := value[lead-1]

	docstring := fixDocstring(value[lead:len(value)-3], strings.Repeat("    ", lg.current.Depth))
	if docstring != "" {
		// Quotes touching the delimiters would merge with them.
		if docstring[0] == quote {
			docstring = " " + docstring
		}
		if docstring[len(docstring)-1] == quote {
			docstring += " "
		}
		// A trailing backslash would escape the closing quote.
		if n := len(docstring) - len(strings.TrimRight(docstring, `\`)); n%2 == 1 {
			docstring += " "
		}
	}
	leaf.Value = value[:lead] + docstring + value[len(value)-3:]
	if lg.mode.StringNormalization {
		normalizeStringQuotes(leaf)
	}
}

// isDocstring reports whether leaf is the first statement of a module,
// class or function body, including a body on the header line.
func isDocstring(leaf *pytree.Leaf) bool {
	parent := leaf.Parent()
	if parent == nil {
		return false
	}
	if prevSiblingsAre(parent, []int{-1, pytoken.NEWLINE, pytoken.INDENT, pygram.SimpleStmt}) {
		return true
	}
	if parent.Type() != pygram.SimpleStmt || pytree.PrevSibling(leaf) != nil {
		return false
	}
	def := parent.Parent()
	return def != nil && (def.Type() == pygram.Funcdef || def.Type() == pygram.Classdef) &&
		isLeaf(pytree.PrevSibling(parent), pytoken.COLON, ":")
}

// prevSiblingsAre matches nl and its previous siblings against types, from
// the last element backwards. A leading -1 anchors the match at the start
// of the parent's children.
func prevSiblingsAre(nl pytree.NL, types []int) bool {
	if len(types) == 0 {
		return true
	}
	last := types[len(types)-1]
	if last == -1 {
		return nl == nil
	}
	if nl == nil || nl.Type() != last {
		return false
	}
	return prevSiblingsAre(pytree.PrevSibling(nl), types[:len(types)-1])
}

// normalizeInvisibleParens makes existing optional parentheses after the
// leaves in parensAfter invisible, or creates invisible ones.
//
// One-tuples always get visible parentheses; other tuples and generator
// expressions keep theirs.
func normalizeInvisibleParens(node *pytree.Node, parensAfter map[string]bool) {
	for _, pc := range listComments(node.Prefix(), false) {
		if fmtOff[pc.value] {
			return
		}
	}

	checkLpar := false
	for index, child := range append([]pytree.NL(nil), node.Children...) {
		// annotated assignments nest their value one level down
		if child.Type() == pygram.Annassign {
			if n, ok := child.(*pytree.Node); ok {
				normalizeInvisibleParens(n, parensAfter)
			}
		}

		// long tuple unpacking on the left of an assignment
		if index == 0 && child.Type() == pygram.TestlistStarExpr {
			checkLpar = true
		}

		// parenthesized walrus assignments keep their parentheses
		if checkLpar && !isWalrusAssignment(child) {
			switch {
			case child.Type() == pygram.Atom:
				if maybeMakeParensInvisibleInAtom(child, node) {
					wrapInParentheses(node, child, false)
				}
			case isOneTuple(child):
				wrapInParentheses(node, child, true)
			case node.Type() == pygram.ImportFrom:
				// import_from keeps its parentheses as direct children
				if l, ok := child.(*pytree.Leaf); ok && l.Type() == pytoken.LPAR {
					l.Value = ""
					if last, ok := node.Children[len(node.Children)-1].(*pytree.Leaf); ok {
						last.Value = ""
					}
				} else if child.Type() != pytoken.STAR {
					node.InsertChild(index, pytree.NewLeaf(pytoken.LPAR, ""))
					node.AppendChild(pytree.NewLeaf(pytoken.RPAR, ""))
				}
				return
			default:
				if l, ok := child.(*pytree.Leaf); !ok || !isMultilineString(l) {
					wrapInParentheses(node, child, false)
				}
			}
		}

		l, ok := child.(*pytree.Leaf)
		checkLpar = ok && parensAfter[l.Value]
	}
}

// maybeMakeParensInvisibleInAtom makes the parentheses of atom invisible
// when that is safe, recursively, and drops redundant nested invisible
// parentheses. It reports whether the node should be wrapped in invisible
// parentheses instead.
func maybeMakeParensInvisibleInAtom(nl pytree.NL, parent pytree.NL) bool {
	node, ok := nl.(*pytree.Node)
	if !ok || node.Type() != pygram.Atom ||
		isEmptyTuple(node) ||
		isOneTuple(node) ||
		(isYield(node) && parent.Type() != pygram.ExprStmt) ||
		maxDelimiterPriorityInAtom(node) >= commaPriority {
		return false
	}

	first, fok := node.Children[0].(*pytree.Leaf)
	last, lok := node.Children[len(node.Children)-1].(*pytree.Leaf)
	if fok && lok && first.Type() == pytoken.LPAR && last.Type() == pytoken.RPAR {
		middle := node.Children[1]
		first.Value = ""
		last.Value = ""
		maybeMakeParensInvisibleInAtom(middle, parent)

		if isAtomWithInvisibleParens(middle) {
			pytree.Replace(middle, children(middle)[1])
		}
		return false
	}
	return true
}
