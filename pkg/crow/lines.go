package crow

import (
	"errors"
	"iter"
	"strings"

	"github.com/vito/crow/pkg/pygram"
	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

var (
	errAppendToComment    = errors.New("cannot append to standalone comments")
	errCommentOnPopulated = errors.New("cannot append standalone comments to a populated line")
)

// Line holds leaves and comments that are rendered together as one
// physical line, unless it gets split.
type Line struct {
	Mode   Mode
	Depth  int
	Leaves []*pytree.Leaf

	// comments trailing a leaf, keyed by that leaf
	comments map[*pytree.Leaf][]*pytree.Leaf

	Brackets       *BracketTracker
	InsideBrackets bool

	// ShouldExplode forces one element per line when the line is split at
	// commas.
	ShouldExplode bool

	// MagicTrailingComma is the closing bracket preceded by a pre-existing
	// trailing comma, if any.
	MagicTrailingComma *pytree.Leaf
}

// NewLine returns an empty line at the given depth.
func NewLine(mode Mode, depth int, insideBrackets bool) *Line {
	return &Line{
		Mode:           mode,
		Depth:          depth,
		comments:       map[*pytree.Leaf][]*pytree.Leaf{},
		Brackets:       newBracketTracker(),
		InsideBrackets: insideBrackets,
	}
}

// Append adds leaf to the end of the line. Unless preformatted is set, the
// leaf's prefix is replaced with the whitespace the formatting rules call
// for. Inline comments are attached to the last leaf instead.
func (l *Line) Append(leaf *pytree.Leaf, preformatted bool) {
	hasValue := brackets[leaf.Type()] || strings.TrimSpace(leaf.Value) != ""
	if !hasValue {
		return
	}

	if leaf.Type() == pytoken.COLON && l.IsClassParenEmpty() {
		l.Leaves = l.Leaves[:len(l.Leaves)-2]
	}
	if len(l.Leaves) > 0 && !preformatted {
		// The prefix is empty at this point except for imports, which keep
		// their leading whitespace.
		leaf.SetPrefix(leaf.Prefix() + whitespace(leaf, l.isComplexSubscript(leaf)))
	}
	if l.InsideBrackets || !preformatted {
		// Unmatched brackets only come from assembling leaves that were
		// already split apart, and those keep their existing depths.
		_ = l.Brackets.Mark(leaf)
		if l.Mode.MagicTrailingComma {
			if l.hasMagicTrailingComma(leaf, false) {
				l.MagicTrailingComma = leaf
			}
		} else if l.hasMagicTrailingComma(leaf, true) {
			l.removeTrailingComma()
		}
	}
	if !l.appendComment(leaf) {
		l.Leaves = append(l.Leaves, leaf)
	}
}

// AppendSafe is like Append but refuses to put anything after a standalone
// comment, or a standalone comment after anything, at depth 0.
func (l *Line) AppendSafe(leaf *pytree.Leaf, preformatted bool) error {
	if l.Brackets.depth == 0 {
		if l.IsComment() {
			return errAppendToComment
		}
		if len(l.Leaves) > 0 && leaf.Type() == standaloneComment {
			return errCommentOnPopulated
		}
	}
	l.Append(leaf, preformatted)
	return nil
}

// IsComment reports whether the line is a single standalone comment.
func (l *Line) IsComment() bool {
	return len(l.Leaves) == 1 && l.Leaves[0].Type() == standaloneComment
}

// IsDecorator reports whether the line is a decorator.
func (l *Line) IsDecorator() bool {
	return len(l.Leaves) > 0 && l.Leaves[0].Type() == pytoken.AT
}

// IsImport reports whether the line is an import statement.
func (l *Line) IsImport() bool {
	return len(l.Leaves) > 0 && isImport(l.Leaves[0])
}

// IsClass reports whether the line is a class definition.
func (l *Line) IsClass() bool {
	return len(l.Leaves) > 0 && l.Leaves[0].Type() == pytoken.NAME && l.Leaves[0].Value == "class"
}

// IsStubClass reports whether the line is a class definition with a "..."
// body on the same line.
func (l *Line) IsStubClass() bool {
	return l.IsClass() && l.endsWith(dotLeaves(3))
}

// IsDef reports whether the line is a function definition, async or not.
func (l *Line) IsDef() bool {
	if len(l.Leaves) == 0 {
		return false
	}
	first := l.Leaves[0]
	if first.Type() == pytoken.NAME && first.Value == "def" {
		return true
	}
	if len(l.Leaves) < 2 {
		return false
	}
	second := l.Leaves[1]
	return first.Type() == pytoken.ASYNC && second.Type() == pytoken.NAME && second.Value == "def"
}

// IsStubDef reports whether the line is a function definition with a "..."
// body on the same line.
func (l *Line) IsStubDef() bool {
	want := append([]leafShape{{pytoken.COLON, ":"}}, dotLeaves(3)...)
	return l.IsDef() && l.endsWith(want)
}

// IsClassParenEmpty reports whether the line is "class A(" followed by ")".
func (l *Line) IsClassParenEmpty() bool {
	return l.IsClass() && l.endsWith([]leafShape{{pytoken.LPAR, "("}, {pytoken.RPAR, ")"}})
}

// IsTripleQuotedString reports whether the line starts with a triple-quoted
// string.
func (l *Line) IsTripleQuotedString() bool {
	if len(l.Leaves) == 0 || l.Leaves[0].Type() != pytoken.STRING {
		return false
	}
	return strings.HasPrefix(l.Leaves[0].Value, `"""`) || strings.HasPrefix(l.Leaves[0].Value, "'''")
}

// IsFlowControl reports whether the line is a return, raise, break or
// continue statement.
func (l *Line) IsFlowControl() bool {
	if len(l.Leaves) == 0 || l.Leaves[0].Type() != pytoken.NAME {
		return false
	}
	switch l.Leaves[0].Value {
	case "return", "raise", "break", "continue":
		return true
	}
	return false
}

type leafShape struct {
	typ   int
	value string
}

func dotLeaves(n int) []leafShape {
	out := make([]leafShape, n)
	for i := range out {
		out[i] = leafShape{pytoken.DOT, "."}
	}
	return out
}

func (l *Line) endsWith(shapes []leafShape) bool {
	if len(l.Leaves) < len(shapes) {
		return false
	}
	tail := l.Leaves[len(l.Leaves)-len(shapes):]
	for i, s := range shapes {
		if tail[i].Type() != s.typ || tail[i].Value != s.value {
			return false
		}
	}
	return true
}

// ContainsStandaloneComments reports whether a standalone comment sits at a
// bracket depth of at most depthLimit.
func (l *Line) ContainsStandaloneComments(depthLimit int) bool {
	for _, leaf := range l.Leaves {
		if leaf.Type() == standaloneComment && leaf.BracketDepth <= depthLimit {
			return true
		}
	}
	return false
}

// ContainsUncollapsableTypeComments reports whether joining the line would
// move a type comment away from the leaf it annotates.
func (l *Line) ContainsUncollapsableTypeComments() bool {
	if len(l.Leaves) == 0 {
		return false
	}
	ignored := map[*pytree.Leaf]bool{}
	last := l.Leaves[len(l.Leaves)-1]
	ignored[last] = true
	if last.Type() == pytoken.COMMA || (last.Type() == pytoken.RPAR && last.Value == "") {
		// Comments on an optional paren wrapping a single leaf belong to
		// the wrapped leaf.
		if len(l.Leaves) < 2 {
			return false
		}
		ignored[l.Leaves[len(l.Leaves)-2]] = true
	}

	// A type comment is uncollapsable if it is attached to a leaf that is
	// not at the end of the line or if any comment precedes it.
	commentSeen := false
	for _, leaf := range l.Leaves {
		for _, comment := range l.comments[leaf] {
			if isTypeComment(comment, "") {
				if commentSeen || (!isTypeComment(comment, " ignore") && !ignored[leaf]) {
					return true
				}
			}
			commentSeen = true
		}
	}
	return false
}

// ContainsUnsplittableTypeIgnore reports whether the line came from a
// single source line ending in "# type: ignore", which must stay put.
func (l *Line) ContainsUnsplittableTypeIgnore() bool {
	if len(l.Leaves) == 0 {
		return false
	}
	firstLine, lastLine := 0, 0
	for _, leaf := range l.Leaves {
		if leaf.Lineno != 0 {
			firstLine = leaf.Lineno
			break
		}
	}
	for i := len(l.Leaves) - 1; i >= 0; i-- {
		if l.Leaves[i].Lineno != 0 {
			lastLine = l.Leaves[i].Lineno
			break
		}
	}
	if firstLine != lastLine {
		return false
	}
	// Look at the last two leaves since a comma or an invisible paren
	// could have been added at the end of the line.
	for _, leaf := range l.Leaves[max(len(l.Leaves)-2, 0):] {
		for _, comment := range l.comments[leaf] {
			if isTypeComment(comment, " ignore") {
				return true
			}
		}
	}
	return false
}

// ContainsMultilineStrings reports whether any leaf is a multiline string.
func (l *Line) ContainsMultilineStrings() bool {
	for _, leaf := range l.Leaves {
		if isMultilineString(leaf) {
			return true
		}
	}
	return false
}

// hasMagicTrailingComma reports whether closing is preceded by a trailing
// comma the user put there to request one element per line. With
// ensureRemovable set, only commas that can be dropped without changing the
// program count.
func (l *Line) hasMagicTrailingComma(closing *pytree.Leaf, ensureRemovable bool) bool {
	if !closingBrackets[closing.Type()] || len(l.Leaves) == 0 || l.Leaves[len(l.Leaves)-1].Type() != pytoken.COMMA {
		return false
	}
	comma := l.Leaves[len(l.Leaves)-1]
	switch closing.Type() {
	case pytoken.RBRACE:
		return true
	case pytoken.RSQB:
		if !ensureRemovable {
			return true
		}
		// a trailing comma in a subscript makes it a tuple
		return parentType(comma) == pygram.Listmaker
	}
	if l.IsImport() {
		return true
	}
	if closing.OpeningBracket != nil && !isOneTupleBetween(closing.OpeningBracket, closing, l.Leaves) {
		return true
	}
	return false
}

// appendComment attaches comment to the last leaf. It returns false when
// comment has to be appended as a leaf instead.
func (l *Line) appendComment(comment *pytree.Leaf) bool {
	if comment.Type() == standaloneComment && l.Brackets.AnyOpenBrackets() {
		comment.SetPrefix("")
		return false
	}
	if comment.Type() != pytoken.COMMENT {
		return false
	}
	if len(l.Leaves) == 0 {
		comment.SetType(standaloneComment)
		comment.SetPrefix("")
		return false
	}

	last := l.Leaves[len(l.Leaves)-1]
	if last.Type() == pytoken.RPAR && last.Value == "" && last.Parent() != nil &&
		countLeaves(last.Parent()) <= 3 && !isTypeComment(comment, "") {
		// Comments on an optional paren wrapping a single leaf belong to
		// the wrapped leaf, unless it's a type comment, which has to stay
		// at the very end of the line.
		if len(l.Leaves) < 2 {
			comment.SetType(standaloneComment)
			comment.SetPrefix("")
			return false
		}
		last = l.Leaves[len(l.Leaves)-2]
	}
	l.comments[last] = append(l.comments[last], comment)
	return true
}

func countLeaves(nl pytree.NL) int {
	n := 0
	for range pytree.Leaves(nl) {
		n++
	}
	return n
}

// CommentsAfter returns the inline comments attached to leaf.
func (l *Line) CommentsAfter(leaf *pytree.Leaf) []*pytree.Leaf {
	return l.comments[leaf]
}

// removeTrailingComma drops the last leaf, a comma, moving its comments to
// the leaf before it.
func (l *Line) removeTrailingComma() {
	comma := l.Leaves[len(l.Leaves)-1]
	l.Leaves = l.Leaves[:len(l.Leaves)-1]
	if cs, ok := l.comments[comma]; ok {
		delete(l.comments, comma)
		if len(l.Leaves) > 0 {
			last := l.Leaves[len(l.Leaves)-1]
			l.comments[last] = append(l.comments[last], cs...)
		}
	}
}

// isComplexSubscript reports whether leaf is part of a slice whose operands
// are more than plain names and numbers.
func (l *Line) isComplexSubscript(leaf *pytree.Leaf) bool {
	openLSQB := l.Brackets.openLSQB()
	if openLSQB == nil {
		return false
	}
	start := pytree.NextSibling(openLSQB)
	if n, ok := start.(*pytree.Node); ok {
		switch n.Type() {
		case pygram.Listmaker:
			return false
		case pygram.Subscriptlist:
			start = childTowards(n, leaf)
		}
	}
	if start == nil {
		return false
	}
	for n := range pytree.PreOrder(start) {
		if testDescendants[n.Type()] {
			return true
		}
	}
	return false
}

var testDescendants = setOf(
	pygram.Test,
	pygram.Lambdef,
	pygram.OrTest,
	pygram.AndTest,
	pygram.NotTest,
	pygram.Comparison,
	pygram.StarExpr,
	pygram.Expr,
	pygram.XorExpr,
	pygram.AndExpr,
	pygram.ShiftExpr,
	pygram.ArithExpr,
	pygram.Trailer,
	pygram.Term,
	pygram.Power,
)

type leafWithLength struct {
	index  int
	leaf   *pytree.Leaf
	length int
}

// enumerateWithLength yields leaves with the rendered length of each,
// including attached comments. It stops at the first multiline leaf, whose
// width cannot be measured. Lengths are computed as the sequence is
// consumed.
func (l *Line) enumerateWithLength(reversed bool) iter.Seq[leafWithLength] {
	return func(yield func(leafWithLength) bool) {
		n := len(l.Leaves)
		for k := range n {
			i := k
			if reversed {
				i = n - 1 - k
			}
			leaf := l.Leaves[i]
			if strings.Contains(leaf.Value, "\n") {
				return
			}
			length := strWidth(leaf.Prefix()) + strWidth(leaf.Value)
			for _, c := range l.CommentsAfter(leaf) {
				length += strWidth(c.Value)
			}
			if !yield(leafWithLength{i, leaf, length}) {
				return
			}
		}
	}
}

// Clone returns an empty line with the same settings.
func (l *Line) Clone() *Line {
	c := NewLine(l.Mode, l.Depth, l.InsideBrackets)
	c.ShouldExplode = l.ShouldExplode
	return c
}

// Empty reports whether the line has no leaves.
func (l *Line) Empty() bool {
	return len(l.Leaves) == 0
}

// String renders the line, ending with a newline.
func (l *Line) String() string {
	if len(l.Leaves) == 0 {
		return "\n"
	}
	var b strings.Builder
	first := l.Leaves[0]
	b.WriteString(first.Prefix())
	b.WriteString(strings.Repeat("    ", l.Depth))
	b.WriteString(first.Value)
	for _, leaf := range l.Leaves[1:] {
		b.WriteString(leaf.String())
	}
	for _, leaf := range l.Leaves {
		for _, c := range l.comments[leaf] {
			b.WriteString(c.String())
		}
	}
	b.WriteByte('\n')
	return b.String()
}

// lineToString renders l without its trailing newline.
func lineToString(l *Line) string {
	return strings.Trim(l.String(), "\n")
}

// EmptyLineTracker decides how many blank lines go between lines. It must
// see every line in order.
type EmptyLineTracker struct {
	IsPyi bool

	previousLine  *Line
	previousAfter int
	previousDefs  []int
}

// MaybeEmptyLines returns the number of blank lines to put before and after
// current. The first leaf's newlines are consumed in the process.
func (t *EmptyLineTracker) MaybeEmptyLines(current *Line) (int, int) {
	before, after := t.maybeEmptyLines(current)
	if t.previousLine == nil {
		// no blank lines at the beginning of the file
		before = 0
	} else {
		before -= t.previousAfter
	}
	t.previousAfter = after
	t.previousLine = current
	return before, after
}

func (t *EmptyLineTracker) maybeEmptyLines(current *Line) (int, int) {
	maxAllowed := 1
	if current.Depth == 0 {
		maxAllowed = 2
		if t.IsPyi {
			maxAllowed = 1
		}
	}

	before := 0
	if len(current.Leaves) > 0 {
		// Consume the first leaf's extra newlines.
		first := current.Leaves[0]
		before = min(strings.Count(first.Prefix(), "\n"), maxAllowed)
		first.SetPrefix("")
	}

	depth := current.Depth
	for len(t.previousDefs) > 0 && t.previousDefs[len(t.previousDefs)-1] >= depth {
		t.previousDefs = t.previousDefs[:len(t.previousDefs)-1]
		switch {
		case t.IsPyi && depth > 0:
			before = 0
		case t.IsPyi:
			before = 1
		case depth > 0:
			before = 1
		default:
			before = 2
		}
	}

	if current.IsDecorator() || current.IsDef() || current.IsClass() {
		return t.maybeEmptyLinesForClassOrDef(current, before)
	}

	prev := t.previousLine
	if prev != nil && prev.IsImport() && !current.IsImport() && depth == prev.Depth {
		return max(before, 1), 0
	}

	return before, 0
}

func (t *EmptyLineTracker) maybeEmptyLinesForClassOrDef(current *Line, before int) (int, int) {
	if !current.IsDecorator() {
		t.previousDefs = append(t.previousDefs, current.Depth)
	}
	prev := t.previousLine
	if prev == nil {
		// Don't insert empty lines at the start of the file.
		return 0, 0
	}

	if prev.IsDecorator() {
		return 0, 0
	}

	if prev.Depth < current.Depth && (prev.IsClass() || prev.IsDef()) {
		return 0, 0
	}

	if prev.IsComment() && prev.Depth == current.Depth && before == 0 {
		return 0, 0
	}

	var newlines int
	if t.IsPyi {
		switch {
		case prev.Depth > current.Depth:
			newlines = 1
		case current.IsClass() || prev.IsClass():
			if current.IsStubClass() && prev.IsStubClass() {
				// No blank line between classes with an empty body.
				newlines = 0
			} else {
				newlines = 1
			}
		case current.IsDef() && !prev.IsDef():
			// Blank line between a block of functions and a block of
			// non-functions.
			newlines = 1
		default:
			newlines = 0
		}
	} else {
		newlines = 2
	}
	if current.Depth > 0 && newlines > 0 {
		newlines--
	}
	return newlines, 0
}
