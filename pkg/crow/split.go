package crow

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/vito/crow/pkg/pygram"
	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

// ErrCannotTransform is returned by a transform that does not apply to a
// line. The line is then tried with the next transform.
var ErrCannotTransform = errors.New("cannot transform")

// ErrCannotSplit is returned by split transforms when a line cannot be
// split, or splitting it would not help.
var ErrCannotSplit = fmt.Errorf("%w: cannot split", ErrCannotTransform)

func cannotSplit(reason string) error {
	return fmt.Errorf("%w: %s", ErrCannotSplit, reason)
}

// transform turns one line into several. The name only matters for
// logging and for the second opinion taken after a right hand split.
type transform struct {
	name  string
	split func(line *Line, features FeatureSet) ([]*Line, error)
}

var (
	leftHandSplit          = transform{"lhs", leftHandSplitLine}
	delimiterSplit         = transform{"delimiter_split", dontIncreaseIndentation(delimiterSplitLine)}
	standaloneCommentSplit = transform{"standalone_comment_split", dontIncreaseIndentation(standaloneCommentSplitLine)}
)

var (
	typedargsParents = setOf(pygram.Typedargslist)
	arglistParents   = setOf(pygram.Arglist, pygram.Argument)
)

// TransformLine splits line into lines that fit mode.LineLength, as far as
// possible. If no split applies the line is returned as is.
//
// features are the target features that make splits safe, such as adding
// trailing commas after *args.
func TransformLine(line *Line, mode Mode, features FeatureSet) []*Line {
	if line.IsComment() {
		return []*Line{line}
	}
	lineStr := lineToString(line)

	var transforms []transform
	switch {
	case !line.ContainsUncollapsableTypeComments() &&
		!line.ShouldExplode &&
		line.MagicTrailingComma == nil &&
		(isLineShortEnough(line, mode.LineLength, lineStr) || line.ContainsUnsplittableTypeIgnore()) &&
		!(line.InsideBrackets && line.ContainsStandaloneComments(math.MaxInt)):
		// fits as is
	case line.IsDef():
		transforms = []transform{leftHandSplit}
	case line.InsideBrackets:
		transforms = []transform{delimiterSplit, standaloneCommentSplit, rhs(mode)}
	default:
		transforms = []transform{rhs(mode)}
	}

	for _, t := range transforms {
		result, err := runTransformer(line, t, mode, features, lineStr)
		if err != nil {
			slog.Debug("transform failed", "transform", t.name, "line", line, "error", err)
			continue
		}
		return result
	}
	return []*Line{line}
}

func runTransformer(line *Line, t transform, mode Mode, features FeatureSet, lineStr string) ([]*Line, error) {
	if lineStr == "" {
		lineStr = lineToString(line)
	}
	transformed, err := t.split(line, features)
	if err != nil {
		return nil, err
	}
	var result []*Line
	for _, tl := range transformed {
		if lineToString(tl) == lineStr {
			return nil, fmt.Errorf("%w: line transformer returned an unchanged result", ErrCannotTransform)
		}
		result = append(result, TransformLine(tl, mode, features)...)
	}

	if t.name != "rhs" ||
		len(line.Brackets.invisible) == 0 ||
		slices.ContainsFunc(line.Brackets.invisible, func(b *pytree.Leaf) bool { return b.Value != "" }) ||
		line.ContainsMultilineStrings() ||
		result[0].ContainsUncollapsableTypeComments() ||
		result[0].ContainsUnsplittableTypeIgnore() ||
		isLineShortEnough(result[0], mode.LineLength, "") ||
		slices.ContainsFunc(line.Leaves, func(l *pytree.Leaf) bool { return l.Parent() == nil }) {
		return result, nil
	}

	// The split kept optional parentheses invisible and the first line is
	// still too long. See whether making them visible does better.
	lineCopy := line.Clone()
	appendLeaves(lineCopy, line, line.Leaves, false)
	secondOpinion, err := runTransformer(lineCopy, t, mode, features.with(forceOptionalParentheses), lineStr)
	if err != nil {
		return result, nil
	}
	for _, l := range secondOpinion {
		if !isLineShortEnough(l, mode.LineLength, "") {
			return result, nil
		}
	}
	return secondOpinion, nil
}

// appendLeaves appends fresh copies of leaves to newLine, replacing the
// originals in the tree, along with their trailing comments.
func appendLeaves(newLine, oldLine *Line, leaves []*pytree.Leaf, preformatted bool) {
	for _, old := range leaves {
		leaf := pytree.NewLeaf(old.Type(), old.Value)
		replaceChild(old, leaf)
		newLine.Append(leaf, preformatted)
		for _, comment := range oldLine.CommentsAfter(old) {
			newLine.Append(comment, true)
		}
	}
}

func replaceChild(old, nw pytree.NL) {
	parent := old.Parent()
	if parent == nil {
		return
	}
	if idx := pytree.Remove(old); idx >= 0 {
		parent.InsertChild(idx, nw)
	}
}

// rhs splits on the last opening bracket, trying to leave trailers on the
// head line first as long as the head fits.
func rhs(mode Mode) transform {
	return transform{"rhs", func(line *Line, features FeatureSet) ([]*Line, error) {
		for omit := range generateTrailersToOmit(line, mode.LineLength) {
			lines, err := rightHandSplit(line, mode.LineLength, features, omit)
			if err != nil {
				return nil, err
			}
			if isLineShortEnough(lines[0], mode.LineLength, "") {
				return lines, nil
			}
		}
		// All splits failed or line is too short.
		return rightHandSplit(line, mode.LineLength, features, nil)
	}}
}

// isLineShortEnough reports whether line renders to a single line that
// fits lineLength. lineStr may carry the rendering if it is known. A line
// with standalone comments never fits, since they need lines of their own.
func isLineShortEnough(line *Line, lineLength int, lineStr string) bool {
	if lineStr == "" {
		lineStr = lineToString(line)
	}
	return strWidth(lineStr) <= lineLength &&
		!strings.Contains(lineStr, "\n") &&
		!line.ContainsStandaloneComments(math.MaxInt)
}

// leftHandSplitLine splits at the first opening bracket: the head ends with
// it, the body holds its contents and the tail starts at its closing
// bracket. Only definitions get this; expressions look wrong with it.
func leftHandSplitLine(line *Line, _ FeatureSet) ([]*Line, error) {
	var head, body, tail []*pytree.Leaf
	current := &head
	var matching *pytree.Leaf
	for _, leaf := range line.Leaves {
		if current == &body && closingBrackets[leaf.Type()] && leaf.OpeningBracket == matching {
			if len(body) > 0 {
				current = &tail
			} else {
				current = &head
			}
		}
		*current = append(*current, leaf)
		if current == &head && openingBrackets[leaf.Type()] {
			matching = leaf
			current = &body
		}
	}
	if matching == nil {
		return nil, cannotSplit("no brackets found")
	}

	headLine := bracketSplitBuildLine(head, line, matching, false)
	bodyLine := bracketSplitBuildLine(body, line, matching, true)
	tailLine := bracketSplitBuildLine(tail, line, matching, false)
	if err := bracketSplitSucceededOrRaise(headLine, bodyLine, tailLine); err != nil {
		return nil, err
	}
	return nonEmpty(headLine, bodyLine, tailLine), nil
}

// rightHandSplit splits at the last opening bracket not closed by a
// bracket in omit.
//
// When that bracket is an invisible parenthesis the split is retried
// further left first, since the parentheses are optional.
func rightHandSplit(line *Line, lineLength int, features FeatureSet, omit map[*pytree.Leaf]bool) ([]*Line, error) {
	var tail, body, head []*pytree.Leaf
	current := &tail
	var opening, closing *pytree.Leaf
	for i := len(line.Leaves) - 1; i >= 0; i-- {
		leaf := line.Leaves[i]
		if current == &body && leaf == opening {
			if len(body) > 0 {
				current = &head
			} else {
				current = &tail
			}
		}
		*current = append(*current, leaf)
		if current == &tail && closingBrackets[leaf.Type()] && !omit[leaf] {
			opening = leaf.OpeningBracket
			closing = leaf
			current = &body
		}
	}
	if opening == nil || closing == nil || len(head) == 0 {
		// Unmatched brackets, or none at all.
		return nil, cannotSplit("no brackets found")
	}
	slices.Reverse(tail)
	slices.Reverse(body)
	slices.Reverse(head)

	headLine := bracketSplitBuildLine(head, line, opening, false)
	bodyLine := bracketSplitBuildLine(body, line, opening, true)
	tailLine := bracketSplitBuildLine(tail, line, opening, false)
	if err := bracketSplitSucceededOrRaise(headLine, bodyLine, tailLine); err != nil {
		return nil, err
	}

	if !features.Has(forceOptionalParentheses) &&
		opening.Type() == pytoken.LPAR && opening.Value == "" &&
		closing.Type() == pytoken.RPAR && closing.Value == "" &&
		!line.IsImport() &&
		!bodyLine.ShouldExplode &&
		!bodyLine.ContainsStandaloneComments(0) &&
		canOmitInvisibleParens(bodyLine, lineLength) {
		omitMore := maps.Clone(omit)
		if omitMore == nil {
			omitMore = map[*pytree.Leaf]bool{}
		}
		omitMore[closing] = true
		lines, err := rightHandSplit(line, lineLength, features, omitMore)
		if err == nil {
			return lines, nil
		}
		if !canBeSplit(bodyLine) && !isLineShortEnough(bodyLine, lineLength, "") {
			return nil, cannotSplit("splitting failed after omitting optional parentheses")
		}
	}

	ensureVisible(opening)
	ensureVisible(closing)
	return nonEmpty(headLine, bodyLine, tailLine), nil
}

func nonEmpty(lines ...*Line) []*Line {
	var out []*Line
	for _, l := range lines {
		if !l.Empty() {
			out = append(out, l)
		}
	}
	return out
}

// bracketSplitSucceededOrRaise rejects splits with an empty body unless the
// tail is long enough to be worth the extra lines.
func bracketSplitSucceededOrRaise(head, body, tail *Line) error {
	tailLen := strWidth(strings.TrimSpace(tail.String()))
	if body.Empty() {
		if tailLen == 0 {
			return cannotSplit("splitting brackets produced the same line")
		}
		if tailLen < 3 {
			return cannotSplit(fmt.Sprintf("splitting brackets on an empty body to save %d characters is not worth it", tailLen))
		}
	}
	return nil
}

// bracketSplitBuildLine builds one of the lines of a bracket split. A body
// line is indented one level deeper and may gain a trailing comma.
func bracketSplitBuildLine(leaves []*pytree.Leaf, original *Line, opening *pytree.Leaf, isBody bool) *Line {
	result := NewLine(original.Mode, original.Depth, false)
	if isBody {
		result.InsideBrackets = true
		result.Depth++
		if len(leaves) > 0 {
			// The body is on a new indentation level.
			normalizePrefix(leaves[0], true)
			// Only a parameter list may gain a comma; in a return
			// annotation it would make a tuple.
			noCommas := original.IsDef() && opening.Value != "" &&
				opening.Parent() != nil && opening.Parent().Type() == pygram.Parameters &&
				!slices.ContainsFunc(leaves, func(l *pytree.Leaf) bool { return l.Type() == pytoken.COMMA })
			if original.IsImport() || noCommas {
				for i := len(leaves) - 1; i >= 0; i-- {
					if leaves[i].Type() == standaloneComment {
						continue
					}
					if leaves[i].Type() != pytoken.COMMA {
						leaves = slices.Insert(slices.Clone(leaves), i+1, pytree.NewLeaf(pytoken.COMMA, ","))
					}
					break
				}
			}
		}
	}

	for _, leaf := range leaves {
		result.Append(leaf, true)
		for _, comment := range original.CommentsAfter(leaf) {
			result.Append(comment, true)
		}
	}
	if isBody && shouldExplode(result, opening) {
		result.ShouldExplode = true
	}
	return result
}

// shouldExplode reports whether the body of a bracket split should get
// one element per line right away: collection literals and imports with
// commas at the top level.
func shouldExplode(line *Line, opening *pytree.Leaf) bool {
	if opening.Parent() == nil || !strings.Contains("[{(", opening.Value) {
		return false
	}
	if len(line.Leaves) == 0 {
		return false
	}
	trailingComma := false
	var exclude []*pytree.Leaf
	if last := line.Leaves[len(line.Leaves)-1]; last.Type() == pytoken.COMMA {
		trailingComma = true
		exclude = append(exclude, last)
	}
	if line.Brackets.MaxDelimiterPriority(exclude...) != commaPriority {
		return false
	}
	pt := opening.Parent().Type()
	return trailingComma || pt == pygram.Atom || pt == pygram.ImportFrom
}

// dontIncreaseIndentation drops the leading whitespace of the first leaf
// of every line a split produces, since those lines stay at the same
// depth.
func dontIncreaseIndentation(split func(*Line, FeatureSet) ([]*Line, error)) func(*Line, FeatureSet) ([]*Line, error) {
	return func(line *Line, features FeatureSet) ([]*Line, error) {
		lines, err := split(line, features)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			normalizePrefix(l.Leaves[0], true)
		}
		return lines, nil
	}
}

// delimiterSplitLine puts each run of leaves between the highest priority
// delimiters on its own line. A trailing comma is added when splitting at
// commas, if the target versions allow it.
func delimiterSplitLine(line *Line, features FeatureSet) ([]*Line, error) {
	if len(line.Leaves) == 0 {
		return nil, cannotSplit("line empty")
	}
	lastLeaf := line.Leaves[len(line.Leaves)-1]

	bt := line.Brackets
	delimiter := bt.MaxDelimiterPriority(lastLeaf)
	if delimiter == 0 {
		return nil, cannotSplit("no delimiters found")
	}
	if delimiter == dotPriority && bt.DelimiterCountWithPriority(delimiter) == 1 {
		return nil, cannotSplit("splitting a single attribute from its parent looks wrong")
	}

	var result []*Line
	current := NewLine(line.Mode, line.Depth, line.InsideBrackets)
	appendToLine := func(leaf *pytree.Leaf) {
		if err := current.AppendSafe(leaf, true); err != nil {
			result = append(result, current)
			current = NewLine(line.Mode, line.Depth, line.InsideBrackets)
			current.Append(leaf, false)
		}
	}

	lowestDepth := math.MaxInt
	trailingCommaSafe := true
	for _, leaf := range line.Leaves {
		appendToLine(leaf)
		for _, comment := range line.CommentsAfter(leaf) {
			appendToLine(comment)
		}

		lowestDepth = min(leaf.BracketDepth, lowestDepth)
		if leaf.BracketDepth == lowestDepth {
			if isVararg(leaf, typedargsParents) {
				trailingCommaSafe = trailingCommaSafe && features.Has(TrailingCommaInDef)
			} else if isVararg(leaf, arglistParents) {
				trailingCommaSafe = trailingCommaSafe && features.Has(TrailingCommaInCall)
			}
		}

		if bt.delimiter(leaf) == delimiter {
			result = append(result, current)
			current = NewLine(line.Mode, line.Depth, line.InsideBrackets)
		}
	}
	if !current.Empty() {
		last := current.Leaves[len(current.Leaves)-1]
		if trailingCommaSafe && delimiter == commaPriority &&
			last.Type() != pytoken.COMMA && last.Type() != standaloneComment {
			current.Append(pytree.NewLeaf(pytoken.COMMA, ","), false)
		}
		result = append(result, current)
	}
	return result, nil
}

// standaloneCommentSplitLine splits a line at its standalone comments.
func standaloneCommentSplitLine(line *Line, _ FeatureSet) ([]*Line, error) {
	if !line.ContainsStandaloneComments(0) {
		return nil, cannotSplit("line does not have any standalone comments")
	}

	var result []*Line
	current := NewLine(line.Mode, line.Depth, line.InsideBrackets)
	appendToLine := func(leaf *pytree.Leaf) {
		if err := current.AppendSafe(leaf, true); err != nil {
			result = append(result, current)
			current = NewLine(line.Mode, line.Depth, line.InsideBrackets)
			current.Append(leaf, false)
		}
	}
	for _, leaf := range line.Leaves {
		appendToLine(leaf)
		for _, comment := range line.CommentsAfter(leaf) {
			appendToLine(comment)
		}
	}
	if !current.Empty() {
		result = append(result, current)
	}
	return result, nil
}

// generateTrailersToOmit yields sets of closing brackets to skip over in
// right hand splits, starting with none and growing by one trailer at a
// time from the end of the line, for as long as the omitted part fits.
func generateTrailersToOmit(line *Line, lineLength int) iter.Seq[map[*pytree.Leaf]bool] {
	return func(yield func(map[*pytree.Leaf]bool) bool) {
		omit := map[*pytree.Leaf]bool{}
		if line.MagicTrailingComma == nil {
			if !yield(maps.Clone(omit)) {
				return
			}
		}

		length := 4 * line.Depth
		var opening, closing *pytree.Leaf
		inner := map[*pytree.Leaf]bool{}
		for lw := range line.enumerateWithLength(true) {
			length += lw.length
			if length > lineLength {
				return
			}

			leaf := lw.leaf
			hasInlineComment := lw.length > strWidth(leaf.Prefix())+strWidth(leaf.Value)
			if leaf.Type() == standaloneComment || hasInlineComment {
				// Trailers holding comments are never left on the head line.
				return
			}
			if opening != nil {
				if leaf == opening {
					opening = nil
				} else if closingBrackets[leaf.Type()] {
					inner[leaf] = true
				}
				continue
			}
			if !closingBrackets[leaf.Type()] {
				continue
			}

			var prev *pytree.Leaf
			if lw.index > 0 {
				prev = line.Leaves[lw.index-1]
			}
			if prev != nil && openingBrackets[prev.Type()] {
				inner[leaf] = true
				continue
			}

			if closing != nil {
				omit[closing] = true
				maps.Copy(omit, inner)
				clear(inner)
				if !yield(maps.Clone(omit)) {
					return
				}
			}

			if prev != nil && prev.Type() == pytoken.COMMA && leaf.OpeningBracket != nil &&
				!isVararg(prev, varargsParents) {
				// Bracket pairs with trailing commas have to explode.
				return
			}

			if leaf.Value != "" {
				opening = leaf.OpeningBracket
				closing = leaf
			}
		}
	}
}

// canOmitInvisibleParens reports whether the invisible parentheses around
// line, the body of a right hand split, can stay invisible.
func canOmitInvisibleParens(line *Line, lineLength int) bool {
	bt := line.Brackets
	if len(bt.delimiters) == 0 {
		// Without delimiters the parentheses are useless.
		return true
	}

	maxPriority := bt.MaxDelimiterPriority()
	if bt.DelimiterCountWithPriority(maxPriority) > 1 {
		return false
	}
	if maxPriority == dotPriority {
		// A single stranded method call doesn't need them.
		return true
	}
	if len(line.Leaves) < 2 {
		return false
	}

	first, second := line.Leaves[0], line.Leaves[1]
	if openingBrackets[first.Type()] && !closingBrackets[second.Type()] {
		if canOmitOpeningParen(line, first, lineLength) {
			return true
		}
		// The parentheses around the right hand side may still go.
	}

	penultimate, last := line.Leaves[len(line.Leaves)-2], line.Leaves[len(line.Leaves)-1]
	if last.Type() == pytoken.RPAR || last.Type() == pytoken.RBRACE ||
		// subscripts look weird when split
		(last.Type() == pytoken.RSQB && last.Parent() != nil && last.Parent().Type() != pygram.Trailer) {
		if openingBrackets[penultimate.Type()] {
			// Empty brackets would fail a split.
			return false
		}
		if isMultilineString(first) {
			// Otherwise the split could happen at the closing bracket
			// of the string's trailer.
			return true
		}

		length := 4 * line.Depth
		seenOtherBrackets := false
		for lw := range line.enumerateWithLength(false) {
			length += lw.length
			if lw.leaf == last.OpeningBracket {
				if seenOtherBrackets || length <= lineLength {
					return true
				}
			} else if openingBrackets[lw.leaf.Type()] {
				// There are brackets we can further split on.
				seenOtherBrackets = true
			}
		}
	}
	return false
}

func canOmitOpeningParen(line *Line, first *pytree.Leaf, lineLength int) bool {
	remainder := false
	length := 4 * line.Depth
	lastIndex := len(line.Leaves) - 1
	for lw := range line.enumerateWithLength(false) {
		lastIndex = lw.index
		if closingBrackets[lw.leaf.Type()] && lw.leaf.OpeningBracket == first {
			remainder = true
		}
		if remainder {
			length += lw.length
			if length > lineLength {
				return false
			}
			if openingBrackets[lw.leaf.Type()] {
				// There are brackets we can further split on.
				remainder = false
			}
		}
	}
	// The whole line was checked and the length wasn't exceeded.
	return lastIndex == len(line.Leaves)-1
}

// canBeSplit reports false if line certainly cannot be split: a string
// followed by a chain of attribute accesses and calls.
func canBeSplit(line *Line) bool {
	leaves := line.Leaves
	if len(leaves) < 2 {
		return false
	}
	if leaves[0].Type() != pytoken.STRING || leaves[1].Type() != pytoken.DOT {
		return true
	}

	callCount, dotCount := 0, 0
	next := leaves[len(leaves)-1]
	for i := len(leaves) - 2; i >= 0; i-- {
		leaf := leaves[i]
		switch {
		case openingBrackets[leaf.Type()]:
			if !closingBrackets[next.Type()] {
				return false
			}
			callCount++
		case leaf.Type() == pytoken.DOT:
			dotCount++
		case leaf.Type() == pytoken.NAME:
			if next.Type() != pytoken.DOT && !openingBrackets[next.Type()] {
				return false
			}
		case !closingBrackets[leaf.Type()]:
			return false
		}
		if dotCount > 1 && callCount > 1 {
			return false
		}
		next = leaf
	}
	return true
}
