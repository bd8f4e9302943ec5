package crow

import (
	"fmt"

	"github.com/vito/crow/pkg/pygram"
	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

// BracketMatchError is raised when a closing bracket has no opening bracket
// at the same depth. It means a line was assembled from leaves that do not
// belong together.
type BracketMatchError struct {
	Leaf  *pytree.Leaf
	Depth int
}

func (e *BracketMatchError) Error() string {
	return fmt.Sprintf("unable to match a closing bracket %q at depth %d to an opening bracket",
		e.Leaf.Value, e.Depth)
}

type bracketKey struct {
	depth   int
	closing int
}

// BracketTracker keeps track of brackets and delimiters on one line.
type BracketTracker struct {
	depth        int
	bracketMatch map[bracketKey]*pytree.Leaf
	delimiters   map[*pytree.Leaf]int
	previous     *pytree.Leaf

	forLoopDepths        []int
	lambdaArgumentDepths []int

	// invisible holds the invisible parentheses seen on the line.
	invisible []*pytree.Leaf
}

func newBracketTracker() *BracketTracker {
	return &BracketTracker{
		bracketMatch: map[bracketKey]*pytree.Leaf{},
		delimiters:   map[*pytree.Leaf]int{},
	}
}

// Mark records leaf's bracket depth and delimiter priority. Leaves must be
// marked in the order they appear on the line.
//
// All leaves receive an increased depth while they are inside brackets, and
// the for-in and lambda parameter regions count as brackets too so their
// commas never become top-level delimiters.
func (bt *BracketTracker) Mark(leaf *pytree.Leaf) error {
	if leaf.Type() == pytoken.COMMENT {
		return nil
	}

	bt.maybeDecrementAfterForLoopVariable(leaf)
	bt.maybeDecrementAfterLambdaParameters(leaf)

	if closingBrackets[leaf.Type()] {
		bt.depth--
		key := bracketKey{bt.depth, leaf.Type()}
		opening, ok := bt.bracketMatch[key]
		if !ok {
			return &BracketMatchError{Leaf: leaf, Depth: bt.depth}
		}
		delete(bt.bracketMatch, key)
		leaf.OpeningBracket = opening
		if leaf.Value == "" {
			bt.invisible = append(bt.invisible, leaf)
		}
	}

	leaf.BracketDepth = bt.depth
	if bt.depth == 0 {
		before := isSplitBeforeDelimiter(leaf, bt.previous)
		after := isSplitAfterDelimiter(leaf)
		if before > 0 && bt.previous != nil {
			bt.delimiters[bt.previous] = max(bt.delimiters[bt.previous], before)
		}
		if after > 0 {
			bt.delimiters[leaf] = max(bt.delimiters[leaf], after)
		}
	}

	if openingBrackets[leaf.Type()] {
		bt.bracketMatch[bracketKey{bt.depth, bracketPairs[leaf.Type()]}] = leaf
		bt.depth++
		if leaf.Value == "" {
			bt.invisible = append(bt.invisible, leaf)
		}
	}

	bt.previous = leaf
	bt.maybeIncrementLambdaParameters(leaf)
	bt.maybeIncrementForLoopVariable(leaf)
	return nil
}

// AnyOpenBrackets reports whether the tracker is inside a bracket pair.
func (bt *BracketTracker) AnyOpenBrackets() bool {
	return len(bt.bracketMatch) > 0
}

// MaxDelimiterPriority returns the highest priority of the delimiters not
// in exclude, or 0 when there are none.
func (bt *BracketTracker) MaxDelimiterPriority(exclude ...*pytree.Leaf) int {
	maxPriority := 0
	for leaf, p := range bt.delimiters {
		if excluded(leaf, exclude) {
			continue
		}
		maxPriority = max(maxPriority, p)
	}
	return maxPriority
}

// DelimiterCountWithPriority counts delimiters of the given priority. A zero
// priority means the highest one present.
func (bt *BracketTracker) DelimiterCountWithPriority(priority int) int {
	if len(bt.delimiters) == 0 {
		return 0
	}
	if priority == 0 {
		priority = bt.MaxDelimiterPriority()
	}
	count := 0
	for _, p := range bt.delimiters {
		if p == priority {
			count++
		}
	}
	return count
}

// delimiter returns the priority recorded for leaf, or 0.
func (bt *BracketTracker) delimiter(leaf *pytree.Leaf) int {
	return bt.delimiters[leaf]
}

func (bt *BracketTracker) openLSQB() *pytree.Leaf {
	return bt.bracketMatch[bracketKey{bt.depth - 1, pytoken.RSQB}]
}

func (bt *BracketTracker) maybeIncrementForLoopVariable(leaf *pytree.Leaf) {
	if leaf.Type() == pytoken.NAME && leaf.Value == "for" {
		bt.depth++
		bt.forLoopDepths = append(bt.forLoopDepths, bt.depth)
	}
}

func (bt *BracketTracker) maybeDecrementAfterForLoopVariable(leaf *pytree.Leaf) {
	n := len(bt.forLoopDepths)
	if n > 0 && bt.forLoopDepths[n-1] == bt.depth &&
		leaf.Type() == pytoken.NAME && leaf.Value == "in" {
		bt.depth--
		bt.forLoopDepths = bt.forLoopDepths[:n-1]
	}
}

func (bt *BracketTracker) maybeIncrementLambdaParameters(leaf *pytree.Leaf) {
	if leaf.Type() == pytoken.NAME && leaf.Value == "lambda" {
		bt.depth++
		bt.lambdaArgumentDepths = append(bt.lambdaArgumentDepths, bt.depth)
	}
}

func (bt *BracketTracker) maybeDecrementAfterLambdaParameters(leaf *pytree.Leaf) {
	n := len(bt.lambdaArgumentDepths)
	if n > 0 && bt.lambdaArgumentDepths[n-1] == bt.depth && leaf.Type() == pytoken.COLON {
		bt.depth--
		bt.lambdaArgumentDepths = bt.lambdaArgumentDepths[:n-1]
	}
}

func excluded(leaf *pytree.Leaf, exclude []*pytree.Leaf) bool {
	for _, e := range exclude {
		if e == leaf {
			return true
		}
	}
	return false
}

// maxDelimiterPriorityInAtom returns the highest delimiter priority between
// the parentheses of an atom, or 0 if node is not a parenthesized atom.
func maxDelimiterPriorityInAtom(nl pytree.NL) int {
	n, ok := nl.(*pytree.Node)
	if !ok || n.Type() != pygram.Atom || len(n.Children) < 2 {
		return 0
	}
	first, last := n.Children[0], n.Children[len(n.Children)-1]
	if first.Type() != pytoken.LPAR || last.Type() != pytoken.RPAR {
		return 0
	}

	bt := newBracketTracker()
	for _, c := range n.Children[1 : len(n.Children)-1] {
		for leaf := range pytree.Leaves(c) {
			if err := bt.Mark(leaf); err != nil {
				return 0
			}
		}
	}
	return bt.MaxDelimiterPriority()
}
