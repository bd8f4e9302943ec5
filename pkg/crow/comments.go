package crow

import (
	"strings"

	"github.com/vito/crow/pkg/pygram"
	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

// protoComment describes a comment found in a leaf's prefix.
type protoComment struct {
	typ      int    // pytoken.COMMENT or standaloneComment
	value    string // normalized comment text
	newlines int    // newlines before the comment
	consumed int    // bytes of the prefix up to and including this comment's line
}

// listComments returns the comments in prefix. Only a comment on the first
// line of a prefix trails code; everything else stands on its own line.
func listComments(prefix string, isEndmarker bool) []protoComment {
	if prefix == "" || !strings.Contains(prefix, "#") {
		return nil
	}

	var result []protoComment
	consumed := 0
	nlines := 0
	ignoredLines := 0
	for index, line := range strings.Split(prefix, "\n") {
		consumed += len(line) + 1 // the split newline
		line = strings.TrimLeft(line, " \t\f\v\r")
		if line == "" {
			nlines++
		}
		if !strings.HasPrefix(line, "#") {
			// Escaped newlines outside of a comment are not really newlines,
			// so a comment after one still trails code.
			if strings.HasSuffix(line, "\\") {
				ignoredLines++
			}
			continue
		}

		typ := standaloneComment
		if index == ignoredLines && !isEndmarker {
			typ = pytoken.COMMENT
		}
		result = append(result, protoComment{
			typ:      typ,
			value:    makeComment(line),
			newlines: nlines,
			consumed: consumed,
		})
		nlines = 0
	}
	return result
}

// makeComment normalizes a comment: trailing whitespace goes and a space
// follows the hash, except in shebangs, type comments like "#!:" and "#:".
func makeComment(content string) string {
	content = strings.TrimRight(content, " \t\f\v\r\n")
	if content == "" {
		return "#"
	}

	content = strings.TrimPrefix(content, "#")
	const nbsp = "\u00a0"
	if strings.HasPrefix(content, nbsp) && !strings.HasPrefix(strings.TrimLeft(content, " \t"+nbsp), "type:") {
		content = " " + content[len(nbsp):]
	}
	if content != "" && !strings.ContainsAny(content[:1], " !:#'%") {
		content = " " + content
	}
	return "#" + content
}

// generateComments turns the comments in nl's prefix into leaves.
func generateComments(nl pytree.NL) []*pytree.Leaf {
	var out []*pytree.Leaf
	for _, pc := range listComments(nl.Prefix(), nl.Type() == pytoken.ENDMARKER) {
		out = append(out, pytree.NewLeafWithPrefix(pc.typ, pc.value, strings.Repeat("\n", pc.newlines)))
	}
	return out
}

// normalizeFmtOff turns everything between "# fmt: off" and "# fmt: on", and
// every statement ending in "# fmt: skip", into standalone comments so they
// are reproduced verbatim.
func normalizeFmtOff(node *pytree.Node) {
	for convertOneFmtOffPair(node) {
	}
}

// convertOneFmtOffPair converts the first region it finds and reports
// whether it found one.
func convertOneFmtOffPair(node *pytree.Node) bool {
	for leaf := range pytree.Leaves(node) {
		previousConsumed := 0
		for _, comment := range listComments(leaf.Prefix(), false) {
			isOff, isSkip := fmtOff[comment.value], fmtSkip[comment.value]
			if !isOff && !isSkip {
				previousConsumed = comment.consumed
				continue
			}
			// Only standalone comments count. Without a previous leaf, or
			// after indentation, a trailing comment is standalone in
			// disguise.
			if comment.typ != standaloneComment {
				if prev := precedingLeaf(leaf); prev != nil {
					if isOff && !whitespaceTypes[prev.Type()] {
						continue
					}
					if isSkip && whitespaceTypes[prev.Type()] {
						continue
					}
				}
			}

			ignored := generateIgnoredNodes(leaf, comment)
			if len(ignored) == 0 {
				continue
			}

			first := ignored[0] // can be a container node with leaf in it
			parent := first.Parent()
			if parent == nil {
				continue
			}
			prefix := first.Prefix()
			var standalonePrefix string
			if isOff {
				first.SetPrefix(prefix[min(comment.consumed, len(prefix)):])
				standalonePrefix = prefix[:min(previousConsumed, len(prefix))] + strings.Repeat("\n", comment.newlines)
			} else {
				first.SetPrefix("")
				standalonePrefix = prefix
			}

			var hidden strings.Builder
			if isOff {
				hidden.WriteString(comment.value)
				hidden.WriteString("\n")
			}
			for _, n := range ignored {
				hidden.WriteString(n.String())
			}
			if isSkip {
				hidden.WriteString("  ")
				hidden.WriteString(comment.value)
			}
			value := strings.TrimSuffix(hidden.String(), "\n")

			firstIdx := -1
			for _, n := range ignored {
				idx := pytree.Remove(n)
				if firstIdx < 0 {
					firstIdx = idx
				}
			}
			parent.InsertChild(max(firstIdx, 0), pytree.NewLeafWithPrefix(standaloneComment, value, standalonePrefix))
			return true
		}
	}
	return false
}

// generateIgnoredNodes returns the nodes a "# fmt: off" or "# fmt: skip"
// comment in leaf's prefix hides from formatting.
func generateIgnoredNodes(leaf *pytree.Leaf, comment protoComment) []pytree.NL {
	if fmtSkip[comment.value] {
		return ignoredNodesFromFmtSkip(leaf, comment)
	}
	var out []pytree.NL
	container := containerOf(leaf)
	for container != nil && container.Type() != pytoken.ENDMARKER {
		if isFmtOn(container) {
			return out
		}
		if containsFmtOnAtColumn(container, leaf.Column) {
			// "# fmt: on" sits somewhere in the children
			for _, child := range children(container) {
				if containsFmtOnAtColumn(child, leaf.Column) {
					return out
				}
				out = append(out, child)
			}
			return out
		}
		if container.Type() == pytoken.DEDENT && pytree.NextSibling(container) == nil {
			// The block ends without "# fmt: on"; its dedent still closes it.
			return out
		}
		out = append(out, container)
		container = pytree.NextSibling(container)
	}
	return out
}

func ignoredNodesFromFmtSkip(leaf *pytree.Leaf, comment protoComment) []pytree.NL {
	comments := listComments(leaf.Prefix(), false)
	if len(comments) == 0 || comments[0].value != comment.value {
		return nil
	}
	if leaf.Type() != pytoken.NEWLINE {
		// Only a comment ending a logical line skips it.
		return nil
	}
	if prev := pytree.PrevSibling(leaf); prev != nil {
		leaf.SetPrefix("")
		siblings := []pytree.NL{prev}
		for !strings.Contains(prev.Prefix(), "\n") {
			pp := pytree.PrevSibling(prev)
			if pp == nil {
				break
			}
			prev = pp
			siblings = append([]pytree.NL{prev}, siblings...)
		}
		return siblings
	}

	p := leaf.Parent()
	if p == nil || p.Type() != pygram.Suite {
		return nil
	}
	// The comment is on the header line of a compound statement; the
	// ignored nodes are the siblings before its suite.
	leaf.SetPrefix("")
	var ignored []pytree.NL
	for sib := pytree.PrevSibling(p); sib != nil && sib.Type() != pygram.Suite; sib = pytree.PrevSibling(sib) {
		ignored = append([]pytree.NL{sib}, ignored...)
	}
	if gp := p.Parent(); gp != nil {
		if async := pytree.PrevSibling(gp); async != nil && async.Type() == pytoken.ASYNC {
			ignored = append([]pytree.NL{async}, ignored...)
		}
	}
	return ignored
}

// isFmtOn reports whether the last fmt comment in nl's prefix turns
// formatting back on.
func isFmtOn(nl pytree.NL) bool {
	on := false
	for _, c := range listComments(nl.Prefix(), false) {
		if fmtOn[c.value] {
			on = true
		} else if fmtOff[c.value] {
			on = false
		}
	}
	return on
}

// containsFmtOnAtColumn reports whether a child of nl starting at column
// turns formatting back on.
func containsFmtOnAtColumn(nl pytree.NL, column int) bool {
	for _, child := range children(nl) {
		var col int
		switch c := child.(type) {
		case *pytree.Node:
			fc, ok := firstLeafColumn(c)
			if !ok {
				continue
			}
			col = fc
		case *pytree.Leaf:
			col = c.Column
		}
		if col == column && isFmtOn(child) {
			return true
		}
	}
	return false
}

// containerOf returns leaf or its topmost ancestor that starts with leaf.
func containerOf(leaf *pytree.Leaf) pytree.NL {
	samePrefix := leaf.Prefix()
	var container pytree.NL = leaf
	for {
		parent := container.Parent()
		if parent == nil {
			break
		}
		if len(parent.Children) == 0 || parent.Children[0].Prefix() != samePrefix {
			break
		}
		if parent.Type() == pygram.FileInput {
			break
		}
		if prev := pytree.PrevSibling(parent); prev != nil && brackets[prev.Type()] {
			break
		}
		container = parent
	}
	return container
}

func children(nl pytree.NL) []pytree.NL {
	if n, ok := nl.(*pytree.Node); ok {
		return n.Children
	}
	return nil
}
