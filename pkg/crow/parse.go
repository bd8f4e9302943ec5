package crow

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/vito/crow/pkg/pgen"
	"github.com/vito/crow/pkg/pygram"
	"github.com/vito/crow/pkg/pytoken"
	"github.com/vito/crow/pkg/pytree"
)

// ErrInvalidUTF8 is wrapped by the *InvalidInput returned for source that
// is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("source is not valid UTF-8")

// Parse builds a syntax tree for src, trying each grammar in turn. If none
// of them accepts the source, the first grammar's error is returned as an
// *InvalidInput.
func Parse(src string, grammars []*pgen.Grammar) (*pytree.Node, error) {
	if err := checkUTF8(src); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}

	var firstErr error
	for _, g := range grammars {
		result, err := (&pgen.Driver{Grammar: g}).ParseString(src)
		if err != nil {
			slog.Debug("grammar rejected source", "async_keywords", g.AsyncKeywords, "error", err)
			if firstErr == nil {
				firstErr = invalidInput(src, err)
			}
			continue
		}

		root, ok := result.(*pytree.Node)
		if !ok {
			root = pytree.NewNode(pygram.FileInput, result)
		}
		flattenFStrings(root)
		return root, nil
	}
	if firstErr == nil {
		firstErr = errors.New("no grammars to parse with")
	}
	return nil, firstErr
}

// checkUTF8 locates the first byte of src that is not valid UTF-8. Such
// bytes would otherwise be rewritten as U+FFFD.
func checkUTF8(src string) error {
	if utf8.ValidString(src) {
		return nil
	}
	line, col := 1, 0
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRuneInString(src[i:])
		if r == utf8.RuneError && size == 1 {
			return &InvalidInput{
				Line:   line,
				Col:    col,
				Detail: fmt.Sprintf("invalid UTF-8 byte %#x", src[i]),
				Src:    src,
				Inner:  ErrInvalidUTF8,
			}
		}
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
		i += size
	}
	return nil
}

func invalidInput(src string, err error) error {
	var pe *pgen.ParseError
	var te *pytoken.TokenError
	switch {
	case errors.As(err, &pe):
		detail := "<line number missing in source>"
		lines := splitLines(src)
		if pe.Start.Line >= 1 && pe.Start.Line <= len(lines) {
			detail = lines[pe.Start.Line-1]
		}
		return &InvalidInput{Line: pe.Start.Line, Col: pe.Start.Column, Detail: detail, Src: src, Inner: err}
	case errors.As(err, &te):
		return &InvalidInput{Line: te.Pos.Line, Col: te.Pos.Column, Detail: te.Msg, Src: src, Inner: err}
	default:
		return err
	}
}

// flattenFStrings replaces every f-string node with a single STRING leaf
// holding its source text, so the formatter treats it like any other
// string literal.
func flattenFStrings(nl pytree.NL) {
	n, ok := nl.(*pytree.Node)
	if !ok {
		return
	}
	if n.Type() != pygram.Fstring {
		for _, child := range append([]pytree.NL(nil), n.Children...) {
			flattenFStrings(child)
		}
		return
	}
	prefix := n.Prefix()
	n.SetPrefix("")
	leaf := pytree.NewLeafWithPrefix(pytoken.STRING, n.String(), prefix)
	if first := pytree.FirstLeaf(n); first != nil {
		leaf.Lineno = first.Lineno
		leaf.Column = first.Column
	}
	pytree.Replace(n, leaf)
}

// FeaturesUsed returns the version-gated syntax features used in the tree.
func FeaturesUsed(node *pytree.Node) FeatureSet {
	fs := FeatureSet{}
	for n := range pytree.PreOrder(node) {
		switch n.Type() {
		case pytoken.STRING:
			head := leafValue(n)
			if len(head) > 2 {
				head = head[:2]
			}
			switch head {
			case `f"`, `F"`, "f'", "F'", "rf", "fr", "RF", "FR":
				fs[FStrings] = true
			}
		case pytoken.NUMBER:
			if strings.Contains(leafValue(n), "_") {
				fs[NumericUnderscores] = true
			}
		case pytoken.SLASH:
			if pt := parentType(n); pt == pygram.Typedargslist || pt == pygram.Arglist {
				fs[PosOnlyArguments] = true
			}
		case pytoken.COLONEQUAL:
			fs[AssignmentExpressions] = true
		case pygram.Typedargslist, pygram.Arglist:
			kids := children(n)
			if len(kids) == 0 || kids[len(kids)-1].Type() != pytoken.COMMA {
				continue
			}
			feature := TrailingCommaInCall
			if n.Type() == pygram.Typedargslist {
				feature = TrailingCommaInDef
			}
			for _, ch := range kids {
				if stars[ch.Type()] {
					fs[feature] = true
				}
				if ch.Type() == pygram.Argument {
					for _, argch := range children(ch) {
						if stars[argch.Type()] {
							fs[feature] = true
						}
					}
				}
			}
		}
	}
	return fs
}

// DetectTargetVersions returns the target versions that support every
// feature used in the tree.
func DetectTargetVersions(node *pytree.Node) []TargetVersion {
	used := FeaturesUsed(node)
	var versions []TargetVersion
	for _, v := range AllTargetVersions {
		if used.subsetOf(VersionToFeatures[v]) {
			versions = append(versions, v)
		}
	}
	return versions
}

// FutureImports returns the names imported from __future__ at the top of
// the module, after an optional docstring.
func FutureImports(node *pytree.Node) map[string]bool {
	imports := map[string]bool{}
	for _, child := range node.Children {
		if child.Type() != pygram.SimpleStmt {
			break
		}
		kids := children(child)
		first := kids[0]
		if _, ok := first.(*pytree.Leaf); ok {
			// keep looking past a docstring
			if len(kids) == 2 && first.Type() == pytoken.STRING && kids[1].Type() == pytoken.NEWLINE {
				continue
			}
			break
		}
		if first.Type() != pygram.ImportFrom {
			break
		}
		parts := children(first)
		if len(parts) < 4 || !isLeaf(parts[1], pytoken.NAME, "__future__") {
			break
		}
		importedNames(parts[3:], imports)
	}
	return imports
}

func importedNames(nodes []pytree.NL, into map[string]bool) {
	for _, child := range nodes {
		switch child.Type() {
		case pytoken.NAME:
			into[leafValue(child)] = true
		case pygram.ImportAsName:
			if orig := children(child); len(orig) > 0 && orig[0].Type() == pytoken.NAME {
				into[leafValue(orig[0])] = true
			}
		case pygram.ImportAsNames:
			importedNames(children(child), into)
		}
	}
}
