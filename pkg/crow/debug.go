package crow

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/kr/pretty"
	"github.com/vito/crow/pkg/pygram"
	"github.com/vito/crow/pkg/pytree"
)

var (
	debugNodeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	debugCloseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	debugLeafStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	debugPrefixStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	debugValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

// DebugTree writes an indented dump of the tree to w: one line per node,
// closed by a /name line, and one line per leaf with its prefix and value.
func DebugTree(w io.Writer, nl pytree.NL) error {
	return debugTree(w, nl, 0)
}

func debugTree(w io.Writer, nl pytree.NL, depth int) error {
	indent := strings.Repeat("  ", depth)
	name := pygram.TypeName(nl.Type())

	switch n := nl.(type) {
	case *pytree.Node:
		if _, err := fmt.Fprintln(w, indent+debugNodeStyle.Render(name)); err != nil {
			return err
		}
		for _, child := range n.Children {
			if err := debugTree(w, child, depth+1); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintln(w, indent+debugCloseStyle.Render("/"+name))
		return err
	case *pytree.Leaf:
		line := indent + debugLeafStyle.Render(name)
		if n.Prefix() != "" {
			line += " " + debugPrefixStyle.Render(fmt.Sprintf("%q", n.Prefix()))
		}
		line += " " + debugValueStyle.Render(fmt.Sprintf("%q", n.Value))
		_, err := fmt.Fprintln(w, line)
		return err
	}
	return nil
}

type debugLeaf struct {
	Type     string
	Value    string
	Prefix   string
	Depth    int
	Comments []string
}

type debugLine struct {
	Depth              int
	InsideBrackets     bool
	ShouldExplode      bool
	MagicTrailingComma bool
	Leaves             []debugLeaf
}

// DebugLine renders the structure of a line, leaf by leaf.
func DebugLine(l *Line) string {
	dl := debugLine{
		Depth:              l.Depth,
		InsideBrackets:     l.InsideBrackets,
		ShouldExplode:      l.ShouldExplode,
		MagicTrailingComma: l.MagicTrailingComma != nil,
	}
	for _, leaf := range l.Leaves {
		var comments []string
		for _, c := range l.comments[leaf] {
			comments = append(comments, c.Value)
		}
		dl.Leaves = append(dl.Leaves, debugLeaf{
			Type:     pygram.TypeName(leaf.Type()),
			Value:    leaf.Value,
			Prefix:   leaf.Prefix(),
			Depth:    leaf.BracketDepth,
			Comments: comments,
		})
	}
	return fmt.Sprintf("%# v", pretty.Formatter(dl))
}

// LogValue logs the line as its text along with its structure.
func (l *Line) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("text", lineToString(l)),
		slog.String("structure", DebugLine(l)),
	)
}
