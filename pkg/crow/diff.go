package crow

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/pmezard/go-difflib/difflib"
)

const diffContext = 5

// Diff returns a unified diff of a and b with five lines of context.
// Lines lacking a final newline are marked the way patch(1) expects.
func Diff(a, b, aName, bName string) string {
	aLines := linesKeepEnds(a)
	bLines := linesKeepEnds(b)

	var out strings.Builder
	writeLine := func(prefix, line string) {
		out.WriteString(prefix)
		out.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			out.WriteString("\n\\ No newline at end of file\n")
		}
	}

	m := difflib.NewMatcher(aLines, bLines)
	for i, group := range m.GetGroupedOpCodes(diffContext) {
		if i == 0 {
			fmt.Fprintf(&out, "--- %s\n+++ %s\n", aName, bName)
		}
		first, last := group[0], group[len(group)-1]
		fmt.Fprintf(&out, "@@ -%s +%s @@\n",
			unifiedRange(first.I1, last.I2),
			unifiedRange(first.J1, last.J2))
		for _, op := range group {
			if op.Tag == 'e' {
				for _, line := range aLines[op.I1:op.I2] {
					writeLine(" ", line)
				}
				continue
			}
			if op.Tag == 'r' || op.Tag == 'd' {
				for _, line := range aLines[op.I1:op.I2] {
					writeLine("-", line)
				}
			}
			if op.Tag == 'r' || op.Tag == 'i' {
				for _, line := range bLines[op.J1:op.J2] {
					writeLine("+", line)
				}
			}
		}
	}
	return out.String()
}

func unifiedRange(start, stop int) string {
	beginning := start + 1
	length := stop - start
	if length == 1 {
		return fmt.Sprintf("%d", beginning)
	}
	if length == 0 {
		beginning--
	}
	return fmt.Sprintf("%d,%d", beginning, length)
}

func linesKeepEnds(s string) []string {
	var lines []string
	for s != "" {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

var (
	diffHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	diffHunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	diffAddStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	diffRemoveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// ColorDiff highlights the lines of a unified diff.
func ColorDiff(contents string) string {
	lines := strings.Split(contents, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = diffHeaderStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = diffHunkStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = diffAddStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = diffRemoveStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
