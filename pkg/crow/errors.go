package crow

import (
	"errors"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

// ErrNothingChanged is returned when formatting leaves the source as is.
var ErrNothingChanged = errors.New("nothing changed")

// InvalidInput is returned when the source fails to parse with every
// grammar tried.
type InvalidInput struct {
	Line int
	Col  int
	// Detail is the offending source line, or the tokenizer's complaint.
	Detail string
	// Src is the complete source, for excerpts.
	Src   string
	Inner error
}

func (e *InvalidInput) Error() string {
	return fmt.Sprintf("Cannot parse: %d:%d: %s", e.Line, e.Col, e.Detail)
}

func (e *InvalidInput) Unwrap() error {
	return e.Inner
}

var (
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	gutterStyle = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("4"))
	caretStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// FormatWithHighlighting renders the error with a source excerpt and a
// caret under the offending column.
func (e *InvalidInput) FormatWithHighlighting(filename string) string {
	lines := strings.Split(e.Src, "\n")
	if e.Line < 1 || e.Line > len(lines) {
		return e.Error()
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s\n", errorStyle.Render("Error:"), e.Error()))
	result.WriteString(fmt.Sprintf("  %s\n", gutterStyle.Render(fmt.Sprintf("--> %s:%d:%d", filename, e.Line, e.Col))))
	result.WriteString(fmt.Sprintf(" %s\n", gutterStyle.Render(padLeft("", 3)+" |")))

	startLine := max(1, e.Line-2)
	endLine := min(len(lines), e.Line+2)
	for i := startLine; i <= endLine; i++ {
		gutter := gutterStyle.Render(padLeft(fmt.Sprintf("%d", i), 3) + " |")
		result.WriteString(fmt.Sprintf(" %s %s\n", gutter, lines[i-1]))
		if i == e.Line {
			// 1 space + 3 for the line number + " | "
			padding := strings.Repeat(" ", 1+3+3+e.Col)
			result.WriteString(padding + caretStyle.Render("^") + "\n")
		}
	}
	result.WriteString(fmt.Sprintf(" %s\n", gutterStyle.Render(padLeft("", 3)+" |")))
	return result.String()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// AssertionError reports that formatted output failed a safety check.
type AssertionError struct {
	// Kind is "equivalent" or "stable".
	Kind    string
	Message string
	// Log is a file holding details for a bug report, if one was written.
	Log string
}

func (e *AssertionError) Error() string {
	if e.Log == "" {
		return e.Message
	}
	return fmt.Sprintf("%s This diff might be helpful: %s", e.Message, e.Log)
}
