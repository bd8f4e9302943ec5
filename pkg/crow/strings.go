package crow

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/vito/crow/pkg/pytree"
)

// strWidth is the length of s as Python counts it, in code points.
func strWidth(s string) int {
	return utf8.RuneCountInString(s)
}

// stringPrefix splits a string literal into its prefix characters and the
// quoted remainder.
func stringPrefix(s string) (string, string) {
	rest := strings.TrimLeft(s, stringPrefixChars)
	return s[:len(s)-len(rest)], rest
}

// normalizeStringPrefix lowercases string prefix characters, dropping "u"
// when removeU is set.
func normalizeStringPrefix(leaf *pytree.Leaf, removeU bool) {
	prefix, rest := stringPrefix(leaf.Value)
	newPrefix := strings.NewReplacer("F", "f", "B", "b", "U", "u").Replace(prefix)
	if removeU {
		newPrefix = strings.ReplaceAll(newPrefix, "u", "")
	}
	leaf.Value = newPrefix + rest
}

type quoteRegexps struct {
	unescapedNew *regexp.Regexp
	escapedNew   *regexp.Regexp
	escapedOrig  *regexp.Regexp
}

func newQuoteRegexps(origQuote, newQuote string) quoteRegexps {
	return quoteRegexps{
		unescapedNew: regexp.MustCompile(`(([^\\]|^)(\\\\)*)` + newQuote),
		escapedNew:   regexp.MustCompile(`([^\\]|^)\\((?:\\\\)*)` + newQuote),
		escapedOrig:  regexp.MustCompile(`([^\\]|^)\\((?:\\\\)*)` + origQuote),
	}
}

var (
	singleToDouble = newQuoteRegexps(`'`, `"`)
	doubleToSingle = newQuoteRegexps(`"`, `'`)
	tripleToDouble = newQuoteRegexps(`'''`, `"""`)

	// Fields may sit next to each other, so the braces around them are
	// only looked at, never consumed.
	fstringExpr = regexp2.MustCompile(`(?:(?<!\{)|^)\{([^{].*?)\}(?:(?!\})|$)`, regexp2.None)
)

// subTwice applies re twice, to catch overlapping matches.
func subTwice(re *regexp.Regexp, repl, s string) string {
	return re.ReplaceAllString(re.ReplaceAllString(s, repl), repl)
}

// fstringExprHasBackslash reports whether an expression field of the
// f-string body contains a backslash.
func fstringExprHasBackslash(body string) bool {
	m, err := fstringExpr.FindStringMatch(body)
	for err == nil && m != nil {
		if strings.Contains(m.GroupByNumber(1).String(), `\`) {
			return true
		}
		m, err = fstringExpr.FindNextMatch(m)
	}
	return false
}

// normalizeStringQuotes prefers double quotes, unless that would mean more
// escaping. Backslashes are added or removed as needed; f-string
// expressions are left alone.
func normalizeStringQuotes(leaf *pytree.Leaf) {
	value := strings.TrimLeft(leaf.Value, stringPrefixChars)
	if strings.HasPrefix(value, `"""`) {
		return
	}

	var origQuote, newQuote string
	var res quoteRegexps
	switch {
	case strings.HasPrefix(value, "'''"):
		origQuote, newQuote, res = "'''", `"""`, tripleToDouble
	case strings.HasPrefix(value, `"`):
		origQuote, newQuote, res = `"`, "'", doubleToSingle
	default:
		origQuote, newQuote, res = "'", `"`, singleToDouble
	}

	firstQuotePos := strings.Index(leaf.Value, origQuote)
	if firstQuotePos == -1 {
		return
	}
	prefix := leaf.Value[:firstQuotePos]
	if len(leaf.Value) < firstQuotePos+2*len(origQuote) {
		return
	}
	body := leaf.Value[firstQuotePos+len(origQuote) : len(leaf.Value)-len(origQuote)]

	var newBody string
	if strings.ContainsAny(prefix, "rR") {
		if res.unescapedNew.MatchString(body) {
			// There's at least one unescaped new quote in this raw string,
			// so converting is impossible.
			return
		}
		// Do not introduce or remove backslashes in raw strings.
		newBody = body
	} else {
		// remove unnecessary escapes
		newBody = subTwice(res.escapedNew, "${1}${2}"+newQuote, body)
		if body != newBody {
			// Consider the string without unnecessary escapes as the original.
			body = newBody
			leaf.Value = prefix + origQuote + body + origQuote
		}
		newBody = subTwice(res.escapedOrig, "${1}${2}"+origQuote, newBody)
		newBody = subTwice(res.unescapedNew, `${1}\`+newQuote, newBody)
	}

	if strings.ContainsAny(prefix, "fF") {
		if fstringExprHasBackslash(newBody) {
			// Do not introduce backslashes in interpolated expressions.
			return
		}
	}

	if newQuote == `"""` && strings.HasSuffix(newBody, `"`) {
		newBody = newBody[:len(newBody)-1] + `\"`
	}
	origEscapes := strings.Count(body, `\`)
	newEscapes := strings.Count(newBody, `\`)
	if newEscapes > origEscapes {
		return // Do not introduce more escaping
	}
	if newEscapes == origEscapes && origQuote == `"` {
		return // Prefer double quotes
	}
	leaf.Value = prefix + newQuote + newBody + newQuote
}

// normalizeNumericLiteral lowercases everything in a number except hex
// digits, which go uppercase, and the Python 2 long suffix "L".
func normalizeNumericLiteral(leaf *pytree.Leaf) {
	text := strings.ToLower(leaf.Value)
	switch {
	case strings.HasPrefix(text, "0o"), strings.HasPrefix(text, "0b"):
		// Leave octal and binary literals alone.
	case strings.HasPrefix(text, "0x"):
		text = "0x" + strings.ToUpper(text[2:])
	case strings.Contains(text, "e"):
		before, after, _ := strings.Cut(text, "e")
		sign := ""
		if strings.HasPrefix(after, "-") {
			after = after[1:]
			sign = "-"
		} else if strings.HasPrefix(after, "+") {
			after = after[1:]
		}
		text = formatFloatOrInt(before) + "e" + sign + after
	case strings.HasSuffix(text, "j"):
		text = formatFloatOrInt(text[:len(text)-1]) + "j"
	case strings.HasSuffix(text, "l"):
		// "l" looks too much like "1".
		text = formatFloatOrInt(text[:len(text)-1]) + "L"
	default:
		text = formatFloatOrInt(text)
	}
	leaf.Value = text
}

// formatFloatOrInt pads a bare decimal point with zeros: "1." becomes "1.0".
func formatFloatOrInt(text string) string {
	before, after, ok := strings.Cut(text, ".")
	if !ok {
		return text
	}
	if before == "" {
		before = "0"
	}
	if after == "" {
		after = "0"
	}
	return before + "." + after
}

var leadingTabs = regexp.MustCompile(`^\s*\t+\s*(\S)`)

// linesWithLeadingTabsExpanded splits s into lines, expanding tabs within
// each line's indentation.
func linesWithLeadingTabsExpanded(s string) []string {
	var lines []string
	for _, line := range splitLines(s) {
		if m := leadingTabs.FindStringSubmatchIndex(line); m != nil {
			idx := m[2]
			lines = append(lines, expandTabs(line[:idx])+line[idx:])
		} else {
			lines = append(lines, line)
		}
	}
	return lines
}

// fixDocstring re-indents a docstring body to prefix, following the
// trimming algorithm of PEP 257.
func fixDocstring(docstring, prefix string) string {
	if docstring == "" {
		return docstring
	}
	lines := linesWithLeadingTabsExpanded(docstring)
	if len(lines) == 0 {
		return ""
	}

	indent := math.MaxInt
	for _, line := range lines[1:] {
		stripped := strings.TrimLeftFunc(line, unicode.IsSpace)
		if stripped != "" {
			indent = min(indent, strWidth(line)-strWidth(stripped))
		}
	}

	trimmed := []string{strings.TrimSpace(lines[0])}
	if indent < math.MaxInt {
		lastLineIdx := len(lines) - 2
		for i, line := range lines[1:] {
			runes := []rune(line)
			strippedLine := ""
			if len(runes) > indent {
				strippedLine = strings.TrimRightFunc(string(runes[indent:]), unicode.IsSpace)
			}
			if strippedLine != "" || i == lastLineIdx {
				trimmed = append(trimmed, prefix+strippedLine)
			} else {
				trimmed = append(trimmed, "")
			}
		}
	}
	return strings.Join(trimmed, "\n")
}

// splitLines splits s at line boundaries, dropping a final empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// expandTabs replaces tabs with spaces up to the next multiple of 8
// columns.
func expandTabs(s string) string {
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := 8 - col%8
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n', '\r':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}
