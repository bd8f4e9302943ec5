package crow

import "strings"

// DecodeNewlines returns src with universal newlines, and the line ending
// to restore on output, taken from the first line.
func DecodeNewlines(src string) (string, string) {
	if src == "" {
		return "", "\n"
	}
	newline := "\n"
	if first, _, ok := strings.Cut(src, "\n"); ok && strings.HasSuffix(first, "\r") {
		newline = "\r\n"
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	return src, newline
}

// EncodeNewlines turns the universal newlines of s back into newline.
func EncodeNewlines(s, newline string) string {
	if newline == "\n" {
		return s
	}
	return strings.ReplaceAll(s, "\n", newline)
}
