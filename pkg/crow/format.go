package crow

import (
	"context"
	"strings"
	"unicode"
)

// FormatStr formats the Python source src.
//
// The result ends with exactly one newline, unless it is empty. Leading
// blank space in src is dropped.
func FormatStr(src string, mode Mode) (string, error) {
	srcNode, err := Parse(strings.TrimLeftFunc(src, unicode.IsSpace), mode.Grammars())
	if err != nil {
		return "", err
	}

	futureImports := FutureImports(srcNode)
	versions := mode.TargetVersions
	if len(versions) == 0 {
		versions = DetectTargetVersions(srcNode)
	}
	normalizeFmtOff(srcNode)

	removeUPrefix := futureImports["unicode_literals"] || SupportsFeature(versions, UnicodeLiterals)
	splitFeatures := FeatureSet{}
	for _, f := range []Feature{TrailingCommaInCall, TrailingCommaInDef} {
		if SupportsFeature(versions, f) {
			splitFeatures[f] = true
		}
	}

	var dst strings.Builder
	elt := &EmptyLineTracker{IsPyi: mode.IsPyi}
	after := 0
	lg := NewLineGenerator(mode, removeUPrefix, func(line *Line) {
		dst.WriteString(strings.Repeat("\n", after))
		var before int
		before, after = elt.MaybeEmptyLines(line)
		dst.WriteString(strings.Repeat("\n", before))
		for _, l := range TransformLine(line, mode, splitFeatures) {
			dst.WriteString(l.String())
		}
	})
	lg.Visit(srcNode)
	return dst.String(), nil
}

// FormatFileContents formats the contents of a file. It returns
// ErrNothingChanged if the contents are blank or already formatted.
//
// Unless fast is set, the result is checked to be equivalent to the
// source and to be stable when formatted again.
func FormatFileContents(ctx context.Context, src string, fast bool, mode Mode) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", ErrNothingChanged
	}

	dst, err := FormatStr(src, mode)
	if err != nil {
		return "", err
	}
	if src == dst {
		return "", ErrNothingChanged
	}

	if !fast {
		if err := AssertEquivalent(ctx, src, dst); err != nil {
			return "", err
		}
		if err := AssertStable(src, dst, mode); err != nil {
			return "", err
		}
	}
	return dst, nil
}
