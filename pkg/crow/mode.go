package crow

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vito/crow/pkg/pgen"
	"github.com/vito/crow/pkg/pygram"
)

// DefaultLineLength is the line length used when none is configured.
const DefaultLineLength = 88

// TargetVersion is a Python release the output must remain compatible with.
type TargetVersion int

const (
	PY27 TargetVersion = 2
	PY33 TargetVersion = 3
	PY34 TargetVersion = 4
	PY35 TargetVersion = 5
	PY36 TargetVersion = 6
	PY37 TargetVersion = 7
	PY38 TargetVersion = 8
)

// AllTargetVersions lists every supported target in ascending order.
var AllTargetVersions = []TargetVersion{PY27, PY33, PY34, PY35, PY36, PY37, PY38}

func (v TargetVersion) String() string {
	if v == PY27 {
		return "py27"
	}
	return fmt.Sprintf("py3%d", int(v))
}

// IsPython2 reports whether v is a Python 2 release.
func (v TargetVersion) IsPython2() bool {
	return v == PY27
}

// ParseTargetVersion accepts the names printed by String, case-insensitively.
func ParseTargetVersion(s string) (TargetVersion, error) {
	for _, v := range AllTargetVersions {
		if strings.EqualFold(s, v.String()) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("invalid target version %q", s)
}

// Feature is a piece of syntax only some target versions understand.
type Feature int

const (
	UnicodeLiterals Feature = iota + 1
	FStrings
	NumericUnderscores
	TrailingCommaInCall
	TrailingCommaInDef
	AsyncIdentifiers
	AsyncKeywords
	AssignmentExpressions
	PosOnlyArguments

	// forceOptionalParentheses is only ever passed between split transforms;
	// no target version supports it.
	forceOptionalParentheses Feature = 50
)

var featureNames = map[Feature]string{
	UnicodeLiterals:          "unicode-literals",
	FStrings:                 "f-strings",
	NumericUnderscores:       "numeric-underscores",
	TrailingCommaInCall:      "trailing-comma-in-call",
	TrailingCommaInDef:       "trailing-comma-in-def",
	AsyncIdentifiers:         "async-identifiers",
	AsyncKeywords:            "async-keywords",
	AssignmentExpressions:    "assignment-expressions",
	PosOnlyArguments:         "pos-only-arguments",
	forceOptionalParentheses: "force-optional-parentheses",
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Feature(%d)", int(f))
}

// FeatureSet is an unordered collection of features.
type FeatureSet map[Feature]bool

// Has reports whether f is in the set.
func (fs FeatureSet) Has(f Feature) bool {
	return fs[f]
}

func (fs FeatureSet) with(f Feature) FeatureSet {
	out := make(FeatureSet, len(fs)+1)
	for k, v := range fs {
		out[k] = v
	}
	out[f] = true
	return out
}

func (fs FeatureSet) subsetOf(other FeatureSet) bool {
	for f, ok := range fs {
		if ok && !other[f] {
			return false
		}
	}
	return true
}

func features(fs ...Feature) FeatureSet {
	set := make(FeatureSet, len(fs))
	for _, f := range fs {
		set[f] = true
	}
	return set
}

// VersionToFeatures maps every target version to the syntax it supports.
var VersionToFeatures = map[TargetVersion]FeatureSet{
	PY27: features(AsyncIdentifiers),
	PY33: features(UnicodeLiterals, AsyncIdentifiers),
	PY34: features(UnicodeLiterals, AsyncIdentifiers),
	PY35: features(UnicodeLiterals, TrailingCommaInCall, AsyncIdentifiers),
	PY36: features(UnicodeLiterals, FStrings, NumericUnderscores,
		TrailingCommaInCall, TrailingCommaInDef, AsyncIdentifiers),
	PY37: features(UnicodeLiterals, FStrings, NumericUnderscores,
		TrailingCommaInCall, TrailingCommaInDef, AsyncKeywords),
	PY38: features(UnicodeLiterals, FStrings, NumericUnderscores,
		TrailingCommaInCall, TrailingCommaInDef, AsyncKeywords,
		AssignmentExpressions, PosOnlyArguments),
}

// SupportsFeature reports whether every version in targets supports f. An
// empty target set supports everything.
func SupportsFeature(targets []TargetVersion, f Feature) bool {
	for _, v := range targets {
		if !VersionToFeatures[v].Has(f) {
			return false
		}
	}
	return true
}

// Mode holds the options that affect formatting output.
type Mode struct {
	TargetVersions      []TargetVersion
	LineLength          int
	StringNormalization bool
	IsPyi               bool
	MagicTrailingComma  bool
}

// DefaultMode returns the options used when nothing is configured.
func DefaultMode() Mode {
	return Mode{
		LineLength:          DefaultLineLength,
		StringNormalization: true,
		MagicTrailingComma:  true,
	}
}

// CacheKey fingerprints the mode so results formatted under different
// options never share a cache.
func (m Mode) CacheKey() string {
	versions := "-"
	if len(m.TargetVersions) > 0 {
		sorted := slices.Clone(m.TargetVersions)
		slices.Sort(sorted)
		sorted = slices.Compact(sorted)
		strs := make([]string, len(sorted))
		for i, v := range sorted {
			strs[i] = strconv.Itoa(int(v))
		}
		versions = strings.Join(strs, ",")
	}
	return strings.Join([]string{
		versions,
		strconv.Itoa(m.LineLength),
		boolDigit(m.StringNormalization),
		boolDigit(m.IsPyi),
		boolDigit(m.MagicTrailingComma),
	}, ".")
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Grammars returns the grammar variants to attempt, most preferred first.
func (m Mode) Grammars() []*pgen.Grammar {
	if len(m.TargetVersions) == 0 {
		return allGrammars()
	}
	allPy2 := true
	for _, v := range m.TargetVersions {
		if !v.IsPython2() {
			allPy2 = false
			break
		}
	}
	if allPy2 {
		return []*pgen.Grammar{
			pygram.Grammar(pygram.Python2NoPrint),
			pygram.Grammar(pygram.Python2),
		}
	}
	// Every version carries exactly one of the two async features, so at
	// least one branch is taken.
	var grammars []*pgen.Grammar
	if !SupportsFeature(m.TargetVersions, AsyncIdentifiers) {
		grammars = append(grammars, pygram.Grammar(pygram.Python37))
	}
	if !SupportsFeature(m.TargetVersions, AsyncKeywords) {
		grammars = append(grammars, pygram.Grammar(pygram.Python3))
	}
	return grammars
}

func allGrammars() []*pgen.Grammar {
	return []*pgen.Grammar{
		pygram.Grammar(pygram.Python37),
		pygram.Grammar(pygram.Python3),
		pygram.Grammar(pygram.Python2NoPrint),
		pygram.Grammar(pygram.Python2),
	}
}
