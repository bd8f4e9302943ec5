// Package pygram exports the Python grammar variants and symbol numbers.
package pygram

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/vito/crow/pkg/pgen"
	"github.com/vito/crow/pkg/pytoken"
)

//go:embed Grammar.txt
var grammarText string

// Variant selects which keywords the grammar reserves.
type Variant int

const (
	// Python2 reserves print and exec.
	Python2 Variant = iota
	// Python2NoPrint is Python 2 with "from __future__ import print_function".
	Python2NoPrint
	// Python3 is 3.0-3.6: async and await are keywords only inside async def.
	Python3
	// Python37 is 3.7+: async and await are always keywords.
	Python37
)

func (v Variant) String() string {
	switch v {
	case Python2:
		return "python2"
	case Python2NoPrint:
		return "python2-print-function"
	case Python3:
		return "python3.0-3.6"
	case Python37:
		return "python3.7+"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

var variants = sync.OnceValue(func() [4]*pgen.Grammar {
	base, err := pgen.Generate(grammarText, symbolNumbers)
	if err != nil {
		panic(fmt.Sprintf("pygram: embedded grammar: %v", err))
	}

	noPrint := base.Copy()
	delete(noPrint.Keywords, "print")

	noPrintNoExec := base.Copy()
	delete(noPrintNoExec.Keywords, "print")
	delete(noPrintNoExec.Keywords, "exec")

	asyncKeywords := noPrintNoExec.Copy()
	asyncKeywords.AsyncKeywords = true

	return [4]*pgen.Grammar{base, noPrint, noPrintNoExec, asyncKeywords}
})

// Grammar returns the parse tables for v. Tables are built on first use and
// shared afterwards; callers must not modify them.
func Grammar(v Variant) *pgen.Grammar {
	return variants()[v]
}

var symbolNames = sync.OnceValue(func() map[int]string {
	names := make(map[int]string, len(symbolNumbers))
	for name, num := range symbolNumbers {
		names[num] = name
	}
	return names
})

// TypeName returns the rule name for a symbol or the token name for a token.
func TypeName(t int) string {
	if t >= pytoken.NTOffset {
		if name, ok := symbolNames()[t]; ok {
			return name
		}
	}
	return pytoken.Name(t)
}
