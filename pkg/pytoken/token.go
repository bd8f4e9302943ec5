package pytoken

import "fmt"

// Kind identifies a terminal symbol. Values below NTOffset are tokens; values
// at or above it are grammar symbols.
type Kind = int

const (
	ENDMARKER Kind = iota
	NAME
	NUMBER
	STRING
	NEWLINE
	INDENT
	DEDENT
	LPAR
	RPAR
	LSQB
	RSQB
	COLON
	COMMA
	SEMI
	PLUS
	MINUS
	STAR
	SLASH
	VBAR
	AMPER
	LESS
	GREATER
	EQUAL
	DOT
	PERCENT
	BACKQUOTE
	LBRACE
	RBRACE
	EQEQUAL
	NOTEQUAL
	LESSEQUAL
	GREATEREQUAL
	TILDE
	CIRCUMFLEX
	LEFTSHIFT
	RIGHTSHIFT
	DOUBLESTAR
	PLUSEQUAL
	MINEQUAL
	STAREQUAL
	SLASHEQUAL
	PERCENTEQUAL
	AMPEREQUAL
	VBAREQUAL
	CIRCUMFLEXEQUAL
	LEFTSHIFTEQUAL
	RIGHTSHIFTEQUAL
	DOUBLESTAREQUAL
	DOUBLESLASH
	DOUBLESLASHEQUAL
	AT
	ATEQUAL
	OP
	COMMENT
	NL
	RARROW
	AWAIT
	ASYNC
	ERRORTOKEN
	COLONEQUAL
	FSTRING_START
	FSTRING_MIDDLE
	FSTRING_END
	BANG
	NTokens
)

// NTOffset is the first grammar symbol number.
const NTOffset = 256

// STANDALONE_COMMENT is a synthetic token for comments that must sit on a
// line of their own. It never comes out of the tokenizer.
const STANDALONE_COMMENT Kind = 153

var names = map[Kind]string{
	ENDMARKER:          "ENDMARKER",
	NAME:               "NAME",
	NUMBER:             "NUMBER",
	STRING:             "STRING",
	NEWLINE:            "NEWLINE",
	INDENT:             "INDENT",
	DEDENT:             "DEDENT",
	LPAR:               "LPAR",
	RPAR:               "RPAR",
	LSQB:               "LSQB",
	RSQB:               "RSQB",
	COLON:              "COLON",
	COMMA:              "COMMA",
	SEMI:               "SEMI",
	PLUS:               "PLUS",
	MINUS:              "MINUS",
	STAR:               "STAR",
	SLASH:              "SLASH",
	VBAR:               "VBAR",
	AMPER:              "AMPER",
	LESS:               "LESS",
	GREATER:            "GREATER",
	EQUAL:              "EQUAL",
	DOT:                "DOT",
	PERCENT:            "PERCENT",
	BACKQUOTE:          "BACKQUOTE",
	LBRACE:             "LBRACE",
	RBRACE:             "RBRACE",
	EQEQUAL:            "EQEQUAL",
	NOTEQUAL:           "NOTEQUAL",
	LESSEQUAL:          "LESSEQUAL",
	GREATEREQUAL:       "GREATEREQUAL",
	TILDE:              "TILDE",
	CIRCUMFLEX:         "CIRCUMFLEX",
	LEFTSHIFT:          "LEFTSHIFT",
	RIGHTSHIFT:         "RIGHTSHIFT",
	DOUBLESTAR:         "DOUBLESTAR",
	PLUSEQUAL:          "PLUSEQUAL",
	MINEQUAL:           "MINEQUAL",
	STAREQUAL:          "STAREQUAL",
	SLASHEQUAL:         "SLASHEQUAL",
	PERCENTEQUAL:       "PERCENTEQUAL",
	AMPEREQUAL:         "AMPEREQUAL",
	VBAREQUAL:          "VBAREQUAL",
	CIRCUMFLEXEQUAL:    "CIRCUMFLEXEQUAL",
	LEFTSHIFTEQUAL:     "LEFTSHIFTEQUAL",
	RIGHTSHIFTEQUAL:    "RIGHTSHIFTEQUAL",
	DOUBLESTAREQUAL:    "DOUBLESTAREQUAL",
	DOUBLESLASH:        "DOUBLESLASH",
	DOUBLESLASHEQUAL:   "DOUBLESLASHEQUAL",
	AT:                 "AT",
	ATEQUAL:            "ATEQUAL",
	OP:                 "OP",
	COMMENT:            "COMMENT",
	NL:                 "NL",
	RARROW:             "RARROW",
	AWAIT:              "AWAIT",
	ASYNC:              "ASYNC",
	ERRORTOKEN:         "ERRORTOKEN",
	COLONEQUAL:         "COLONEQUAL",
	FSTRING_START:      "FSTRING_START",
	FSTRING_MIDDLE:     "FSTRING_MIDDLE",
	FSTRING_END:        "FSTRING_END",
	BANG:               "BANG",
	STANDALONE_COMMENT: "STANDALONE_COMMENT",
}

// Name returns the symbolic name of a token kind.
func Name(k Kind) string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("%d", k)
}

// Lookup returns the kind for a symbolic token name such as "NAME".
func Lookup(name string) (Kind, bool) {
	for k, n := range names {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// IsTerminal reports whether k is a token rather than a grammar symbol.
func IsTerminal(k Kind) bool { return k < NTOffset }

// OpMap maps operator text to its specific token kind.
var OpMap = map[string]Kind{
	"(":   LPAR,
	")":   RPAR,
	"[":   LSQB,
	"]":   RSQB,
	":":   COLON,
	",":   COMMA,
	";":   SEMI,
	"+":   PLUS,
	"-":   MINUS,
	"*":   STAR,
	"/":   SLASH,
	"|":   VBAR,
	"&":   AMPER,
	"<":   LESS,
	">":   GREATER,
	"=":   EQUAL,
	".":   DOT,
	"%":   PERCENT,
	"`":   BACKQUOTE,
	"{":   LBRACE,
	"}":   RBRACE,
	"@":   AT,
	"@=":  ATEQUAL,
	"==":  EQEQUAL,
	"!=":  NOTEQUAL,
	"<>":  NOTEQUAL,
	"<=":  LESSEQUAL,
	">=":  GREATEREQUAL,
	"~":   TILDE,
	"^":   CIRCUMFLEX,
	"<<":  LEFTSHIFT,
	">>":  RIGHTSHIFT,
	"**":  DOUBLESTAR,
	"+=":  PLUSEQUAL,
	"-=":  MINEQUAL,
	"*=":  STAREQUAL,
	"/=":  SLASHEQUAL,
	"%=":  PERCENTEQUAL,
	"&=":  AMPEREQUAL,
	"|=":  VBAREQUAL,
	"^=":  CIRCUMFLEXEQUAL,
	"<<=": LEFTSHIFTEQUAL,
	">>=": RIGHTSHIFTEQUAL,
	"**=": DOUBLESTAREQUAL,
	"//":  DOUBLESLASH,
	"//=": DOUBLESLASHEQUAL,
	"->":  RARROW,
	":=":  COLONEQUAL,
	"!":   BANG,
}
