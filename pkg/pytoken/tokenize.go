package pytoken

import (
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pos is a position in the source. Line is 1-based, Column counts runes from
// the start of the line and Offset is the byte offset into the source.
type Pos struct {
	Line   int
	Column int
	Offset int
}

// Token is a single lexical token.
type Token struct {
	Type  Kind
	Value string
	Start Pos
	End   Pos
}

func (t Token) String() string {
	return fmt.Sprintf("%d,%d-%d,%d:\t%s\t%q", t.Start.Line, t.Start.Column, t.End.Line, t.End.Column, Name(t.Type), t.Value)
}

// TokenError reports malformed lexical structure, such as an unterminated
// string or a statement still open at the end of the input.
type TokenError struct {
	Msg string
	Pos Pos
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s (%d:%d)", e.Msg, e.Pos.Line, e.Pos.Column)
}

// Config selects lexical variants.
type Config struct {
	// AsyncKeywords makes "async" and "await" unconditional keywords
	// (Python 3.7+). Otherwise they are only keywords inside "async def".
	AsyncKeywords bool
}

const tabSize = 8

type fieldState struct {
	// parenlev is the bracket depth right after the field's opening brace.
	parenlev int
	spec     bool
}

type fstringState struct {
	quote  string
	raw    bool
	start  Pos
	fields []*fieldState
}

func (f *fstringState) inLiteral() bool {
	return len(f.fields) == 0 || f.fields[len(f.fields)-1].spec
}

// Tokenizer produces tokens from Python source one at a time. It is not
// restartable.
type Tokenizer struct {
	src string
	cfg Config

	pos       int
	line      int
	lineStart int

	parenlev  int
	continued bool
	bol       bool
	indents   []int

	fstrings []*fstringState

	stashed        *Token
	asyncDef       bool
	asyncDefIndent int
	asyncDefNL     bool

	queue []Token
	done  bool
	err   error
}

// New returns a tokenizer over src.
func New(src string, cfg Config) *Tokenizer {
	return &Tokenizer{
		src:     src,
		cfg:     cfg,
		line:    1,
		bol:     true,
		indents: []int{0},
	}
}

// Tokens lazily yields the tokens of src, ending with ENDMARKER. A lexical
// error is yielded once, after which iteration stops.
func Tokens(src string, cfg Config) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		t := New(src, cfg)
		for {
			tok, err := t.Next()
			if err == io.EOF {
				return
			}
			if !yield(tok, err) || err != nil {
				return
			}
		}
	}
}

// Tokenize collects every token in src. On error it returns the tokens
// read so far.
func Tokenize(src string, cfg Config) ([]Token, error) {
	var toks []Token
	for tok, err := range Tokens(src, cfg) {
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
	}
	return toks, nil
}

// Next returns the next token. After ENDMARKER it returns io.EOF.
func (t *Tokenizer) Next() (Token, error) {
	for len(t.queue) == 0 {
		if t.err != nil {
			return Token{}, t.err
		}
		if t.done {
			return Token{}, io.EOF
		}
		if err := t.scan(); err != nil {
			t.err = err
			return Token{}, err
		}
	}
	tok := t.queue[0]
	t.queue = t.queue[1:]
	return tok, nil
}

func (t *Tokenizer) at(off int) Pos {
	return Pos{
		Line:   t.line,
		Column: utf8.RuneCountInString(t.src[t.lineStart:off]),
		Offset: off,
	}
}

func (t *Tokenizer) advance(to int) {
	for i := t.pos; i < to; i++ {
		if t.src[i] == '\n' {
			t.line++
			t.lineStart = i + 1
		}
	}
	t.pos = to
}

func (t *Tokenizer) flushStash() {
	if t.stashed != nil {
		t.queue = append(t.queue, *t.stashed)
		t.stashed = nil
	}
}

func (t *Tokenizer) emit(tok Token) {
	t.flushStash()
	t.queue = append(t.queue, tok)
}

// emitSpan emits src[from:to] as a token of the given type and moves past it.
func (t *Tokenizer) emitSpan(typ Kind, from, to int) {
	start := t.at(from)
	t.advance(to)
	t.emit(Token{Type: typ, Value: t.src[from:to], Start: start, End: t.at(to)})
}

func (t *Tokenizer) currentFString() *fstringState {
	if len(t.fstrings) == 0 {
		return nil
	}
	return t.fstrings[len(t.fstrings)-1]
}

func (t *Tokenizer) scan() error {
	if fs := t.currentFString(); fs != nil && fs.inLiteral() {
		return t.scanFStringLiteral(fs)
	}
	if t.bol {
		if t.parenlev == 0 && !t.continued {
			return t.scanLineStart()
		}
		if t.pos >= len(t.src) {
			return t.eofInStatement()
		}
		t.continued = false
		t.bol = false
	}
	return t.scanToken()
}

func (t *Tokenizer) eofInStatement() error {
	return &TokenError{
		Msg: "EOF in multi-line statement",
		Pos: Pos{Line: t.line, Offset: t.pos},
	}
}

func (t *Tokenizer) resetAsync() {
	t.asyncDef = false
	t.asyncDefNL = false
	t.asyncDefIndent = 0
}

// scanLineStart measures indentation at the start of a logical line.
// Blank and comment-only lines produce NL without touching the indent stack.
func (t *Tokenizer) scanLineStart() error {
	column := 0
	p := t.pos
measure:
	for p < len(t.src) {
		switch t.src[p] {
		case ' ':
			column++
		case '\t':
			column = (column/tabSize + 1) * tabSize
		case '\f':
			column = 0
		default:
			break measure
		}
		p++
	}
	if p >= len(t.src) {
		t.advance(p)
		return t.finish()
	}

	t.flushStash()

	switch t.src[p] {
	case '#', '\r', '\n':
		if t.src[p] == '#' {
			end := lineEnd(t.src, p)
			t.queue = append(t.queue, Token{Type: COMMENT, Value: t.src[p:end], Start: t.at(p), End: t.at(end)})
			p = end
		}
		nl := newlineEnd(t.src, p)
		start := t.at(p)
		t.advance(nl)
		t.queue = append(t.queue, Token{Type: NL, Value: t.src[p:nl], Start: start, End: t.at(nl)})
		return nil
	}

	if column > t.indents[len(t.indents)-1] {
		t.indents = append(t.indents, column)
		t.queue = append(t.queue, Token{Type: INDENT, Value: t.src[t.pos:p], Start: t.at(t.pos), End: t.at(p)})
	}
	for column < t.indents[len(t.indents)-1] {
		if !slices.Contains(t.indents, column) {
			return &TokenError{
				Msg: "unindent does not match any outer indentation level",
				Pos: t.at(p),
			}
		}
		t.indents = t.indents[:len(t.indents)-1]
		if t.asyncDef && t.asyncDefIndent >= t.indents[len(t.indents)-1] {
			t.resetAsync()
		}
		t.queue = append(t.queue, Token{Type: DEDENT, Start: t.at(p), End: t.at(p)})
	}
	if t.asyncDef && t.asyncDefNL && t.asyncDefIndent >= t.indents[len(t.indents)-1] {
		t.resetAsync()
	}

	t.pos = p
	t.bol = false
	return nil
}

func (t *Tokenizer) finish() error {
	if t.parenlev > 0 || t.continued || len(t.fstrings) > 0 {
		return t.eofInStatement()
	}
	t.flushStash()
	if !t.bol {
		t.queue = append(t.queue, Token{Type: NEWLINE, Start: t.at(t.pos), End: t.at(t.pos)})
	}
	end := Pos{Line: t.line, Offset: len(t.src)}
	if !t.bol {
		end.Line++
	}
	for range t.indents[1:] {
		t.queue = append(t.queue, Token{Type: DEDENT, Start: end, End: end})
	}
	t.indents = t.indents[:1]
	t.queue = append(t.queue, Token{Type: ENDMARKER, Start: end, End: end})
	t.done = true
	return nil
}

func (t *Tokenizer) scanToken() error {
	p := t.pos
	for p < len(t.src) && (t.src[p] == ' ' || t.src[p] == '\t' || t.src[p] == '\f') {
		p++
	}
	t.pos = p
	if p >= len(t.src) {
		return t.finish()
	}

	if fs := t.currentFString(); fs != nil {
		field := fs.fields[len(fs.fields)-1]
		if t.parenlev == field.parenlev {
			switch c := t.src[p]; {
			case c == '}':
				t.parenlev--
				fs.fields = fs.fields[:len(fs.fields)-1]
				t.emitSpan(OP, p, p+1)
				return nil
			case c == ':':
				field.spec = true
				t.emitSpan(OP, p, p+1)
				return nil
			case c == '!' && (p+1 >= len(t.src) || t.src[p+1] != '='):
				t.emitSpan(OP, p, p+1)
				return nil
			}
		}
	}

	c := t.src[p]
	switch {
	case c == '\r' || c == '\n':
		typ := NEWLINE
		if t.parenlev > 0 {
			typ = NL
		} else if t.asyncDef {
			t.asyncDefNL = true
		}
		t.emitSpan(typ, p, newlineEnd(t.src, p))
		t.bol = true
	case c == '#':
		t.emitSpan(COMMENT, p, lineEnd(t.src, p))
	case c == '\\':
		nl := newlineEnd(t.src, p+1)
		if nl == p+1 {
			t.emitSpan(ERRORTOKEN, p, p+1)
			return nil
		}
		t.emitSpan(NL, p, nl)
		t.continued = true
		t.bol = true
	case isDigit(c) || (c == '.' && p+1 < len(t.src) && isDigit(t.src[p+1])):
		t.emitSpan(NUMBER, p, scanNumber(t.src, p))
	case c == '\'' || c == '"':
		return t.scanString(p, p)
	default:
		r, _ := utf8.DecodeRuneInString(t.src[p:])
		if !isIdentStart(r) {
			t.scanOperator(p)
			return nil
		}
		end := scanIdent(t.src, p)
		if end < len(t.src) && (t.src[end] == '\'' || t.src[end] == '"') && isStringPrefix(t.src[p:end]) {
			return t.scanString(p, end)
		}
		t.scanName(p, end)
	}
	return nil
}

func (t *Tokenizer) scanName(p, end int) {
	value := t.src[p:end]
	if value == "async" || value == "await" {
		if t.cfg.AsyncKeywords || t.asyncDef {
			typ := ASYNC
			if value == "await" {
				typ = AWAIT
			}
			t.emitSpan(typ, p, end)
			return
		}
	}

	start := t.at(p)
	t.advance(end)
	tok := Token{Type: NAME, Value: value, Start: start, End: t.at(end)}

	if value == "async" && t.stashed == nil {
		t.stashed = &tok
		return
	}
	if (value == "def" || value == "for") && t.stashed != nil &&
		t.stashed.Type == NAME && t.stashed.Value == "async" {
		if value == "def" {
			t.asyncDef = true
			t.asyncDefIndent = t.indents[len(t.indents)-1]
		}
		t.stashed.Type = ASYNC
	}
	t.emit(tok)
}

func (t *Tokenizer) scanOperator(p int) {
	for n := 3; n >= 1; n-- {
		if p+n > len(t.src) {
			continue
		}
		op := t.src[p : p+n]
		if op == "!" {
			break
		}
		if _, ok := OpMap[op]; ok {
			switch op[0] {
			case '(', '[', '{':
				t.parenlev++
			case ')', ']', '}':
				t.parenlev--
			}
			t.emitSpan(OP, p, p+n)
			return
		}
	}
	_, size := utf8.DecodeRuneInString(t.src[p:])
	t.emitSpan(ERRORTOKEN, p, p+size)
}

// scanString scans a string literal whose prefix starts at start and whose
// opening quote is at q.
func (t *Tokenizer) scanString(start, q int) error {
	prefix := strings.ToLower(t.src[start:q])
	quote := t.src[q : q+1]
	if strings.HasPrefix(t.src[q:], strings.Repeat(quote, 3)) {
		quote = strings.Repeat(quote, 3)
	}
	body := q + len(quote)

	if strings.ContainsRune(prefix, 'f') {
		fs := &fstringState{
			quote: quote,
			raw:   strings.ContainsRune(prefix, 'r'),
			start: t.at(start),
		}
		t.emitSpan(FSTRING_START, start, body)
		t.fstrings = append(t.fstrings, fs)
		return nil
	}

	end, ok := findStringEnd(t.src, body, quote)
	if !ok {
		if len(quote) == 3 {
			return &TokenError{Msg: "EOF in multi-line string", Pos: t.at(start)}
		}
		t.emitSpan(ERRORTOKEN, start, q+1)
		return nil
	}
	t.emitSpan(STRING, start, end)
	return nil
}

// scanFStringLiteral scans literal text of an f-string (or of a format spec
// inside one) up to the next replacement field, field end or closing quote.
func (t *Tokenizer) scanFStringLiteral(fs *fstringState) error {
	start := t.pos
	inSpec := len(fs.fields) > 0
	i := start
	for {
		if i >= len(t.src) {
			return &TokenError{Msg: "EOF in multi-line string", Pos: fs.start}
		}
		c := t.src[i]
		switch {
		case c == '\\':
			if !fs.raw && strings.HasPrefix(t.src[i:], `\N{`) {
				closing := strings.IndexByte(t.src[i:], '}')
				if closing < 0 {
					return &TokenError{Msg: "EOF in multi-line string", Pos: fs.start}
				}
				i += closing + 1
				continue
			}
			if strings.HasPrefix(t.src[i+1:], "\r\n") {
				i += 3
			} else {
				i += 2
			}
			continue
		case (c == '\n' || c == '\r') && len(fs.quote) == 1:
			return &TokenError{Msg: "unterminated string literal", Pos: fs.start}
		case c == '{':
			if !inSpec && i+1 < len(t.src) && t.src[i+1] == '{' {
				i += 2
				continue
			}
			t.emitMiddle(start, i)
			t.parenlev++
			fs.fields = append(fs.fields, &fieldState{parenlev: t.parenlev})
			t.emitSpan(OP, i, i+1)
			return nil
		case c == '}':
			if !inSpec {
				if i+1 < len(t.src) && t.src[i+1] == '}' {
					i += 2
					continue
				}
				return &TokenError{Msg: "f-string: single '}' is not allowed", Pos: t.at(start)}
			}
			t.emitMiddle(start, i)
			t.parenlev--
			fs.fields = fs.fields[:len(fs.fields)-1]
			t.emitSpan(OP, i, i+1)
			return nil
		case !inSpec && strings.HasPrefix(t.src[i:], fs.quote):
			t.emitMiddle(start, i)
			t.fstrings = t.fstrings[:len(t.fstrings)-1]
			t.emitSpan(FSTRING_END, i, i+len(fs.quote))
			return nil
		}
		i++
	}
}

func (t *Tokenizer) emitMiddle(from, to int) {
	if to > from {
		t.emitSpan(FSTRING_MIDDLE, from, to)
	}
}

func findStringEnd(s string, i int, quote string) (int, bool) {
	for i < len(s) {
		c := s[i]
		if c == '\\' {
			if strings.HasPrefix(s[i+1:], "\r\n") {
				i += 3
			} else {
				i += 2
			}
			continue
		}
		if len(quote) == 1 && (c == '\n' || c == '\r') {
			return 0, false
		}
		if strings.HasPrefix(s[i:], quote) {
			return i + len(quote), true
		}
		i++
	}
	return 0, false
}

func scanNumber(s string, i int) int {
	n := len(s)
	if s[i] == '0' && i+1 < n && strings.IndexByte("xXoObB", s[i+1]) >= 0 {
		i += 2
		for i < n && (isHexDigit(s[i]) || s[i] == '_') {
			i++
		}
		if i < n && (s[i] == 'l' || s[i] == 'L') {
			i++
		}
		return i
	}
	i = scanDigits(s, i)
	if i < n && s[i] == '.' {
		i = scanDigits(s, i+1)
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < n && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < n && isDigit(s[j]) {
			i = scanDigits(s, j)
		}
	}
	if i < n && strings.IndexByte("jJlL", s[i]) >= 0 {
		i++
	}
	return i
}

func scanDigits(s string, i int) int {
	for i < len(s) && (isDigit(s[i]) || s[i] == '_') {
		i++
	}
	return i
}

func scanIdent(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isIdentContinue(r) {
			break
		}
		i += size
	}
	return i
}

func isStringPrefix(s string) bool {
	if len(s) > 2 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("rRbBuUfF", c) {
			return false
		}
	}
	return true
}

// lineEnd returns the offset of the line terminator at or after i.
func lineEnd(s string, i int) int {
	for i < len(s) && s[i] != '\n' && s[i] != '\r' {
		i++
	}
	return i
}

// newlineEnd returns the offset just past a line terminator at i, or i.
func newlineEnd(s string, i int) int {
	switch {
	case strings.HasPrefix(s[i:], "\r\n"):
		return i + 2
	case i < len(s) && (s[i] == '\n' || s[i] == '\r'):
		return i + 1
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.In(r, unicode.Nl, unicode.Other_ID_Start)
}

func isIdentContinue(r rune) bool {
	return isIdentStart(r) || unicode.In(r, unicode.Mn, unicode.Mc, unicode.Nd, unicode.Pc, unicode.Other_ID_Continue)
}
