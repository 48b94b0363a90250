package turtle

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF       tokenKind = iota
	tokIRI                 // <...>, value holds the decoded IRI
	tokPName               // prefix:local, value holds the raw name
	tokString              // quoted literal, value holds the decoded text
	tokLangTag             // @en after a string
	tokAtKeyword           // @prefix or @base
	tokKeyword             // bare word: a, PREFIX, BASE, true, false
	tokNumber              // numeric literal, value holds the lexical form
	tokDot
	tokSemicolon
	tokComma
	tokDatatype // ^^
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIRI:
		return "IRI"
	case tokPName:
		return "prefixed name"
	case tokString:
		return "string"
	case tokLangTag:
		return "language tag"
	case tokAtKeyword:
		return "directive"
	case tokKeyword:
		return "keyword"
	case tokNumber:
		return "number"
	case tokDot:
		return "'.'"
	case tokSemicolon:
		return "';'"
	case tokComma:
		return "','"
	case tokDatatype:
		return "'^^'"
	}
	return "unknown token"
}

type token struct {
	kind  tokenKind
	value string
	line  int
	col   int
}

// lexer splits Turtle source into tokens. It tracks 1-based line and column
// positions for error reporting.
type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1}
}

func (l *lexer) errorf(line, col int, format string, args ...any) error {
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekRune(off int) (rune, bool) {
	if l.pos+off >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos+off], true
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		r := l.src[l.pos]
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// next returns the next token.
func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: line, col: col}, nil
	}

	r := l.src[l.pos]
	switch {
	case r == '<':
		v, err := l.iriRef()
		return token{kind: tokIRI, value: v, line: line, col: col}, err
	case r == '"' || r == '\'':
		v, err := l.quoted()
		return token{kind: tokString, value: v, line: line, col: col}, err
	case r == '@':
		l.advance()
		word := l.readWhile(func(r rune) bool { return r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) })
		if word == "" {
			return token{}, l.errorf(line, col, "empty '@' keyword")
		}
		if word == "prefix" || word == "base" {
			return token{kind: tokAtKeyword, value: word, line: line, col: col}, nil
		}
		return token{kind: tokLangTag, value: word, line: line, col: col}, nil
	case r == '.':
		if n, ok := l.peekRune(1); ok && unicode.IsDigit(n) {
			return l.number(line, col), nil
		}
		l.advance()
		return token{kind: tokDot, line: line, col: col}, nil
	case r == ';':
		l.advance()
		return token{kind: tokSemicolon, line: line, col: col}, nil
	case r == ',':
		l.advance()
		return token{kind: tokComma, line: line, col: col}, nil
	case r == '^':
		l.advance()
		if n, ok := l.peekRune(0); !ok || n != '^' {
			return token{}, l.errorf(line, col, "expected '^^'")
		}
		l.advance()
		return token{kind: tokDatatype, line: line, col: col}, nil
	case r == '[' || r == '(' || r == ']' || r == ')':
		return token{}, l.errorf(line, col, "blank nodes and collections are not supported")
	case r == '+' || r == '-' || unicode.IsDigit(r):
		return l.number(line, col), nil
	}

	if r == '_' {
		if n, ok := l.peekRune(1); ok && n == ':' {
			return token{}, l.errorf(line, col, "blank nodes and collections are not supported")
		}
	}

	word := l.readWhile(isNameRune)
	if word == "" {
		return token{}, l.errorf(line, col, "unexpected character %q", r)
	}
	word = l.trimTrailingDots(word)
	if strings.Contains(word, ":") {
		return token{kind: tokPName, value: word, line: line, col: col}, nil
	}
	return token{kind: tokKeyword, value: word, line: line, col: col}, nil
}

func isNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '_', '-', '.', ':', '%', '\\':
		return true
	}
	return false
}

func (l *lexer) readWhile(ok func(rune) bool) string {
	var b strings.Builder
	for l.pos < len(l.src) && ok(l.src[l.pos]) {
		b.WriteRune(l.advance())
	}
	return b.String()
}

// trimTrailingDots gives back dots that end a name: they terminate the
// statement rather than belong to the name.
func (l *lexer) trimTrailingDots(word string) string {
	trimmed := strings.TrimRight(word, ".")
	n := len(word) - len(trimmed)
	l.pos -= n
	l.col -= n
	return trimmed
}

func (l *lexer) number(line, col int) token {
	word := l.readWhile(func(r rune) bool {
		return unicode.IsDigit(r) || r == '.' || r == '+' || r == '-' || r == 'e' || r == 'E'
	})
	word = l.trimTrailingDots(word)
	return token{kind: tokNumber, value: word, line: line, col: col}
}

func (l *lexer) iriRef() (string, error) {
	line, col := l.line, l.col
	l.advance() // <
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", l.errorf(line, col, "unterminated IRI")
		}
		r := l.advance()
		switch {
		case r == '>':
			return b.String(), nil
		case r == '\\':
			u, err := l.uchar(line, col)
			if err != nil {
				return "", err
			}
			b.WriteRune(u)
		case r <= 0x20:
			return "", l.errorf(line, col, "invalid character %q in IRI", r)
		default:
			b.WriteRune(r)
		}
	}
}

// uchar decodes the \uXXXX or \UXXXXXXXX escape whose backslash has already
// been consumed.
func (l *lexer) uchar(line, col int) (rune, error) {
	if l.pos >= len(l.src) {
		return 0, l.errorf(line, col, "truncated escape")
	}
	var width int
	switch l.advance() {
	case 'u':
		width = 4
	case 'U':
		width = 8
	default:
		return 0, l.errorf(line, col, "invalid escape in IRI")
	}
	return l.hexRune(width, line, col)
}

func (l *lexer) hexRune(width, line, col int) (rune, error) {
	if l.pos+width > len(l.src) {
		return 0, l.errorf(line, col, "truncated escape")
	}
	hex := string(l.src[l.pos : l.pos+width])
	for i := 0; i < width; i++ {
		l.advance()
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, l.errorf(line, col, "invalid hex escape %q", hex)
	}
	return rune(v), nil
}

func (l *lexer) quoted() (string, error) {
	line, col := l.line, l.col
	q := l.advance()
	long := false
	if a, ok := l.peekRune(0); ok && a == q {
		if b, ok := l.peekRune(1); ok && b == q {
			l.advance()
			l.advance()
			long = true
		} else {
			l.advance()
			return "", nil // empty short string
		}
	}

	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", l.errorf(line, col, "unterminated string")
		}
		r := l.advance()
		switch {
		case r == q && !long:
			return b.String(), nil
		case r == q && long:
			a, okA := l.peekRune(0)
			c, okC := l.peekRune(1)
			if okA && okC && a == q && c == q {
				l.advance()
				l.advance()
				return b.String(), nil
			}
			b.WriteRune(r)
		case r == '\\':
			e, err := l.stringEscape(line, col)
			if err != nil {
				return "", err
			}
			b.WriteRune(e)
		case (r == '\n' || r == '\r') && !long:
			return "", l.errorf(line, col, "newline in short string")
		default:
			b.WriteRune(r)
		}
	}
}

func (l *lexer) stringEscape(line, col int) (rune, error) {
	if l.pos >= len(l.src) {
		return 0, l.errorf(line, col, "truncated escape")
	}
	switch e := l.advance(); e {
	case 't':
		return '\t', nil
	case 'b':
		return '\b', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 'f':
		return '\f', nil
	case '"', '\'', '\\':
		return e, nil
	case 'u':
		return l.hexRune(4, line, col)
	case 'U':
		return l.hexRune(8, line, col)
	default:
		return 0, l.errorf(line, col, "invalid escape '\\%c' in string", e)
	}
}
