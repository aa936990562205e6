package script

import (
	"strconv"
	"strings"

	"github.com/labkit/databox/pkg/errors"
)

// TokenType is the kind of a lexical token.
type TokenType int

const (
	EOF TokenType = iota
	NUMBER
	IMAG
	STRING
	IDENT

	PLUS
	MINUS
	STAR
	SLASH
	DSLASH
	PERCENT
	POW

	EQ
	NEQ
	LT
	LTE
	GT
	GTE

	AND
	OR
	NOT

	LPAREN
	RPAREN
	LSQUARE
	RSQUARE
	COMMA
	COLON
)

var tokenNames = map[TokenType]string{
	EOF: "end of expression", NUMBER: "number", IMAG: "imaginary number", STRING: "string", IDENT: "name",
	PLUS: "'+'", MINUS: "'-'", STAR: "'*'", SLASH: "'/'", DSLASH: "'//'", PERCENT: "'%'", POW: "'**'",
	EQ: "'=='", NEQ: "'!='", LT: "'<'", LTE: "'<='", GT: "'>'", GTE: "'>='",
	AND: "'and'", OR: "'or'", NOT: "'not'",
	LPAREN: "'('", RPAREN: "')'", LSQUARE: "'['", RSQUARE: "']'", COMMA: "','", COLON: "':'",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "token(" + strconv.Itoa(int(t)) + ")"
}

var keywords = map[string]TokenType{"and": AND, "or": OR, "not": NOT}

// Token is one lexeme with its decoded literal and byte offset.
type Token struct {
	Type   TokenType
	Lexeme string
	Num    float64
	Str    string
	Pos    int
}

type lexer struct {
	src    string
	pos    int
	tokens []Token
}

// Tokenize splits an expression into tokens, ending with EOF.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{src: src}
	for {
		lx.skipSpace()
		if lx.pos >= len(lx.src) {
			lx.tokens = append(lx.tokens, Token{Type: EOF, Pos: lx.pos})
			return lx.tokens, nil
		}
		if err := lx.next(); err != nil {
			return nil, err
		}
	}
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) && strings.IndexByte(" \t\r\n", lx.src[lx.pos]) >= 0 {
		lx.pos++
	}
}

func (lx *lexer) emit(t TokenType, start int) {
	lx.tokens = append(lx.tokens, Token{Type: t, Lexeme: lx.src[start:lx.pos], Pos: start})
}

func (lx *lexer) errorf(pos int, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeScript, format, args...).
		WithDetail("position", pos).
		WithDetail("expression", lx.src)
}

func (lx *lexer) next() error {
	start := lx.pos
	c := lx.src[lx.pos]
	switch {
	case isDigit(c) || (c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
		return lx.number()
	case isIdentStart(c):
		for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
			lx.pos++
		}
		word := lx.src[start:lx.pos]
		if kw, ok := keywords[word]; ok {
			lx.emit(kw, start)
			return nil
		}
		lx.emit(IDENT, start)
		return nil
	case c == '\'' || c == '"':
		return lx.str(c)
	}

	two := ""
	if lx.pos+1 < len(lx.src) {
		two = lx.src[lx.pos : lx.pos+2]
	}
	switch two {
	case "**":
		lx.pos += 2
		lx.emit(POW, start)
		return nil
	case "//":
		lx.pos += 2
		lx.emit(DSLASH, start)
		return nil
	case "==":
		lx.pos += 2
		lx.emit(EQ, start)
		return nil
	case "!=":
		lx.pos += 2
		lx.emit(NEQ, start)
		return nil
	case "<=":
		lx.pos += 2
		lx.emit(LTE, start)
		return nil
	case ">=":
		lx.pos += 2
		lx.emit(GTE, start)
		return nil
	}

	single := map[byte]TokenType{
		'+': PLUS, '-': MINUS, '*': STAR, '/': SLASH, '%': PERCENT,
		'<': LT, '>': GT, '(': LPAREN, ')': RPAREN, '[': LSQUARE, ']': RSQUARE,
		',': COMMA, ':': COLON,
	}
	if t, ok := single[c]; ok {
		lx.pos++
		lx.emit(t, start)
		return nil
	}
	return lx.errorf(start, "unexpected character %q at position %d", c, start)
}

// number scans digits, an optional fraction and exponent, and an optional
// j suffix for imaginary literals.
func (lx *lexer) number() error {
	start := lx.pos
	for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
		lx.pos++
	}
	if lx.pos < len(lx.src) && lx.src[lx.pos] == '.' {
		lx.pos++
		for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
			lx.pos++
		}
	}
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'e' || lx.src[lx.pos] == 'E') {
		mark := lx.pos
		lx.pos++
		if lx.pos < len(lx.src) && (lx.src[lx.pos] == '+' || lx.src[lx.pos] == '-') {
			lx.pos++
		}
		if lx.pos >= len(lx.src) || !isDigit(lx.src[lx.pos]) {
			lx.pos = mark
		} else {
			for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
				lx.pos++
			}
		}
	}
	text := lx.src[start:lx.pos]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return lx.errorf(start, "malformed number %q", text)
	}
	kind := NUMBER
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'j' || lx.src[lx.pos] == 'J') {
		lx.pos++
		kind = IMAG
	}
	if lx.pos < len(lx.src) && isIdentStart(lx.src[lx.pos]) {
		return lx.errorf(start, "malformed number %q", lx.src[start:lx.pos+1])
	}
	lx.tokens = append(lx.tokens, Token{Type: kind, Lexeme: lx.src[start:lx.pos], Num: f, Pos: start})
	return nil
}

func (lx *lexer) str(quote byte) error {
	start := lx.pos
	lx.pos++
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == quote:
			lx.pos++
			lx.tokens = append(lx.tokens, Token{Type: STRING, Lexeme: lx.src[start:lx.pos], Str: sb.String(), Pos: start})
			return nil
		case c == '\\' && lx.pos+1 < len(lx.src):
			lx.pos++
			switch e := lx.src[lx.pos]; e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
		lx.pos++
	}
	return lx.errorf(start, "unterminated string starting at position %d", start)
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) || c == '.' }
