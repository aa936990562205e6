package databox

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseLiteral reads a header value written by Value.Repr. It also accepts
// double-quoted strings, tuples, bare comma-separated sequences, complex
// numbers with a j suffix, and array(...) wrappers. Tuples and bare sequences
// become lists.
func ParseLiteral(s string) (Value, error) {
	p := &literalParser{src: s}
	p.skipSpace()
	if p.eof() {
		return None, fmt.Errorf("empty literal")
	}
	v, err := p.parseValue()
	if err != nil {
		return None, err
	}
	p.skipSpace()
	if !p.eof() && p.peek() == ',' {
		items := []Value{v}
		for !p.eof() && p.peek() == ',' {
			p.pos++
			p.skipSpace()
			if p.eof() {
				break
			}
			next, err := p.parseValue()
			if err != nil {
				return None, err
			}
			items = append(items, next)
			p.skipSpace()
		}
		v = List(items...)
	}
	if !p.eof() {
		return None, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos:], p.pos)
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) eof() bool  { return p.pos >= len(p.src) }
func (p *literalParser) peek() byte { return p.src[p.pos] }

func (p *literalParser) skipSpace() {
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func (p *literalParser) parseValue() (Value, error) {
	p.skipSpace()
	if p.eof() {
		return None, fmt.Errorf("unexpected end of literal")
	}
	switch c := p.peek(); {
	case c == '[':
		p.pos++
		items, err := p.parseSequence(']')
		if err != nil {
			return None, err
		}
		return List(items...), nil
	case c == '(':
		p.pos++
		start := p.pos
		items, err := p.parseSequence(')')
		if err != nil {
			return None, err
		}
		// (x) is a parenthesized value, (x,) and (x, y) are tuples
		inner := strings.TrimSpace(p.src[start : p.pos-1])
		if len(items) == 1 && !strings.HasSuffix(inner, ",") {
			return items[0], nil
		}
		return List(items...), nil
	case c == '\'' || c == '"':
		return p.parseString()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	}
	return p.parseWord()
}

func (p *literalParser) parseSequence(closer byte) ([]Value, error) {
	items := []Value{}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, fmt.Errorf("missing %q", closer)
		}
		if p.peek() == closer {
			p.pos++
			return items, nil
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.eof() {
			return nil, fmt.Errorf("missing %q", closer)
		}
		switch p.peek() {
		case ',':
			p.pos++
		case closer:
		default:
			return nil, fmt.Errorf("unexpected %q in sequence at offset %d", p.peek(), p.pos)
		}
	}
}

func (p *literalParser) parseString() (Value, error) {
	q := p.peek()
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		switch {
		case c == q:
			p.pos++
			return String(sb.String()), nil
		case c == '\\' && p.pos+1 < len(p.src):
			p.pos++
			switch e := p.peek(); e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case '\\', '\'', '"':
				sb.WriteByte(e)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
			p.pos++
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return None, fmt.Errorf("unterminated string")
}

// parseNumber consumes a real or imaginary number and, when an imaginary
// part follows directly, folds "a+bj" into one complex value.
func (p *literalParser) parseNumber() (Value, error) {
	first, err := p.scanNumber()
	if err != nil {
		return None, err
	}
	return p.foldImaginary(first), nil
}

// foldImaginary merges a directly following "+bj" term into first.
func (p *literalParser) foldImaginary(first Value) Value {
	if first.Kind() == KindComplex {
		return first
	}
	save := p.pos
	p.skipSpace()
	if !p.eof() && (p.peek() == '+' || p.peek() == '-') {
		second, err := p.scanNumber()
		if err == nil && second.Kind() == KindComplex {
			return Complex(complex(first.Float(), 0) + second.AsComplex())
		}
	}
	p.pos = save
	return first
}

func (p *literalParser) scanNumber() (Value, error) {
	start := p.pos
	if !p.eof() && (p.peek() == '+' || p.peek() == '-') {
		p.pos++
		p.skipSpace()
	}
	signEnd := p.pos
	for !p.eof() {
		c := p.peek()
		if isNumberByte(c) {
			p.pos++
			continue
		}
		// exponent sign
		if (c == '+' || c == '-') && p.pos > signEnd {
			prev := p.src[p.pos-1]
			if prev == 'e' || prev == 'E' {
				p.pos++
				continue
			}
		}
		break
	}
	text := strings.ReplaceAll(p.src[start:p.pos], " ", "")
	if text == "" || text == "+" || text == "-" {
		return None, fmt.Errorf("invalid number at offset %d", start)
	}
	if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
		im, ok := parseImag(text[:len(text)-1])
		if !ok {
			return None, fmt.Errorf("invalid imaginary number %q", text)
		}
		return Complex(complex(0, im)), nil
	}
	if isIntText(text) {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, ok := ParseFloat(text)
	if !ok {
		return None, fmt.Errorf("invalid number %q", text)
	}
	return Float(f), nil
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '_' ||
		c == 'j' || c == 'J' || c == 'n' || c == 'a' || c == 'i' || c == 'f'
}

func isIntText(s string) bool {
	s = strings.TrimLeft(s, "+-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseImag(s string) (float64, bool) {
	switch s {
	case "", "+":
		return 1, true
	case "-":
		return -1, true
	}
	return ParseFloat(s)
}

func (p *literalParser) parseWord() (Value, error) {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	word := p.src[start:p.pos]
	switch word {
	case "None", "none", "null":
		return None, nil
	case "True", "true":
		return Bool(true), nil
	case "False", "false":
		return Bool(false), nil
	case "nan", "NaN", "inf", "Inf", "infinity":
		f, _ := ParseFloat(word)
		return p.foldImaginary(Float(f)), nil
	case "nanj", "infj":
		f, _ := ParseFloat(word[:len(word)-1])
		return Complex(complex(0, f)), nil
	case "array", "np.array", "numpy.array", "tuple", "list":
		return p.parseWrapper(word)
	}
	if word == "" {
		return None, fmt.Errorf("unexpected %q at offset %d", p.peek(), p.pos)
	}
	return None, fmt.Errorf("unknown name %q", word)
}

// parseWrapper reads array([...], dtype=...) and similar constructor calls,
// keeping the first argument and ignoring keyword arguments.
func (p *literalParser) parseWrapper(name string) (Value, error) {
	p.skipSpace()
	if p.eof() || p.peek() != '(' {
		return None, fmt.Errorf("expected '(' after %s", name)
	}
	p.pos++
	v, err := p.parseValue()
	if err != nil {
		return None, err
	}
	depth := 1
	for !p.eof() && depth > 0 {
		switch p.peek() {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '\'', '"':
			if _, err := p.parseString(); err != nil {
				return None, err
			}
			continue
		}
		p.pos++
	}
	if depth != 0 {
		return None, fmt.Errorf("unterminated %s(...)", name)
	}
	if v.Kind() != KindList {
		return List(v), nil
	}
	return v, nil
}

// ParseFloat parses a real number token. Overflow saturates to infinity.
func ParseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return f, true
	}
	if errors.Is(err, strconv.ErrRange) {
		return f, true
	}
	return 0, false
}

// ParseComplex parses a complex token such as "(1+2j)", "1-2.5j", "3j" or a
// plain real number.
func ParseComplex(s string) (complex128, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return 0, false
	}
	last := s[len(s)-1]
	if last != 'j' && last != 'J' {
		f, ok := ParseFloat(s)
		return complex(f, 0), ok
	}
	body := s[:len(s)-1]
	split := -1
	for i := len(body) - 1; i > 0; i-- {
		if body[i] != '+' && body[i] != '-' {
			continue
		}
		if prev := body[i-1]; prev == 'e' || prev == 'E' {
			continue
		}
		split = i
		break
	}
	if split < 0 {
		im, ok := parseImag(body)
		return complex(0, im), ok
	}
	re, ok := ParseFloat(strings.TrimSpace(body[:split]))
	if !ok {
		return 0, false
	}
	im, ok := parseImag(strings.TrimSpace(body[split:]))
	if !ok {
		return 0, false
	}
	return complex(re, im), true
}

// parseNumeric parses a data token as a real number, then as a complex one.
func parseNumeric(tok string) (complex128, bool, bool) {
	if f, ok := ParseFloat(tok); ok {
		return complex(f, 0), false, true
	}
	if c, ok := ParseComplex(tok); ok {
		return c, true, true
	}
	return complex(math.NaN(), 0), false, false
}
