package script

import (
	"github.com/labkit/databox/pkg/errors"
)

// Parse builds the expression tree for src.
//
// Precedence, loosest first:
//
//	or
//	and
//	not
//	== != < <= > >=
//	+ -
//	* / // %
//	unary + -
//	**            (right associative, binds tighter than a unary minus on its left)
//	calls, subscripts
func Parse(src string) (Node, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, tokens: tokens}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type != EOF {
		return nil, p.errorf(t, "unexpected %s after expression", t.Type)
	}
	return n, nil
}

type parser struct {
	src    string
	tokens []Token
	pos    int
}

func (p *parser) peek() Token { return p.tokens[p.pos] }

func (p *parser) advance() Token {
	t := p.tokens[p.pos]
	if t.Type != EOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(tt TokenType) bool {
	if p.peek().Type == tt {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(tt TokenType) (Token, error) {
	t := p.peek()
	if t.Type != tt {
		return t, p.errorf(t, "expected %s, found %s", tt, t.Type)
	}
	return p.advance(), nil
}

func (p *parser) errorf(t Token, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeScript, format, args...).
		WithDetail("position", t.Pos).
		WithDetail("expression", p.src)
}

func (p *parser) expr() (Node, error) { return p.or() }

func (p *parser) or() (Node, error) {
	return p.binaryLevel(p.and, OR)
}

func (p *parser) and() (Node, error) {
	return p.binaryLevel(p.not, AND)
}

func (p *parser) not() (Node, error) {
	if t := p.peek(); t.Type == NOT {
		p.advance()
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return &Unary{At: t.Pos, Op: NOT, X: x}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (Node, error) {
	return p.binaryLevel(p.additive, EQ, NEQ, LT, LTE, GT, GTE)
}

func (p *parser) additive() (Node, error) {
	return p.binaryLevel(p.multiplicative, PLUS, MINUS)
}

func (p *parser) multiplicative() (Node, error) {
	return p.binaryLevel(p.unary, STAR, SLASH, DSLASH, PERCENT)
}

// binaryLevel parses a left-associative chain of ops over next.
func (p *parser) binaryLevel(next func() (Node, error), ops ...TokenType) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !containsType(ops, t.Type) {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &Binary{At: t.Pos, Op: t.Type, L: left, R: right}
	}
}

func containsType(ops []TokenType, tt TokenType) bool {
	for _, op := range ops {
		if op == tt {
			return true
		}
	}
	return false
}

func (p *parser) unary() (Node, error) {
	if t := p.peek(); t.Type == MINUS || t.Type == PLUS {
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{At: t.Pos, Op: t.Type, X: x}, nil
	}
	return p.power()
}

func (p *parser) power() (Node, error) {
	base, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type == POW {
		p.advance()
		exp, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Binary{At: t.Pos, Op: POW, L: base, R: exp}, nil
	}
	return base, nil
}

func (p *parser) postfix() (Node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch t.Type {
		case LPAREN:
			p.advance()
			args, err := p.list(RPAREN)
			if err != nil {
				return nil, err
			}
			n = &Call{At: t.Pos, Fn: n, Args: args}
		case LSQUARE:
			p.advance()
			index, err := p.subscript()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RSQUARE); err != nil {
				return nil, err
			}
			n = &Subscript{At: t.Pos, X: n, Index: index}
		default:
			return n, nil
		}
	}
}

// subscript parses an index expression or a start:stop:step slice.
func (p *parser) subscript() (Node, error) {
	at := p.peek().Pos
	var parts [3]Node
	colons := 0
	for {
		t := p.peek()
		if t.Type == COLON {
			p.advance()
			colons++
			if colons > 2 {
				return nil, p.errorf(t, "too many ':' in slice")
			}
			continue
		}
		if t.Type == RSQUARE {
			break
		}
		if parts[colons] != nil {
			return nil, p.errorf(t, "expected ':' or ']', found %s", t.Type)
		}
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		parts[colons] = n
	}
	if colons == 0 {
		if parts[0] == nil {
			return nil, p.errorf(p.peek(), "empty subscript")
		}
		return parts[0], nil
	}
	return &Slice{At: at, Start: parts[0], Stop: parts[1], Step: parts[2]}, nil
}

// list parses comma-separated expressions up to closer, allowing a
// trailing comma.
func (p *parser) list(closer TokenType) ([]Node, error) {
	var items []Node
	for !p.accept(closer) {
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
		if p.accept(COMMA) {
			continue
		}
		if _, err := p.expect(closer); err != nil {
			return nil, err
		}
		break
	}
	return items, nil
}

func (p *parser) primary() (Node, error) {
	t := p.advance()
	switch t.Type {
	case NUMBER:
		return &NumberLit{At: t.Pos, Value: t.Num}, nil
	case IMAG:
		return &ImagLit{At: t.Pos, Value: t.Num}, nil
	case STRING:
		return &StringLit{At: t.Pos, Value: t.Str}, nil
	case IDENT:
		return &Ident{At: t.Pos, Name: t.Lexeme}, nil
	case LPAREN:
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.accept(COMMA) {
			rest, err := p.list(RPAREN)
			if err != nil {
				return nil, err
			}
			return &ListLit{At: t.Pos, Items: append([]Node{n}, rest...)}, nil
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return n, nil
	case LSQUARE:
		items, err := p.list(RSQUARE)
		if err != nil {
			return nil, err
		}
		return &ListLit{At: t.Pos, Items: items}, nil
	}
	return nil, p.errorf(t, "unexpected %s", t.Type)
}
