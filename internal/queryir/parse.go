package queryir

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseError reports a malformed criteria string.
type ParseError struct {
	Query   string
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse criteria %q at offset %d: %s", e.Query, e.Offset, e.Message)
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenName
	tokenString
	tokenInt
	tokenFloat
	tokenBool
	tokenOperator
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

// operators are matched longest first.
var operators = []string{"^=", "$=", "*=", "!=", ">=", "<=", "=", ">", "<"}

// Parse turns the string form of a criterion into its AST.
//
// Grammar (AND binds tighter than OR, keywords are upper case):
//
//	expr       = and { "OR" and }
//	and        = unary { "AND" unary }
//	unary      = "NOT" unary | "(" expr ")" | comparison
//	comparison = name operator [ "~" ] value
//	value      = 'string' | "string" | int | float | true | false
func Parse(query string) (Criterion, error) {
	p := &parser{query: query}
	if strings.TrimSpace(query) == "" {
		return nil, p.errorf(0, "criteria must not be empty")
	}
	tokens, err := p.tokenize()
	if err != nil {
		return nil, err
	}
	p.tokens = tokens

	c, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, p.errorf(tok.offset, "unexpected %q", tok.text)
	}
	return c, nil
}

// MustParse is Parse for criteria known to be valid. Panics on error.
func MustParse(query string) Criterion {
	c, err := Parse(query)
	if err != nil {
		panic(err)
	}
	return c
}

type parser struct {
	query  string
	tokens []token
	pos    int
}

func (p *parser) errorf(offset int, format string, args ...any) error {
	return &ParseError{Query: p.query, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) tokenize() ([]token, error) {
	var tokens []token
	s := p.query
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", offset: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", offset: i})
			i++
		case c == '\'' || c == '"':
			text, end, err := p.scanString(i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, text: text, offset: i})
			i = end
		case c == '-' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				i++
			}
			kind := tokenInt
			if i < len(s) && s[i] == '.' {
				kind = tokenFloat
				i++
				for i < len(s) && s[i] >= '0' && s[i] <= '9' {
					i++
				}
			}
			if s[start:i] == "-" {
				return nil, p.errorf(start, "expected a number after '-'")
			}
			tokens = append(tokens, token{kind: kind, text: s[start:i], offset: start})
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(s) && (s[i] == '_' || unicode.IsLetter(rune(s[i])) || unicode.IsDigit(rune(s[i]))) {
				i++
			}
			word := s[start:i]
			kind := tokenName
			switch word {
			case "AND":
				kind = tokenAnd
			case "OR":
				kind = tokenOr
			case "NOT":
				kind = tokenNot
			case "true", "TRUE", "false", "FALSE":
				kind = tokenBool
			}
			tokens = append(tokens, token{kind: kind, text: word, offset: start})
		default:
			op := matchOperator(s[i:])
			if op == "" {
				return nil, p.errorf(i, "unexpected character %q", s[i])
			}
			start := i
			i += len(op)
			if i < len(s) && s[i] == '~' {
				op += "~"
				i++
			}
			tokens = append(tokens, token{kind: tokenOperator, text: op, offset: start})
		}
	}
	return append(tokens, token{kind: tokenEOF, offset: len(s)}), nil
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

// scanString reads a quoted string starting at the quote. A backslash
// escapes the next character.
func (p *parser) scanString(start int) (string, int, error) {
	quote := p.query[start]
	var b strings.Builder
	for i := start + 1; i < len(p.query); i++ {
		c := p.query[i]
		switch {
		case c == '\\' && i+1 < len(p.query):
			i++
			b.WriteByte(p.query[i])
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, p.errorf(start, "unterminated string")
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (Criterion, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	criteria := []Criterion{left}
	for p.peek().kind == tokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, right)
	}
	return AnyOf(criteria...), nil
}

func (p *parser) parseAnd() (Criterion, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	criteria := []Criterion{left}
	for p.peek().kind == tokenAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, right)
	}
	return AllOf(criteria...), nil
}

func (p *parser) parseUnary() (Criterion, error) {
	tok := p.next()
	switch tok.kind {
	case tokenNot:
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Criterion: inner}, nil
	case tokenLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, p.errorf(closing.offset, "expecting a closing parenthesis")
		}
		return inner, nil
	case tokenName:
		return p.parseComparison(tok)
	case tokenEOF:
		return nil, p.errorf(tok.offset, "unexpected end of criteria")
	}
	return nil, p.errorf(tok.offset, "expecting a property name, got %q", tok.text)
}

func (p *parser) parseComparison(name token) (Criterion, error) {
	opTok := p.next()
	if opTok.kind != tokenOperator {
		return nil, p.errorf(opTok.offset, "expecting an operator after %q", name.text)
	}
	caseSensitive := !strings.HasSuffix(opTok.text, "~")
	op := Operator(strings.TrimSuffix(opTok.text, "~"))

	valTok := p.next()
	var value any
	switch valTok.kind {
	case tokenString:
		value = valTok.text
	case tokenInt:
		n, err := strconv.ParseInt(valTok.text, 10, 64)
		if err != nil {
			return nil, p.errorf(valTok.offset, "invalid integer %q", valTok.text)
		}
		value = n
	case tokenFloat:
		f, err := strconv.ParseFloat(valTok.text, 64)
		if err != nil {
			return nil, p.errorf(valTok.offset, "invalid float %q", valTok.text)
		}
		value = f
	case tokenBool:
		value = strings.EqualFold(valTok.text, "true")
	default:
		return nil, p.errorf(valTok.offset, "expecting a value after %q", opTok.text)
	}

	c := Comparison{PropertyName: name.text, Operator: op, Value: value, CaseSensitive: caseSensitive}
	if err := validateComparison(c); err != nil {
		return nil, p.errorf(opTok.offset, "%s", err)
	}
	return c, nil
}
