package tagparser

import (
	"fmt"
	"strings"

	"github.com/filemass/filemass/lib/tagquery"
)

// ParseTagQuery parses the boolean tag-query grammar (precedence low to
// high: "|", "^", "&", unary "!", primary):
//
//	QUERY      := OR_EXPR
//	OR_EXPR    := XOR_EXPR ("|" XOR_EXPR)*
//	XOR_EXPR   := AND_EXPR ("^" AND_EXPR)*
//	AND_EXPR   := NOT_EXPR ("&" NOT_EXPR)*
//	NOT_EXPR   := "!" NOT_EXPR | PRIMARY
//	PRIMARY    := "(" QUERY ")" | ["~"] NAME ("[" QUERY "]")?
//
// "~" denotes has-descendant (any depth >= 1); its absence denotes
// has-child (depth 1).
func ParseTagQuery(input string) (*tagquery.Query, error) {
	p := &queryParser{input: input}
	p.skipSpace()
	q, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, p.errorAt(p.pos, "unexpected %q", string(p.input[p.pos]))
	}
	return q, nil
}

type queryParser struct {
	input string
	pos   int
}

func (p *queryParser) parseOr() (*tagquery.Query, error) {
	first, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	operands := []*tagquery.Query{first}
	for {
		p.skipSpace()
		if p.peek() != '|' {
			break
		}
		p.pos++
		p.skipSpace()
		next, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return tagquery.Or(operands...), nil
}

func (p *queryParser) parseXor() (*tagquery.Query, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []*tagquery.Query{first}
	for {
		p.skipSpace()
		if p.peek() != '^' {
			break
		}
		p.pos++
		p.skipSpace()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return tagquery.Xor(operands...), nil
}

func (p *queryParser) parseAnd() (*tagquery.Query, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	operands := []*tagquery.Query{first}
	for {
		p.skipSpace()
		if p.peek() != '&' {
			break
		}
		p.pos++
		p.skipSpace()
		next, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return tagquery.And(operands...), nil
}

func (p *queryParser) parseNot() (*tagquery.Query, error) {
	p.skipSpace()
	if p.peek() == '!' {
		p.pos++
		p.skipSpace()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return tagquery.Not(inner), nil
	}
	return p.parsePrimary()
}

func (p *queryParser) parsePrimary() (*tagquery.Query, error) {
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		q, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, p.errorAt(p.pos, "expected ')'")
		}
		p.pos++
		return q, nil
	}

	descendant := false
	if p.peek() == '~' {
		descendant = true
		p.pos++
	}

	name := p.parseName()
	if name == "" {
		return nil, p.errorAt(p.pos, "expected a tag name")
	}

	p.skipSpace()
	if p.peek() == '[' {
		p.pos++
		sub, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ']' {
			return nil, p.errorAt(p.pos, "expected ']'")
		}
		p.pos++
		if descendant {
			return tagquery.HasDescendantWithQuery(name, sub), nil
		}
		return tagquery.HasChildWithQuery(name, sub), nil
	}

	if descendant {
		return tagquery.HasDescendant(name), nil
	}
	return tagquery.HasChild(name), nil
}

func (p *queryParser) parseName() string {
	start := p.pos
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '|', '^', '&', '!', '(', ')', '[', ']', ' ', '\t', '\n', '\r', '~':
			return p.input[start:p.pos]
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *queryParser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *queryParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *queryParser) errorAt(pos int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("tagparser: %s\n%s\n%s^", msg, p.input, strings.Repeat(" ", pos))
}
