// Package tagparser parses the tag-list and tag-query grammars from the
// CLI collaborator's raw argument strings into tag.Tag trees and
// tagquery.Query expression trees.
package tagparser

import (
	"fmt"
	"strings"

	"github.com/filemass/filemass/lib/tag"
)

// ParseTagList parses a comma- and bracket-separated tag list into a
// synthetic root tag whose Children are the list's top-level tags:
//
//	TAG_LIST := TAG ("," TAG)*
//	TAG      := NAME ("[" TAG_LIST "]")?
//	NAME     := any run of characters not in "[],"
func ParseTagList(input string) (*tag.Tag, error) {
	p := &tagListParser{input: input}
	root := &tag.Tag{}
	children, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, p.errorAt(p.pos, "unexpected %q", string(p.input[p.pos]))
	}
	root.Children = children
	return root, nil
}

type tagListParser struct {
	input string
	pos   int
}

func (p *tagListParser) parseList() ([]*tag.Tag, error) {
	var out []*tag.Tag
	for {
		t, err := p.parseTag()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		if p.peek() != ',' {
			return out, nil
		}
		p.pos++
	}
}

func (p *tagListParser) parseTag() (*tag.Tag, error) {
	name := p.parseName()
	if name == "" {
		return nil, p.errorAt(p.pos, "expected a tag name")
	}
	t := &tag.Tag{Name: name}

	if p.peek() == '[' {
		p.pos++
		children, err := p.parseList()
		if err != nil {
			return nil, err
		}
		if p.peek() != ']' {
			return nil, p.errorAt(p.pos, "expected ']'")
		}
		p.pos++
		t.Children = children
	}
	return t, nil
}

func (p *tagListParser) parseName() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '[' || c == ']' || c == ',' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *tagListParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// errorAt formats a syntax error with a caret pointing at pos in the
// original input, matching the reference CLI's diagnostic style.
func (p *tagListParser) errorAt(pos int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("tagparser: %s\n%s\n%s^", msg, p.input, strings.Repeat(" ", pos))
}
