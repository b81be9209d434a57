package compile

import (
	"fmt"
	"strconv"
)

// NodeKind discriminates Program tree nodes. Nodes are a single flat
// struct rather than an interface hierarchy so programs can be encoded
// with encoding/gob and written to the artifact store.
type NodeKind int

const (
	NodeSeq NodeKind = iota
	NodeText
	NodeOutput
	NodeIf
	NodeFor
	NodeName
	NodeGetAttr
	NodeString
	NodeNumber
	NodeBool
	NodeFilter
	NodeCall
	NodeTest
	NodeNot
	NodeEq
	NodeNe
)

// Node is one node of a compiled program tree.
type Node struct {
	Kind NodeKind
	Line int

	// SVal holds text content, identifier, attribute, filter, function
	// or test names depending on Kind.
	SVal string
	NVal float64
	BVal bool

	Children []*Node
}

// parser builds a Node tree from the token stream.
type parser struct {
	name   string
	tokens []token
	pos    int
}

func parse(name string, tokens []token) (*Node, error) {
	p := &parser{name: name, tokens: tokens}
	root, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, NewError(name, p.current().line, fmt.Sprintf("unexpected %s", p.current()))
	}
	return root, nil
}

// parseUntil consumes template content until EOF or an end-of-scope
// block tag ({% else %}, {% endif %}, {% endfor %}), which it leaves
// unconsumed for the caller.
func (p *parser) parseUntil() (*Node, error) {
	seq := &Node{Kind: NodeSeq}
	for {
		tok := p.current()
		switch tok.kind {
		case tokenEOF:
			return seq, nil
		case tokenText:
			p.pos++
			seq.Children = append(seq.Children, &Node{Kind: NodeText, Line: tok.line, SVal: tok.value})
		case tokenVarBegin:
			p.pos++
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokenVarEnd, "}}"); err != nil {
				return nil, err
			}
			seq.Children = append(seq.Children, &Node{Kind: NodeOutput, Line: tok.line, Children: []*Node{expr}})
		case tokenBlockBegin:
			if p.peekBlockKeyword() == "else" || p.peekBlockKeyword() == "endif" || p.peekBlockKeyword() == "endfor" {
				return seq, nil
			}
			node, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			seq.Children = append(seq.Children, node)
		default:
			return nil, NewError(p.name, tok.line, fmt.Sprintf("unexpected %s", tok))
		}
	}
}

// peekBlockKeyword returns the keyword following a block-begin token
// without consuming anything.
func (p *parser) peekBlockKeyword() string {
	if p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].kind == tokenName {
		return p.tokens[p.pos+1].value
	}
	return ""
}

func (p *parser) parseBlock() (*Node, error) {
	begin := p.current()
	p.pos++ // {%
	tok := p.current()
	if tok.kind != tokenName {
		return nil, NewError(p.name, tok.line, fmt.Sprintf("expected block keyword, got %s", tok))
	}

	switch tok.value {
	case "if":
		p.pos++
		return p.parseIf(begin.line)
	case "for":
		p.pos++
		return p.parseFor(begin.line)
	default:
		return nil, NewError(p.name, tok.line, fmt.Sprintf("unknown block tag %q", tok.value))
	}
}

func (p *parser) parseIf(line int) (*Node, error) {
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokenBlockEnd, "%}"); err != nil {
		return nil, err
	}

	then, err := p.parseUntil()
	if err != nil {
		return nil, err
	}

	node := &Node{Kind: NodeIf, Line: line, Children: []*Node{cond, then}}

	switch p.peekBlockKeyword() {
	case "else":
		p.pos += 2 // {% else
		if err := p.expect(tokenBlockEnd, "%}"); err != nil {
			return nil, err
		}
		elseBody, err := p.parseUntil()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, elseBody)
		if p.peekBlockKeyword() != "endif" {
			return nil, NewError(p.name, p.current().line, "expected {% endif %}")
		}
		fallthrough
	case "endif":
		p.pos += 2 // {% endif
		if err := p.expect(tokenBlockEnd, "%}"); err != nil {
			return nil, err
		}
		return node, nil
	default:
		return nil, NewError(p.name, p.current().line, "unclosed {% if %} block")
	}
}

func (p *parser) parseFor(line int) (*Node, error) {
	tok := p.current()
	if tok.kind != tokenName {
		return nil, NewError(p.name, tok.line, "expected loop variable name")
	}
	loopVar := tok.value
	p.pos++

	tok = p.current()
	if tok.kind != tokenName || tok.value != "in" {
		return nil, NewError(p.name, tok.line, "expected 'in' in {% for %} tag")
	}
	p.pos++

	seq, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokenBlockEnd, "%}"); err != nil {
		return nil, err
	}

	body, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	if p.peekBlockKeyword() != "endfor" {
		return nil, NewError(p.name, p.current().line, "unclosed {% for %} block")
	}
	p.pos += 2 // {% endfor
	if err := p.expect(tokenBlockEnd, "%}"); err != nil {
		return nil, err
	}

	return &Node{Kind: NodeFor, Line: line, SVal: loopVar, Children: []*Node{seq, body}}, nil
}

// parseExpression parses the lowest-precedence level: equality
// comparisons and "is" tests over filtered operands.
func (p *parser) parseExpression() (*Node, error) {
	left, err := p.parseFiltered()
	if err != nil {
		return nil, err
	}

	tok := p.current()
	switch {
	case tok.kind == tokenOperator && (tok.value == "==" || tok.value == "!="):
		p.pos++
		right, err := p.parseFiltered()
		if err != nil {
			return nil, err
		}
		kind := NodeEq
		if tok.value == "!=" {
			kind = NodeNe
		}
		return &Node{Kind: kind, Line: tok.line, Children: []*Node{left, right}}, nil

	case tok.kind == tokenName && tok.value == "is":
		p.pos++
		negated := false
		if p.current().kind == tokenName && p.current().value == "not" {
			negated = true
			p.pos++
		}
		nameTok := p.current()
		if nameTok.kind != tokenName {
			return nil, NewError(p.name, nameTok.line, "expected test name after 'is'")
		}
		p.pos++
		test := &Node{Kind: NodeTest, Line: nameTok.line, SVal: nameTok.value, Children: []*Node{left}}
		args, err := p.parseOptionalArgs()
		if err != nil {
			return nil, err
		}
		test.Children = append(test.Children, args...)
		if negated {
			return &Node{Kind: NodeNot, Line: nameTok.line, Children: []*Node{test}}, nil
		}
		return test, nil
	}

	return left, nil
}

// parseFiltered parses a primary expression followed by any number of
// filter applications.
func (p *parser) parseFiltered() (*Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.current().kind == tokenOperator && p.current().value == "|" {
		p.pos++
		tok := p.current()
		if tok.kind != tokenName {
			return nil, NewError(p.name, tok.line, "expected filter name after '|'")
		}
		p.pos++
		filter := &Node{Kind: NodeFilter, Line: tok.line, SVal: tok.value, Children: []*Node{node}}
		args, err := p.parseOptionalArgs()
		if err != nil {
			return nil, err
		}
		filter.Children = append(filter.Children, args...)
		node = filter
	}
	return node, nil
}

func (p *parser) parsePrimary() (*Node, error) {
	tok := p.current()

	var node *Node
	switch tok.kind {
	case tokenName:
		switch tok.value {
		case "true", "false":
			p.pos++
			node = &Node{Kind: NodeBool, Line: tok.line, BVal: tok.value == "true"}
		case "not":
			p.pos++
			operand, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			return &Node{Kind: NodeNot, Line: tok.line, Children: []*Node{operand}}, nil
		default:
			p.pos++
			if p.current().kind == tokenOperator && p.current().value == "(" {
				args, err := p.parseOptionalArgs()
				if err != nil {
					return nil, err
				}
				node = &Node{Kind: NodeCall, Line: tok.line, SVal: tok.value, Children: args}
			} else {
				node = &Node{Kind: NodeName, Line: tok.line, SVal: tok.value}
			}
		}
	case tokenString:
		p.pos++
		node = &Node{Kind: NodeString, Line: tok.line, SVal: tok.value}
	case tokenNumber:
		p.pos++
		n, err := strconv.ParseFloat(tok.value, 64)
		if err != nil {
			return nil, NewError(p.name, tok.line, fmt.Sprintf("invalid number %q", tok.value))
		}
		node = &Node{Kind: NodeNumber, Line: tok.line, NVal: n}
	case tokenOperator:
		if tok.value == "(" {
			p.pos++
			inner, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectOperator(")"); err != nil {
				return nil, err
			}
			node = inner
			break
		}
		return nil, NewError(p.name, tok.line, fmt.Sprintf("unexpected %s", tok))
	default:
		return nil, NewError(p.name, tok.line, fmt.Sprintf("unexpected %s", tok))
	}

	// Dotted attribute access binds tightest.
	for p.current().kind == tokenOperator && p.current().value == "." {
		p.pos++
		attr := p.current()
		if attr.kind != tokenName {
			return nil, NewError(p.name, attr.line, "expected attribute name after '.'")
		}
		p.pos++
		node = &Node{Kind: NodeGetAttr, Line: attr.line, SVal: attr.value, Children: []*Node{node}}
	}
	return node, nil
}

// parseOptionalArgs parses a parenthesized, comma-separated argument
// list if one is present.
func (p *parser) parseOptionalArgs() ([]*Node, error) {
	if p.current().kind != tokenOperator || p.current().value != "(" {
		return nil, nil
	}
	p.pos++ // (

	var args []*Node
	if p.current().kind == tokenOperator && p.current().value == ")" {
		p.pos++
		return args, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.current()
		if tok.kind == tokenOperator && tok.value == "," {
			p.pos++
			continue
		}
		if tok.kind == tokenOperator && tok.value == ")" {
			p.pos++
			return args, nil
		}
		return nil, NewError(p.name, tok.line, fmt.Sprintf("expected ',' or ')', got %s", tok))
	}
}

func (p *parser) current() token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return token{kind: tokenEOF}
}

func (p *parser) atEOF() bool {
	return p.current().kind == tokenEOF
}

func (p *parser) expect(kind tokenKind, what string) error {
	tok := p.current()
	if tok.kind != kind {
		return NewError(p.name, tok.line, fmt.Sprintf("expected %q, got %s", what, tok))
	}
	p.pos++
	return nil
}

func (p *parser) expectOperator(op string) error {
	tok := p.current()
	if tok.kind != tokenOperator || tok.value != op {
		return NewError(p.name, tok.line, fmt.Sprintf("expected %q, got %s", op, tok))
	}
	p.pos++
	return nil
}
