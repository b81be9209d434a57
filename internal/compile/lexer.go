// Package compile turns template source into an executable Program.
//
// The pipeline is lexer -> parser -> Program. Programs are pure data
// (a node tree) so they can be persisted by the artifact store and
// re-activated in a later process without recompiling. Any stage
// failure surfaces as a *errors.SyntaxError carrying the template name.
package compile

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenVarBegin   // {{
	tokenVarEnd     // }}
	tokenBlockBegin // {%
	tokenBlockEnd   // %}
	tokenName
	tokenString
	tokenNumber
	tokenOperator // | . , ( ) == != =
	tokenEOF
)

type token struct {
	kind  tokenKind
	value string
	line  int
}

func (t token) String() string {
	switch t.kind {
	case tokenEOF:
		return "end of template"
	case tokenText:
		return "text"
	default:
		return fmt.Sprintf("%q", t.value)
	}
}

// lexer splits template source into tokens. Inside {{ }} and {% %}
// delimiters it produces expression tokens; outside it produces raw
// text tokens.
type lexer struct {
	name   string
	source string
	pos    int
	line   int
	tokens []token
}

func newLexer(name, source string) *lexer {
	return &lexer{name: name, source: source, line: 1}
}

func (lx *lexer) tokenize() ([]token, error) {
	for lx.pos < len(lx.source) {
		rest := lx.source[lx.pos:]

		switch {
		case strings.HasPrefix(rest, "{{"):
			lx.emit(tokenVarBegin, "{{")
			lx.pos += 2
			if err := lx.lexExpression("}}"); err != nil {
				return nil, err
			}
		case strings.HasPrefix(rest, "{%"):
			lx.emit(tokenBlockBegin, "{%")
			lx.pos += 2
			if err := lx.lexExpression("%}"); err != nil {
				return nil, err
			}
		default:
			lx.lexText()
		}
	}
	lx.emit(tokenEOF, "")
	return lx.tokens, nil
}

func (lx *lexer) lexText() {
	start := lx.pos
	for lx.pos < len(lx.source) {
		rest := lx.source[lx.pos:]
		if strings.HasPrefix(rest, "{{") || strings.HasPrefix(rest, "{%") {
			break
		}
		if lx.source[lx.pos] == '\n' {
			lx.line++
		}
		lx.pos++
	}
	if lx.pos > start {
		lx.emit(tokenText, lx.source[start:lx.pos])
	}
}

func (lx *lexer) lexExpression(closer string) error {
	for lx.pos < len(lx.source) {
		rest := lx.source[lx.pos:]

		if strings.HasPrefix(rest, closer) {
			if closer == "}}" {
				lx.emit(tokenVarEnd, closer)
			} else {
				lx.emit(tokenBlockEnd, closer)
			}
			lx.pos += 2
			return nil
		}

		ch := rune(lx.source[lx.pos])
		switch {
		case ch == '\n':
			lx.line++
			lx.pos++
		case unicode.IsSpace(ch):
			lx.pos++
		case ch == '\'' || ch == '"':
			if err := lx.lexString(byte(ch)); err != nil {
				return err
			}
		case unicode.IsDigit(ch):
			lx.lexNumber()
		case isNameStart(ch):
			lx.lexName()
		case strings.HasPrefix(rest, "==") || strings.HasPrefix(rest, "!="):
			lx.emit(tokenOperator, rest[:2])
			lx.pos += 2
		case strings.ContainsRune("|.,()=", ch):
			lx.emit(tokenOperator, string(ch))
			lx.pos++
		default:
			return NewError(lx.name, lx.line, fmt.Sprintf("unexpected character %q", ch))
		}
	}
	return NewError(lx.name, lx.line, fmt.Sprintf("unclosed %q delimiter", closer))
}

func (lx *lexer) lexString(quote byte) error {
	lx.pos++ // opening quote
	var b strings.Builder
	for lx.pos < len(lx.source) {
		ch := lx.source[lx.pos]
		switch ch {
		case quote:
			lx.pos++
			lx.tokens = append(lx.tokens, token{kind: tokenString, value: b.String(), line: lx.line})
			return nil
		case '\\':
			if lx.pos+1 < len(lx.source) {
				lx.pos++
				b.WriteByte(lx.source[lx.pos])
				lx.pos++
				continue
			}
			lx.pos++
		case '\n':
			return NewError(lx.name, lx.line, "unterminated string literal")
		default:
			b.WriteByte(ch)
			lx.pos++
		}
	}
	return NewError(lx.name, lx.line, "unterminated string literal")
}

func (lx *lexer) lexNumber() {
	start := lx.pos
	seenDot := false
	for lx.pos < len(lx.source) {
		ch := lx.source[lx.pos]
		if ch == '.' && !seenDot {
			seenDot = true
			lx.pos++
			continue
		}
		if ch < '0' || ch > '9' {
			break
		}
		lx.pos++
	}
	lx.emit(tokenNumber, lx.source[start:lx.pos])
}

func (lx *lexer) lexName() {
	start := lx.pos
	for lx.pos < len(lx.source) {
		ch := rune(lx.source[lx.pos])
		if !isNameStart(ch) && !unicode.IsDigit(ch) {
			break
		}
		lx.pos++
	}
	lx.emit(tokenName, lx.source[start:lx.pos])
}

func (lx *lexer) emit(kind tokenKind, value string) {
	lx.tokens = append(lx.tokens, token{kind: kind, value: value, line: lx.line})
}

func isNameStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}
