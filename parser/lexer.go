package parser

import (
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokChar
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int

	// bol marks the first token of a logical line. Directives are
	// recognised by a "#" token with bol set.
	bol bool

	// noExpand paints an identifier that must not be macro expanded again.
	noExpand bool
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) isPunct(text string) bool {
	return t.is(tokPunct, text)
}

var punctuators = []string{
	"...", "<<=", ">>=",
	"##", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "->", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
}

// lexer splits header text into tokens. Comments are dropped and
// backslash-newline pairs are treated as whitespace, so a directive spans
// every token up to the next token with bol set.
type lexer struct {
	src   string
	pos   int
	line  int
	col   int
	bol   bool
	diags []Diagnostic
}

func tokenize(src string) ([]token, []Diagnostic) {
	lx := &lexer{src: src, line: 1, col: 1, bol: true}

	var toks []token
	for {
		t, ok := lx.next()
		if !ok {
			break
		}
		toks = append(toks, t)
	}

	return toks, lx.diags
}

func (lx *lexer) peekByte(off int) byte {
	if lx.pos+off >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+off]
}

func (lx *lexer) advance(n int) {
	for i := 0; i < n && lx.pos < len(lx.src); i++ {
		if lx.src[lx.pos] == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
		lx.pos++
	}
}

func (lx *lexer) errorf(line, col int, msg string) {
	lx.diags = append(lx.diags, Diagnostic{Line: line, Col: col, Msg: msg})
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.bol = true
			lx.advance(1)
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			lx.advance(1)
		case c == '\\' && (lx.peekByte(1) == '\n' || (lx.peekByte(1) == '\r' && lx.peekByte(2) == '\n')):
			// Line continuation.
			if lx.peekByte(1) == '\r' {
				lx.advance(3)
			} else {
				lx.advance(2)
			}
		case c == '/' && lx.peekByte(1) == '/':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance(1)
			}
		case c == '/' && lx.peekByte(1) == '*':
			line, col := lx.line, lx.col
			lx.advance(2)
			closed := false
			for lx.pos < len(lx.src) {
				if lx.src[lx.pos] == '*' && lx.peekByte(1) == '/' {
					lx.advance(2)
					closed = true
					break
				}
				lx.advance(1)
			}
			if !closed {
				lx.errorf(line, col, "unterminated comment")
			}
		default:
			return
		}
	}
}

func (lx *lexer) next() (token, bool) {
	lx.skipSpace()
	if lx.pos >= len(lx.src) {
		return token{}, false
	}

	t := token{line: lx.line, col: lx.col, bol: lx.bol}
	lx.bol = false

	c := lx.src[lx.pos]
	start := lx.pos

	switch {
	case isIdentStart(c):
		for lx.pos < len(lx.src) && isIdentChar(lx.src[lx.pos]) {
			lx.advance(1)
		}
		t.kind = tokIdent

	case isDigit(c) || (c == '.' && isDigit(lx.peekByte(1))):
		for lx.pos < len(lx.src) {
			ch := lx.src[lx.pos]
			if (ch == '+' || ch == '-') && lx.pos > start && strings.ContainsRune("eEpP", rune(lx.src[lx.pos-1])) {
				lx.advance(1)
				continue
			}
			if !isIdentChar(ch) && ch != '.' {
				break
			}
			lx.advance(1)
		}
		t.kind = tokNumber

	case c == '"' || c == '\'':
		quote := c
		lx.advance(1)
		for lx.pos < len(lx.src) && lx.src[lx.pos] != quote && lx.src[lx.pos] != '\n' {
			if lx.src[lx.pos] == '\\' {
				lx.advance(1)
			}
			lx.advance(1)
		}
		if lx.pos >= len(lx.src) || lx.src[lx.pos] != quote {
			lx.errorf(t.line, t.col, "unterminated literal")
		} else {
			lx.advance(1)
		}
		t.kind = tokString
		if quote == '\'' {
			t.kind = tokChar
		}

	default:
		t.kind = tokPunct
		n := 1
		for _, p := range punctuators {
			if strings.HasPrefix(lx.src[lx.pos:], p) {
				n = len(p)
				break
			}
		}
		lx.advance(n)
	}

	t.text = lx.src[start:lx.pos]
	return t, true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
