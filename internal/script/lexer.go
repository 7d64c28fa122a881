// Package script reads and writes Nero source text: relation declarations,
// axioms and rules.
package script

import (
	"fmt"
	"strings"
	"text/scanner"

	"nero/internal/nerr"
)

// Multi-character operators. text/scanner token kinds are small negative
// numbers; these sit well below them.
const (
	tokImplies = -(iota + 100)
	tokEq
	tokNe
	tokLe
	tokGe
)

type token struct {
	kind rune
	text string
	pos  scanner.Position
}

func (t token) String() string {
	switch t.kind {
	case scanner.EOF:
		return "end of input"
	case scanner.Ident, scanner.Int, scanner.Float, scanner.String, scanner.RawString:
		return fmt.Sprintf("%q", t.text)
	}
	return "'" + t.text + "'"
}

type lexer struct {
	s     scanner.Scanner
	err   error
	ahead []token
}

func newLexer(src string) *lexer {
	lx := &lexer{}
	lx.s.Init(strings.NewReader(src))
	lx.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanStrings | scanner.ScanRawStrings | scanner.ScanComments | scanner.SkipComments
	lx.s.Error = func(s *scanner.Scanner, msg string) {
		if lx.err == nil {
			lx.err = syntaxError(s.Pos(), "%s", msg)
		}
	}
	return lx
}

func (lx *lexer) scan() token {
	kind := lx.s.Scan()
	t := token{kind: kind, text: lx.s.TokenText(), pos: lx.s.Position}
	two := func(next rune, as rune) bool {
		if lx.s.Peek() != next {
			return false
		}
		lx.s.Next()
		t.kind = as
		t.text += string(next)
		return true
	}
	switch kind {
	case ':':
		two('-', tokImplies)
	case '=':
		two('=', tokEq)
	case '!':
		two('=', tokNe)
	case '<':
		two('=', tokLe)
	case '>':
		two('=', tokGe)
	}
	return t
}

// peek returns the token n positions ahead without consuming it.
func (lx *lexer) peek(n int) token {
	for len(lx.ahead) <= n {
		lx.ahead = append(lx.ahead, lx.scan())
	}
	return lx.ahead[n]
}

func (lx *lexer) next() token {
	t := lx.peek(0)
	lx.ahead = lx.ahead[1:]
	return t
}

func syntaxError(pos scanner.Position, format string, args ...interface{}) error {
	return nerr.New(nerr.SyntaxError, "%d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
}
