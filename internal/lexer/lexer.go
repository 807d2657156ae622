// Package lexer splits a command line into shell tokens.
package lexer

import (
	"strings"

	"psh/internal/slice"
)

// Lexer produces tokens lazily from an immutable input line.
type Lexer struct {
	input string
	pos   int
}

func New(input string) *Lexer {
	return &Lexer{input: input}
}

func isDelimiter(c byte) bool {
	switch c {
	case '|', '<', '>', '&', ';', '(', ')':
		return true
	}
	return slice.IsSpace(c)
}

// Next returns the next token. Once the input is exhausted it keeps
// returning EOF.
func (l *Lexer) Next() Token {
	l.pos = slice.TrimSpaces(l.input, l.pos)
	start := l.pos

	if l.pos >= len(l.input) {
		return Token{Kind: EOF, Pos: start, End: start}
	}

	op := func(kind Kind, width int) Token {
		l.pos += width
		return Token{Kind: kind, Text: l.input[start:l.pos], Pos: start, End: l.pos}
	}

	switch l.input[l.pos] {
	case '|':
		if l.peek(1) == '|' {
			return op(OrIf, 2)
		}
		return op(Pipe, 1)
	case '<':
		if l.peek(1) == '<' {
			return op(Heredoc, 2)
		}
		return op(RedirectIn, 1)
	case '>':
		switch l.peek(1) {
		case '>':
			return op(RedirectAppend, 2)
		case '&':
			return op(RedirectAndOut, 2)
		}
		return op(RedirectOut, 1)
	case '&':
		switch l.peek(1) {
		case '&':
			return op(AndIf, 2)
		case '>':
			return op(RedirectAndOut, 2)
		}
		return op(Background, 1)
	case ';':
		return op(Semicolon, 1)
	case '(':
		return op(LParen, 1)
	case ')':
		return op(RParen, 1)
	}

	text := l.readWord()
	return Token{Kind: Word, Text: text, Pos: start, End: l.pos}
}

func (l *Lexer) peek(offset int) byte {
	if l.pos+offset < len(l.input) {
		return l.input[l.pos+offset]
	}
	return 0
}

func (l *Lexer) readWord() string {
	var res strings.Builder

	for quote := byte(0); l.pos < len(l.input); l.pos++ {
		c := l.input[l.pos]

		switch {
		case quote == 0 && isDelimiter(c):
			return res.String()
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
			continue
		case quote != 0 && c == quote:
			quote = 0
			continue
		case quote == '"' && c == '\\' && l.pos+1 < len(l.input):
			l.pos++
			c = l.input[l.pos]
		}

		res.WriteByte(c)
	}

	return res.String()
}

// Tokens lexes the whole input, excluding the trailing EOF.
func Tokens(input string) []Token {
	var out []Token
	for l := New(input); ; {
		tok := l.Next()
		if tok.Kind == EOF {
			return out
		}
		out = append(out, tok)
	}
}
