// Package parser builds an ast.Node from a lexer token stream.
//
// Grammar, from highest to lowest precedence:
//
//	primary     := '(' list ')' | command
//	command     := (WORD | redirection)+
//	redirection := [fd] ('<' | '>' | '>>' | '<<' | '&>') WORD
//	pipeline    := primary ('|' primary)*
//	and_or      := pipeline (('&&' | '||') pipeline)*
//	list        := and_or ['&'] [';'] [list]
package parser

import (
	"fmt"
	"strconv"

	"psh/internal/ast"
	"psh/internal/lexer"
	"psh/internal/slice"
)

// SyntaxError describes a structural parse failure.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at column %d: %s", e.Pos+1, e.Msg)
}

// Parser is a recursive-descent parser with one token of lookahead.
type Parser struct {
	lex *lexer.Lexer
	tok lexer.Token
}

func New(lex *lexer.Lexer) *Parser {
	p := &Parser{lex: lex}
	p.advance()
	return p
}

// ParseString parses a single command line.
func ParseString(line string) (ast.Node, error) {
	return New(lexer.New(line)).Parse()
}

// Parse returns the tree for the remaining input, or (nil, nil) if there is
// nothing left to parse. On error no partial tree is returned.
func (p *Parser) Parse() (ast.Node, error) {
	if p.tok.Kind == lexer.EOF {
		return nil, nil
	}

	n, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lexer.EOF {
		return nil, p.unexpected()
	}
	return n, nil
}

func (p *Parser) advance() {
	p.tok = p.lex.Next()
}

func (p *Parser) unexpected() *SyntaxError {
	if p.tok.Kind == lexer.EOF {
		return &SyntaxError{Pos: p.tok.Pos, Msg: "unexpected end of input"}
	}
	return &SyntaxError{Pos: p.tok.Pos, Msg: fmt.Sprintf("unexpected token %q", p.tok.Text)}
}

func (p *Parser) startsCommand() bool {
	return p.tok.Kind == lexer.Word || p.tok.Kind == lexer.LParen || p.tok.Kind.IsRedirect()
}

func (p *Parser) parseList() (ast.Node, error) {
	left, err := p.parseAndOr()
	if err != nil {
		return nil, err
	}

	separated := false
	switch p.tok.Kind {
	case lexer.Background:
		p.advance()
		left = &ast.Background{Child: left}
		separated = true
		if p.tok.Kind == lexer.Semicolon {
			p.advance()
		}
	case lexer.Semicolon:
		p.advance()
		separated = true
	}

	if !separated || !p.startsCommand() {
		return left, nil
	}

	right, err := p.parseList()
	if err != nil {
		return nil, err
	}
	return &ast.Sequence{Left: left, Right: right}, nil
}

func (p *Parser) parseAndOr() (ast.Node, error) {
	left, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}

	for p.tok.Kind == lexer.AndIf || p.tok.Kind == lexer.OrIf {
		op := p.tok.Kind
		p.advance()

		right, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}

		if op == lexer.AndIf {
			left = &ast.And{Left: left, Right: right}
		} else {
			left = &ast.Or{Left: left, Right: right}
		}
	}

	return left, nil
}

func (p *Parser) parsePipeline() (ast.Node, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	stages := []ast.Node{first}
	for p.tok.Kind == lexer.Pipe {
		p.advance()

		stage, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	// Right-nested: a | b | c is Pipeline{a, Pipeline{b, c}}.
	node := stages[len(stages)-1]
	for i := len(stages) - 2; i >= 0; i-- {
		node = &ast.Pipeline{Left: stages[i], Right: node}
	}
	return node, nil
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	if p.tok.Kind != lexer.LParen {
		return p.parseCommand()
	}

	open := p.tok
	p.advance()

	inner, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lexer.RParen {
		return nil, &SyntaxError{Pos: open.Pos, Msg: "unmatched '('"}
	}
	p.advance()

	return &ast.Subshell{Child: inner}, nil
}

func (p *Parser) parseCommand() (ast.Node, error) {
	cmd := &ast.Command{}

	// fdCandidate is true while the last argv word is an unquoted run of
	// digits; fdEnd is where it ended in the input.
	fdCandidate, fdEnd := false, -1

	for {
		switch {
		case p.tok.Kind == lexer.Word:
			cmd.Argv = append(cmd.Argv, p.tok.Text)
			fdCandidate = isDigits(p.tok.Text) && p.tok.End-p.tok.Pos == len(p.tok.Text)
			fdEnd = p.tok.End
			p.advance()

		case p.tok.Kind.IsRedirect():
			op := p.tok

			fd := -1
			if n := len(cmd.Argv); fdCandidate && fdEnd == op.Pos {
				if v, err := strconv.Atoi(cmd.Argv[n-1]); err == nil {
					fd = v
					cmd.Argv = slice.Remove(cmd.Argv, n-1, n)
				}
			}
			fdCandidate = false

			p.advance()
			if p.tok.Kind != lexer.Word {
				return nil, &SyntaxError{Pos: p.tok.Pos, Msg: fmt.Sprintf("expected file name after %q", op.Text)}
			}
			cmd.Redirs = append(cmd.Redirs, redirections(op.Kind, fd, p.tok.Text)...)
			p.advance()

		default:
			if len(cmd.Argv) == 0 {
				return nil, p.unexpected()
			}
			return cmd, nil
		}
	}
}

func redirections(op lexer.Kind, fd int, target string) []ast.Redirection {
	var kind ast.RedirKind
	switch op {
	case lexer.RedirectIn:
		kind = ast.Input
	case lexer.RedirectAppend:
		kind = ast.Append
	case lexer.Heredoc:
		kind = ast.Heredoc
	default:
		kind = ast.Output
	}

	if fd < 0 {
		fd = kind.DefaultFd()
	}
	out := []ast.Redirection{{Fd: fd, Kind: kind, Target: target}}

	if op == lexer.RedirectAndOut {
		out = append(out, ast.Redirection{Fd: 2, Kind: ast.Output, Target: target, Dup: true})
	}
	return out
}

func isDigits(s string) bool {
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
