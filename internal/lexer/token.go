package lexer

import "fmt"

// Kind identifies the type of a Token.
type Kind int

const (
	EOF Kind = iota
	Word
	Pipe
	AndIf
	OrIf
	RedirectIn
	RedirectOut
	RedirectAppend
	RedirectAndOut
	Heredoc
	Background
	Semicolon
	LParen
	RParen
)

var kindNames = map[Kind]string{
	EOF:            "EOF",
	Word:           "WORD",
	Pipe:           "PIPE",
	AndIf:          "AND_IF",
	OrIf:           "OR_IF",
	RedirectIn:     "REDIRECT_IN",
	RedirectOut:    "REDIRECT_OUT",
	RedirectAppend: "REDIRECT_APPEND",
	RedirectAndOut: "REDIRECT_AND_OUT",
	Heredoc:        "HEREDOC",
	Background:     "BACKGROUND",
	Semicolon:      "SEMICOLON",
	LParen:         "LPAREN",
	RParen:         "RPAREN",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsRedirect reports whether k is one of the redirection operators.
func (k Kind) IsRedirect() bool {
	switch k {
	case RedirectIn, RedirectOut, RedirectAppend, RedirectAndOut, Heredoc:
		return true
	}
	return false
}

// Token is a single lexical unit. Pos and End are byte offsets into the
// input; for words they span the raw text including any quotes.
type Token struct {
	Kind Kind
	Text string
	Pos  int
	End  int
}

func (t Token) String() string {
	if t.Kind == Word {
		return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
	}
	return t.Kind.String()
}
