package ast

import (
	"strconv"
	"strings"
)

// The String methods render source that parses back into the same tree, so
// a subtree can be handed to a child shell with -c.

func (c *Command) String() string {
	var parts []string
	for _, arg := range c.Argv {
		parts = append(parts, Quote(arg))
	}

	for i, r := range c.Redirs {
		if r.Dup {
			continue
		}
		op := r.Kind.String()
		if i+1 < len(c.Redirs) && c.Redirs[i+1].Dup {
			op = "&>"
			if r.Fd != 1 {
				op = strconv.Itoa(r.Fd) + op
			}
		} else if r.Fd != r.Kind.DefaultFd() {
			op = strconv.Itoa(r.Fd) + op
		}
		parts = append(parts, op+" "+Quote(r.Target))
	}

	return strings.Join(parts, " ")
}

func (p *Pipeline) String() string {
	return p.Left.String() + " | " + p.Right.String()
}

func (s *Sequence) String() string {
	if _, ok := s.Left.(*Background); ok {
		return s.Left.String() + " " + s.Right.String()
	}
	return s.Left.String() + "; " + s.Right.String()
}

func (b *Background) String() string {
	return b.Child.String() + " &"
}

func (a *And) String() string {
	return a.Left.String() + " && " + a.Right.String()
}

func (o *Or) String() string {
	return o.Left.String() + " || " + o.Right.String()
}

func (s *Subshell) String() string {
	return "(" + s.Child.String() + ")"
}

// Quote returns word in a form the lexer reads back as the same word.
func Quote(word string) string {
	if word != "" && !strings.ContainsAny(word, " \t\n\v\f\r|<>&;()'\"\\") {
		return word
	}

	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(word); i++ {
		if word[i] == '"' || word[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(word[i])
	}
	b.WriteByte('"')
	return b.String()
}

// Label is a short human readable description of n, used for job listings.
func Label(n Node, max int) string {
	if n == nil {
		return ""
	}

	s := n.String()
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
