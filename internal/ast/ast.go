// Package ast defines the command tree produced by the parser.
package ast

// Node is one of *Command, *Pipeline, *Sequence, *Background, *And, *Or or
// *Subshell.
type Node interface {
	String() string
	node()
}

// RedirKind is the type of a Redirection.
type RedirKind int

const (
	Input RedirKind = iota
	Output
	Append
	Heredoc
)

func (k RedirKind) String() string {
	switch k {
	case Input:
		return "<"
	case Output:
		return ">"
	case Append:
		return ">>"
	case Heredoc:
		return "<<"
	}
	return "?"
}

// DefaultFd is the descriptor a redirection of kind k applies to when no
// explicit descriptor is given.
func (k RedirKind) DefaultFd() int {
	if k == Input || k == Heredoc {
		return 0
	}
	return 1
}

// Redirection binds Fd to Target. For Heredoc, Target is the delimiter line.
// Dup marks the stderr half of "&>": it shares the descriptor opened by the
// redirection right before it.
type Redirection struct {
	Fd     int
	Kind   RedirKind
	Target string
	Dup    bool
}

type Command struct {
	Argv   []string
	Redirs []Redirection
}

type Pipeline struct {
	Left, Right Node
}

type Sequence struct {
	Left, Right Node
}

type Background struct {
	Child Node
}

type And struct {
	Left, Right Node
}

type Or struct {
	Left, Right Node
}

type Subshell struct {
	Child Node
}

func (*Command) node()    {}
func (*Pipeline) node()   {}
func (*Sequence) node()   {}
func (*Background) node() {}
func (*And) node()        {}
func (*Or) node()         {}
func (*Subshell) node()   {}

// Stages flattens a (possibly nested) pipeline into its stages in
// declaration order. Any other node is a single stage.
func Stages(n Node) []Node {
	p, ok := n.(*Pipeline)
	if !ok {
		return []Node{n}
	}
	return append(Stages(p.Left), Stages(p.Right)...)
}

// Walk visits n and its descendants in pre-order. Children of a node are
// skipped when fn returns false for it.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}

	switch n := n.(type) {
	case *Pipeline:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Sequence:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *And:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Or:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Background:
		Walk(n.Child, fn)
	case *Subshell:
		Walk(n.Child, fn)
	}
}
