package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func cmd(argv ...string) *Command {
	return &Command{Argv: argv}
}

func TestStages(t *testing.T) {
	a, b, c, d := cmd("a"), cmd("b"), cmd("c"), cmd("d")

	rightNested := &Pipeline{Left: a, Right: &Pipeline{Left: b, Right: &Pipeline{Left: c, Right: d}}}
	leftNested := &Pipeline{Left: &Pipeline{Left: &Pipeline{Left: a, Right: b}, Right: c}, Right: d}

	assert.Equal(t, []Node{a, b, c, d}, Stages(rightNested))
	assert.Equal(t, []Node{a, b, c, d}, Stages(leftNested))
	assert.Equal(t, []Node{a}, Stages(a))
}

func TestWalkVisitsEachNodeOnce(t *testing.T) {
	trees := map[string]Node{
		"single": cmd("ls"),
		"empty argv": &Command{},
		"nested": &Sequence{
			Left: &Background{Child: &Pipeline{Left: cmd("a"), Right: cmd("b")}},
			Right: &Or{
				Left:  &And{Left: cmd("c"), Right: &Subshell{Child: cmd("d")}},
				Right: &Subshell{Child: &Sequence{Left: cmd("e"), Right: cmd("f")}},
			},
		},
	}

	want := map[string]int{"single": 1, "empty argv": 1, "nested": 14}

	for name, tree := range trees {
		t.Run(name, func(t *testing.T) {
			seen := map[Node]int{}
			Walk(tree, func(n Node) bool {
				seen[n]++
				return true
			})

			assert.Len(t, seen, want[name])
			for n, count := range seen {
				assert.Equal(t, 1, count, "visited %s more than once", n)
			}
		})
	}
}

func TestWalkPrune(t *testing.T) {
	tree := &And{Left: &Subshell{Child: cmd("a")}, Right: cmd("b")}

	var visited []string
	Walk(tree, func(n Node) bool {
		visited = append(visited, n.String())
		_, isSub := n.(*Subshell)
		return !isSub
	})

	assert.Equal(t, []string{"(a) && b", "(a)", "b"}, visited)
}

func TestWalkNil(t *testing.T) {
	Walk(nil, func(Node) bool {
		t.Fatal("callback must not run for nil")
		return true
	})
}

func TestString(t *testing.T) {
	cases := []struct {
		node Node
		want string
	}{
		{cmd("echo", "a b", ""), `echo "a b" ""`},
		{cmd("echo", `say "hi"`, `c:\x`), `echo "say \"hi\"" "c:\\x"`},
		{&Command{Argv: []string{"cat"}, Redirs: []Redirection{{Fd: 0, Kind: Input, Target: "in"}, {Fd: 1, Kind: Append, Target: "out log"}}}, `cat < in >> "out log"`},
		{&Command{Argv: []string{"ls"}, Redirs: []Redirection{{Fd: 2, Kind: Output, Target: "err"}}}, `ls 2> err`},
		{&Command{Argv: []string{"make"}, Redirs: []Redirection{{Fd: 1, Kind: Output, Target: "log"}, {Fd: 2, Kind: Output, Target: "log", Dup: true}}}, `make &> log`},
		{&Command{Argv: []string{"make"}, Redirs: []Redirection{{Fd: 3, Kind: Output, Target: "log"}, {Fd: 2, Kind: Output, Target: "log", Dup: true}}}, `make 3&> log`},
		{&Command{Argv: []string{"cat"}, Redirs: []Redirection{{Fd: 0, Kind: Heredoc, Target: "EOF"}}}, `cat << EOF`},
		{&Pipeline{Left: cmd("a"), Right: &Pipeline{Left: cmd("b"), Right: cmd("c")}}, `a | b | c`},
		{&And{Left: &Or{Left: cmd("a"), Right: cmd("b")}, Right: cmd("c")}, `a || b && c`},
		{&Sequence{Left: &Background{Child: cmd("sleep", "1")}, Right: cmd("ls")}, `sleep 1 & ls`},
		{&Sequence{Left: cmd("a"), Right: &Background{Child: cmd("b")}}, `a; b &`},
		{&Subshell{Child: &Sequence{Left: cmd("cd", "/"), Right: cmd("pwd")}}, `(cd /; pwd)`},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.node.String())
		})
	}
}

func TestLabel(t *testing.T) {
	n := &Pipeline{Left: cmd("sleep", "100"), Right: cmd("cat")}

	assert.Equal(t, "sleep 100 | cat", Label(n, 64))
	assert.Equal(t, "sleep 1...", Label(n, 10))
	assert.Equal(t, "sl", Label(n, 2))
	assert.Equal(t, "sleep 100 | cat", Label(n, 0))
	assert.Equal(t, "", Label(nil, 10))
}

func TestDump(t *testing.T) {
	n := &And{
		Left:  &Command{Argv: []string{"make"}, Redirs: []Redirection{{Fd: 1, Kind: Output, Target: "log"}, {Fd: 2, Kind: Output, Target: "log", Dup: true}}},
		Right: &Subshell{Child: cmd("echo", "ok")},
	}

	want := `And
  Command ["make"]
    Redirect 1> "log"
    Redirect 2> "log" dup
  Subshell
    Command ["echo" "ok"]
`
	assert.Equal(t, want, Dump(n))
}
