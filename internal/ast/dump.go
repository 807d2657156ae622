package ast

import (
	"fmt"
	"strings"
)

// Dump renders the structure of n as an indented tree, one node per line.
func Dump(n Node) string {
	var b strings.Builder
	dump(&b, n, 0)
	return b.String()
}

func dump(b *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)

	switch n := n.(type) {
	case nil:
		fmt.Fprintf(b, "%s<nil>\n", indent)
	case *Command:
		fmt.Fprintf(b, "%sCommand %q\n", indent, n.Argv)
		for _, r := range n.Redirs {
			dup := ""
			if r.Dup {
				dup = " dup"
			}
			fmt.Fprintf(b, "%s  Redirect %d%s %q%s\n", indent, r.Fd, r.Kind, r.Target, dup)
		}
	case *Pipeline:
		fmt.Fprintf(b, "%sPipeline\n", indent)
		dump(b, n.Left, depth+1)
		dump(b, n.Right, depth+1)
	case *Sequence:
		fmt.Fprintf(b, "%sSequence\n", indent)
		dump(b, n.Left, depth+1)
		dump(b, n.Right, depth+1)
	case *And:
		fmt.Fprintf(b, "%sAnd\n", indent)
		dump(b, n.Left, depth+1)
		dump(b, n.Right, depth+1)
	case *Or:
		fmt.Fprintf(b, "%sOr\n", indent)
		dump(b, n.Left, depth+1)
		dump(b, n.Right, depth+1)
	case *Background:
		fmt.Fprintf(b, "%sBackground\n", indent)
		dump(b, n.Child, depth+1)
	case *Subshell:
		fmt.Fprintf(b, "%sSubshell\n", indent)
		dump(b, n.Child, depth+1)
	}
}
