// Package execute runs command trees.
//
// External programs are started with fork/exec in their own process group.
// Anything that needs a forked copy of the shell (a subshell, a compound
// command in the background, a builtin inside a pipeline) is run by starting
// the shell binary again with -c and the rendered subtree.
package execute

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"psh/internal/ast"
	"psh/internal/builtin"
	"psh/internal/env"
	"psh/internal/jobs"
	"psh/internal/logger"
	"psh/internal/plugin"
	"psh/internal/stdio"
	"psh/internal/term"
)

// MaxStages is the largest number of pipeline stages that are started.
const MaxStages = 16

const defaultLabelWidth = 64

// LineSource supplies here-document bodies, one line at a time without the
// trailing newline.
type LineSource interface {
	ReadLine() (string, error)
}

type Executor struct {
	Env      env.Environment
	Builtins *builtin.Registry
	Plugins  *plugin.Registry
	Jobs     *jobs.Manager
	// Term is nil when the shell has no terminal.
	Term *term.Terminal

	Stdin, Stdout, Stderr *os.File

	// Lines feeds here-documents. When nil they are read from Stdin.
	Lines LineSource

	// Self starts a child shell; "-c" and the source to run are appended.
	Self []string

	XTrace     bool
	MaxStages  int
	LabelWidth int

	// Exit, when set, is called by the exit builtin after the request has
	// been recorded.
	Exit func(status int)

	exited     bool
	exitStatus int
	stdinLines LineSource
}

// Run executes n and returns its status. A nil tree is an error: -1.
// Nothing more runs once the exit builtin has been called.
func (e *Executor) Run(n ast.Node) int {
	if e.exited {
		return e.exitStatus
	}

	switch n := n.(type) {
	case *ast.Command:
		return e.runCommand(n)
	case *ast.Pipeline, *ast.Subshell:
		return e.runPipeline(n)
	case *ast.Sequence:
		e.Run(n.Left)
		return e.Run(n.Right)
	case *ast.And:
		if status := e.Run(n.Left); status != 0 {
			return status
		}
		return e.Run(n.Right)
	case *ast.Or:
		if status := e.Run(n.Left); status == 0 {
			return status
		}
		return e.Run(n.Right)
	case *ast.Background:
		return e.runBackground(n)
	}
	return -1
}

func (e *Executor) diag(format string, args ...any) {
	fmt.Fprintf(e.Stderr, "psh: "+format+"\n", args...)
}

func (e *Executor) expand(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = env.Expand(e.Env, w)
	}
	return out
}

func (e *Executor) trace(argv []string) {
	if !e.XTrace {
		return
	}
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = ast.Quote(arg)
	}
	fmt.Fprintf(e.Stderr, "+ %s\n", strings.Join(quoted, " "))
}

func (e *Executor) label(n ast.Node) string {
	width := e.LabelWidth
	if width <= 0 {
		width = defaultLabelWidth
		if e.Term.IsTTY() {
			if cols, _, err := e.Term.Size(); err == nil && cols > 20 {
				width = cols - 20
			}
		}
	}
	return ast.Label(n, width)
}

func (e *Executor) maxStages() int {
	if e.MaxStages <= 0 || e.MaxStages > MaxStages {
		return MaxStages
	}
	return e.MaxStages
}

// inProcess reports whether name is run inside the shell rather than as a
// program from PATH.
func (e *Executor) inProcess(name string) bool {
	if e.Builtins != nil && e.Builtins.Find(name) != nil {
		return true
	}
	return e.Plugins != nil && e.Plugins.Find(name) != nil
}

func (e *Executor) builtinContext(s *stdio.Stdio) *builtin.Context {
	return &builtin.Context{
		Stdio:    s,
		Env:      e.Env,
		Jobs:     e.Jobs,
		Plugins:  e.Plugins,
		Builtins: e.Builtins,
		Exit:     e.exit,
	}
}

func (e *Executor) exit(status int) {
	e.exited, e.exitStatus = true, status
	if e.Exit != nil {
		e.Exit(status)
	}
}

// Exited reports whether the exit builtin ran, and with which status.
func (e *Executor) Exited() (int, bool) {
	return e.exitStatus, e.exited
}

// runCommand dispatches a single command: builtin, then plugin, then PATH.
// Builtins and plugins run inside the shell with their redirections applied
// to their Stdio only.
func (e *Executor) runCommand(c *ast.Command) int {
	if len(c.Argv) == 0 {
		return -1
	}

	argv := e.expand(c.Argv)
	e.trace(argv)

	redirs, err := e.openRedirections(c.Redirs)
	if err != nil {
		e.diag("%v", err)
		return 1
	}
	defer redirs.Close()

	if e.Builtins != nil {
		if b := e.Builtins.Find(argv[0]); b != nil {
			logger.Tracef("builtin %s", argv[0])
			return b.Func(e.builtinContext(redirs.stdio(e.Stdin, e.Stdout, e.Stderr)), argv)
		}
	}

	if e.Plugins != nil {
		if status, handled := e.Plugins.Execute(redirs.stdio(e.Stdin, e.Stdout, e.Stderr), argv); handled {
			logger.Tracef("plugin %s: status %d", argv[0], status)
			return status
		}
	}

	foreground := e.Term.Interactive()
	pid, status, err := e.startExternal(argv, redirs.table(e.Stdin, e.Stdout, e.Stderr), 0, foreground)
	if err != nil {
		e.diag("%v", err)
		return -1
	}
	if pid == 0 {
		return status
	}

	g := &group{pgid: pid, pids: []int{pid}, last: pid, handed: foreground}
	return e.waitForeground(g, e.label(c))
}

// runBackground starts n.Child in a new process group, registers it as a job
// and returns without waiting.
func (e *Executor) runBackground(n *ast.Background) int {
	g := e.startPipeline(ast.Stages(n.Child), false)
	if len(g.pids) == 0 {
		if g.err != nil {
			return -1
		}
		return 0
	}

	job := e.Jobs.Create(g.pgid, e.label(n.Child), g.pids...)
	if e.Term.Interactive() {
		fmt.Fprintf(e.Stderr, "[%d] %d\n", job.ID, g.pgid)
	}
	if g.err != nil {
		return -1
	}
	return 0
}

type stdinLines struct {
	r *bufio.Reader
}

func (s stdinLines) ReadLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimSuffix(line, "\n"), err
}

func (e *Executor) lines() LineSource {
	if e.Lines != nil {
		return e.Lines
	}
	if e.stdinLines == nil {
		e.stdinLines = stdinLines{r: bufio.NewReader(e.Stdin)}
	}
	return e.stdinLines
}
