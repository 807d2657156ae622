package execute

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"psh/internal/ast"
	"psh/internal/jobs"
	"psh/internal/logger"
	"psh/internal/term"
)

// group is a started pipeline: one process group, one process per stage
// that could be started.
type group struct {
	pgid int
	pids []int

	// last is the pid of the final stage, 0 when that stage did not start;
	// status then holds its status.
	last   int
	status int

	// handed is set when the group was given the terminal.
	handed bool

	err error
}

func (e *Executor) runPipeline(n ast.Node) int {
	g := e.startPipeline(ast.Stages(n), true)
	if len(g.pids) == 0 {
		if g.err != nil {
			return -1
		}
		return g.status
	}

	status := e.waitForeground(g, e.label(n))
	if g.err != nil {
		return -1
	}
	return status
}

// startPipeline connects stages with pipes and starts them in one new
// process group, led by the first stage that starts. Stages that cannot be
// started are skipped; a fork failure stops the rest.
func (e *Executor) startPipeline(stages []ast.Node, fg bool) *group {
	g := &group{}

	if limit := e.maxStages(); len(stages) > limit {
		logger.Warnf("pipeline of %d stages truncated to %d", len(stages), limit)
		stages = stages[:limit]
	}

	readers := make([]*os.File, len(stages)-1)
	writers := make([]*os.File, len(stages)-1)
	defer func() {
		for i := range readers {
			if readers[i] != nil {
				_ = readers[i].Close()
			}
			if writers[i] != nil {
				_ = writers[i].Close()
			}
		}
	}()

	for i := range readers {
		r, w, err := os.Pipe()
		if err != nil {
			g.err = fmt.Errorf("pipe: %w", err)
			e.diag("%v", g.err)
			return g
		}
		readers[i], writers[i] = r, w
	}

	foreground := fg && e.Term.Interactive()

	for i, stage := range stages {
		in, out := e.Stdin, e.Stdout
		if i > 0 {
			in = readers[i-1]
		}
		if i < len(stages)-1 {
			out = writers[i]
		}

		pid, status, err := e.startStage(stage, in, out, g.pgid, foreground && g.pgid == 0)
		if err != nil {
			g.err = err
			e.diag("%v", err)
			break
		}
		if pid == 0 {
			if i == len(stages)-1 {
				g.status = status
			}
			continue
		}

		if g.pgid == 0 {
			g.pgid = pid
			g.handed = foreground
		}
		// The child already did this; repeating it here closes the window
		// before exec.
		if err := syscall.Setpgid(pid, g.pgid); err != nil && !errors.Is(err, syscall.EACCES) && !errors.Is(err, syscall.ESRCH) {
			logger.Debugf("setpgid %d: %v", pid, err)
		}

		g.pids = append(g.pids, pid)
		if i == len(stages)-1 {
			g.last = pid
		}
	}

	return g
}

// startStage starts one stage reading in and writing out. Builtins, plugins
// and compound stages run in a child shell; their redirections are opened
// here and the child gets the command without them.
func (e *Executor) startStage(n ast.Node, in, out *os.File, pgid int, foreground bool) (pid, status int, err error) {
	switch n := n.(type) {
	case *ast.Command:
		if len(n.Argv) == 0 {
			return 0, -1, nil
		}
		argv := e.expand(n.Argv)

		redirs, err := e.openRedirections(n.Redirs)
		if err != nil {
			e.diag("%v", err)
			return 0, 1, nil
		}
		defer redirs.Close()
		files := redirs.table(in, out, e.Stderr)

		if e.inProcess(argv[0]) {
			pid, err := e.reexec((&ast.Command{Argv: n.Argv}).String(), files, pgid, foreground)
			return pid, 0, err
		}

		e.trace(argv)
		return e.startExternal(argv, files, pgid, foreground)

	case *ast.Subshell:
		pid, err := e.reexec(n.Child.String(), []*os.File{in, out, e.Stderr}, pgid, foreground)
		return pid, 0, err

	default:
		pid, err := e.reexec(n.String(), []*os.File{in, out, e.Stderr}, pgid, foreground)
		return pid, 0, err
	}
}

// waitForeground waits until every process in g has exited, or one of them
// stops. A stopped group becomes a job. The shell ignores SIGINT meanwhile,
// with or without a terminal.
func (e *Executor) waitForeground(g *group, label string) int {
	defer term.IgnoreInterrupt()()
	if g.handed {
		defer e.Term.Reclaim()
	}

	status := g.status
	var ws syscall.WaitStatus

	for {
		pid, err := syscall.Wait4(-g.pgid, &ws, syscall.WUNTRACED, nil)

		switch {
		case errors.Is(err, syscall.EINTR):
			continue
		case errors.Is(err, syscall.ECHILD):
			return status
		case err != nil:
			logger.Errorf("wait4 pgid %d: %v", g.pgid, err)
			return -1
		case ws.Stopped():
			fmt.Fprintln(e.Stderr)
			job := e.Jobs.Suspend(e.Stderr, g.pgid, label, g.pids...)
			if g.last == 0 {
				job.Exit = g.status
			}
			return jobs.ExitStatus(ws)
		}

		if pid == g.last {
			status = jobs.ExitStatus(ws)
		}
		logger.Tracef("pid %d exited: %d", pid, jobs.ExitStatus(ws))
	}
}
